package sim

import (
	"github.com/pkg/errors"
	"github.com/psantana5/opsim/pkg/models"
	"gopkg.in/yaml.v3"
)

// DefaultMonitoringConfig is the scrape config a fresh simulator starts with
const DefaultMonitoringConfig = `global:
  scrape_interval: 15s

scrape_configs:
  - job_name: 'prometheus'
    static_configs:
      - targets: ['localhost:9090']
`

// MonitoringConfig is the subset of a Prometheus config the simulator understands
type MonitoringConfig struct {
	Global struct {
		ScrapeInterval string `yaml:"scrape_interval"`
	} `yaml:"global"`
	ScrapeConfigs []ScrapeConfig `yaml:"scrape_configs"`
}

// ScrapeConfig is one scrape job
type ScrapeConfig struct {
	JobName       string `yaml:"job_name"`
	StaticConfigs []struct {
		Targets []string `yaml:"targets"`
	} `yaml:"static_configs"`
}

// Targets flattens the job's static targets
func (c ScrapeConfig) Targets() []string {
	var out []string
	for _, sc := range c.StaticConfigs {
		out = append(out, sc.Targets...)
	}
	return out
}

// ParseMonitoringConfig decodes and checks a monitoring config
func ParseMonitoringConfig(text string) (*MonitoringConfig, error) {
	var cfg MonitoringConfig
	if err := yaml.Unmarshal([]byte(text), &cfg); err != nil {
		return nil, errors.Wrapf(models.ErrConfigParse, "%v", err)
	}
	if len(cfg.ScrapeConfigs) == 0 {
		return nil, errors.Wrap(models.ErrConfigParse, "no scrape_configs defined")
	}
	for i, job := range cfg.ScrapeConfigs {
		if job.JobName == "" {
			return nil, errors.Wrapf(models.ErrConfigParse, "scrape_configs[%d] has no job_name", i)
		}
	}
	return &cfg, nil
}

// MonitoringConfig returns the raw monitoring config
func (s *Simulator) MonitoringConfig() string {
	return s.monitoring
}

// SetMonitoringConfig replaces the monitoring config; it is checked on restart
func (s *Simulator) SetMonitoringConfig(text string) {
	s.monitoring = text
}

// RestartMonitoring loads the monitoring config as a restart would, failing on an invalid config
func (s *Simulator) RestartMonitoring() (*MonitoringConfig, error) {
	cfg, err := ParseMonitoringConfig(s.monitoring)
	if err != nil {
		return nil, err
	}
	s.events.Record("Prometheus restarted with %d scrape job(s).", len(cfg.ScrapeConfigs))
	return cfg, nil
}
