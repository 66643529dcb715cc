package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// settings is the effective configuration after flags, env and config file are merged
type settings struct {
	LogLevel    string `yaml:"log_level" mapstructure:"log_level"`
	LogFile     string `yaml:"log_file" mapstructure:"log_file"`
	Store       string `yaml:"store" mapstructure:"store"`
	DSN         string `yaml:"dsn,omitempty" mapstructure:"dsn"`
	SaveFile    string `yaml:"save_file" mapstructure:"save_file"`
	Seed        int64  `yaml:"seed" mapstructure:"seed"`
	Autoscale   bool   `yaml:"autoscale" mapstructure:"autoscale"`
	MetricsAddr string `yaml:"metrics_addr,omitempty" mapstructure:"metrics_addr"`
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "opsim",
	Short: "AI Ops simulator",
	Long: `opsim is an interactive teaching simulator for AI infrastructure operations.
It models a small compute cluster with a job scheduler, a mock Terraform
reconciler and guided lessons on Terraform, PyTorch, ONNX and Prometheus.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.opsim/config.yaml)")
	flags.String("log-level", "warn", "log level: debug, info, warn, error")
	flags.String("log-file", "opsim.log", "rotated log file; empty disables file logging")
	flags.String("store", "file", "save backend: file, sqlite, postgres or memory")
	flags.String("dsn", "", "database path (sqlite) or connection string (postgres)")
	flags.String("save-file", "savegame.json", "save file for the file backend")
	flags.Int64("seed", 0, "random seed; 0 seeds from the clock")
	flags.Bool("autoscale", false, "start with autoscaling enabled")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9102")

	for _, name := range []string{"log-level", "log-file", "store", "dsn", "save-file", "seed", "autoscale", "metrics-addr"} {
		viper.BindPFlag(strings.ReplaceAll(name, "-", "_"), flags.Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".opsim"))
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("OPSIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	}
}

func loadSettings() (*settings, error) {
	var s settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}
	return &s, nil
}
