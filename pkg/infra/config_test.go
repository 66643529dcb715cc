package infra

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/psantana5/opsim/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		want    *Spec
		wantErr string
	}{
		{
			name: "default config",
			src:  DefaultConfig,
			want: DefaultSpec(),
		},
		{
			name: "version key and custom label",
			src: `resource "cluster_node" "main" {
  count = 4
  cpu = 16
  gpu = 4
  ram = 128
  version = "1.9"
}`,
			want: &Spec{Name: "main", Count: 4, Shape: models.NewResources(16, 4, 128), Version: "1.9"},
		},
		{
			name: "top level attributes",
			src:  "count = 2\ncpu = 1\ngpu = 0\nram = 4\npytorch_version = \"2.0\"\n",
			want: &Spec{Name: "default", Count: 2, Shape: models.NewResources(1, 0, 4), Version: "2.0"},
		},
		{
			name:    "missing fields",
			src:     `resource "cluster_node" "default" { count = 1 }`,
			wantErr: "missing field(s): cpu, gpu, pytorch_version, ram",
		},
		{
			name:    "not an integer",
			src:     "count = \"three\"\ncpu = 1\ngpu = 0\nram = 4\npytorch_version = \"2.0\"\n",
			wantErr: "count must be an integer",
		},
		{
			name:    "count out of int range",
			src:     "count = 99999999999999999999\ncpu = 1\ngpu = 0\nram = 4\npytorch_version = \"2.0\"\n",
			wantErr: "count must be an integer in range",
		},
		{
			name:    "ram out of int range",
			src:     "count = 1\ncpu = 1\ngpu = 0\nram = 99999999999999999999\npytorch_version = \"2.0\"\n",
			wantErr: "ram must be an integer in range",
		},
		{
			name:    "negative cpu",
			src:     "count = 1\ncpu = -2\ngpu = 0\nram = 4\npytorch_version = \"2.0\"\n",
			wantErr: "cpu must be a non-negative integer",
		},
		{
			name:    "count above cap",
			src:     "count = 30000\ncpu = 1\ngpu = 0\nram = 4\npytorch_version = \"2.0\"\n",
			wantErr: "count must be at most 64",
		},
		{
			name:    "syntax error",
			src:     `resource "cluster_node" {`,
			wantErr: "config parse error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.src)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.Is(err, models.ErrConfigParse))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderRoundTrip(t *testing.T) {
	spec := &Spec{Name: "gpu-pool", Count: 3, Shape: models.NewResources(4, 1, 32), Version: "1.9"}
	got, err := Parse(spec.Render())
	require.NoError(t, err)
	assert.Equal(t, spec, got)

	assert.Equal(t, DefaultConfig, DefaultSpec().Render())
}

func TestOverride(t *testing.T) {
	count, ram := 3, 128
	base := DefaultSpec()
	got := Override{Count: &count, RAM: &ram}.Apply(base)

	assert.Equal(t, 3, got.Count)
	assert.Equal(t, models.NewResources(8, 2, 128), got.Shape)
	assert.Equal(t, "2.0", got.Version)
	assert.Equal(t, 64, base.Shape.Get(models.ResourceRAM), "base spec is not modified")
}

func TestFormat(t *testing.T) {
	src := "resource \"cluster_node\" \"default\" {\ncount = 1\ncpu = 8\ngpu = 2\nram = 64\npytorch_version = \"2.0\"\n}\n"
	out, err := Format(src)
	require.NoError(t, err)
	assert.Contains(t, out, "  count")

	spec, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, DefaultSpec(), spec)

	_, err = Format("resource {")
	assert.True(t, errors.Is(err, models.ErrConfigParse))
}
