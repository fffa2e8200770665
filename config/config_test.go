package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Hirogarden/AuraNexus/log"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadMergesOverFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
DataRoot: /var/lib/auranexus
EmbeddingDimension: 768
Capacities:
  Active: 20
Scheduler:
  IdleThresholdMS: 1500
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/auranexus", cfg.DataRoot)
	require.Equal(t, 768, cfg.EmbeddingDimension)
	require.Equal(t, 20, cfg.Capacities.Active)
	require.Equal(t, 1500, cfg.Scheduler.IdleThresholdMS)
	// Untouched fields keep their defaults.
	require.Equal(t, Default().CompressionBatch, cfg.CompressionBatch)
	require.Equal(t, Default().Scheduler.TickIntervalMS, cfg.Scheduler.TickIntervalMS)
}

func TestDurationHelpersConvertMilliseconds(t *testing.T) {
	cfg := Default()
	require.Equal(t, cfg.IdleThreshold().Milliseconds(), int64(cfg.Scheduler.IdleThresholdMS))
	require.Equal(t, cfg.LongIdleThreshold().Milliseconds(), int64(cfg.Scheduler.LongIdleThresholdMS))
	require.Equal(t, cfg.TickInterval().Milliseconds(), int64(cfg.Scheduler.TickIntervalMS))
	require.Equal(t, cfg.RetryBaseWait().Milliseconds(), int64(cfg.Scheduler.RetryBaseWaitMS))
}

func TestSamplingOverrideToParams(t *testing.T) {
	temp := 0.5
	override := SamplingOverride{Name: "chat", Temperature: &temp}
	params := override.ToParams()
	require.NotNil(t, params.Temperature)
	require.Equal(t, 0.5, *params.Temperature)
	require.Nil(t, params.TopP)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("DataRoot: /initial\n"), 0o644))

	applied := make(chan []SamplingOverride, 1)
	w, err := NewWatcher(path, func(overrides []SamplingOverride) {
		applied <- overrides
	})
	require.NoError(t, err)
	defer w.Stop()

	go w.Run(log.NewNullLogger())

	temp := 0.33
	content := "SamplingOverrides:\n  - Name: chat\n    Temperature: 0.33\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	select {
	case overrides := <-applied:
		require.Len(t, overrides, 1)
		require.Equal(t, "chat", overrides[0].Name)
		require.InDelta(t, temp, *overrides[0].Temperature, 0.0001)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
