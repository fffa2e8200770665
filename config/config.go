// Package config loads engine-wide configuration and watches it for
// sampling-preset hot reload, following the teacher's own load-with-
// fallback-to-defaults style.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-yaml"

	"github.com/Hirogarden/AuraNexus/llmapi"
	"github.com/Hirogarden/AuraNexus/log"
)

// CapacityConfig holds per-layer capacity values read from the config
// file, merged over Default() like every other field. Nothing in this
// module passes them on to a Manager or Session: sessions always use
// DefaultCapacities.
type CapacityConfig struct {
	Active      int `yaml:"Active,omitempty" json:"Active,omitempty"`
	ShortTerm   int `yaml:"ShortTerm,omitempty" json:"ShortTerm,omitempty"`
	MediumTerm  int `yaml:"MediumTerm,omitempty" json:"MediumTerm,omitempty"`
	LongTerm    int `yaml:"LongTerm,omitempty" json:"LongTerm,omitempty"`
}

// SchedulerConfig tunes the compression scheduler's timing.
type SchedulerConfig struct {
	TickIntervalMS      int `yaml:"TickIntervalMS,omitempty" json:"TickIntervalMS,omitempty"`
	IdleThresholdMS     int `yaml:"IdleThresholdMS,omitempty" json:"IdleThresholdMS,omitempty"`
	LongIdleThresholdMS int `yaml:"LongIdleThresholdMS,omitempty" json:"LongIdleThresholdMS,omitempty"`
	MaxRetries          int `yaml:"MaxRetries,omitempty" json:"MaxRetries,omitempty"`
	RetryBaseWaitMS     int `yaml:"RetryBaseWaitMS,omitempty" json:"RetryBaseWaitMS,omitempty"`
}

// SamplingOverride replaces or augments one named preset's parameters.
type SamplingOverride struct {
	Name         string   `yaml:"Name" json:"Name"`
	Temperature  *float64 `yaml:"Temperature,omitempty" json:"Temperature,omitempty"`
	TopP         *float64 `yaml:"TopP,omitempty" json:"TopP,omitempty"`
	TopK         *int     `yaml:"TopK,omitempty" json:"TopK,omitempty"`
	MinP         *float64 `yaml:"MinP,omitempty" json:"MinP,omitempty"`
	DRY          *float64 `yaml:"DRY,omitempty" json:"DRY,omitempty"`
	FrequencyPen *float64 `yaml:"FrequencyPen,omitempty" json:"FrequencyPen,omitempty"`
	PresencePen  *float64 `yaml:"PresencePen,omitempty" json:"PresencePen,omitempty"`
	XTC          *float64 `yaml:"XTC,omitempty" json:"XTC,omitempty"`
	DynaTemp     *float64 `yaml:"DynaTemp,omitempty" json:"DynaTemp,omitempty"`
}

// ToParams converts the override into an llmapi.SamplingParams, suitable
// as the overrides argument to a Resolve call.
func (o SamplingOverride) ToParams() llmapi.SamplingParams {
	return llmapi.SamplingParams{
		Temperature:  o.Temperature,
		TopP:         o.TopP,
		TopK:         o.TopK,
		MinP:         o.MinP,
		DRY:          o.DRY,
		FrequencyPen: o.FrequencyPen,
		PresencePen:  o.PresencePen,
		XTC:          o.XTC,
		DynaTemp:     o.DynaTemp,
	}
}

// Config is the root engine configuration document.
type Config struct {
	DataRoot           string             `yaml:"DataRoot,omitempty" json:"DataRoot,omitempty"`
	EmbeddingDimension int                `yaml:"EmbeddingDimension,omitempty" json:"EmbeddingDimension,omitempty"`
	CompressionBatch   int                `yaml:"CompressionBatch,omitempty" json:"CompressionBatch,omitempty"`
	BackpressureBound  int                `yaml:"BackpressureBound,omitempty" json:"BackpressureBound,omitempty"`
	LogLevel           string             `yaml:"LogLevel,omitempty" json:"LogLevel,omitempty"`
	Capacities         CapacityConfig     `yaml:"Capacities,omitempty" json:"Capacities,omitempty"`
	Scheduler          SchedulerConfig    `yaml:"Scheduler,omitempty" json:"Scheduler,omitempty"`
	SamplingOverrides  []SamplingOverride `yaml:"SamplingOverrides,omitempty" json:"SamplingOverrides,omitempty"`
}

// Default returns the pure-Go configuration used when no file is loaded.
func Default() Config {
	return Config{
		DataRoot:           "./data",
		EmbeddingDimension: 1536,
		CompressionBatch:   10,
		BackpressureBound:  500,
		LogLevel:           "info",
		Scheduler: SchedulerConfig{
			TickIntervalMS:      500,
			IdleThresholdMS:     3000,
			LongIdleThresholdMS: 10000,
			MaxRetries:          3,
			RetryBaseWaitMS:     500,
		},
	}
}

// Load reads a YAML configuration file at path and merges it over
// Default(). A missing file is not an error; Default() is returned
// unmodified, mirroring the teacher's config loader, which tolerates an
// absent file and runs on built-in defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	mergeInto(&cfg, file)
	return cfg, nil
}

func mergeInto(dst *Config, src Config) {
	if src.DataRoot != "" {
		dst.DataRoot = src.DataRoot
	}
	if src.EmbeddingDimension != 0 {
		dst.EmbeddingDimension = src.EmbeddingDimension
	}
	if src.CompressionBatch != 0 {
		dst.CompressionBatch = src.CompressionBatch
	}
	if src.BackpressureBound != 0 {
		dst.BackpressureBound = src.BackpressureBound
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.Capacities.Active != 0 {
		dst.Capacities.Active = src.Capacities.Active
	}
	if src.Capacities.ShortTerm != 0 {
		dst.Capacities.ShortTerm = src.Capacities.ShortTerm
	}
	if src.Capacities.MediumTerm != 0 {
		dst.Capacities.MediumTerm = src.Capacities.MediumTerm
	}
	if src.Capacities.LongTerm != 0 {
		dst.Capacities.LongTerm = src.Capacities.LongTerm
	}
	if src.Scheduler.TickIntervalMS != 0 {
		dst.Scheduler.TickIntervalMS = src.Scheduler.TickIntervalMS
	}
	if src.Scheduler.IdleThresholdMS != 0 {
		dst.Scheduler.IdleThresholdMS = src.Scheduler.IdleThresholdMS
	}
	if src.Scheduler.LongIdleThresholdMS != 0 {
		dst.Scheduler.LongIdleThresholdMS = src.Scheduler.LongIdleThresholdMS
	}
	if src.Scheduler.MaxRetries != 0 {
		dst.Scheduler.MaxRetries = src.Scheduler.MaxRetries
	}
	if src.Scheduler.RetryBaseWaitMS != 0 {
		dst.Scheduler.RetryBaseWaitMS = src.Scheduler.RetryBaseWaitMS
	}
	if len(src.SamplingOverrides) > 0 {
		dst.SamplingOverrides = src.SamplingOverrides
	}
}

// TickInterval, IdleThreshold, LongIdleThreshold, and RetryBaseWait
// convert the millisecond fields into time.Duration for scheduler.Config.
func (c Config) TickInterval() time.Duration { return time.Duration(c.Scheduler.TickIntervalMS) * time.Millisecond }
func (c Config) IdleThreshold() time.Duration {
	return time.Duration(c.Scheduler.IdleThresholdMS) * time.Millisecond
}
func (c Config) LongIdleThreshold() time.Duration {
	return time.Duration(c.Scheduler.LongIdleThresholdMS) * time.Millisecond
}
func (c Config) RetryBaseWait() time.Duration {
	return time.Duration(c.Scheduler.RetryBaseWaitMS) * time.Millisecond
}

// Watcher watches a config file on disk and, as the file changes, hands the
// reloaded sampling-preset overrides to its onApply callback, without
// restarting the process. Layer capacities and scheduler timing are read once at
// startup; only SamplingOverrides are live-reloaded.
type Watcher struct {
	path    string
	fsw     *fsnotify.Watcher
	mu      sync.Mutex
	onApply func([]SamplingOverride)
	done    chan struct{}
}

// NewWatcher creates a Watcher for the file at path. onApply is invoked
// with the freshly loaded SamplingOverrides whenever the file changes.
func NewWatcher(path string, onApply func([]SamplingOverride)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: creating watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", dir, err)
	}
	return &Watcher{path: path, fsw: fsw, onApply: onApply, done: make(chan struct{})}, nil
}

// Run blocks, applying reloads until Stop is called (which closes the
// underlying watcher's channels). Intended to run in its own goroutine.
func (w *Watcher) Run(logger log.Logger) {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !strings.EqualFold(filepath.Clean(event.Name), filepath.Clean(w.path)) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				logger.Warn("config reload failed", "path", w.path, "error", err)
				continue
			}
			w.mu.Lock()
			w.onApply(cfg.SamplingOverrides)
			w.mu.Unlock()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}

// Stop closes the underlying filesystem watcher.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}
