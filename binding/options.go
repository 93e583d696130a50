package qbind

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Options configures an Engine. The zero value is usable; missing fields
// take the values of DefaultOptions.
type Options struct {
	// DefaultMode is used by bindings created with ModeDefault.
	DefaultMode Mode `yaml:"defaultMode"`
	// DefaultTrigger is used by bindings created with TriggerDefault.
	DefaultTrigger Trigger `yaml:"defaultTrigger"`
	// MaxNotifyDepth bounds nested notifications, such as a listener that
	// writes to a property whose listeners write again.
	MaxNotifyDepth int `yaml:"maxNotifyDepth"`
	// LogLevel is used when the engine creates its own logger: debug,
	// info, warn or error.
	LogLevel string `yaml:"logLevel"`
	// QueueSize is the capacity of the Post queue.
	QueueSize int `yaml:"queueSize"`
}

// DefaultOptions returns the options used for unset fields.
func DefaultOptions() Options {
	return Options{
		DefaultMode:    OneWay,
		DefaultTrigger: TriggerPropertyChanged,
		MaxNotifyDepth: 64,
		LogLevel:       "info",
		QueueSize:      128,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DefaultMode == ModeDefault {
		o.DefaultMode = d.DefaultMode
	}
	if o.DefaultTrigger == TriggerDefault {
		o.DefaultTrigger = d.DefaultTrigger
	}
	if o.MaxNotifyDepth == 0 {
		o.MaxNotifyDepth = d.MaxNotifyDepth
	}
	if o.LogLevel == "" {
		o.LogLevel = d.LogLevel
	}
	if o.QueueSize <= 0 {
		o.QueueSize = d.QueueSize
	}
	return o
}

// ParseOptions decodes YAML options. Unknown keys are rejected.
func ParseOptions(data []byte) (Options, error) {
	var opts Options
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, fmt.Errorf("qbind: parsing options: %w", err)
	}
	if _, err := parseLevel(opts.LogLevel); err != nil {
		return Options{}, err
	}
	return opts.withDefaults(), nil
}

// LoadOptions reads YAML options from path.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("qbind: reading options: %w", err)
	}
	return ParseOptions(data)
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("qbind: invalid log level %q", name)
	}
	return level, nil
}
