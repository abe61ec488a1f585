// Package cfgmng loads typed configuration from a yaml file, environment
// variables and defaults, in that order of precedence from lowest to highest:
// defaults, file, environment.
package cfgmng

import (
	"errors"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Option func(*viper.Viper, *options)

type options struct {
	optional bool
}

// WithEnvPrefix binds PREFIX_SECTION_KEY variables to section.key.
func WithEnvPrefix(prefix string) Option {
	return func(v *viper.Viper, _ *options) {
		v.SetEnvPrefix(prefix)
	}
}

// WithDefaults registers defaults by dotted key. Keys only known through
// defaults can still be overridden from the environment.
func WithDefaults(defaults map[string]any) Option {
	return func(v *viper.Viper, _ *options) {
		for key, value := range defaults {
			v.SetDefault(key, value)
		}
	}
}

// WithConfigFile reads exactly file instead of searching path for filename.
func WithConfigFile(file string) Option {
	return func(v *viper.Viper, _ *options) {
		if file != "" {
			v.SetConfigFile(file)
		}
	}
}

// Optional tolerates a missing config file.
func Optional() Option {
	return func(_ *viper.Viper, o *options) {
		o.optional = true
	}
}

// Loader keeps its own viper instance so several configurations can coexist.
type Loader[T any] struct {
	v    *viper.Viper
	opts options
}

func NewLoader[T any](path string, filename string, opts ...Option) *Loader[T] {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(filename)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	l := &Loader[T]{v: v}
	for _, opt := range opts {
		opt(v, &l.opts)
	}
	return l
}

func (l *Loader[T]) Load() (*T, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !l.opts.optional || !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return l.decode()
}

// Watch calls onChange with the reloaded configuration every time the config
// file is written. Load must have succeeded first.
func (l *Loader[T]) Watch(onChange func(cfg *T, err error)) {
	l.v.OnConfigChange(func(fsnotify.Event) {
		onChange(l.decode())
	})
	l.v.WatchConfig()
}

// ConfigFile is the file Load read, empty when none was found.
func (l *Loader[T]) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

func (l *Loader[T]) decode() (*T, error) {
	var cfg T
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := l.v.Unmarshal(&cfg, hook); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadConfig[T any](path string, filename string, opts ...Option) (*T, error) {
	return NewLoader[T](path, filename, opts...).Load()
}
