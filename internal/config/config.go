// Package config loads the settings of a qtest run from flags, the
// environment and an optional config file.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	prefix = "QTEST"

	LogLevel   = "log-level"
	Verbose    = "verbose"
	ErrorLimit = "fail"
	Malloc     = "malloc"
	Length     = "length"
	TimeLimit  = "time-limit"
	Seed       = "seed"

	defaultLogLevel   = "info"
	defaultVerbose    = 1
	defaultErrorLimit = 5
	defaultMalloc     = 0
	defaultLength     = 1024
	defaultTimeLimit  = time.Second
)

// Config holds the settings of a qtest run.
type Config struct {
	LogLevel string

	// Verbose controls how much the console echoes: 0 prints only
	// errors, 1 echoes commands, 2 also shows the queue after every
	// change.
	Verbose int

	// ErrorLimit is the number of errors after which a run stops.
	ErrorLimit int

	// Malloc is the percentage of allocations that are refused.
	Malloc int

	// Length is the capacity of the buffer removed values are copied
	// into, terminator included.
	Length int

	TimeLimit time.Duration

	// Seed seeds allocation failure injection. Zero picks a seed from
	// the clock.
	Seed uint64
}

// RegisterFlags defines the configuration flags on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(LogLevel, defaultLogLevel, "log level")
	fs.Int(Verbose, defaultVerbose, "verbosity level (0-2)")
	fs.Int(ErrorLimit, defaultErrorLimit, "number of errors before the run stops")
	fs.Int(Malloc, defaultMalloc, "percentage of allocations to refuse")
	fs.Int(Length, defaultLength, "capacity of the buffer used by rh")
	fs.Duration(TimeLimit, defaultTimeLimit, "time limit for each queue operation")
	fs.Uint64(Seed, 0, "seed for allocation failure injection")
}

// Load builds a Config from, in order of precedence, the flags in fs
// that were set explicitly, QTEST_ environment variables, the config
// file, if any, and the flag defaults.
func Load(fs *pflag.FlagSet, configFile string) (Config, error) {
	v := viper.New()

	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(LogLevel, defaultLogLevel)
	v.SetDefault(Verbose, defaultVerbose)
	v.SetDefault(ErrorLimit, defaultErrorLimit)
	v.SetDefault(Malloc, defaultMalloc)
	v.SetDefault(Length, defaultLength)
	v.SetDefault(TimeLimit, defaultTimeLimit)
	v.SetDefault(Seed, 0)

	if len(configFile) > 0 {
		v.SetConfigFile(configFile)
		err := v.ReadInConfig()
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config file %q", configFile)
		}
	}

	if fs != nil {
		err := bindFlags(fs, v)
		if err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		LogLevel:   v.GetString(LogLevel),
		Verbose:    v.GetInt(Verbose),
		ErrorLimit: v.GetInt(ErrorLimit),
		Malloc:     v.GetInt(Malloc),
		Length:     v.GetInt(Length),
		TimeLimit:  v.GetDuration(TimeLimit),
		Seed:       v.GetUint64(Seed),
	}
	return cfg, cfg.Validate()
}

// Bind each flag to its viper key. Viper only prefers the flag's value
// over the environment and the config file when the flag was changed.
func bindFlags(fs *pflag.FlagSet, v *viper.Viper) (err error) {
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		err = v.BindPFlag(f.Name, f)
		if err != nil {
			err = errors.Wrapf(err, "bind flag %q", f.Name)
		}
	})
	return err
}

// Validate reports the first setting that is out of range.
func (c Config) Validate() error {
	switch {
	case c.Verbose < 0:
		return errors.Errorf("%v must not be negative, got %v", Verbose, c.Verbose)
	case c.ErrorLimit < 1:
		return errors.Errorf("%v must be at least 1, got %v", ErrorLimit, c.ErrorLimit)
	case c.Malloc < 0 || c.Malloc > 100:
		return errors.Errorf("%v must be between 0 and 100, got %v", Malloc, c.Malloc)
	case c.Length < 0:
		return errors.Errorf("%v must not be negative, got %v", Length, c.Length)
	case c.TimeLimit < 0:
		return errors.Errorf("%v must not be negative, got %v", TimeLimit, c.TimeLimit)
	}
	return nil
}
