package ailink

import "time"

// Config tunes the providers built by the factory.
type Config struct {
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	// TraceFile, when set, receives an NDJSON trace of every provider round trip.
	TraceFile string `mapstructure:"trace_file"`
}

// FactoryOptions converts the config into factory options.
func (c Config) FactoryOptions() []Option {
	var opts []Option
	if c.DefaultTimeout > 0 {
		opts = append(opts, WithTimeout(c.DefaultTimeout))
	}
	return opts
}
