package config

import "time"

// Config holds runtime settings for the CLI.
type Config struct {
	HIBPBaseURL string
	HIBPTimeout time.Duration
}

// LoadDefaults populates c with defaults.
func (c *Config) LoadDefaults() {
	c.HIBPBaseURL = "https://api.pwnedpasswords.com"
	c.HIBPTimeout = 10 * time.Second
}

// LoadConfig applies defaults, then JSON, then flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
