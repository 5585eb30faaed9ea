package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/passport/internal/flagx"
)

// parseFlags reads -u and -t. Other arguments are left for the command
// dispatcher.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-u", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.HIBPBaseURL, "u", cfg.HIBPBaseURL, "breach range API base URL")
	timeout := fs.Int("t", int(cfg.HIBPTimeout.Seconds()), "breach lookup timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.HIBPTimeout = time.Duration(*timeout) * time.Second
}
