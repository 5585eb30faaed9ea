package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/passport/internal/cli"
	"github.com/dmitrijs2005/passport/internal/cli/config"
	"github.com/dmitrijs2005/passport/internal/flagx"
	"github.com/dmitrijs2005/passport/internal/logging"
	"github.com/dmitrijs2005/passport/internal/platform"
)

// configFlags are consumed by the config package, not by commands.
var configFlags = append([]string{"-u", "-t"}, flagx.ConfigFileFlags...)

func main() {

	_ = platform.DisableCoreDumps()

	logger := logging.NewText(os.Stderr, "warn")

	cfg := config.LoadConfig()
	app := cli.NewApp(cfg, logger)

	if err := app.Run(context.Background(), flagx.StripArgs(os.Args[1:], configFlags)); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
