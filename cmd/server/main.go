package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/passport/internal/server"
	"github.com/dmitrijs2005/passport/internal/server/config"
)

func main() {
	app, err := server.NewApp(config.LoadConfig())
	if err != nil {
		fmt.Fprintln(os.Stderr, "passport:", err)
		os.Exit(1)
	}

	app.Run(context.Background())
}
