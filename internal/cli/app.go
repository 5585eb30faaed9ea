package cli

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dmitrijs2005/passport/internal/breach"
	"github.com/dmitrijs2005/passport/internal/cli/config"
	"github.com/dmitrijs2005/passport/internal/logging"
)

// BreachChecker is the lookup used by the breach command.
type BreachChecker interface {
	Check(ctx context.Context, password string) breach.Result
}

type App struct {
	config  *config.Config
	checker BreachChecker
	http    *http.Client
	reader  *bufio.Reader
	out     io.Writer
}

func NewApp(c *config.Config, l logging.Logger) *App {
	return &App{
		config:  c,
		checker: breach.NewChecker(c.HIBPBaseURL, "", c.HIBPTimeout, l),
		http:    &http.Client{Timeout: 5 * time.Minute},
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}
}

// Run executes the command in args, or starts the interactive prompt when
// args is empty.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		runREPL(ctx, a, a.reader, a.out)
		return nil
	}
	return a.Exec(ctx, args[0], args[1:])
}
