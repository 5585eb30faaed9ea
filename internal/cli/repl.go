package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// executor is the command surface the prompt loop needs.
type executor interface {
	Exec(ctx context.Context, cmd string, args []string) error
}

// runREPL reads commands until EOF or "exit"/"quit". Command errors are
// printed and the loop continues.
func runREPL(ctx context.Context, e executor, reader *bufio.Reader, w io.Writer) {
	fmt.Fprintln(w, "PassPort CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(reader)
	for {
		fmt.Fprint(w, "passport> ")
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return
		default:
			if err := e.Exec(ctx, parts[0], parts[1:]); err != nil {
				fmt.Fprintln(w, "error:", err)
			}
		}
	}
}
