// Package flagx lets several config layers share one command line. Each
// layer picks out the flags it owns and leaves the rest alone.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// ConfigFileFlags name the JSON config file.
var ConfigFileFlags = []string{"-c", "-config"}

// SplitArgs partitions args into the flags named in owned (with their
// values) and everything else, preserving order in both. A flag takes the
// following argument as its value unless that argument starts with "-".
// The "-flag=value" form is matched on the part before "=".
func SplitArgs(args []string, owned []string) (matched, rest []string) {
	set := make(map[string]struct{}, len(owned))
	for _, f := range owned {
		set[f] = struct{}{}
	}

	matched = make([]string, 0, len(args))
	rest = make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := set[name]; ok {
				matched = append(matched, arg)
			} else {
				rest = append(rest, arg)
			}
			continue
		}

		if _, ok := set[arg]; !ok {
			rest = append(rest, arg)
			continue
		}
		matched = append(matched, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			matched = append(matched, args[i+1])
			i++
		}
	}
	return matched, rest
}

// FilterArgs returns only the owned flags from args.
func FilterArgs(args []string, owned []string) []string {
	matched, _ := SplitArgs(args, owned)
	return matched
}

// StripArgs returns args with the owned flags removed.
func StripArgs(args []string, owned []string) []string {
	_, rest := SplitArgs(args, owned)
	return rest
}

// JsonConfigFlags returns the config file path given with -c or -config,
// or "" when neither is present.
func JsonConfigFlags() string {
	var config string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(os.Args[1:], ConfigFileFlags))

	return config
}
