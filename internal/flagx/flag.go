// Package flagx contains helpers for picking a subset of flags out of the
// process arguments, so that several independent flag sets (config file,
// env file, server flags) can read the same os.Args without tripping over
// each other's unknown flags.
package flagx

import (
	"flag"
	"io"
	"os"
	"strings"
)

// FilterArgs returns only the flags listed in allowed, together with their
// values. Both "-f value" and "-f=value" forms are recognised; a value that
// itself starts with '-' is not consumed.
func FilterArgs(args []string, allowed []string) []string {
	set := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		set[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := set[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := set[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// StringFlag looks up a single string flag under any of the given names
// (without the leading dash) in os.Args. It returns "" when none is set.
func StringFlag(names ...string) string {
	allowed := make([]string, 0, len(names)*2)
	for _, n := range names {
		allowed = append(allowed, "-"+n, "--"+n)
	}
	args := FilterArgs(os.Args[1:], allowed)

	var value string
	fs := flag.NewFlagSet("flagx", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	for _, n := range names {
		fs.StringVar(&value, n, value, "")
	}
	_ = fs.Parse(args)

	return value
}

// ConfigFileFlag returns the path passed with -c or -config.
func ConfigFileFlag() string {
	return StringFlag("c", "config")
}

// EnvFileFlag returns the path passed with -env-file.
func EnvFileFlag() string {
	return StringFlag("env-file")
}
