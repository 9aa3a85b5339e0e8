package cfg

import (
	"flag"
	"os"
	"strings"
)

// FillFromEnv applies PREFIX_FOO_BAR to flag "foo-bar" unless the flag was
// given on the command line. Invalid env values are reported through logf
// and leave the flag unchanged.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	onCLI := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { onCLI[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := envKey(prefix, f.Name)
		val, ok := os.LookupEnv(key)
		switch {
		case !ok:
		case onCLI[f.Name]:
			logf("flag -%s: cli value %q overrides env %s", f.Name, redact(f.Name, f.Value.String()), key)
		default:
			prev := f.Value.String()
			if err := fs.Set(f.Name, val); err != nil {
				_ = fs.Set(f.Name, prev)
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, redact(f.Name, val), err)
			}
		}
	})
}

func envKey(prefix, flagName string) string {
	return prefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func redact(name, v string) string {
	if v != "" && strings.Contains(name, "password") {
		return "[redacted]"
	}
	return v
}
