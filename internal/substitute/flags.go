package substitute

import (
	"fmt"

	"github.com/dlclark/regexp2"
)

// flagSet is a parsed JavaScript-style flag string
type flagSet struct {
	global  bool
	sticky  bool
	options regexp2.RegexOptions
}

// parseFlags accepts the flags a browser RegExp accepts. Unknown and
// repeated flags are errors, matching the host's behaviour.
func parseFlags(flags string) (flagSet, error) {
	fs := flagSet{options: regexp2.ECMAScript}
	seen := make(map[rune]bool, len(flags))

	for _, f := range flags {
		if seen[f] {
			return flagSet{}, fmt.Errorf("repeated flag %q in %q", f, flags)
		}
		seen[f] = true

		switch f {
		case 'g':
			fs.global = true
		case 'y':
			fs.sticky = true
		case 'i':
			fs.options |= regexp2.IgnoreCase
		case 'm':
			fs.options |= regexp2.Multiline
		case 's':
			fs.options |= regexp2.Singleline
		case 'u', 'v':
			fs.options |= regexp2.Unicode
		case 'd':
			// match indices do not affect replacement
		default:
			return flagSet{}, fmt.Errorf("invalid flag %q in %q", f, flags)
		}
	}

	if seen['u'] && seen['v'] {
		return flagSet{}, fmt.Errorf("flags u and v are mutually exclusive")
	}

	return fs, nil
}
