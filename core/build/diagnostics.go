package build

import (
	"regexp"
	"strings"
)

var (
	goDiagnostic   = regexp.MustCompile(`^\S+\.go:\d+(:\d+)?: `)
	bracketSuffix  = regexp.MustCompile(`\s*\[[^\[\]]*\]$`)
	locationSuffix = regexp.MustCompile(`\s*\(\d+(,\d+)*\)$`)
)

// ParseErrors returns the error lines of output with trailing location suffixes
// stripped. An empty marker selects Go toolchain diagnostics.
func ParseErrors(output []string, marker string) []string {
	var errs []string
	for _, line := range output {
		line = strings.TrimRight(line, "\r\n\t ")
		if line == "" {
			continue
		}
		if marker != "" {
			if !strings.Contains(line, marker) {
				continue
			}
		} else if !goDiagnostic.MatchString(line) {
			continue
		}
		errs = append(errs, stripLocation(line))
	}
	return errs
}

func stripLocation(line string) string {
	line = bracketSuffix.ReplaceAllString(line, "")
	return locationSuffix.ReplaceAllString(line, "")
}
