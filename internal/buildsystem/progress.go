package buildsystem

import (
	"regexp"
	"strings"

	"github.com/kdebuilder/kdebuilder/internal/procexec"
)

var (
	percentPattern  = regexp.MustCompile(`^\[(\d+)%\]`)
	fractionPattern = regexp.MustCompile(`^\[(\d+)/(\d+)\]`)
)

// Progress is the parsed state of a recognized progress line.
type Progress struct {
	Fraction float64 // 0..1
	Have     int
	Total    int
}

// parseProgressLine recognizes the two patterns: "[NN%] ..."
// and "[x/y] ...", returning ok=false for unrecognized lines.
func parseProgressLine(line string) (Progress, bool) {
	if m := percentPattern.FindStringSubmatch(line); m != nil {
		n := atoiSafe(m[1])
		return Progress{Fraction: float64(n) / 100}, true
	}
	if m := fractionPattern.FindStringSubmatch(line); m != nil {
		have, total := atoiSafe(m[1]), atoiSafe(m[2])
		frac := 0.0
		if total > 0 {
			frac = float64(have) / float64(total)
		}
		return Progress{Fraction: frac, Have: have, Total: total}, true
	}
	return Progress{}, false
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// progressLineFunc returns a procexec.LineFunc that counts "warning:"
// occurrences into *warnings and forwards recognized progress lines to
// onProgress (nil is fine when nobody is watching), for persisting
// last-compile-warnings and driving the pipeline's status view.
func progressLineFunc(warnings *int, onProgress ...func(Progress)) procexec.LineFunc {
	var cb func(Progress)
	if len(onProgress) > 0 {
		cb = onProgress[0]
	}
	return func(line string) {
		if strings.Contains(line, "warning:") {
			*warnings++
		}
		if cb != nil {
			if p, ok := parseProgressLine(line); ok {
				cb(p)
			}
		}
	}
}
