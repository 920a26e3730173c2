package term

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

func OutputErrorAndExit(msg string, args ...interface{}) {
	StopSpinner()
	fmt.Fprintln(os.Stderr, FormatError(fmt.Sprintf(msg, args...)))
	os.Exit(1)
}

// FormatError puts each ": " separated cause of msg on its own indented
// line, dropping parts that repeat an earlier one.
func FormatError(msg string) string {
	parts := strings.Split(msg, ": ")
	if len(parts) == 1 {
		return color.New(ColorHiRed, color.Bold).Sprint("🚨 " + capitalize(msg))
	}

	seen := map[string]bool{}
	var b strings.Builder
	i := 0
	for _, part := range parts {
		key := strings.ToLower(part)
		if seen[key] {
			continue
		}
		seen[key] = true

		if i == 0 {
			b.WriteString(color.New(ColorHiRed, color.Bold).Sprint("🚨 " + capitalize(part)))
		} else {
			b.WriteString("\n" + strings.Repeat("  ", i) + "→ " + capitalize(part))
		}
		i++
	}

	return b.String()
}
