package term

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const defaultWidth = 80

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func ClearScreen(w io.Writer) {
	if isTerminal() {
		fmt.Fprint(w, "\x1b[2J\x1b[H")
	}
}

func GetDivisionLine() string {
	return strings.Repeat("─", min(getTerminalWidth(), defaultWidth))
}

func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
