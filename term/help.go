package term

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var CmdDesc = map[string][2]string{
	"sign-up":  {"", "create an account"},
	"sign-in":  {"", "sign in with email and password"},
	"sign-out": {"", "sign out"},
	"whoami":   {"", "show who is signed in"},
	"posts":    {"ls", "list posts"},
	"new-post": {"", "write a new post"},
	"show":     {"", "show a post and its comments"},
	"comment":  {"", "comment on a post"},
	"browse":   {"", "browse the board interactively"},
}

func PrintCmds(w io.Writer, prefix string, cmds ...string) {
	for _, cmd := range cmds {
		config, ok := CmdDesc[cmd]
		if !ok {
			continue
		}

		alias := config[0]
		desc := config[1]
		if alias != "" {
			desc += fmt.Sprintf(" (alias %s)", alias)
		}
		styled := color.New(color.Bold, color.FgHiWhite, color.BgCyan).Sprintf(" danyak %s ", cmd)

		fmt.Fprintf(w, "%s%s 👉 %s\n", prefix, styled, desc)
	}
}
