package term

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"danyak/types"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/muesli/reflow/wordwrap"
	"github.com/olekukonko/tablewriter"
)

const maxTitleWidth = 48

// RenderPostsTable prints posts numbered from 1 in the given order. The
// numbers are what the show and comment commands accept.
func RenderPostsTable(w io.Writer, posts []types.Post, highlightId string) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"#", "Title", "Author", "Posted"})

	for i, p := range posts {
		num := strconv.Itoa(i + 1)
		title := truncate(p.Title, maxTitleWidth)
		if p.Id == highlightId {
			num = color.New(color.Bold, ColorHiGreen).Sprint(num)
			title = color.New(color.Bold, ColorHiGreen).Sprint(title) + " 👈"
		}

		table.Append([]string{
			num,
			title,
			p.AuthorEmail,
			humanize.Time(p.CreatedAt),
		})
	}

	table.Render()
}

// RenderPost prints a post with its comments. fetched=false means the
// comments were never loaded, which is different from there being none.
func RenderPost(w io.Writer, post types.Post, comments []types.Comment, fetched bool) {
	width := min(getTerminalWidth(), defaultWidth)

	fmt.Fprintln(w, color.New(color.Bold, ColorHiCyan).Sprint(post.Title))
	fmt.Fprintf(w, "%s · %s\n", post.AuthorEmail, humanize.Time(post.CreatedAt))
	fmt.Fprintln(w, GetDivisionLine())
	fmt.Fprintln(w, wordwrap.String(post.Content, width))
	fmt.Fprintln(w, GetDivisionLine())

	switch {
	case !fetched:
		fmt.Fprintln(w, "💬 Comments not loaded")
	case len(comments) == 0:
		fmt.Fprintln(w, "💬 No comments yet")
	default:
		fmt.Fprintf(w, "💬 %d %s\n", len(comments), pluralize(len(comments), "comment", "comments"))
		for _, c := range comments {
			fmt.Fprintln(w)
			fmt.Fprintf(w, "  %s · %s\n", color.New(color.Bold).Sprint(c.AuthorEmail), humanize.Time(c.CreatedAt))
			fmt.Fprintln(w, indent(wordwrap.String(c.Content, width-2), "  "))
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}
