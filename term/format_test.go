package term

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"danyak/types"

	"github.com/stretchr/testify/assert"
)

func TestRenderPostsTable(t *testing.T) {
	now := time.Now()
	posts := []types.Post{
		{Id: "p2", Title: "Second week without", AuthorEmail: "b@x.com", CreatedAt: now.Add(-time.Hour)},
		{Id: "p1", Title: strings.Repeat("long title ", 10), AuthorEmail: "a@x.com", CreatedAt: now.Add(-48 * time.Hour)},
	}

	var buf bytes.Buffer
	RenderPostsTable(&buf, posts, "")
	out := buf.String()

	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "Second week without")
	assert.Contains(t, out, "b@x.com")
	assert.Contains(t, out, "1 hour ago")
	assert.Contains(t, out, "2 days ago")
	assert.Contains(t, out, "…")
	assert.Less(t, strings.Index(out, "Second week"), strings.Index(out, "long title"))
}

func TestRenderPost(t *testing.T) {
	post := types.Post{Id: "p1", Title: "Hello", Content: "World", AuthorEmail: "a@x.com", CreatedAt: time.Now()}

	var buf bytes.Buffer
	RenderPost(&buf, post, nil, false)
	assert.Contains(t, buf.String(), "Comments not loaded")

	buf.Reset()
	RenderPost(&buf, post, []types.Comment{}, true)
	assert.Contains(t, buf.String(), "No comments yet")

	buf.Reset()
	RenderPost(&buf, post, []types.Comment{
		{Id: "c1", Content: "Nice!", AuthorEmail: "b@x.com", CreatedAt: time.Now()},
	}, true)
	out := buf.String()
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, "World")
	assert.Contains(t, out, "1 comment\n")
	assert.Contains(t, out, "  Nice!")
}

func TestRenderPostWraps(t *testing.T) {
	post := types.Post{Id: "p1", Title: "Long", Content: strings.Repeat("word ", 60), CreatedAt: time.Now()}

	var buf bytes.Buffer
	RenderPost(&buf, post, []types.Comment{}, true)

	for _, line := range strings.Split(buf.String(), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), defaultWidth)
	}
}

func TestFormatError(t *testing.T) {
	out := FormatError("sign in: invalid login credentials")
	assert.Contains(t, out, "Sign in")
	assert.Contains(t, out, "  → Invalid login credentials")

	out = FormatError("list posts: boom: boom")
	assert.Equal(t, 1, strings.Count(out, "Boom"))
}
