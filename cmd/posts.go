package cmd

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"danyak/term"
	"danyak/types"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newPostsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "posts",
		Aliases: []string{"ls"},
		Short:   "List posts, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			posts, err := loadPosts(cmd.Context(), app)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(posts) == 0 {
				fmt.Fprintln(out, "🤷 No posts yet")
				term.PrintCmds(out, "", "new-post")
				return nil
			}

			term.RenderPostsTable(out, posts, "")
			fmt.Fprintln(out)
			term.PrintCmds(out, "", "show", "comment", "new-post")
			return nil
		},
	}
}

func newNewPostCmd(app *App) *cobra.Command {
	var title, content string

	cmd := &cobra.Command{
		Use:   "new-post",
		Short: "Write a new post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session := app.Auth.CurrentSession()

			// only prompt someone who can actually post
			if session != nil {
				var err error
				if !cmd.Flags().Changed("title") {
					if title, err = term.GetRequiredUserStringInput("Title:"); err != nil {
						return err
					}
				}
				if !cmd.Flags().Changed("content") {
					if content, err = term.GetRequiredUserStringInput("Content:"); err != nil {
						return err
					}
				}

				if _, err := loadPosts(cmd.Context(), app); err != nil {
					return err
				}
			}

			term.StartSpinner("📝 Posting...")
			post, err := app.Board.CreatePost(cmd.Context(), session, title, content)
			term.StopSpinner()

			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "✅ Posted "+post.Title)
			fmt.Fprintln(out)
			term.RenderPostsTable(out, app.Board.Posts(), post.Id)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "post title")
	cmd.Flags().StringVar(&content, "content", "", "post content")

	return cmd
}

func newShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <post>",
		Short: "Show a post and its comments",
		Long:  "Show a post and its comments. <post> is the number from `danyak posts`, the post's id or part of its title.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			post, err := resolvePost(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}

			comments, err := loadComments(cmd.Context(), app, post.Id)
			if err != nil {
				return err
			}

			term.RenderPost(cmd.OutOrStdout(), post, comments, true)
			return nil
		},
	}
}

func newCommentCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <post> [content]",
		Short: "Comment on a post",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session := app.Auth.CurrentSession()

			post, err := resolvePost(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}

			var content string
			if len(args) > 1 {
				content = args[1]
			} else if session != nil {
				if content, err = term.GetRequiredUserStringInput("Comment:"); err != nil {
					return err
				}
			}

			if _, err := loadComments(cmd.Context(), app, post.Id); err != nil {
				return err
			}

			term.StartSpinner("💬 Commenting...")
			_, err = app.Board.CreateComment(cmd.Context(), session, post.Id, content)
			term.StopSpinner()

			if err != nil {
				return err
			}

			comments, fetched := app.Board.Comments(post.Id)
			term.RenderPost(cmd.OutOrStdout(), post, comments, fetched)
			return nil
		},
	}
}

func loadPosts(ctx context.Context, app *App) ([]types.Post, error) {
	term.StartSpinner("")
	posts, err := app.Board.ListPosts(ctx)
	term.StopSpinner()

	if err != nil {
		return nil, withRetryHint(err)
	}
	return posts, nil
}

func loadComments(ctx context.Context, app *App, postId string) ([]types.Comment, error) {
	term.StartSpinner("")
	comments, err := app.Board.ListComments(ctx, postId)
	term.StopSpinner()

	if err != nil {
		return nil, withRetryHint(err)
	}
	return comments, nil
}

// resolvePost accepts a 1-based number into the newest-first list, an id,
// or enough of a title to pick one post.
func resolvePost(ctx context.Context, app *App, ref string) (types.Post, error) {
	posts, err := loadPosts(ctx, app)
	if err != nil {
		return types.Post{}, err
	}

	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(posts) {
			return types.Post{}, errors.Errorf("no post number %d (there are %d)", n, len(posts))
		}
		return posts[n-1], nil
	}

	titles := make([]string, len(posts))
	for i, p := range posts {
		if p.Id == ref {
			return p, nil
		}
		titles[i] = p.Title
	}

	matches := fuzzy.RankFindFold(ref, titles)
	if len(matches) == 0 {
		return types.Post{}, errors.Errorf("no post matching %s", ref)
	}

	sort.Sort(matches)
	if len(matches) > 1 && matches[0].Distance == matches[1].Distance {
		return types.Post{}, errors.Errorf("%d posts match %s, use the post number instead", len(matches), ref)
	}

	return posts[matches[0].OriginalIndex], nil
}

func withRetryHint(err error) error {
	if types.IsKind(err, types.ErrorKindFetch) {
		return errors.Wrap(err, "couldn't load the board, try again")
	}
	return err
}
