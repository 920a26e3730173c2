package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"danyak/term"
	"danyak/types"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const autoRefreshInterval = 30 * time.Second

const (
	actionNewPost = "✏️  New post"
	actionRefresh = "🔄 Refresh"
	actionSignIn  = "🔑 Sign in"
	actionSignOut = "🚪 Sign out"
	actionQuit    = "👋 Quit"
	actionComment = "💬 Comment"
	actionReload  = "🔄 Reload comments"
	actionBack    = "⬅️  Back"
)

func newBrowseCmd(app *App) *cobra.Command {
	var allComments bool

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the board interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := &browser{app: app, out: cmd.OutOrStdout()}
			return b.run(cmd.Context(), allComments)
		},
	}

	cmd.Flags().BoolVar(&allComments, "all-comments", false, "load every post's comments up front instead of on first open")

	return cmd
}

type browser struct {
	app *App
	out io.Writer

	mu       sync.Mutex
	notice   string
	noticeOk bool
}

// setNotice queues a message for the next screen; errors are shown there
// instead of being cleared away with the current one.
func (b *browser) setNotice(msg string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notice = msg
	b.noticeOk = ok
}

func (b *browser) run(ctx context.Context, allComments bool) error {
	sub := b.app.Auth.OnSessionChange(b.onSessionChange)
	defer sub.Close()
	defer b.app.Board.Close()

	if b.app.Config.AutoRefresh {
		b.app.Api.StartAutoRefresh(autoRefreshInterval)
	}

	b.refresh(ctx, allComments)

	for {
		term.ClearScreen(b.out)
		b.printHeader()

		posts := b.app.Board.Posts()
		if len(posts) == 0 {
			fmt.Fprintln(b.out, "🤷 No posts yet")
		}

		options := make([]string, 0, len(posts)+4)
		byOption := map[string]types.Post{}
		for i, p := range posts {
			opt := fmt.Sprintf("%d. %s · %s", i+1, p.Title, p.AuthorEmail)
			options = append(options, opt)
			byOption[opt] = p
		}
		if b.app.Auth.CurrentSession() != nil {
			options = append(options, actionNewPost, actionRefresh, actionSignOut, actionQuit)
		} else {
			options = append(options, actionRefresh, actionSignIn, actionQuit)
		}

		choice, err := term.SelectFromList("Board", options)
		if errors.Is(err, term.ErrInterrupted) {
			return nil
		}
		if err != nil {
			return err
		}

		switch choice {
		case actionQuit:
			return nil
		case actionRefresh:
			b.refresh(ctx, allComments)
		case actionNewPost:
			b.newPost(ctx)
		case actionSignIn:
			b.signIn(ctx)
		case actionSignOut:
			session := b.app.Auth.CurrentSession()
			if session == nil {
				break
			}
			ok, err := term.ConfirmYesNo("Sign out of %s?", session.Email)
			if err == nil && ok {
				b.app.Auth.SignOut(ctx)
			}
		default:
			if post, ok := byOption[choice]; ok {
				if err := b.openPost(ctx, post); err != nil {
					return err
				}
			}
		}
	}
}

func (b *browser) onSessionChange(event types.AuthChangeEvent, session *types.Session) error {
	var notice string
	switch event {
	case types.AuthEventSignedIn:
		notice = "Signed in as " + session.Email
	case types.AuthEventSignedOut:
		notice = "Signed out"
	case types.AuthEventTokenRefreshed:
		b.app.Log.Debug("session refreshed while browsing")
		return nil
	default:
		return nil
	}

	b.setNotice(notice, true)
	return nil
}

func (b *browser) printHeader() {
	who := "not signed in"
	if session := b.app.Auth.CurrentSession(); session != nil {
		who = session.Email
	}
	fmt.Fprintln(b.out, color.New(color.Bold, term.ColorHiCyan).Sprint("danyak")+" · "+who)
	b.printNotice()
	fmt.Fprintln(b.out, term.GetDivisionLine())
}

func (b *browser) printNotice() {
	b.mu.Lock()
	notice, ok := b.notice, b.noticeOk
	b.notice = ""
	b.mu.Unlock()

	if notice != "" && ok {
		fmt.Fprintln(b.out, color.New(term.ColorHiGreen).Sprint("✅ "+notice))
	} else if notice != "" {
		fmt.Fprintln(b.out, color.New(term.ColorHiRed, color.Bold).Sprint("🚨 "+notice))
	}
}

// refresh reloads the post list. Failures keep what is already on screen.
func (b *browser) refresh(ctx context.Context, allComments bool) {
	term.StartSpinner("")
	_, err := b.app.Board.ListPosts(ctx)
	if err == nil && allComments {
		err = b.app.Board.LoadAllComments(ctx, 0)
	}
	term.StopSpinner()

	if err != nil {
		b.app.Log.Warn("refresh failed", zap.Error(err))
		b.setNotice(fmt.Sprintf("%v (choose refresh to try again)", err), false)
	}
}

func (b *browser) openPost(ctx context.Context, post types.Post) error {
	for {
		comments, fetched := b.app.Board.Comments(post.Id)
		if !fetched {
			b.loadComments(ctx, post.Id)
			comments, fetched = b.app.Board.Comments(post.Id)
		}

		term.ClearScreen(b.out)
		b.printNotice()
		term.RenderPost(b.out, post, comments, fetched)
		fmt.Fprintln(b.out)

		options := []string{actionReload, actionBack}
		if b.app.Auth.CurrentSession() != nil {
			options = []string{actionComment, actionReload, actionBack}
		}

		choice, err := term.SelectFromList(post.Title, options)
		if errors.Is(err, term.ErrInterrupted) || choice == actionBack {
			return nil
		}
		if err != nil {
			return err
		}

		switch choice {
		case actionComment:
			b.comment(ctx, post.Id)
		case actionReload:
			b.loadComments(ctx, post.Id)
		}
	}
}

func (b *browser) loadComments(ctx context.Context, postId string) {
	term.StartSpinner("")
	_, err := b.app.Board.ListComments(ctx, postId)
	term.StopSpinner()

	if err != nil {
		b.setNotice(fmt.Sprintf("%v (choose reload to try again)", err), false)
	}
}

func (b *browser) newPost(ctx context.Context) {
	title, err := term.GetUserStringInput("Title:")
	if err != nil {
		return
	}
	content, err := term.GetUserStringInput("Content:")
	if err != nil {
		return
	}

	term.StartSpinner("📝 Posting...")
	post, err := b.app.Board.CreatePost(ctx, b.app.Auth.CurrentSession(), title, content)
	term.StopSpinner()

	if err != nil {
		b.setNotice(err.Error(), false)
		return
	}

	b.setNotice("Posted "+post.Title, true)
}

func (b *browser) comment(ctx context.Context, postId string) {
	content, err := term.GetUserStringInput("Comment:")
	if err != nil {
		return
	}

	term.StartSpinner("💬 Commenting...")
	_, err = b.app.Board.CreateComment(ctx, b.app.Auth.CurrentSession(), postId, content)
	term.StopSpinner()

	if err != nil {
		b.setNotice(err.Error(), false)
	}
}

func (b *browser) signIn(ctx context.Context) {
	email, err := term.GetUserStringInput("Email:")
	if err != nil {
		return
	}
	password, err := term.GetUserPasswordInput("Password:")
	if err != nil {
		return
	}

	term.StartSpinner("🔑 Signing in...")
	_, err = b.app.Auth.SignIn(ctx, email, password)
	term.StopSpinner()

	if err != nil {
		b.setNotice(err.Error(), false)
	}
}
