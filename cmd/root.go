package cmd

import (
	"danyak/term"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree around app. The commands reach the
// remote service only through app, which is filled in before any of them
// runs.
func NewRootCmd(app *App) *cobra.Command {
	var o overrides

	root := &cobra.Command{
		Use:           "danyak [command] [flags]",
		Short:         "danyak: a small community board in your terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !needsApp(cmd) {
				return nil
			}
			return app.init(cmd.Context(), o)
		},
		Run: func(cmd *cobra.Command, args []string) {
			term.PrintCmds(cmd.OutOrStdout(), "", "sign-up", "sign-in", "posts", "show", "new-post", "comment", "browse")
		},
	}

	root.PersistentFlags().StringVar(&o.configPath, "config", "", "config file (default ~/.danyak/config.yaml)")
	root.PersistentFlags().StringVar(&o.url, "url", "", "service url")
	root.PersistentFlags().StringVar(&o.anonKey, "anon-key", "", "public anon key")

	root.AddCommand(
		newSignUpCmd(app),
		newSignInCmd(app),
		newSignOutCmd(app),
		newWhoamiCmd(app),
		newPostsCmd(app),
		newNewPostCmd(app),
		newShowCmd(app),
		newCommentCmd(app),
		newBrowseCmd(app),
	)

	return root
}

// Execute runs the command line and exits non-zero on failure.
// This is called by main.main().
func Execute() {
	app := &App{}
	err := NewRootCmd(app).Execute()
	app.Close()

	if err != nil {
		term.OutputErrorAndExit("%v", err)
	}
}

func needsApp(cmd *cobra.Command) bool {
	if cmd == cmd.Root() {
		return false
	}
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "help" || c.Name() == "completion" {
			return false
		}
	}
	return true
}
