package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"picfeed/client"

	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "picfeed",
		Short:         "Share photos and captions from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// logout must work even when the server is unreachable
			validate := cmd.Annotations[accessKey] != ""
			if err := a.loadSession(cmd.Context(), validate); err != nil {
				return err
			}
			return a.guard(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.server, "server", a.server, "picfeed server URL (env PICFEED_SERVER)")
	root.PersistentFlags().StringVar(&a.sessionPath, "session", "", "session file (default $PICFEED_HOME/session.json or ~/.picfeed/session.json)")

	root.AddCommand(
		signupCmd(a),
		loginCmd(a),
		logoutCmd(a),
		whoamiCmd(a),
		feedCmd(a),
		postCmd(a),
		likeCmd(a),
		commentCmd(a),
		watchCmd(a),
	)
	return root
}

func access(level string) map[string]string {
	return map[string]string{accessKey: level}
}

func signupCmd(a *app) *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:         "signup",
		Short:       "Create an account",
		Annotations: access(publicOnly),
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if username, err = a.ask("Username", username); err != nil {
				return err
			}
			if email, err = a.ask("Email", email); err != nil {
				return err
			}
			if password, err = a.askSecret("Password", password); err != nil {
				return err
			}

			s, err := a.api.Signup(cmd.Context(), username, email, password)
			if err != nil {
				return err
			}
			if err := a.setSession(s); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Welcome, @%s!\n", s.User.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	return cmd
}

func loginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:         "login",
		Short:       "Log in",
		Annotations: access(publicOnly),
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.interactiveLogin(cmd.Context(), email, password)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.ClearSession(a.sessionPath); err != nil {
				return err
			}
			a.api = a.api.WithSession(client.Session{})
			fmt.Fprintln(a.out, "Logged out.")
			return nil
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "whoami",
		Short:       "Show the logged-in user",
		Annotations: access(protected),
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u := a.session().User
			fmt.Fprintf(a.out, "@%s <%s>\n", u.Username, u.Email)
			return nil
		},
	}
}

func feedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "feed",
		Short:       "Show all posts, newest first",
		Annotations: access(protected),
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			posts, err := a.api.Posts(cmd.Context())
			if err != nil {
				return err
			}
			client.NewFeed(posts).Render(a.out)
			return nil
		},
	}
}

func postCmd(a *app) *cobra.Command {
	var caption, imageURL, imagePath string
	cmd := &cobra.Command{
		Use:         "post",
		Short:       "Share a caption and/or an image",
		Annotations: access(protected),
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(caption) == "" && imageURL == "" && imagePath == "" {
				return errors.New("a post needs a caption or an image")
			}
			post, err := a.api.CreatePost(cmd.Context(), caption, imageURL, imagePath)
			if err != nil {
				return err
			}
			client.RenderPost(a.out, *post)
			return nil
		},
	}
	cmd.Flags().StringVarP(&caption, "caption", "c", "", "caption text")
	cmd.Flags().StringVar(&imageURL, "image-url", "", "link to an image hosted elsewhere")
	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "image file to upload")
	return cmd
}

func likeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "like POST_ID",
		Short:       "Like a post",
		Annotations: access(protected),
		Args:        cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			likes, err := a.api.Like(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "♥ %d\n", len(likes))
			return nil
		},
	}
}

func commentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "comment POST_ID TEXT...",
		Short:       "Comment on a post",
		Annotations: access(protected),
		Args:        cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			comments, err := a.api.Comment(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			for _, c := range comments {
				fmt.Fprintf(a.out, "%s: %s\n", c.Username, c.Text)
			}
			return nil
		},
	}
}

func watchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "watch",
		Short:       "Follow the feed live",
		Annotations: access(protected),
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			posts, err := a.api.Posts(ctx)
			if err != nil {
				return err
			}
			feed := client.NewFeed(posts)
			feed.Render(a.out)
			fmt.Fprintln(a.out, "Watching for new activity, Ctrl-C to stop.")

			return a.api.Watch(ctx, func(ev client.Event) {
				printEvent(a, feed, ev)
			})
		},
	}
}

func printEvent(a *app, feed *client.Feed, ev client.Event) {
	post, err := feed.Apply(ev)
	if errors.Is(err, client.ErrUnknownEvent) {
		return
	}
	if err != nil {
		fmt.Fprintf(a.out, "! could not read %s event: %v\n", ev.Type, err)
		return
	}
	if post == nil {
		return
	}
	fmt.Fprintf(a.out, "-- %s\n", strings.ReplaceAll(ev.Type, "_", " "))
	client.RenderPost(a.out, *post)
}
