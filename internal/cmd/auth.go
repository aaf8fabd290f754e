package cmd

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tasksync/internal/app"
	"github.com/felixgeelhaar/tasksync/internal/domain"
	"github.com/felixgeelhaar/tasksync/internal/errors"
	"github.com/felixgeelhaar/tasksync/internal/server"
	"github.com/felixgeelhaar/tasksync/internal/ux"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign in, sign up and manage the current session",
	Long: `Manage your TaskSync session.

The session is kept in an encrypted credential file and refreshed
automatically, so you stay signed in between commands.

Examples:
  # Sign in, prompting for anything not given as a flag
  tasksync auth signin --email ada@example.com

  # Show who is signed in
  tasksync auth status

  # Sign in with a third-party provider in the browser
  tasksync auth oauth --provider github

  # The same, in two steps when the redirect cannot reach this machine
  tasksync auth oauth-url --provider github
  tasksync auth exchange <code>
`,
}

var authSigninCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in with email and password",
	Args:  cobra.NoArgs,
	RunE:  runAuthSignin,
}

var authSignupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE:  runAuthSignup,
}

var authSignoutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Sign out and forget the stored session",
	Args:  cobra.NoArgs,
	RunE:  runAuthSignout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var authOAuthURLCmd = &cobra.Command{
	Use:   "oauth-url",
	Short: "Print the URL that starts a third-party sign-in",
	Args:  cobra.NoArgs,
	RunE:  runAuthOAuthURL,
}

var authOAuthCmd = &cobra.Command{
	Use:   "oauth",
	Short: "Sign in with a third-party provider in the browser",
	Long: `Sign in with a third-party provider.

Prints the provider's sign-in URL and listens on oauth.redirect_url for the
redirect, then finishes the sign-in. The redirect URL must point at this
machine.`,
	Args: cobra.NoArgs,
	RunE: runAuthOAuth,
}

var authExchangeCmd = &cobra.Command{
	Use:   "exchange <code>",
	Short: "Finish a third-party sign-in with the code from the redirect",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthExchange,
}

var (
	authEmail     string
	authPassword  string
	authFirstName string
	authLastName  string
	authProvider  string
	authRedirect  string
	authWait      time.Duration
)

func init() {
	for _, c := range []*cobra.Command{authSigninCmd, authSignupCmd} {
		c.Flags().StringVar(&authEmail, "email", "", "account email")
		c.Flags().StringVar(&authPassword, "password", "", "account password (prompted when empty)")
	}
	authSignupCmd.Flags().StringVar(&authFirstName, "first-name", "", "first name for the profile")
	authSignupCmd.Flags().StringVar(&authLastName, "last-name", "", "last name for the profile")

	for _, c := range []*cobra.Command{authOAuthCmd, authOAuthURLCmd} {
		c.Flags().StringVar(&authProvider, "provider", "", "identity provider (default from oauth.provider)")
		c.Flags().StringVar(&authRedirect, "redirect", "", "redirect URL (default from oauth.redirect_url)")
	}
	authOAuthCmd.Flags().DurationVar(&authWait, "wait", 2*time.Minute, "how long to wait for the redirect")

	authCmd.AddCommand(authSigninCmd)
	authCmd.AddCommand(authSignupCmd)
	authCmd.AddCommand(authSignoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authOAuthCmd)
	authCmd.AddCommand(authOAuthURLCmd)
	authCmd.AddCommand(authExchangeCmd)

	rootCmd.AddCommand(authCmd)
}

func runAuthSignin(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		email, password := strings.TrimSpace(authEmail), authPassword
		if err := ux.Credentials(ctx, &email, &password); err != nil {
			return err
		}

		if _, err := a.Backend.SignInWithPassword(ctx, email, password); err != nil {
			return err
		}
		return cc.Output(ux.SessionStatus(a.SessionState(ctx)))
	})
}

func runAuthSignup(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		email, password := strings.TrimSpace(authEmail), authPassword
		if err := ux.Credentials(ctx, &email, &password); err != nil {
			return err
		}

		data := map[string]any{}
		if authFirstName != "" {
			data["first_name"] = authFirstName
		}
		if authLastName != "" {
			data["last_name"] = authLastName
		}

		res, err := a.Backend.SignUp(ctx, email, password, data)
		if err != nil {
			return err
		}
		if res.Session == nil {
			return cc.Output(cc.Styles().Warning.Render("Check " + email + " to confirm your account, then run 'tasksync auth signin'."))
		}

		if authFirstName != "" || authLastName != "" {
			profile := domain.Profile{
				ID:        res.User.ID,
				Email:     res.User.Email,
				FirstName: authFirstName,
				LastName:  authLastName,
			}
			if _, err := a.Repos.Profiles.Save(ctx, profile); err != nil {
				return err
			}
		}
		return cc.Output(ux.SessionStatus(a.SessionState(ctx)))
	})
}

func runAuthSignout(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		a.SessionState(ctx)
		if err := a.Backend.SignOut(ctx); err != nil {
			a.Logger.WithError(err).Warn("server-side sign-out failed")
		}
		return cc.Output(ux.SessionStatus(a.Session.State()))
	})
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		return cc.Output(ux.SessionStatus(a.SessionState(cmd.Context())))
	})
}

// oauthTarget resolves the provider and redirect from flags and config.
func oauthTarget(cc *CommandContext) (provider, redirect string) {
	provider, redirect = authProvider, authRedirect
	if provider == "" {
		provider = cc.Config.OAuth.Provider
	}
	if redirect == "" {
		redirect = cc.Config.OAuth.RedirectURL
	}
	return provider, redirect
}

func runAuthOAuth(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		provider, redirect := oauthTarget(cc)

		target, err := url.Parse(redirect)
		if err != nil || target.Host == "" {
			return errors.NewInvalidError(fmt.Sprintf("invalid redirect URL %q", redirect))
		}
		srv := server.New(server.Config{Address: target.Host, Path: target.Path})
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			if err := srv.Shutdown(context.Background()); err != nil {
				a.Logger.WithError(err).Debug("callback server shutdown")
			}
		}()

		signInURL, err := a.Backend.OAuthURL(provider, srv.URL())
		if err != nil {
			return err
		}
		s := cc.Styles()
		fmt.Fprintf(cmd.ErrOrStderr(), "%s\n%s\n\n%s\n",
			s.Label.Render("Open this URL to sign in with "+provider+":"),
			signInURL,
			s.Muted.Render("Waiting for the redirect..."))

		waitCtx, cancel := context.WithTimeout(ctx, authWait)
		defer cancel()
		code, err := srv.Wait(waitCtx)
		if err != nil {
			if waitCtx.Err() == context.DeadlineExceeded {
				return errors.New(errors.ErrCodeAuthExchangeFailed, "timed out waiting for the sign-in redirect").
					WithSuggestion("Run the command again, or use 'tasksync auth oauth-url' and 'tasksync auth exchange'")
			}
			return err
		}

		if _, err := a.Backend.ExchangeCodeForSession(ctx, code); err != nil {
			return err
		}
		return cc.Output(ux.SessionStatus(a.SessionState(ctx)))
	})
}

func runAuthOAuthURL(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		provider, redirect := oauthTarget(cc)

		signInURL, err := a.Backend.OAuthURL(provider, redirect)
		if err != nil {
			return err
		}
		if !cc.Text() {
			return cc.Output(map[string]string{"url": signInURL, "provider": provider})
		}
		s := cc.Styles()
		return cc.Output(fmt.Sprintf("%s\n%s\n\n%s",
			s.Label.Render("Open this URL to sign in with "+provider+":"),
			signInURL,
			s.Muted.Render("Then run 'tasksync auth exchange <code>' with the code from the redirect.")))
	})
}

func runAuthExchange(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		if _, err := a.Backend.ExchangeCodeForSession(ctx, strings.TrimSpace(args[0])); err != nil {
			return err
		}
		return cc.Output(ux.SessionStatus(a.SessionState(ctx)))
	})
}
