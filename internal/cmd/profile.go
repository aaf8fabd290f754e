package cmd

import (
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tasksync/internal/app"
	"github.com/felixgeelhaar/tasksync/internal/domain"
	"github.com/felixgeelhaar/tasksync/internal/errors"
	"github.com/felixgeelhaar/tasksync/internal/ux"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or complete your profile",
	Long: `Show or complete your profile.

A profile needs at least a first or last name before tasks, teams and the
dashboard can be used.

Examples:
  tasksync profile save --first-name Ada --last-name Lovelace
  tasksync profile save --avatar ./me.png
  tasksync profile show --format json
`,
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show your profile",
	Args:  cobra.NoArgs,
	RunE:  runProfileShow,
}

var profileSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Create or update your profile",
	Long:  `Create or update your profile. Without name flags you are prompted for them.`,
	Args:  cobra.NoArgs,
	RunE:  runProfileSave,
}

var (
	profileFirstName string
	profileLastName  string
	profileAvatar    string
)

func init() {
	profileSaveCmd.Flags().StringVar(&profileFirstName, "first-name", "", "first name")
	profileSaveCmd.Flags().StringVar(&profileLastName, "last-name", "", "last name")
	profileSaveCmd.Flags().StringVar(&profileAvatar, "avatar", "", "image file to upload as avatar")

	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSaveCmd)

	rootCmd.AddCommand(profileCmd)
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		user, err := a.RequireUser(ctx)
		if err != nil {
			return err
		}
		p, err := a.Repos.Profiles.Get(ctx, user.ID)
		if err != nil {
			return err
		}
		if p == nil {
			return errors.NewProfileIncompleteError()
		}
		return cc.Output(ux.ProfileView(*p))
	})
}

func runProfileSave(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		user, err := a.RequireUser(ctx)
		if err != nil {
			return err
		}

		current, err := a.Repos.Profiles.Get(ctx, user.ID)
		if err != nil {
			return err
		}
		p := domain.Profile{ID: user.ID, Email: user.Email}
		if current != nil {
			p = *current
		}

		flags := cmd.Flags()
		if flags.Changed("first-name") {
			p.FirstName = profileFirstName
		}
		if flags.Changed("last-name") {
			p.LastName = profileLastName
		}
		if !flags.Changed("first-name") && !flags.Changed("last-name") && (profileAvatar == "" || !p.Complete()) {
			if err := ux.ProfileNames(ctx, &p.FirstName, &p.LastName); err != nil {
				return err
			}
		}

		saved, err := a.Repos.Profiles.Save(ctx, p)
		if err != nil {
			return err
		}

		if profileAvatar != "" {
			image, err := os.ReadFile(profileAvatar)
			if err != nil {
				if os.IsNotExist(err) {
					return errors.NewFileNotFoundError(profileAvatar)
				}
				return errors.Wrap(errors.ErrCodeFileReadFailed, "failed to read avatar", err)
			}
			url, err := a.Repos.Profiles.UploadAvatar(ctx, user.ID, image, http.DetectContentType(image))
			if err != nil {
				return err
			}
			saved.AvatarURL = &url
		}

		return cc.Output(ux.ProfileView(*saved))
	})
}
