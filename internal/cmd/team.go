package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tasksync/internal/app"
	"github.com/felixgeelhaar/tasksync/internal/domain"
	"github.com/felixgeelhaar/tasksync/internal/errors"
	"github.com/felixgeelhaar/tasksync/internal/repository"
	"github.com/felixgeelhaar/tasksync/internal/ux"
)

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Manage teams and their members",
	Long: `Manage teams and their members.

Creating a team makes you its owner.

Examples:
  tasksync team create "Platform" --description "Infra and tooling"
  tasksync team add-member <team-id> <user-id>
  tasksync task list --team <team-id>
`,
}

var teamListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the teams you belong to",
	Args:  cobra.NoArgs,
	RunE:  runTeamList,
}

var teamShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a team and its members",
	Args:  cobra.ExactArgs(1),
	RunE:  runTeamShow,
}

var teamCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a team owned by you",
	Args:  cobra.ExactArgs(1),
	RunE:  runTeamCreate,
}

var teamUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Rename a team or change its description",
	Args:  cobra.ExactArgs(1),
	RunE:  runTeamUpdate,
}

var teamDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a team",
	Args:  cobra.ExactArgs(1),
	RunE:  runTeamDelete,
}

var teamMembersCmd = &cobra.Command{
	Use:   "members <id>",
	Short: "List the members of a team",
	Args:  cobra.ExactArgs(1),
	RunE:  runTeamMembers,
}

var teamAddMemberCmd = &cobra.Command{
	Use:   "add-member <team-id> <user-id>",
	Short: "Add a user to a team",
	Args:  cobra.ExactArgs(2),
	RunE:  runTeamAddMember,
}

var teamRemoveMemberCmd = &cobra.Command{
	Use:   "remove-member <team-id> <user-id>",
	Short: "Remove a user from a team",
	Args:  cobra.ExactArgs(2),
	RunE:  runTeamRemoveMember,
}

var (
	teamName        string
	teamDescription string
	teamRole        string
	teamYes         bool
)

func init() {
	teamCreateCmd.Flags().StringVar(&teamDescription, "description", "", "team description")

	teamUpdateCmd.Flags().StringVar(&teamName, "name", "", "new name")
	teamUpdateCmd.Flags().StringVar(&teamDescription, "description", "", "new description")

	teamDeleteCmd.Flags().BoolVarP(&teamYes, "yes", "y", false, "do not ask for confirmation")

	teamAddMemberCmd.Flags().StringVar(&teamRole, "role", string(domain.RoleMember), "member or owner")

	teamCmd.AddCommand(teamListCmd)
	teamCmd.AddCommand(teamShowCmd)
	teamCmd.AddCommand(teamCreateCmd)
	teamCmd.AddCommand(teamUpdateCmd)
	teamCmd.AddCommand(teamDeleteCmd)
	teamCmd.AddCommand(teamMembersCmd)
	teamCmd.AddCommand(teamAddMemberCmd)
	teamCmd.AddCommand(teamRemoveMemberCmd)

	rootCmd.AddCommand(teamCmd)
}

func runTeamList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		user, err := a.RequireProfile(ctx)
		if err != nil {
			return err
		}
		teams, err := load(ctx, a, "teams", func(ctx context.Context) ([]domain.Team, error) {
			return a.Repos.Teams.List(ctx, user.ID)
		})
		if err != nil {
			return err
		}
		return cc.Output(ux.TeamList(teams))
	})
}

func runTeamShow(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		if _, err := a.RequireProfile(ctx); err != nil {
			return err
		}
		team, err := a.Repos.Teams.Get(ctx, args[0])
		if err != nil {
			return err
		}
		members, err := a.Repos.Teams.Members(ctx, team.ID)
		if err != nil {
			return err
		}
		return cc.Output(ux.TeamDetail{Team: *team, Members: members})
	})
}

func runTeamCreate(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		user, err := a.RequireProfile(ctx)
		if err != nil {
			return err
		}
		team, err := a.Repos.Teams.Create(ctx, domain.NewTeam(user.ID, args[0], teamDescription))
		if err != nil {
			return err
		}
		members, err := a.Repos.Teams.Members(ctx, team.ID)
		if err != nil {
			return err
		}
		return cc.Output(ux.TeamDetail{Team: *team, Members: members})
	})
}

func runTeamUpdate(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		if _, err := a.RequireProfile(ctx); err != nil {
			return err
		}

		var patch repository.TeamPatch
		if cmd.Flags().Changed("name") {
			patch.Name = &teamName
		}
		if cmd.Flags().Changed("description") {
			patch.Description = &teamDescription
		}
		if patch.Name == nil && patch.Description == nil {
			return errors.NewInvalidError("nothing to update").
				WithSuggestion("Pass --name or --description")
		}

		team, err := a.Repos.Teams.Update(ctx, args[0], patch)
		if err != nil {
			return err
		}
		return cc.Output(ux.TeamList{*team})
	})
}

func runTeamDelete(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		if _, err := a.RequireProfile(ctx); err != nil {
			return err
		}

		if !teamYes {
			ok, err := ux.Confirm(ctx, "Delete team "+args[0]+" and its memberships?")
			if err != nil {
				return err
			}
			if !ok {
				return cc.Output(cc.Styles().Muted.Render("Nothing deleted."))
			}
		}

		if err := a.Repos.Teams.Delete(ctx, args[0]); err != nil {
			return err
		}
		return cc.Output(cc.Styles().Success.Render("Deleted team " + args[0]))
	})
}

func runTeamMembers(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		if _, err := a.RequireProfile(ctx); err != nil {
			return err
		}
		members, err := load(ctx, a, "team_members", func(ctx context.Context) ([]domain.TeamMember, error) {
			return a.Repos.Teams.Members(ctx, args[0])
		})
		if err != nil {
			return err
		}
		return cc.Output(ux.MemberList(members))
	})
}

func runTeamAddMember(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		if _, err := a.RequireProfile(ctx); err != nil {
			return err
		}
		m, err := a.Repos.Teams.AddMember(ctx, args[0], args[1], domain.MemberRole(teamRole))
		if err != nil {
			return err
		}
		return cc.Output(ux.MemberList{*m})
	})
}

func runTeamRemoveMember(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		if _, err := a.RequireProfile(ctx); err != nil {
			return err
		}
		if err := a.Repos.Teams.RemoveMember(ctx, args[0], args[1]); err != nil {
			return err
		}
		return cc.Output(cc.Styles().Success.Render("Removed " + args[1] + " from team " + args[0]))
	})
}
