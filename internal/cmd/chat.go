package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tasksync/internal/app"
	"github.com/felixgeelhaar/tasksync/internal/assistant"
	"github.com/felixgeelhaar/tasksync/internal/domain"
	"github.com/felixgeelhaar/tasksync/internal/errors"
	"github.com/felixgeelhaar/tasksync/internal/tui"
	"github.com/felixgeelhaar/tasksync/internal/ux"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the AI assistant",
	Long: `Talk to the AI assistant.

The conversation is stored with your account and sent along as context, so
follow-up questions work. Needs assistant.api_key (or
TASKSYNC_ASSISTANT_API_KEY).

Examples:
  tasksync chat ask "How should I split up this week's tasks?"
  tasksync chat tui
  tasksync chat clear --yes
`,
}

var chatAskCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Ask one question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runChatAsk,
}

var chatHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the stored conversation",
	Args:  cobra.NoArgs,
	RunE:  runChatHistory,
}

var chatClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the stored conversation",
	Args:  cobra.NoArgs,
	RunE:  runChatClear,
}

var chatTUICmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the full-screen chat",
	Args:  cobra.NoArgs,
	RunE:  runChatTUI,
}

var (
	chatOnce bool
	chatYes  bool
)

func init() {
	chatAskCmd.Flags().BoolVar(&chatOnce, "once", false, "ask without history and do not store the exchange")
	chatClearCmd.Flags().BoolVarP(&chatYes, "yes", "y", false, "do not ask for confirmation")

	chatCmd.AddCommand(chatAskCmd)
	chatCmd.AddCommand(chatHistoryCmd)
	chatCmd.AddCommand(chatClearCmd)
	chatCmd.AddCommand(chatTUICmd)

	rootCmd.AddCommand(chatCmd)
}

func requireAssistant(a *app.App) error {
	if a.Assistant.Configured() {
		return nil
	}
	return errors.New(errors.ErrCodeAIConfig, assistant.MsgNotConfigured).
		WithSuggestion("Set the TASKSYNC_ASSISTANT_API_KEY environment variable")
}

func runChatAsk(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		if err := requireAssistant(a); err != nil {
			return err
		}
		prompt := strings.Join(args, " ")

		var (
			reply assistant.Reply
			err   error
		)
		if chatOnce {
			reply, err = a.Assistant.Ask(ctx, prompt)
		} else {
			user, uerr := a.RequireUser(ctx)
			if uerr != nil {
				return uerr
			}
			reply, err = a.Chat.Send(ctx, user.ID, prompt)
		}
		if err != nil && reply.Err != nil {
			return err
		}

		if cc.Text() {
			if outErr := cc.Output(ux.ChatLine(cc.Styles(), domain.ChatRoleModel, reply.Text)); outErr != nil {
				return outErr
			}
		} else if outErr := cc.Output(reply); outErr != nil {
			return outErr
		}
		return err
	})
}

func runChatHistory(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		user, err := a.RequireUser(ctx)
		if err != nil {
			return err
		}
		history, err := load(ctx, a, "chat_history", func(ctx context.Context) ([]domain.ChatMessage, error) {
			return a.Chat.History(ctx, user.ID)
		})
		if err != nil {
			return err
		}
		return cc.Output(ux.ChatHistory(history))
	})
}

func runChatClear(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		user, err := a.RequireUser(ctx)
		if err != nil {
			return err
		}

		if !chatYes {
			ok, err := ux.Confirm(ctx, "Forget your whole conversation with the assistant?")
			if err != nil {
				return err
			}
			if !ok {
				return cc.Output(cc.Styles().Muted.Render("Nothing cleared."))
			}
		}

		if err := a.Chat.Clear(ctx, user.ID); err != nil {
			return err
		}
		return cc.Output(cc.Styles().Success.Render("Conversation cleared."))
	})
}

func runChatTUI(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		if err := requireAssistant(a); err != nil {
			return err
		}
		user, err := a.RequireUser(ctx)
		if err != nil {
			return err
		}
		history := app.Fetch(a, "chat_history", func(ctx context.Context) ([]domain.ChatMessage, error) {
			return a.Chat.History(ctx, user.ID)
		})
		return tui.Run(ctx, tui.Config{
			Chat:    a.Chat,
			UserID:  user.ID,
			History: history,
			Session: a.Session,
		})
	})
}
