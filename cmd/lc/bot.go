package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/alfredjeanlab/lowcode/internal/client"
	"github.com/alfredjeanlab/lowcode/internal/model"
	"github.com/alfredjeanlab/lowcode/internal/ui"
	"github.com/spf13/cobra"
)

var botCmd = &cobra.Command{
	Use:     "bot",
	Aliases: []string{"bots"},
	Short:   "Manage bots and chat with them",
	GroupID: "bots",
}

var botListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your bots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := apiClient.ListBots(context.Background(), listOptionsFromFlags(cmd))
		if err != nil {
			return fmt.Errorf("listing bots: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), list)
		}
		printBotList(cmd.OutOrStdout(), list.Bots, list.Total)
		return nil
	},
}

var botCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a bot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.BotRequest{Name: args[0]}
		req.Description, _ = cmd.Flags().GetString("description")
		req.Model, _ = cmd.Flags().GetString("model")
		req.PromptID, _ = cmd.Flags().GetString("prompt")
		req.SystemPrompt, _ = cmd.Flags().GetString("system")
		req.ToolIDs, _ = cmd.Flags().GetStringSlice("tool")
		if cmd.Flags().Changed("temperature") {
			t, _ := cmd.Flags().GetFloat64("temperature")
			req.Temperature = &t
		}

		b, err := apiClient.CreateBot(context.Background(), req)
		if err != nil {
			return fmt.Errorf("creating bot: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), b)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created bot %s\n", b.ID)
		return nil
	},
}

var botShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a bot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := apiClient.GetBot(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting bot: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), b)
		}
		printBotTable(cmd.OutOrStdout(), b)
		return nil
	},
}

var botDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a bot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient.DeleteBot(context.Background(), args[0]); err != nil {
			return fmt.Errorf("deleting bot: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted bot %s\n", args[0])
		return nil
	},
}

// instanceCmd builds the start, stop and status subcommands, which differ
// only in the client call.
func instanceCmd(use, short, verb string, call func(context.Context, string) (*model.BotInstance, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := call(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("%s bot: %w", verb, err)
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), inst)
			}
			printInstance(cmd.OutOrStdout(), inst)
			return nil
		},
	}
}

var (
	botStartCmd = instanceCmd("start", "Start your instance of a bot", "starting",
		func(ctx context.Context, id string) (*model.BotInstance, error) { return apiClient.StartBot(ctx, id) })
	botStopCmd = instanceCmd("stop", "Stop your instance of a bot", "stopping",
		func(ctx context.Context, id string) (*model.BotInstance, error) { return apiClient.StopBot(ctx, id) })
	botStatusCmd = instanceCmd("status", "Show the status of your instance of a bot", "getting status of",
		func(ctx context.Context, id string) (*model.BotInstance, error) { return apiClient.BotStatus(ctx, id) })
)

var botChatCmd = &cobra.Command{
	Use:   "chat <id> [message]",
	Short: "Send a message, or chat interactively when no message is given",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		botID := args[0]
		out := cmd.OutOrStdout()
		if len(args) == 2 {
			return chatOnce(ctx, out, botID, args[1])
		}

		fmt.Fprintln(out, ui.RenderMuted("Type a message and press enter. Ctrl-D to quit."))
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, ui.RenderCommand("> "))
			if !scanner.Scan() {
				fmt.Fprintln(out)
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if err := chatOnce(ctx, out, botID, line); err != nil {
				// Errors do not end the session.
				fmt.Fprintln(out, ui.RenderError(err.Error()))
			}
		}
	},
}

func chatOnce(ctx context.Context, w io.Writer, botID, text string) error {
	res, err := apiClient.Chat(ctx, botID, text)
	if err != nil {
		return fmt.Errorf("chatting: %w", err)
	}
	if jsonOutput {
		return printJSON(w, res)
	}
	for _, run := range res.ToolRuns {
		printMessage(w, run)
	}
	if res.Reply != nil {
		printMessage(w, res.Reply)
	}
	return nil
}

var botHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show your conversation with a bot, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		msgs, err := apiClient.History(context.Background(), args[0], limit)
		if err != nil {
			return fmt.Errorf("getting history: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), msgs)
		}
		if len(msgs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no messages")
			return nil
		}
		for _, m := range msgs {
			printMessage(cmd.OutOrStdout(), m)
		}
		return nil
	},
}

func init() {
	addListFlags(botListCmd)

	botCreateCmd.Flags().String("description", "", "bot description")
	botCreateCmd.Flags().String("model", "", "LLM model (server default when empty)")
	botCreateCmd.Flags().String("prompt", "", "prompt id used as the system prompt")
	botCreateCmd.Flags().String("system", "", "inline system prompt")
	botCreateCmd.Flags().Float64("temperature", 0.7, "sampling temperature")
	botCreateCmd.Flags().StringSlice("tool", nil, "tool id the bot may call (repeatable)")

	botHistoryCmd.Flags().Int("limit", 50, "number of recent messages")

	botCmd.AddCommand(botListCmd)
	botCmd.AddCommand(botCreateCmd)
	botCmd.AddCommand(botShowCmd)
	botCmd.AddCommand(botDeleteCmd)
	botCmd.AddCommand(botStartCmd)
	botCmd.AddCommand(botStopCmd)
	botCmd.AddCommand(botStatusCmd)
	botCmd.AddCommand(botChatCmd)
	botCmd.AddCommand(botHistoryCmd)
}
