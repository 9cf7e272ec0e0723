package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/kalambet/procura/internal/workflow"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Describe what you need and let the assistant draft an RFP",
	Long: `Describe what you need to buy. The assistant asks follow-up questions
and saves an RFP once it has a title, description and budget.

With a message argument a single turn is sent; otherwise an interactive
session starts. Use --conversation to continue an earlier conversation.

Examples:
  procura chat "We need 20 laptops with 16GB RAM, budget 40k, in 3 weeks"
  procura chat --conversation 7d0c`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		convID, _ := cmd.Flags().GetString("conversation")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			res, err := chatTurn(cmd.Context(), client, convID, args[0])
			if err != nil {
				return err
			}
			printChatResult(res)
			return nil
		}
		return chatSession(cmd.Context(), client, convID)
	},
}

func init() {
	chatCmd.Flags().String("conversation", "", "conversation id to continue")
}

func chatTurn(ctx context.Context, client *apiClient, convID, message string) (workflow.ChatResult, error) {
	resp, err := client.post(ctx, "/chat", map[string]string{
		"conversation_id": convID,
		"message":         message,
	})
	if err != nil {
		return workflow.ChatResult{}, err
	}
	var res workflow.ChatResult
	if err := decodeJSON(resp, &res); err != nil {
		return workflow.ChatResult{}, err
	}
	return res, nil
}

func printChatResult(res workflow.ChatResult) {
	fmt.Printf("%s %s\n", colorize(colorCyan, "assistant:"), res.Response)
	switch {
	case res.Created:
		printSuccess("Created RFP %s", res.RFPID)
	case len(res.Updated) > 0:
		printStep("Updated %s", strings.Join(res.Updated, ", "))
	}
}

func chatSession(ctx context.Context, client *apiClient, convID string) error {
	printStep("Describe what you need. Ctrl-D to quit.")
	sent := false
	for {
		prompt := promptui.Prompt{Label: "you"}
		line, err := prompt.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			break
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		res, err := chatTurn(ctx, client, convID, line)
		if err != nil {
			printError("%v", err)
			continue
		}
		convID = res.ConversationID
		printChatResult(res)

		if res.ShowSendButton && res.RFPID != "" && !sent {
			confirm := promptui.Prompt{Label: "Send this RFP to vendors now", IsConfirm: true}
			if _, err := confirm.Run(); err != nil {
				continue
			}
			refs, err := pickVendors(ctx, client)
			if err != nil {
				printError("%v", err)
				continue
			}
			if err := sendRFP(ctx, client, res.RFPID, refs); err != nil {
				printError("%v", err)
				continue
			}
			sent = true
		}
	}
	if convID != "" {
		fmt.Printf("Conversation %s saved.\n", colorize(colorCyan, convID))
	}
	return nil
}
