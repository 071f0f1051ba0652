package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"notebook-backend/internal/model"
	"notebook-backend/internal/stream"
)

func chatCmd() *cobra.Command {
	var (
		notebookID string
		sourcePath []string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a notebook's sources",
		Long: `Start an interactive chat grounded in a notebook or in local files.

Examples:
  notebook chat --notebook 6f1c...
  notebook chat --source notes.md --source paper.txt

Type /reset to clear the history and /exit to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sources, err := readSources(sourcePath)
			if err != nil {
				return err
			}
			if notebookID == "" && len(sources) == 0 {
				return fmt.Errorf("either --notebook or --source is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			conv := stream.NewConversation(newClient(cfg), "/api/chat/stream")
			return runChat(ctx, conv, notebookID, sources)
		},
	}

	cmd.Flags().StringVarP(&notebookID, "notebook", "n", "", "notebook id")
	cmd.Flags().StringSliceVarP(&sourcePath, "source", "s", nil, "source file (repeatable)")
	return cmd
}

func runChat(ctx context.Context, conv *stream.Conversation, notebookID string, sources []model.SourceDocument) error {
	var history []model.ChatMessage
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			history = nil
			fmt.Println("history cleared")
			continue
		}

		history = append(history, model.ChatMessage{Role: model.RoleUser, Content: line})
		p := &printer{}
		answer, err := conv.Send(ctx, model.ChatRequest{
			Messages:   history,
			Sources:    sources,
			NotebookID: notebookID,
		}, p.sink)
		fmt.Println()

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			history = history[:len(history)-1]
			continue
		}
		history = append(history, model.ChatMessage{Role: model.RoleAssistant, Content: answer})
	}
}
