package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"notebook-backend/internal/model"
)

func generateCmd() *cobra.Command {
	var (
		notebookID   string
		sourcePath   []string
		instructions string
		render       bool
	)

	cmd := &cobra.Command{
		Use:       "generate <summary|study_guide|faq|briefing>",
		Short:     "Stream a summary, study guide, FAQ or briefing",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"summary", "study_guide", "faq", "briefing"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := model.ContentKind(args[0])
			if !kind.Valid() {
				return fmt.Errorf("unknown kind %q", args[0])
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sources, err := readSources(sourcePath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			var sink func(string)
			if !render {
				sink = (&printer{}).sink
			}
			text, err := newClient(cfg).Stream(ctx, "/api/generate/"+string(kind)+"/stream", model.ContentRequest{
				Kind:         kind,
				Sources:      sources,
				NotebookID:   notebookID,
				Instructions: instructions,
			}, sink)
			if !render {
				fmt.Println()
				return err
			}
			if err != nil {
				return err
			}
			return renderMarkdown(text)
		},
	}

	cmd.Flags().StringVarP(&notebookID, "notebook", "n", "", "notebook id")
	cmd.Flags().StringSliceVarP(&sourcePath, "source", "s", nil, "source file (repeatable)")
	cmd.Flags().StringVarP(&instructions, "instructions", "i", "", "extra instructions for the model")
	cmd.Flags().BoolVarP(&render, "render", "r", false, "render the finished markdown instead of streaming raw text")
	return cmd
}

func renderMarkdown(text string) error {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return err
	}
	out, err := r.Render(text)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
