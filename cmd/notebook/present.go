package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"notebook-backend/internal/model"
	"notebook-backend/internal/narration"
	"notebook-backend/internal/player"
	"notebook-backend/internal/tui"
	"notebook-backend/pkg/logger"
)

func presentCmd() *cobra.Command {
	var (
		id         string
		notebookID string
		muted      bool
		narrator   string
	)

	cmd := &cobra.Command{
		Use:   "present [file]",
		Short: "Play a presentation in the terminal",
		Long: `Play a presentation from a JSON or YAML file, a stored presentation
(--id) or a new one generated from a notebook (--notebook).

Keys: space play/pause, left/right change slide, m mute, esc close.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var pres *model.Presentation
			switch {
			case len(args) == 1:
				pres, err = model.LoadPresentationFile(args[0])
			case id != "":
				pres = &model.Presentation{}
				err = newClient(cfg).GetJSON(cmd.Context(), "/api/presentations/"+id, pres)
			case notebookID != "":
				fmt.Fprintln(os.Stderr, "generating presentation...")
				pres = &model.Presentation{}
				err = newClient(cfg).PostJSON(cmd.Context(), "/api/presentations", model.PresentationRequest{NotebookID: notebookID}, pres)
			default:
				return errors.New("a file, --id or --notebook is required")
			}
			if err != nil {
				return err
			}

			if narrator == "" {
				narrator = cfg.Player.NarratorCmd
			}
			return runPresentation(cmd.Context(), *pres, narration.NewCommandNarrator(narrator), muted,
				player.WithConfig(cfg.Player))
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "stored presentation id")
	cmd.Flags().StringVarP(&notebookID, "notebook", "n", "", "generate from this notebook")
	cmd.Flags().BoolVarP(&muted, "muted", "m", false, "start with narration off")
	cmd.Flags().StringVar(&narrator, "narrator", "", "text-to-speech command (overrides player.narrator_cmd)")
	return cmd
}

func runPresentation(ctx context.Context, pres model.Presentation, n *narration.CommandNarrator, muted bool, opts ...player.Option) error {
	if !muted && !n.Available() {
		fmt.Fprintln(os.Stderr, "narration command not found, starting muted")
		muted = true
	}

	// Log lines would tear the alternate screen.
	logger.SetOutput(io.Discard)

	closed := make(chan struct{})
	p := player.New(pres, n, append(opts,
		player.WithMuted(muted),
		player.WithOnClose(func() { close(closed) }),
	)...)
	defer p.Close()

	prog := tea.NewProgram(tui.New(p, closed),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	p.Play()
	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
