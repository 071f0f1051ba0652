package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"notebook-backend/internal/model"
)

func notebooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notebooks",
		Aliases: []string{"nb"},
		Short:   "List and manage notebooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var resp struct {
				Notebooks []model.NotebookResponse `json:"notebooks"`
			}
			if err := newClient(cfg).GetJSON(cmd.Context(), "/api/notebooks", &resp); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSOURCES\tMESSAGES\tUPDATED")
			for _, n := range resp.Notebooks {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", n.NotebookID, n.Title, n.SourceCount, n.MessageCount, n.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create [title]",
		Short: "Create a notebook",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			req := model.CreateNotebookRequest{}
			if len(args) == 1 {
				req.Title = args[0]
			}

			var nb model.Notebook
			if err := newClient(cfg).PostJSON(cmd.Context(), "/api/notebooks", req, &nb); err != nil {
				return err
			}
			fmt.Println(nb.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add-source <notebook-id> <file>...",
		Short: "Add files to a notebook as sources",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			docs, err := readSources(args[1:])
			if err != nil {
				return err
			}

			client := newClient(cfg)
			for _, d := range docs {
				var src model.Source
				if err := client.PostJSON(cmd.Context(), "/api/notebooks/"+args[0]+"/sources",
					model.AddSourceRequest{Name: d.Name, Content: d.Content}, &src); err != nil {
					return fmt.Errorf("add %s: %w", d.Name, err)
				}
				fmt.Printf("%s\t%s\n", src.ID, src.Name)
			}
			return nil
		},
	})

	return cmd
}
