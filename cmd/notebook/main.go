package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"notebook-backend/internal/config"
	"notebook-backend/internal/model"
	"notebook-backend/internal/stream"
	"notebook-backend/internal/utils"
	"notebook-backend/pkg/logger"
)

var Version = "dev"

var (
	configPath string
	serverURL  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "notebook",
		Short:        "Chat with your sources, generate study material and play presentations",
		Version:      Version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./configs/config.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (overrides client.server_url)")

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(presentCmd())
	rootCmd.AddCommand(notebooksCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, err
	}
	logger.SetOutput(os.Stderr)
	if serverURL != "" {
		cfg.Client.ServerURL = serverURL
	}
	return cfg, nil
}

func newClient(cfg *config.Config) *stream.Client {
	return stream.NewClient(cfg.Client.ServerURL,
		utils.NewHTTPClient(cfg.Client.Timeout),
		stream.WithMaxPendingBytes(cfg.Stream.MaxPendingBytes),
		stream.WithMaxRetries(cfg.Stream.MaxRetries),
	)
}

// readSources loads each path as a source document named after the file.
func readSources(paths []string) ([]model.SourceDocument, error) {
	docs := make([]model.SourceDocument, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read source: %w", err)
		}
		docs = append(docs, model.SourceDocument{Name: p, Content: string(data)})
	}
	return docs, nil
}

// printer writes only the part of each snapshot not yet printed. Snapshots
// only ever grow.
type printer struct {
	printed int
}

func (p *printer) sink(snapshot string) {
	if len(snapshot) <= p.printed {
		return
	}
	fmt.Print(snapshot[p.printed:])
	p.printed = len(snapshot)
}
