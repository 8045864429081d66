package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/iammorganparry/timeline/internal/export"
	"github.com/iammorganparry/timeline/internal/narrator"
	"github.com/iammorganparry/timeline/internal/tui"
)

func playCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play an alternate history game in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logFile, _ := cmd.Flags().GetString("log-file")
			noArchive, _ := cmd.Flags().GetBool("no-archive")

			logger, closeLog, err := openLogger(cfg, logFile)
			if err != nil {
				return err
			}
			defer closeLog()

			prompts, err := narrator.LoadPrompts(cfg.PromptsFile)
			if err != nil {
				return err
			}
			client, err := narrator.NewClient(cfg.OllamaBaseURL, cfg.NarratorModel, cfg.NarratorTemperature, prompts, logger)
			if err != nil {
				return err
			}

			opts := tui.Options{
				Narrator:  client,
				Timeout:   cfg.NarratorTimeout,
				Exporter:  export.NewPDFExporter(export.DefaultLayout()),
				ExportDir: cfg.ExportDir,
				Logger:    logger,
			}
			if !noArchive {
				store, closeStore, err := openStore(cfg)
				if err != nil {
					return err
				}
				defer closeStore()
				opts.Archive = store
			}

			p := tea.NewProgram(tui.NewModel(opts), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().String("log-file", "", "Write JSON logs to this file")
	cmd.Flags().Bool("no-archive", false, "Disable saving chronicles to the database")

	return cmd
}
