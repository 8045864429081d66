package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iammorganparry/timeline/internal/export"
	"github.com/iammorganparry/timeline/internal/models"
)

func chroniclesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chronicles",
		Short: "List saved timelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			asJSON, _ := cmd.Flags().GetBool("json")

			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			list, err := store.List(limit)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No chronicles saved yet.")
				return nil
			}
			for _, c := range list {
				status := "unfinished"
				if c.Finished {
					status = "finished"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-40s %3d entries  %-10s %s\n",
					c.ID[:8], c.Title, c.EntryCount, status,
					time.Unix(c.CreatedAt, 0).Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 20, "Maximum results")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [chronicle-id]",
		Short: "Export a saved timeline to PDF or XLSX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			out, _ := cmd.Flags().GetString("output")

			ex, err := export.ForFormat(format, export.NewPDFExporter(export.DefaultLayout()), export.NewXLSXExporter())
			if err != nil {
				return err
			}

			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			c, err := findChronicle(cmd.ErrOrStderr(), store.Get, store.List, args[0])
			if err != nil {
				return err
			}

			if out == "" {
				out = filepath.Join(cfg.ExportDir, export.FileName(ex, c.Entries, time.Now()))
			}
			if err := export.WriteFile(ex, out, c.Entries); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %q to %s\n", c.Title, out)
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file (default: generated name in EXPORT_DIR)")
	cmd.Flags().StringP("format", "f", "pdf", "Export format (pdf, xlsx)")

	return cmd
}

// findChronicle resolves a full id or the short prefix printed by
// "timeline chronicles". Hints for the user go to stderr.
func findChronicle(
	stderr io.Writer,
	get func(string) (*models.ChronicleWithEntries, error),
	list func(int) ([]*models.Chronicle, error),
	id string,
) (*models.ChronicleWithEntries, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("chronicle id is required")
	}
	c, err := get(id)
	if err != nil {
		return nil, err
	}
	if c != nil {
		return c, nil
	}

	recent, err := list(500)
	if err != nil {
		return nil, err
	}
	var match string
	for _, r := range recent {
		if strings.HasPrefix(r.ID, id) {
			if match != "" {
				return nil, fmt.Errorf("chronicle id %q is ambiguous", id)
			}
			match = r.ID
		}
	}
	if match == "" {
		fmt.Fprintln(stderr, "Run \"timeline chronicles\" to list saved timelines.")
		return nil, fmt.Errorf("chronicle %q not found", id)
	}
	return get(match)
}
