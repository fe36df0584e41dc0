package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/openmined/cloudsync/internal/sync"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func init() {
	rootCmd.AddCommand(newPlanCmd())
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [cloud-path]",
		Short: "Show what a sync would transfer without changing anything",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("output")
			if err := checkFormat(format); err != nil {
				return err
			}

			cfg, err := loadValidConfig()
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			a, err := newApp(cmd.Context(), cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			cloudPath := cfg.CloudDir
			if len(args) == 1 {
				cloudPath = args[0]
			}

			result, err := a.service.MapFolder(cmd.Context(), cloudPath)
			if err != nil {
				return err
			}
			return writePlan(cmd.OutOrStdout(), format, result)
		},
	}
	cmd.Flags().StringP("output", "o", formatText, "output format: text, json or yaml")
	return cmd
}

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q, expected text, json or yaml", format)
	}
}

func writePlan(w io.Writer, format string, result *sync.MapFolderResult) error {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("encode plan: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode plan: %w", err)
		}
		return enc.Close()
	default:
		_, err := io.WriteString(w, planText(result))
		return err
	}
}

func planText(result *sync.MapFolderResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Download %d files (%s)\n", len(result.Download), humanize.IBytes(uint64(result.DownloadSize())))
	for _, f := range result.Download {
		fmt.Fprintf(&b, " - %s (%s)\n", f.CloudPath, humanize.IBytes(uint64(f.Size)))
	}

	fmt.Fprintf(&b, "Upload %d files (%s)\n", len(result.Upload), humanize.IBytes(uint64(result.UploadSize())))
	for _, f := range result.Upload {
		fmt.Fprintf(&b, " - %s (%s)\n", f.CloudPath, humanize.IBytes(uint64(f.Size)))
	}

	if len(result.Conflicts) > 0 {
		fmt.Fprintf(&b, "Conflicts %d\n", len(result.Conflicts))
		for _, c := range result.Conflicts {
			fmt.Fprintf(&b, " - %s (%s)\n", c.Local.CloudPath, c.Comparison)
		}
	}
	if len(result.Failed) > 0 {
		fmt.Fprintf(&b, "Failed %d\n", len(result.Failed))
		for _, f := range result.Failed {
			fmt.Fprintf(&b, " - %s\n", f.Error())
		}
	}
	return b.String()
}
