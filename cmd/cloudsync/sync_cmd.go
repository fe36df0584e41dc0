package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/cloudsync/internal/sync"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(
		newSyncCmd(sync.CommandSync, "Download newer cloud files and upload newer local files"),
		newSyncCmd(sync.CommandDownload, "Download cloud files that are missing or newer than the local copy"),
		newSyncCmd(sync.CommandUpload, "Upload local files that are missing or newer than the cloud copy"),
	)
}

func newSyncCmd(command, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   command + " [cloud-path]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := answerFlags(cmd)
			if err != nil {
				return err
			}

			cfg, err := loadValidConfig()
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			a, err := newApp(cmd.Context(), cfg, appOptions{lock: true})
			if err != nil {
				return err
			}
			defer a.Close()

			cloudPath := cfg.CloudDir
			if len(args) == 1 {
				cloudPath = args[0]
			}

			start := time.Now()
			ui := newConsoleUI(cmd.InOrStdin(), cmd.OutOrStdout(), mode)
			err = sync.NewCommandHandler(a.service, ui).Handle(cmd.Context(), command, cloudPath)
			slog.Info("command finished", "command", command, "path", cloudPath, "took", time.Since(start), "ok", err == nil)
			return err
		},
	}

	flags := cmd.Flags()
	flags.BoolP("yes", "y", false, "answer yes to every question")
	flags.BoolP("no", "n", false, "answer no to every question")
	flags.Bool("default", false, "take the default answer to every question")
	return cmd
}

func answerFlags(cmd *cobra.Command) (answerMode, error) {
	yes, _ := cmd.Flags().GetBool("yes")
	no, _ := cmd.Flags().GetBool("no")
	def, _ := cmd.Flags().GetBool("default")
	mode, err := parseAnswerMode(yes, no, def)
	if err != nil {
		return answerAsk, fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	return mode, nil
}
