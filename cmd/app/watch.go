package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/local/mtreport/internal/report"
	"github.com/local/mtreport/internal/watch"
)

var watchInbox string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Generate every project file dropped into an inbox",
	Long: `Watch an inbox directory for YAML project files.

Each file runs once after it stops changing, one at a time, and is then moved
to procesados/ or fallidos/. Relative paths in a project file resolve against
the inbox, so a ZIP can be dropped next to its project file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pipeline, _, _ := newPipeline(ctx)
		inbox := watchInbox
		if inbox == "" {
			inbox = cfg.Watch.Inbox
		}

		gate, err := newGate(1)
		if err != nil {
			return err
		}
		w := watch.New(watch.Options{
			Inbox:     inbox,
			Settle:    cfg.Watch.Settle,
			OutputDir: cfg.Report.OutputDir,
			Runner:    gated{pipeline: pipeline, gate: gate},
			OnDone: func(file string, res *report.Result, err error) {
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("✗ "+file+": "+err.Error()))
					return
				}
				printSummary(cmd.OutOrStdout(), res)
			},
		})
		if err := w.Run(ctx); err != nil {
			return err
		}
		log.Info().Msg("watcher stopped")
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchInbox, "inbox", "", "inbox directory (default WATCH_INBOX)")
}
