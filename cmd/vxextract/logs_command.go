package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vxextract/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs [RUN_ID]",
		Short: "Print a run log (the latest when no run ID is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			path, err := logs.ResolveRunLog(cfg.LogDir(), runID)
			if err != nil {
				return fmt.Errorf("%w (set logging.file = true to keep run logs)", err)
			}
			out := cmd.OutOrStdout()
			return logs.Tail(cmd.Context(), path, logs.TailOptions{Lines: lines, Follow: follow}, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing appended lines")
	return cmd
}
