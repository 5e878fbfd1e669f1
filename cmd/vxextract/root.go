package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags)
	var skipAnalysis bool

	rootCmd := &cobra.Command{
		Use:   "vxextract VX_ARCHIVE EXTRACTED_BASE_PATH",
		Short: "Extract, pack, and analyze a VX-Underground archive",
		Long: `vxextract extracts every sample of a VX-Underground family archive,
packs each one into a CaRT container with provenance metadata, and imports
each family's containers into a Ghidra project.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.archiveRoot = args[0]
			flags.outputRoot = args[1]
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			analyze := cfg.Analysis.Enabled && !skipAnalysis
			return ctx.runWorkflow(cmd, "run", analyze, pipelineFn(analyze, nil))
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Configuration file path")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&flags.ghidraInstallDir, "ghidra-install-directory", "", "Ghidra install directory (defaults to $GHIDRA_INSTALL_DIR)")
	pf.StringVar(&flags.archiveRoot, "archive", "", "VX-Underground archive root for subcommands")
	pf.StringVar(&flags.outputRoot, "output", "", "Output root for subcommands")
	pf.IntVar(&flags.workers, "workers", 0, "Concurrent jobs (overrides workflow.workers)")
	pf.BoolVar(&flags.failFast, "fail-fast", false, "Stop dispatching jobs after the first failure")
	rootCmd.Flags().BoolVar(&skipAnalysis, "skip-analysis", false, "Only extract and pack; do not run Ghidra")

	rootCmd.AddCommand(newFamiliesCommand(ctx))
	rootCmd.AddCommand(newSamplesCommand(ctx))
	rootCmd.AddCommand(newExtractCommand(ctx))
	rootCmd.AddCommand(newPackCommand(ctx))
	rootCmd.AddCommand(newAnalyzeCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))
	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
