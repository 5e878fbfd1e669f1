package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vxextract/internal/corpus"
)

func newFamiliesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "families",
		Short: "List the families in the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, layout, err := ctx.layout()
			if err != nil {
				return err
			}
			families, err := layout.Families()
			if err != nil {
				return err
			}
			if asJSON {
				if families == nil {
					families = []string{}
				}
				return writeJSON(cmd, families)
			}
			out := cmd.OutOrStdout()
			for _, family := range families {
				fmt.Fprintln(out, family)
			}
			return nil
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newSamplesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "samples [FAMILY...]",
		Short: "List the samples of the selected families",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, layout, err := ctx.layout()
			if err != nil {
				return err
			}
			samples, err := layout.AllSamples(args...)
			if err != nil {
				return err
			}
			if asJSON {
				if samples == nil {
					samples = []corpus.Sample{}
				}
				return writeJSON(cmd, samples)
			}
			out := cmd.OutOrStdout()
			for _, sample := range samples {
				fmt.Fprintln(out, sample.String())
			}
			return nil
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}
