package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vxextract/internal/corpus"
	"vxextract/internal/workflow"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "extract [FAMILY...]",
		Short: "Extract samples without packing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runWorkflow(cmd, workflow.StageExtract, false, func(c context.Context, s *workflow.Session) error {
				return s.ExtractAll(c, args...)
			})
		},
	}
}

func newPackCommand(ctx *commandContext) *cobra.Command {
	var samples []string

	cmd := &cobra.Command{
		Use:   "pack [FAMILY...]",
		Short: "Extract and pack samples into CaRT containers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(samples) > 0 {
				if len(args) > 0 {
					return errors.New("--sample and family arguments are mutually exclusive")
				}
				selected, err := parseSamples(samples)
				if err != nil {
					return err
				}
				return ctx.runWorkflow(cmd, workflow.StagePack, false, func(c context.Context, s *workflow.Session) error {
					return s.PackSamples(c, selected)
				})
			}
			return ctx.runWorkflow(cmd, workflow.StagePack, false, func(c context.Context, s *workflow.Session) error {
				return s.PackAll(c, args...)
			})
		},
	}
	cmd.Flags().StringArrayVar(&samples, "sample", nil, "Pack only FAMILY/SAMPLE (repeatable)")
	return cmd
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [FAMILY...]",
		Short: "Import packed containers into per-family Ghidra projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runWorkflow(cmd, workflow.StageAnalyze, true, func(c context.Context, s *workflow.Session) error {
				return s.AnalyzeAll(c, args...)
			})
		},
	}
}

func parseSamples(values []string) ([]corpus.Sample, error) {
	samples := make([]corpus.Sample, 0, len(values))
	for _, value := range values {
		family, rel, ok := strings.Cut(strings.TrimSpace(value), "/")
		if !ok {
			return nil, fmt.Errorf("sample %q must be FAMILY/SAMPLE", value)
		}
		sample := corpus.Sample{Family: family, Path: rel}
		if err := sample.Validate(); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, nil
}
