// Package main hosts the vxextract CLI entrypoint and command graph.
//
// The root command takes the VX-Underground archive root and an output root
// and runs the whole pipeline: every sample is extracted and packed into a
// CaRT container, then each family is imported into its own Ghidra project.
// Subcommands expose the individual stages, corpus listings, the run ledger,
// container inspection, and configuration scaffolding.
//
// Keep this package lean: the stages live in internal packages and the
// commands here only resolve configuration, build the stage set, and render
// results.
package main
