package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"vxextract/internal/config"
	"vxextract/internal/corpus"
)

type globalFlags struct {
	configPath       string
	verbose          bool
	ghidraInstallDir string
	archiveRoot      string
	outputRoot       string
	workers          int
	failFast         bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig loads the configuration once and applies the command-line
// overrides. It validates everything except the Ghidra settings.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.configPath))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.SetRoots(c.flags.archiveRoot, c.flags.outputRoot); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.SetGhidraInstallDir(c.flags.ghidraInstallDir); err != nil {
			c.configErr = err
			return
		}
		if c.flags.workers > 0 {
			cfg.Workflow.Workers = c.flags.workers
		}
		if c.flags.failFast {
			cfg.Workflow.FailFast = true
		}
		if cfg.Paths.ArchiveRoot == "" || cfg.Paths.OutputRoot == "" {
			c.configErr = errors.New("archive and output roots are required: pass --archive and --output or set [paths] in the config file")
			return
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = fmt.Errorf("invalid configuration: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) layout() (*config.Config, corpus.Layout, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, corpus.Layout{}, err
	}
	return cfg, corpus.NewLayout(cfg), nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
