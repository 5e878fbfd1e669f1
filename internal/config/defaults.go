package config

const (
	defaultArchivePassword  = "infected"
	defaultArchiveExtension = ".7z"
	defaultPackExtension    = ".cart"
	defaultPackSource       = "VX-Underground"
	defaultSourceURLBase    = "https://samples.vx-underground.org/Samples/Families"
	defaultProjectDir       = "ghidra_projects"
	defaultRecursionDepth   = 5
	defaultCommitMessage    = "Auto analysis"
	defaultWorkers          = 3
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30

	// GhidraInstallEnv is consulted when no install directory is configured.
	GhidraInstallEnv = "GHIDRA_INSTALL_DIR"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Archive: Archive{
			Password:  defaultArchivePassword,
			Extension: defaultArchiveExtension,
		},
		Pack: Pack{
			Extension:     defaultPackExtension,
			Source:        defaultPackSource,
			SourceURLBase: defaultSourceURLBase,
		},
		Analysis: Analysis{
			Enabled:        true,
			ProjectDir:     defaultProjectDir,
			RecursionDepth: defaultRecursionDepth,
			CommitMessage:  defaultCommitMessage,
		},
		Workflow: Workflow{
			Workers: defaultWorkers,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
