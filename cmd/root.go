package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"db-sync-tool/internal/application"
	"db-sync-tool/internal/config"
	apperrors "db-sync-tool/internal/errors"
	"db-sync-tool/internal/logging"
)

var cfgFile string

// CLI flag variables
var (
	// Origin endpoint flags
	originHost   string
	originPort   int
	originUser   string
	originKey    string
	originPath   string
	originDumpIn string

	// Target endpoint flags
	targetHost   string
	targetPort   int
	targetUser   string
	targetKey    string
	targetPath   string
	targetDumpIn string

	// Operation flags
	frameworkType string
	importFile    string
	dumpName      string
	tables        []string
	whereClause   string
	reverse       bool
	dryRun        bool
	autoYes       bool
	keepDump      bool
	clearDatabase bool
	checkDump     bool
	useRsync      bool
	rsyncOptions  string
	dumpOptions   string

	// Output flags
	verbose   bool
	quiet     bool
	debug     bool
	logFormat string
	logFile   string

	knownHostsPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "db-sync-tool",
	Short: "Synchronize a MySQL/MariaDB database between two endpoints",
	Long: `db-sync-tool copies a MySQL or MariaDB database from an origin endpoint
to a target endpoint. Either side can be local or reachable over SSH,
optionally through a jump host. Database credentials come from the
configuration file or are extracted from the framework configuration
on the endpoint (TYPO3, Symfony, Drupal, WordPress, Laravel).

The dump is created with mysqldump, streamed through gzip, verified,
transferred with rsync or SFTP and imported on the target. Nothing is
synchronized without a complete, validated configuration.

Examples:
  # Sync a remote production database into the local database
  db-sync-tool -f sync.yaml

  # Same configuration, local to remote instead
  db-sync-tool -f sync.yaml --reverse

  # Export only, keep the artifact in the origin dump directory
  db-sync-tool -f dump-only.yaml --dump-name nightly

  # Import a previously created dump file
  db-sync-tool -f sync.yaml --import-file /backups/nightly.sql.gz --yes

  # Show what would happen without touching any data
  db-sync-tool -f sync.yaml --dry-run -v`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSync,
}

// Execute runs the root command and exits with the mapped error code.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config-file", "f", "", "sync configuration file (YAML or JSON)")

	// Origin endpoint flags
	rootCmd.Flags().StringVar(&originHost, "origin-host", "", "origin SSH host")
	rootCmd.Flags().IntVar(&originPort, "origin-port", config.DefaultSSHPort, "origin SSH port")
	rootCmd.Flags().StringVar(&originUser, "origin-user", "", "origin SSH user")
	rootCmd.Flags().StringVar(&originKey, "origin-ssh-key", "", "origin SSH private key file")
	rootCmd.Flags().StringVar(&originPath, "origin-path", "", "origin framework configuration path")
	rootCmd.Flags().StringVar(&originDumpIn, "origin-dump-dir", "", "origin dump directory")

	// Target endpoint flags
	rootCmd.Flags().StringVar(&targetHost, "target-host", "", "target SSH host")
	rootCmd.Flags().IntVar(&targetPort, "target-port", config.DefaultSSHPort, "target SSH port")
	rootCmd.Flags().StringVar(&targetUser, "target-user", "", "target SSH user")
	rootCmd.Flags().StringVar(&targetKey, "target-ssh-key", "", "target SSH private key file")
	rootCmd.Flags().StringVar(&targetPath, "target-path", "", "target framework configuration path")
	rootCmd.Flags().StringVar(&targetDumpIn, "target-dump-dir", "", "target dump directory")

	// Operation flags
	rootCmd.Flags().StringVarP(&frameworkType, "type", "t", "", "framework type (typo3, symfony, drupal, wordpress, laravel)")
	rootCmd.Flags().StringVarP(&importFile, "import-file", "i", "", "import an existing dump file instead of creating one")
	rootCmd.Flags().StringVar(&dumpName, "dump-name", "", "override the generated dump file name")
	rootCmd.Flags().StringSliceVar(&tables, "tables", nil, "export only the given tables")
	rootCmd.Flags().StringVarP(&whereClause, "where", "w", "", "WHERE condition applied to the dump")
	rootCmd.Flags().BoolVarP(&reverse, "reverse", "r", false, "swap origin and target before the sync")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "run read-only commands only, skip everything that modifies data")
	rootCmd.Flags().BoolVarP(&autoYes, "yes", "y", false, "answer every confirmation with yes")
	rootCmd.Flags().BoolVar(&keepDump, "keep-dump", false, "keep the dump file and skip the import")
	rootCmd.Flags().BoolVar(&clearDatabase, "clear-database", false, "drop all target tables before the import")
	rootCmd.Flags().BoolVar(&checkDump, "check-dump", true, "verify the dump trailer and table count")
	rootCmd.Flags().BoolVar(&useRsync, "use-rsync", true, "prefer rsync over SFTP when a key file is available")
	rootCmd.Flags().StringVar(&rsyncOptions, "rsync-options", "", "replace the default rsync options")
	rootCmd.Flags().StringVar(&dumpOptions, "additional-mysqldump-options", "", "extra options passed straight to mysqldump")

	// Output flags
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug output including executed commands")
	rootCmd.Flags().StringVar(&logFormat, "output", "text", "log output format (text, json)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "additionally write logs to this file")
	rootCmd.Flags().StringVar(&knownHostsPath, "known-hosts", "", "known_hosts file for host key verification (default ~/.ssh/known_hosts)")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
	rootCmd.MarkFlagsMutuallyExclusive("debug", "quiet")

	// Bind flags to viper so the config file, DB_SYNC_TOOL_* environment
	// variables and CLI flags merge into one configuration.
	viper.BindPFlag("origin.host", rootCmd.Flags().Lookup("origin-host"))
	viper.BindPFlag("origin.port", rootCmd.Flags().Lookup("origin-port"))
	viper.BindPFlag("origin.user", rootCmd.Flags().Lookup("origin-user"))
	viper.BindPFlag("origin.ssh_key", rootCmd.Flags().Lookup("origin-ssh-key"))
	viper.BindPFlag("origin.path", rootCmd.Flags().Lookup("origin-path"))
	viper.BindPFlag("origin.dump_dir", rootCmd.Flags().Lookup("origin-dump-dir"))

	viper.BindPFlag("target.host", rootCmd.Flags().Lookup("target-host"))
	viper.BindPFlag("target.port", rootCmd.Flags().Lookup("target-port"))
	viper.BindPFlag("target.user", rootCmd.Flags().Lookup("target-user"))
	viper.BindPFlag("target.ssh_key", rootCmd.Flags().Lookup("target-ssh-key"))
	viper.BindPFlag("target.path", rootCmd.Flags().Lookup("target-path"))
	viper.BindPFlag("target.dump_dir", rootCmd.Flags().Lookup("target-dump-dir"))

	viper.BindPFlag("type", rootCmd.Flags().Lookup("type"))
	viper.BindPFlag("import", rootCmd.Flags().Lookup("import-file"))
	viper.BindPFlag("dump_name", rootCmd.Flags().Lookup("dump-name"))
	viper.BindPFlag("tables", rootCmd.Flags().Lookup("tables"))
	viper.BindPFlag("where", rootCmd.Flags().Lookup("where"))
	viper.BindPFlag("reverse", rootCmd.Flags().Lookup("reverse"))
	viper.BindPFlag("dry_run", rootCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("yes", rootCmd.Flags().Lookup("yes"))
	viper.BindPFlag("keep_dump", rootCmd.Flags().Lookup("keep-dump"))
	viper.BindPFlag("clear_database", rootCmd.Flags().Lookup("clear-database"))
	viper.BindPFlag("check_dump", rootCmd.Flags().Lookup("check-dump"))
	viper.BindPFlag("use_rsync", rootCmd.Flags().Lookup("use-rsync"))
	viper.BindPFlag("rsync_options", rootCmd.Flags().Lookup("rsync-options"))
	viper.BindPFlag("additional_mysqldump_options", rootCmd.Flags().Lookup("additional-mysqldump-options"))
}

// runSync is the main execution function for the CLI
func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	app, err := application.New(cfg, application.Options{
		LogLevel:       selectLogLevel(),
		LogFormat:      logFormat,
		LogFile:        logFile,
		KnownHostsPath: knownHostsPath,
	})
	if err != nil {
		return err
	}

	return app.Run(context.Background())
}

func selectLogLevel() logging.LogLevel {
	switch {
	case debug:
		return logging.LogLevelDebug
	case verbose:
		return logging.LogLevelVerbose
	case quiet:
		return logging.LogLevelQuiet
	default:
		return logging.LogLevelNormal
	}
}

// buildConfig unmarshals the merged viper state into a SyncConfig and
// applies the defaults. Validation happens in the application layer.
func buildConfig() (*config.SyncConfig, error) {
	cfg := config.NewSyncConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeConfiguration, "cannot parse configuration", err)
	}
	cfg.SetDefaults()
	return cfg, nil
}

// initConfig reads in the config file and DB_SYNC_TOOL_* environment
// variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	viper.SetEnvPrefix("DB_SYNC_TOOL")
	viper.AutomaticEnv()

	if cfgFile != "" {
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot read config file %s: %s\n", cfgFile, err)
			os.Exit(apperrors.ExitCode(apperrors.New(apperrors.ErrorTypeConfiguration, "cannot read config file", err)))
		}
		if verbose || debug {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
