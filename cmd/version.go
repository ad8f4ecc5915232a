package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc string) {
	version = v
	buildTime = bt
	gitCommit = gc
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("db-sync-tool version %s\n", version)
			fmt.Printf("Built: %s\n", buildTime)
			fmt.Printf("Commit: %s\n", gitCommit)
		},
	}
}

// createConfigCommand generates a sample configuration file.
func createConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Generate a sample configuration file",
		Long: `Generate a sample configuration file that can be used with the
-f/--config-file flag. Redirect the output to a file and adjust it
for your environment:

  db-sync-tool config > sync.yaml`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(sampleConfig)
		},
	}
}

const sampleConfig = `# db-sync-tool configuration file
# Copies the origin database into the target database.

# Framework type for credential extraction from the endpoint's own
# configuration files: typo3, symfony, drupal, wordpress, laravel.
# Leave empty when both db blocks are filled in manually.
type: ""

origin:
  # SSH connection; leave host empty for a local endpoint.
  host: production.example.com
  port: 22
  user: deploy
  ssh_key: ~/.ssh/id_ed25519
  # Framework installation path used for credential extraction.
  path: /var/www/html/shared/.env
  # Where dump files are created on this side.
  dump_dir: /tmp/
  # Keep the N most recent dumps after a dump-only run.
  keep_dumps: 5
  # Optional bastion between you and the endpoint.
  # jump_host:
  #   host: bastion.example.com
  #   user: deploy
  #   private: 10.0.0.12
  # Manual credentials; any field set here overrides the extracted one.
  # db:
  #   name: shop
  #   user: shop
  #   password: ""
  #   host: 127.0.0.1
  #   port: 3306

target:
  # Local endpoint: no host.
  path: /var/www/dev/.env
  # Refuse to import into this endpoint without explicit confirmation.
  protect: false
  # SQL file imported after the main dump.
  # after_dump: /var/www/dev/fixtures.sql
  # Statements executed after the import.
  # post_sql:
  #   - UPDATE users SET email = CONCAT(id, '@example.test');

# Tables excluded from the dump; * matches any run of characters.
ignore_table:
  - cache_*
  - sessions

# Tables emptied on the target before the import.
truncate_table: []

# Lifecycle hooks; script blocks also exist per endpoint.
script:
  before: []
  after: []
  error: []

check_dump: true
use_rsync: true
`

func init() {
	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createConfigCommand())
}
