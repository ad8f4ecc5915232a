// Package command builds the shell command lines the orchestrator
// executes. All builders are pure: they validate and quote their
// inputs and return a string, performing no I/O themselves. Database
// credentials never appear on a command line; they travel through a
// mode-600 defaults file referenced via --defaults-file.
package command

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"db-sync-tool/internal/config"
	"db-sync-tool/internal/security"
)

// Endpoint carries what the builders need to know about one side.
type Endpoint struct {
	Credentials  config.DatabaseCredentials
	Console      config.ConsoleConfig
	DefaultsFile string
}

// binary resolves a console override, falling back to the bare command
// name on PATH.
func (e Endpoint) binary(name string) string {
	switch name {
	case "mysql":
		if e.Console.MySQL != "" {
			return e.Console.MySQL
		}
	case "mysqldump":
		if e.Console.MySQLDump != "" {
			return e.Console.MySQLDump
		}
	case "php":
		if e.Console.PHP != "" {
			return e.Console.PHP
		}
	}
	return name
}

// credentialsArg returns the --defaults-file option. The path is made
// of hex characters only, so it needs no shell quoting; mysql clients
// parse this option before any other and reject a quoted form.
func (e Endpoint) credentialsArg() string {
	return "--defaults-file=" + e.DefaultsFile
}

// NewDefaultsFilePath returns a fresh random credentials file path.
func NewDefaultsFilePath() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("/tmp/.dbsync_%s.cnf", suffix)
}

// DefaultsFileContent renders the [client] section consumed through
// --defaults-file. SSL is disabled to match the direct connections the
// tool previously made with command line flags.
func DefaultsFileContent(creds config.DatabaseCredentials) string {
	var sb strings.Builder
	sb.WriteString("[client]\n")
	sb.WriteString("user=" + creds.User + "\n")
	sb.WriteString("password=" + creds.Password + "\n")
	if creds.Host != "" {
		sb.WriteString("host=" + creds.Host + "\n")
	}
	if creds.Port != 0 {
		fmt.Fprintf(&sb, "port=%d\n", creds.Port)
	}
	sb.WriteString("ssl=0\n")
	return sb.String()
}

// RemoteDefaultsFileCommand writes the defaults file on a remote host.
// The content goes through base64 so passwords with shell
// metacharacters survive the trip.
func RemoteDefaultsFileCommand(path, content string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(content))
	return fmt.Sprintf("echo '%s' | base64 -d > %s && chmod 600 %s && echo 'OK'",
		encoded, path, path)
}

// RemoveFileCommand deletes a file, tolerating its absence.
func RemoveFileCommand(path string) string {
	return "rm -f " + security.QuoteShellArg(path)
}

// FileExistsCommand prints OK when the path is a regular file.
func FileExistsCommand(path string) string {
	return "test -f " + security.QuoteShellArg(path) + " && echo 'OK'"
}

// MkdirCommand creates the dump directory with parents.
func MkdirCommand(dir string) string {
	return "mkdir -p " + security.QuoteShellArg(dir)
}

// DumpOptions selects the shape of a dump.
type DumpOptions struct {
	DumpPath          string
	Tables            []string
	IgnoreTables      []string
	Where             string
	AdditionalOptions string
	NoTablespaces     bool
}

// DumpCommand builds the mysqldump pipeline: a consistent-snapshot
// export with batched inserts, streamed through gzip without an
// intermediate uncompressed file.
func DumpCommand(e Endpoint, opts DumpOptions) (string, error) {
	dbName, err := validName(e.Credentials.Name)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(e.binary("mysqldump"))
	sb.WriteString(" " + e.credentialsArg())
	if opts.NoTablespaces {
		sb.WriteString(" --no-tablespaces")
	}
	sb.WriteString(" --single-transaction --extended-insert")
	if opts.Where != "" {
		sb.WriteString(" --where=" + security.QuoteShellArg(opts.Where))
	}
	if opts.AdditionalOptions != "" {
		sb.WriteString(" " + opts.AdditionalOptions)
	}
	sb.WriteString(" " + security.QuoteShellArg(dbName))
	for _, table := range opts.IgnoreTables {
		name, err := validName(table)
		if err != nil {
			return "", err
		}
		sb.WriteString(" --ignore-table=" + dbName + "." + name)
	}
	for _, table := range opts.Tables {
		name, err := validName(table)
		if err != nil {
			return "", err
		}
		sb.WriteString(" " + security.QuoteShellArg(name))
	}
	sb.WriteString(" | gzip > " + security.QuoteShellArg(opts.DumpPath))
	return sb.String(), nil
}

// ImportCommand feeds a dump file into mysql, decompressing on the fly
// when the file carries a gzip suffix.
func ImportCommand(e Endpoint, dumpPath string) (string, error) {
	dbName, err := validName(e.Credentials.Name)
	if err != nil {
		return "", err
	}
	quotedPath := security.QuoteShellArg(dumpPath)
	mysql := e.binary("mysql") + " " + e.credentialsArg() + " " + security.QuoteShellArg(dbName)
	if strings.HasSuffix(dumpPath, ".gz") {
		return "gunzip -c " + quotedPath + " | " + mysql, nil
	}
	return mysql + " < " + quotedPath, nil
}

// TableListCommand lists the live tables of the endpoint's database,
// one per line without a header.
func TableListCommand(e Endpoint) (string, error) {
	dbName, err := validName(e.Credentials.Name)
	if err != nil {
		return "", err
	}
	return e.binary("mysql") + " " + e.credentialsArg() +
		" -Nse 'SHOW TABLES' " + security.QuoteShellArg(dbName), nil
}

// VersionCommand probes the server version string.
func VersionCommand(e Endpoint) string {
	return e.binary("mysql") + " " + e.credentialsArg() + " -Nse 'SELECT VERSION()'"
}

// TruncateCommand empties the given tables in one statement batch,
// with foreign key checks suspended for the duration.
func TruncateCommand(e Endpoint, tables []string) (string, error) {
	if len(tables) == 0 {
		return "", nil
	}
	statements := make([]string, 0, len(tables)+2)
	statements = append(statements, "SET FOREIGN_KEY_CHECKS = 0;")
	for _, table := range tables {
		quoted, err := security.ValidateIdentifier(table)
		if err != nil {
			return "", err
		}
		statements = append(statements, "TRUNCATE TABLE "+quoted+";")
	}
	statements = append(statements, "SET FOREIGN_KEY_CHECKS = 1;")
	return batchSQLCommand(e, strings.Join(statements, " "))
}

// ClearDatabaseCommand drops the given tables in one statement batch.
// The caller enumerates the live tables first; nothing is dropped per
// table in a shell loop.
func ClearDatabaseCommand(e Endpoint, tables []string) (string, error) {
	if len(tables) == 0 {
		return "", nil
	}
	statements := make([]string, 0, len(tables)+2)
	statements = append(statements, "SET FOREIGN_KEY_CHECKS = 0;")
	for _, table := range tables {
		quoted, err := security.ValidateIdentifier(table)
		if err != nil {
			return "", err
		}
		statements = append(statements, "DROP TABLE "+quoted+";")
	}
	statements = append(statements, "SET FOREIGN_KEY_CHECKS = 1;")
	return batchSQLCommand(e, strings.Join(statements, " "))
}

// SQLCommand runs an arbitrary SQL snippet against the endpoint's
// database, used for post_sql hooks.
func SQLCommand(e Endpoint, sql string) (string, error) {
	return batchSQLCommand(e, sql)
}

// batchSQLCommand wraps SQL in mysql -e. The statement is single
// quoted: double quotes would leave backtick-quoted identifiers open
// to shell command substitution.
func batchSQLCommand(e Endpoint, sql string) (string, error) {
	dbName, err := validName(e.Credentials.Name)
	if err != nil {
		return "", err
	}
	return e.binary("mysql") + " " + e.credentialsArg() + " " +
		security.QuoteShellArg(dbName) + " -e " + security.QuoteShellArg(sql), nil
}

// DumpTailCommand reads the last line of a dump for trailer
// verification, decompressing when needed.
func DumpTailCommand(path string) string {
	quoted := security.QuoteShellArg(path)
	if strings.HasSuffix(path, ".gz") {
		return "gunzip -c " + quoted + " | tail -n 1"
	}
	return "tail -n 1 " + quoted
}

// CreateTableCountCommand counts exported tables inside a dump.
func CreateTableCountCommand(path string) string {
	quoted := security.QuoteShellArg(path)
	if strings.HasSuffix(path, ".gz") {
		return "gunzip -c " + quoted + " | grep -ac 'CREATE TABLE'"
	}
	return "grep -ac 'CREATE TABLE' " + quoted
}

// ListDumpsCommand lists dump files in a directory, newest first.
func ListDumpsCommand(dir string) string {
	return "ls -1t " + security.QuoteShellArg(dir) + " | grep -E '\\.sql(\\.gz)?$'"
}

// validName validates a database or table identifier and returns it
// without quoting, for contexts where backticks do not apply.
func validName(name string) (string, error) {
	if !security.IsValidIdentifier(name) {
		return "", &security.InvalidIdentifierError{Name: name}
	}
	return name, nil
}
