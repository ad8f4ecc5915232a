package command

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-sync-tool/internal/config"
	apperrors "db-sync-tool/internal/errors"
)

func testEndpoint() Endpoint {
	return Endpoint{
		Credentials: config.DatabaseCredentials{
			Name: "app_db", Host: "127.0.0.1", User: "app", Password: "s3cret", Port: 3306,
		},
		DefaultsFile: "/tmp/.dbsync_abc123.cnf",
	}
}

func TestNewDefaultsFilePath(t *testing.T) {
	first := NewDefaultsFilePath()
	second := NewDefaultsFilePath()

	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(first, "/tmp/.dbsync_"))
	assert.True(t, strings.HasSuffix(first, ".cnf"))
}

func TestDefaultsFileContent(t *testing.T) {
	content := DefaultsFileContent(testEndpoint().Credentials)

	assert.Contains(t, content, "[client]\n")
	assert.Contains(t, content, "user=app\n")
	assert.Contains(t, content, "password=s3cret\n")
	assert.Contains(t, content, "host=127.0.0.1\n")
	assert.Contains(t, content, "port=3306\n")
	assert.Contains(t, content, "ssl=0\n")
}

func TestRemoteDefaultsFileCommand(t *testing.T) {
	content := DefaultsFileContent(testEndpoint().Credentials)
	cmd := RemoteDefaultsFileCommand("/tmp/.dbsync_abc123.cnf", content)

	assert.NotContains(t, cmd, "s3cret", "password must not appear in clear text")
	assert.Contains(t, cmd, "base64 -d > /tmp/.dbsync_abc123.cnf")
	assert.Contains(t, cmd, "chmod 600")

	encoded := base64.StdEncoding.EncodeToString([]byte(content))
	assert.Contains(t, cmd, encoded)
}

func TestDumpCommand(t *testing.T) {
	cmd, err := DumpCommand(testEndpoint(), DumpOptions{
		DumpPath:      "/tmp/_app_db_2026-01-01_12-00.sql.gz",
		NoTablespaces: true,
		IgnoreTables:  []string{"cache_pages", "sessions"},
	})
	require.NoError(t, err)

	assert.Contains(t, cmd, "mysqldump --defaults-file=/tmp/.dbsync_abc123.cnf")
	assert.Contains(t, cmd, "--no-tablespaces")
	assert.Contains(t, cmd, "--single-transaction --extended-insert")
	assert.Contains(t, cmd, "--ignore-table=app_db.cache_pages")
	assert.Contains(t, cmd, "--ignore-table=app_db.sessions")
	assert.Contains(t, cmd, "| gzip > '/tmp/_app_db_2026-01-01_12-00.sql.gz'")
	assert.NotContains(t, cmd, "s3cret")
}

func TestDumpCommandWithTablesAndWhere(t *testing.T) {
	cmd, err := DumpCommand(testEndpoint(), DumpOptions{
		DumpPath: "/tmp/dump.sql.gz",
		Tables:   []string{"users", "orders"},
		Where:    "created_at > '2026-01-01'",
	})
	require.NoError(t, err)

	assert.Contains(t, cmd, "--where='created_at > '\\''2026-01-01'\\'''")
	assert.Contains(t, cmd, "'app_db' 'users' 'orders'")
	assert.NotContains(t, cmd, "--no-tablespaces")
}

func TestDumpCommandAdditionalOptions(t *testing.T) {
	cmd, err := DumpCommand(testEndpoint(), DumpOptions{
		DumpPath:          "/tmp/dump.sql.gz",
		AdditionalOptions: "--max-allowed-packet=512M",
	})
	require.NoError(t, err)
	assert.Contains(t, cmd, "--max-allowed-packet=512M 'app_db'")
}

func TestDumpCommandRejectsInvalidIdentifiers(t *testing.T) {
	tests := []struct {
		name string
		opts DumpOptions
	}{
		{"injection in ignore table", DumpOptions{DumpPath: "/tmp/d.sql.gz", IgnoreTables: []string{"x; DROP TABLE users"}}},
		{"injection in table subset", DumpOptions{DumpPath: "/tmp/d.sql.gz", Tables: []string{"users`--"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DumpCommand(testEndpoint(), tt.opts)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrorTypeIdentifier, apperrors.TypeOf(err))
		})
	}
}

func TestDumpCommandRejectsInvalidDatabaseName(t *testing.T) {
	e := testEndpoint()
	e.Credentials.Name = "bad db; --"
	_, err := DumpCommand(e, DumpOptions{DumpPath: "/tmp/d.sql.gz"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeIdentifier, apperrors.TypeOf(err))
}

func TestImportCommand(t *testing.T) {
	cmd, err := ImportCommand(testEndpoint(), "/tmp/dump.sql.gz")
	require.NoError(t, err)
	assert.Equal(t, "gunzip -c '/tmp/dump.sql.gz' | mysql --defaults-file=/tmp/.dbsync_abc123.cnf 'app_db'", cmd)

	cmd, err = ImportCommand(testEndpoint(), "/tmp/dump.sql")
	require.NoError(t, err)
	assert.Equal(t, "mysql --defaults-file=/tmp/.dbsync_abc123.cnf 'app_db' < '/tmp/dump.sql'", cmd)
}

func TestTableListCommand(t *testing.T) {
	cmd, err := TableListCommand(testEndpoint())
	require.NoError(t, err)
	assert.Equal(t, "mysql --defaults-file=/tmp/.dbsync_abc123.cnf -Nse 'SHOW TABLES' 'app_db'", cmd)
}

func TestTruncateCommandBatchesStatements(t *testing.T) {
	cmd, err := TruncateCommand(testEndpoint(), []string{"cache_pages", "cache_menus"})
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(cmd, "mysql "), "one invocation, not one per table")
	assert.Contains(t, cmd, "SET FOREIGN_KEY_CHECKS = 0;")
	assert.Contains(t, cmd, "TRUNCATE TABLE `cache_pages`;")
	assert.Contains(t, cmd, "TRUNCATE TABLE `cache_menus`;")
	assert.Contains(t, cmd, "SET FOREIGN_KEY_CHECKS = 1;")
}

func TestTruncateCommandEmpty(t *testing.T) {
	cmd, err := TruncateCommand(testEndpoint(), nil)
	require.NoError(t, err)
	assert.Empty(t, cmd)
}

func TestClearDatabaseCommand(t *testing.T) {
	cmd, err := ClearDatabaseCommand(testEndpoint(), []string{"users", "orders"})
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(cmd, "mysql "))
	assert.Contains(t, cmd, "DROP TABLE `users`;")
	assert.Contains(t, cmd, "DROP TABLE `orders`;")
	assert.Contains(t, cmd, "SET FOREIGN_KEY_CHECKS = 0;")
}

func TestClearDatabaseCommandRejectsInjection(t *testing.T) {
	_, err := ClearDatabaseCommand(testEndpoint(), []string{"users; DROP DATABASE mysql"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeIdentifier, apperrors.TypeOf(err))
}

func TestSQLCommandEscapesQuotes(t *testing.T) {
	cmd, err := SQLCommand(testEndpoint(), `UPDATE config SET value = "new" WHERE name = 'x'`)
	require.NoError(t, err)
	assert.Equal(t,
		`mysql --defaults-file=/tmp/.dbsync_abc123.cnf 'app_db' -e 'UPDATE config SET value = "new" WHERE name = '\''x'\'''`,
		cmd)
}

func TestTruncateCommandStatementIsShellInert(t *testing.T) {
	// table names land in the statement backtick-quoted; inside shell
	// double quotes a backtick is command substitution, so the -e
	// payload must be single quoted
	cmd, err := TruncateCommand(testEndpoint(), []string{"uname"})
	require.NoError(t, err)

	assert.Contains(t, cmd,
		" -e 'SET FOREIGN_KEY_CHECKS = 0; TRUNCATE TABLE `uname`; SET FOREIGN_KEY_CHECKS = 1;'")
	assert.NotContains(t, cmd, `-e "`)
}

func TestClearDatabaseCommandStatementIsShellInert(t *testing.T) {
	cmd, err := ClearDatabaseCommand(testEndpoint(), []string{"ls"})
	require.NoError(t, err)

	assert.Contains(t, cmd,
		" -e 'SET FOREIGN_KEY_CHECKS = 0; DROP TABLE `ls`; SET FOREIGN_KEY_CHECKS = 1;'")
	assert.NotContains(t, cmd, `-e "`)
}

func TestVerificationCommands(t *testing.T) {
	assert.Equal(t, "gunzip -c '/tmp/d.sql.gz' | tail -n 1", DumpTailCommand("/tmp/d.sql.gz"))
	assert.Equal(t, "tail -n 1 '/tmp/d.sql'", DumpTailCommand("/tmp/d.sql"))
	assert.Equal(t, "gunzip -c '/tmp/d.sql.gz' | grep -ac 'CREATE TABLE'", CreateTableCountCommand("/tmp/d.sql.gz"))
}

func TestHousekeepingCommands(t *testing.T) {
	assert.Equal(t, "rm -f '/tmp/a dump.sql'", RemoveFileCommand("/tmp/a dump.sql"))
	assert.Equal(t, "test -f '/tmp/d.sql' && echo 'OK'", FileExistsCommand("/tmp/d.sql"))
	assert.Equal(t, "mkdir -p '/var/backups/dumps/'", MkdirCommand("/var/backups/dumps/"))
	assert.Equal(t, "ls -1t '/tmp/' | grep -E '\\.sql(\\.gz)?$'", ListDumpsCommand("/tmp/"))
}

func TestConsoleOverrides(t *testing.T) {
	e := testEndpoint()
	e.Console = config.ConsoleConfig{
		MySQL:     "/usr/local/bin/mysql",
		MySQLDump: "/usr/local/bin/mysqldump",
	}

	cmd, err := DumpCommand(e, DumpOptions{DumpPath: "/tmp/d.sql.gz"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(cmd, "/usr/local/bin/mysqldump "))

	cmd, err = ImportCommand(e, "/tmp/d.sql")
	require.NoError(t, err)
	assert.Contains(t, cmd, "/usr/local/bin/mysql --defaults-file=")
}

func TestVersionCommand(t *testing.T) {
	assert.Equal(t,
		"mysql --defaults-file=/tmp/.dbsync_abc123.cnf -Nse 'SELECT VERSION()'",
		VersionCommand(testEndpoint()))
}
