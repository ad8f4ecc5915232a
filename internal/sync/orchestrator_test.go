package sync

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-sync-tool/internal/config"
	apperrors "db-sync-tool/internal/errors"
	"db-sync-tool/internal/logging"
	"db-sync-tool/internal/mode"
	"db-sync-tool/internal/remote"
)

// spyRunner records every command and answers by substring match.
type spyRunner struct {
	commands  []string
	responses []cannedResponse
	failOn    string
	failMsg   string
}

type cannedResponse struct {
	contains string
	output   string
}

func (r *spyRunner) Run(_ context.Context, cmd string) (string, error) {
	r.commands = append(r.commands, cmd)
	if r.failOn != "" && strings.Contains(cmd, r.failOn) {
		if r.failMsg != "" {
			return "", fmt.Errorf("%s", r.failMsg)
		}
		return "", fmt.Errorf("command failed: simulated")
	}
	for _, c := range r.responses {
		if strings.Contains(cmd, c.contains) {
			return c.output, nil
		}
	}
	return "", nil
}

func (r *spyRunner) Close() error { return nil }

func (r *spyRunner) indexOf(substr string) int {
	for i, cmd := range r.commands {
		if strings.Contains(cmd, substr) {
			return i
		}
	}
	return -1
}

func (r *spyRunner) count(substr string) int {
	n := 0
	for _, cmd := range r.commands {
		if strings.Contains(cmd, substr) {
			n++
		}
	}
	return n
}

type fakeConfirm struct {
	answer bool
	asked  []string
}

func (f *fakeConfirm) Confirm(question string, autoYes bool) (bool, error) {
	f.asked = append(f.asked, question)
	if autoYes {
		return true, nil
	}
	return f.answer, nil
}

type transferCall struct {
	endpoint config.EndpointConfig
	opts     remote.TransferOptions
}

type fakeTransfer struct {
	calls []transferCall
	err   error
}

func (f *fakeTransfer) transfer(_ context.Context, _ remote.Runner, _ EndpointRunner, e config.EndpointConfig, opts remote.TransferOptions) error {
	f.calls = append(f.calls, transferCall{endpoint: e, opts: opts})
	return f.err
}

func remoteOrigin() config.EndpointConfig {
	return config.EndpointConfig{
		Name: "production",
		Host: "db.example.com",
		User: "deploy",
		DB: config.DatabaseCredentials{
			Name: "shop", Host: "127.0.0.1", User: "shop", Password: "secret", Port: 3306,
		},
	}
}

func localTarget() config.EndpointConfig {
	return config.EndpointConfig{
		Name: "local",
		DB: config.DatabaseCredentials{
			Name: "shop_dev", Host: "127.0.0.1", User: "root", Password: "root", Port: 3306,
		},
	}
}

func receiverConfig() *config.SyncConfig {
	cfg := config.NewSyncConfig()
	cfg.Origin = remoteOrigin()
	cfg.Target = localTarget()
	cfg.Yes = true
	cfg.CheckDump = false
	cfg.SetDefaults()
	return cfg
}

func mysqlResponses() []cannedResponse {
	return []cannedResponse{
		{contains: "SHOW TABLES", output: "orders\nusers"},
		{contains: "SELECT VERSION()", output: "8.0.36"},
		{contains: "base64 -d", output: "OK"},
	}
}

func newTestOrchestrator(t *testing.T, cfg *config.SyncConfig, origin, local *spyRunner) (*Orchestrator, *fakeTransfer, *fakeConfirm) {
	t.Helper()
	logger, err := logging.NewLogger(logging.Config{Level: logging.LogLevelQuiet})
	require.NoError(t, err)

	transfer := &fakeTransfer{}
	confirm := &fakeConfirm{answer: true}
	o := New(cfg, Options{
		Logger:  logger,
		Confirm: confirm,
		Local:   local,
		Dial: func(_ context.Context, e config.EndpointConfig, _ remote.ConnectOptions) (EndpointRunner, error) {
			require.Equal(t, "db.example.com", e.Host)
			return origin, nil
		},
		Transfer: transfer.transfer,
		Now:      func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) },
	})
	return o, transfer, confirm
}

func TestRunReceiverPipeline(t *testing.T) {
	origin := &spyRunner{responses: mysqlResponses()}
	local := &spyRunner{responses: mysqlResponses()}
	cfg := receiverConfig()

	o, transfer, _ := newTestOrchestrator(t, cfg, origin, local)
	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, mode.Receiver, o.Mode())
	assert.Equal(t, StateDone, o.State())

	// the dump runs on the origin, streamed through gzip
	dumpIdx := origin.indexOf("mysqldump")
	require.GreaterOrEqual(t, dumpIdx, 0)
	assert.Contains(t, origin.commands[dumpIdx], "| gzip >")
	assert.Contains(t, origin.commands[dumpIdx], "'shop'")
	assert.Greater(t, dumpIdx, origin.indexOf("SHOW TABLES"))

	// exactly one download of the dump artifact
	require.Len(t, transfer.calls, 1)
	call := transfer.calls[0]
	assert.Equal(t, remote.Download, call.opts.Direction)
	assert.Equal(t, "/tmp/_shop_2026-03-14_09-30.sql.gz", call.opts.RemotePath)
	assert.Equal(t, "/tmp/_shop_2026-03-14_09-30.sql.gz", call.opts.LocalPath)
	assert.Equal(t, "db.example.com", call.endpoint.Host)

	// the import reads the transferred file on the local side
	importIdx := local.indexOf("gunzip -c")
	require.GreaterOrEqual(t, importIdx, 0)
	assert.Contains(t, local.commands[importIdx], "_shop_2026-03-14_09-30.sql.gz")

	// both dump copies are removed afterwards
	assert.GreaterOrEqual(t, origin.indexOf("rm -f '/tmp/_shop_2026-03-14_09-30.sql.gz'"), 0)
	assert.GreaterOrEqual(t, local.indexOf("rm -f '/tmp/_shop_2026-03-14_09-30.sql.gz'"), 0)

	// no credentials ever appear on a command line
	for _, cmd := range append(origin.commands, local.commands...) {
		assert.NotContains(t, cmd, "secret")
		assert.NotContains(t, cmd, "-psecret")
	}
}

func TestRunProtectedTargetAborts(t *testing.T) {
	origin := &spyRunner{responses: mysqlResponses()}
	local := &spyRunner{responses: mysqlResponses()}
	cfg := receiverConfig()
	cfg.Yes = false
	cfg.Target.Protect = true

	o, transfer, confirm := newTestOrchestrator(t, cfg, origin, local)
	confirm.answer = false

	err := o.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeConfiguration, apperrors.TypeOf(err))
	assert.Equal(t, StateAborted, o.State())
	require.Len(t, confirm.asked, 1)
	assert.Contains(t, confirm.asked[0], "protected")

	// nothing was executed anywhere
	assert.Empty(t, origin.commands)
	assert.Empty(t, local.commands)
	assert.Empty(t, transfer.calls)
}

func TestRunProtectedTargetYesOverrides(t *testing.T) {
	origin := &spyRunner{responses: mysqlResponses()}
	local := &spyRunner{responses: mysqlResponses()}
	cfg := receiverConfig()
	cfg.Target.Protect = true

	o, _, confirm := newTestOrchestrator(t, cfg, origin, local)
	confirm.answer = false

	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, StateDone, o.State())
}

func TestRunDryRunSkipsMutatingCommands(t *testing.T) {
	origin := &spyRunner{responses: mysqlResponses()}
	local := &spyRunner{responses: mysqlResponses()}
	cfg := receiverConfig()
	cfg.DryRun = true

	o, transfer, _ := newTestOrchestrator(t, cfg, origin, local)
	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, StateDone, o.State())
	assert.Empty(t, transfer.calls)

	// read-only probes still ran
	assert.GreaterOrEqual(t, origin.indexOf("SHOW TABLES"), 0)
	assert.GreaterOrEqual(t, origin.indexOf("SELECT VERSION()"), 0)

	// nothing that writes
	for _, cmd := range append(origin.commands, local.commands...) {
		assert.NotContains(t, cmd, "mysqldump")
		assert.NotContains(t, cmd, "gunzip")
		assert.NotContains(t, cmd, "rm -f '/tmp/_shop")
	}
}

func TestRunDumpOnlyKeepsArtifactAndAppliesRetention(t *testing.T) {
	local := &spyRunner{responses: append(mysqlResponses(), cannedResponse{
		contains: "ls -1t",
		output:   "fresh.sql.gz\nrecent.sql.gz\nstale.sql\nancient.sql.gz",
	})}
	cfg := config.NewSyncConfig()
	cfg.Origin = localTarget()
	cfg.Origin.KeepDumps = 2
	cfg.Yes = true
	cfg.CheckDump = false
	cfg.SetDefaults()

	logger, err := logging.NewLogger(logging.Config{Level: logging.LogLevelQuiet})
	require.NoError(t, err)
	o := New(cfg, Options{
		Logger: logger,
		Local:  local,
		Now:    func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) },
	})

	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, mode.DumpLocal, o.Mode())
	assert.Equal(t, StateDone, o.State())

	// fresh dump survives, only the entries beyond keep_dumps go
	assert.Equal(t, -1, local.indexOf("rm -f '/tmp/fresh.sql.gz'"))
	assert.Equal(t, -1, local.indexOf("rm -f '/tmp/recent.sql.gz'"))
	assert.GreaterOrEqual(t, local.indexOf("rm -f '/tmp/stale.sql'"), 0)
	assert.GreaterOrEqual(t, local.indexOf("rm -f '/tmp/ancient.sql.gz'"), 0)
}

func TestRunImportLocal(t *testing.T) {
	local := &spyRunner{responses: mysqlResponses()}
	cfg := config.NewSyncConfig()
	cfg.Target = localTarget()
	cfg.ImportFile = "/backups/snapshot.sql"
	cfg.Yes = true
	cfg.CheckDump = false
	cfg.SetDefaults()

	logger, err := logging.NewLogger(logging.Config{Level: logging.LogLevelQuiet})
	require.NoError(t, err)
	o := New(cfg, Options{Logger: logger, Local: local})

	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, mode.ImportLocal, o.Mode())
	assert.Equal(t, StateDone, o.State())

	importIdx := local.indexOf("< '/backups/snapshot.sql'")
	require.GreaterOrEqual(t, importIdx, 0)

	// no dump, no table listing on the origin side
	assert.Equal(t, 0, local.count("mysqldump"))
}

func TestRunErrorScriptsFireOnFailure(t *testing.T) {
	origin := &spyRunner{responses: mysqlResponses(), failOn: "mysqldump"}
	local := &spyRunner{responses: mysqlResponses()}
	cfg := receiverConfig()
	cfg.Script.Error = []string{"notify-send 'sync failed'"}

	o, transfer, _ := newTestOrchestrator(t, cfg, origin, local)

	err := o.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeDatabase, apperrors.TypeOf(err))
	assert.Equal(t, StateAborted, o.State())
	assert.Empty(t, transfer.calls)

	errIdx := local.indexOf("notify-send")
	require.GreaterOrEqual(t, errIdx, 0)
	assert.Contains(t, local.commands[errIdx], "DB_SYNC_ERROR=")
}

func TestRunClearDatabaseAndTruncate(t *testing.T) {
	origin := &spyRunner{responses: mysqlResponses()}
	local := &spyRunner{responses: mysqlResponses()}
	cfg := receiverConfig()
	cfg.ClearDatabase = true
	cfg.TruncateTables = []string{"orders"}

	o, _, _ := newTestOrchestrator(t, cfg, origin, local)
	require.NoError(t, o.Run(context.Background()))

	dropIdx := local.indexOf("DROP TABLE")
	truncateIdx := local.indexOf("TRUNCATE TABLE")
	importIdx := local.indexOf("gunzip -c")
	require.GreaterOrEqual(t, dropIdx, 0)
	require.GreaterOrEqual(t, truncateIdx, 0)
	require.GreaterOrEqual(t, importIdx, 0)
	assert.Less(t, dropIdx, importIdx)
	assert.Less(t, truncateIdx, importIdx)
}

func TestRunLifecycleScriptsOrdering(t *testing.T) {
	origin := &spyRunner{responses: mysqlResponses()}
	local := &spyRunner{responses: mysqlResponses()}
	cfg := receiverConfig()
	cfg.Script.Before = []string{"touch /tmp/sync-start"}
	cfg.Script.After = []string{"touch /tmp/sync-end"}
	cfg.Target.Script.Before = []string{"php artisan down"}

	o, _, _ := newTestOrchestrator(t, cfg, origin, local)
	require.NoError(t, o.Run(context.Background()))

	beforeIdx := local.indexOf("sync-start")
	maintenanceIdx := local.indexOf("artisan down")
	importIdx := local.indexOf("gunzip -c")
	afterIdx := local.indexOf("sync-end")

	require.GreaterOrEqual(t, beforeIdx, 0)
	require.GreaterOrEqual(t, maintenanceIdx, 0)
	require.GreaterOrEqual(t, afterIdx, 0)

	// before script first, the target's own before script right ahead
	// of the import, after script once the import went through
	assert.Less(t, beforeIdx, maintenanceIdx)
	assert.Less(t, maintenanceIdx, importIdx)
	assert.Less(t, importIdx, afterIdx)
}

func TestRunImportDeclined(t *testing.T) {
	origin := &spyRunner{responses: mysqlResponses()}
	local := &spyRunner{responses: mysqlResponses()}
	cfg := receiverConfig()
	cfg.Yes = false

	o, _, confirm := newTestOrchestrator(t, cfg, origin, local)
	confirm.answer = false

	err := o.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeInterruption, apperrors.TypeOf(err))
	assert.Equal(t, 0, local.count("gunzip -c"))
}

func TestRunDryRunSkipsImportPrompt(t *testing.T) {
	origin := &spyRunner{responses: mysqlResponses()}
	local := &spyRunner{responses: mysqlResponses()}
	cfg := receiverConfig()
	cfg.DryRun = true
	cfg.Yes = false

	o, _, confirm := newTestOrchestrator(t, cfg, origin, local)
	confirm.answer = false

	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, StateDone, o.State())
	for _, question := range confirm.asked {
		assert.NotContains(t, question, "Import the dump file")
	}
}

func TestRunDumpFailureCarriesServerDiagnostic(t *testing.T) {
	origin := &spyRunner{
		responses: mysqlResponses(),
		failOn:    "mysqldump",
		failMsg:   "command failed on origin: ERROR 1044 (42000): Access denied for user 'app'@'%' to database 'shop'",
	}
	local := &spyRunner{responses: mysqlResponses()}

	o, _, _ := newTestOrchestrator(t, receiverConfig(), origin, local)

	err := o.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeDatabase, apperrors.TypeOf(err))

	var syncErr *apperrors.SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, uint16(1044), syncErr.Context["mysql_error_code"])
}
