// Package sync drives a database sync end to end: credential
// resolution, mode classification, dump, transfer, import and cleanup,
// as one fail-fast pass with no retries.
package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"db-sync-tool/internal/command"
	"db-sync-tool/internal/config"
	"db-sync-tool/internal/confirmation"
	"db-sync-tool/internal/credentials"
	"db-sync-tool/internal/dump"
	apperrors "db-sync-tool/internal/errors"
	"db-sync-tool/internal/logging"
	"db-sync-tool/internal/mode"
	"db-sync-tool/internal/remote"
	"db-sync-tool/internal/tablefilter"
)

// State names one station of the sync pipeline.
type State string

const (
	StateInit                State = "init"
	StateCredentialsResolved State = "credentials_resolved"
	StateModeSelected        State = "mode_selected"
	StatePreScriptRun        State = "pre_script_run"
	StateDumped              State = "dumped"
	StateVerified            State = "verified"
	StateTransferred         State = "transferred"
	StatePreImportScriptRun  State = "pre_import_script_run"
	StateImported            State = "imported"
	StatePostScriptRun       State = "post_script_run"
	StateCleaned             State = "cleaned"
	StateDone                State = "done"
	StateErrorScriptRun      State = "error_script_run"
	StateAborted             State = "aborted"
)

// EndpointRunner is a closable command runner for one remote endpoint.
type EndpointRunner interface {
	remote.Runner
	Close() error
}

// Dialer opens the SSH connection for a remote endpoint.
type Dialer func(ctx context.Context, e config.EndpointConfig, opts remote.ConnectOptions) (EndpointRunner, error)

// TransferFunc moves one file between the local machine and a remote
// endpoint.
type TransferFunc func(ctx context.Context, local remote.Runner, client EndpointRunner, e config.EndpointConfig, opts remote.TransferOptions) error

// Options wires the orchestrator's collaborators. Zero fields fall
// back to the real implementations.
type Options struct {
	Logger         *logging.Logger
	Confirm        confirmation.Service
	Local          remote.Runner
	Dial           Dialer
	Transfer       TransferFunc
	KnownHostsPath string
	// Interactive permits terminal prompts (ssh passwords).
	Interactive bool
	// Now stamps dump file names; defaults to time.Now.
	Now func() time.Time
}

// side bundles everything the pipeline needs for one endpoint.
type side struct {
	role         string
	cfg          config.EndpointConfig
	creds        config.DatabaseCredentials
	runner       remote.Runner
	client       EndpointRunner
	cmd          command.Endpoint
	defaultsMade bool
}

func (s *side) isRemote() bool { return s.client != nil }

func (s *side) dumpPath(fileName string) string { return s.cfg.DumpDir + fileName }

// Orchestrator runs the pipeline for one immutable configuration.
type Orchestrator struct {
	cfg      *config.SyncConfig
	log      *logging.Logger
	confirm  confirmation.Service
	local    remote.Runner
	dial     Dialer
	transfer TransferFunc
	opts     Options

	state    State
	syncMode mode.Mode
	origin   *side
	target   *side
	fileName string
	// localProxyPath holds the dump during a proxy hop.
	localProxyPath string
}

// New builds an orchestrator. The configuration must already be
// validated and reversed; it is not mutated here.
func New(cfg *config.SyncConfig, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = logging.NewDefaultLogger()
	}
	if opts.Confirm == nil {
		opts.Confirm = confirmation.NewService()
	}
	if opts.Local == nil {
		opts.Local = remote.NewLocalRunner()
	}
	if opts.Dial == nil {
		opts.Dial = func(ctx context.Context, e config.EndpointConfig, connectOpts remote.ConnectOptions) (EndpointRunner, error) {
			client, err := remote.Connect(ctx, e, connectOpts)
			if err != nil {
				return nil, err
			}
			return client, nil
		}
	}
	if opts.Transfer == nil {
		opts.Transfer = func(ctx context.Context, local remote.Runner, client EndpointRunner, e config.EndpointConfig, transferOpts remote.TransferOptions) error {
			sshClient, ok := client.(*remote.Client)
			if !ok {
				return apperrors.Newf(apperrors.ErrorTypeTransfer,
					"no ssh connection available for %s", transferOpts.Direction)
			}
			return remote.Transfer(ctx, local, sshClient, e, transferOpts)
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		cfg:      cfg,
		log:      opts.Logger,
		confirm:  opts.Confirm,
		local:    opts.Local,
		dial:     opts.Dial,
		transfer: opts.Transfer,
		opts:     opts,
		state:    StateInit,
	}
}

// State returns the pipeline station last reached.
func (o *Orchestrator) State() State { return o.state }

// Mode returns the classified sync mode, valid after Run started.
func (o *Orchestrator) Mode() mode.Mode { return o.syncMode }

func (o *Orchestrator) enter(state State, fields map[string]interface{}) {
	o.state = state
	o.log.LogStep(string(state), fields)
}

// Run executes the whole pipeline. Any failure after mode selection
// triggers the error scripts and leaves the pipeline in Aborted.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	if err := o.connectSides(ctx); err != nil {
		return err
	}
	defer o.closeSides()
	defer o.removeDefaultsFiles(ctx)

	if err := o.resolveCredentials(ctx); err != nil {
		return err
	}
	o.enter(StateCredentialsResolved, nil)

	o.syncMode = mode.Classify(o.cfg)
	o.enter(StateModeSelected, map[string]interface{}{
		"mode": string(o.syncMode), "topology": o.syncMode.Description(),
	})

	defer func() {
		if err != nil {
			o.runErrorScripts(ctx, err)
			o.state = StateAborted
		}
	}()

	if err := o.guardProtectedTarget(); err != nil {
		return err
	}

	if err := o.runScripts(ctx, "before"); err != nil {
		return err
	}
	o.enter(StatePreScriptRun, nil)

	if err := o.setupDefaultsFiles(ctx); err != nil {
		return err
	}

	if !o.syncMode.IsImport() {
		ignored, live, dumpErr := o.createDump(ctx)
		if dumpErr != nil {
			return dumpErr
		}
		o.enter(StateDumped, map[string]interface{}{"file": o.fileName})

		if err := o.verifyDump(ctx, ignored, live); err != nil {
			return err
		}
		o.enter(StateVerified, nil)
	}

	if o.syncMode.NeedsTransfer() && !o.cfg.Origin.SameHost(o.cfg.Target) {
		if err := o.transferDump(ctx); err != nil {
			return err
		}
		o.enter(StateTransferred, nil)
	}

	if !o.syncMode.IsDump() {
		if err := o.runEndpointScripts(ctx, o.target, "before"); err != nil {
			return err
		}
		o.enter(StatePreImportScriptRun, nil)

		if err := o.importDump(ctx); err != nil {
			return err
		}
		o.enter(StateImported, nil)
	}

	if err := o.runScripts(ctx, "after"); err != nil {
		return err
	}
	o.enter(StatePostScriptRun, nil)

	if err := o.cleanup(ctx); err != nil {
		return err
	}
	o.enter(StateCleaned, nil)

	o.enter(StateDone, nil)
	return nil
}

// exec runs a command on one side. Mutating commands become no-ops in
// dry-run; read-only commands always run so the pipeline can still be
// exercised end to end.
func (o *Orchestrator) exec(ctx context.Context, s *side, cmd string, mutating bool) (string, error) {
	if cmd == "" {
		return "", nil
	}
	skip := o.cfg.DryRun && mutating
	o.log.LogCommand(s.role, cmd, skip)
	if skip {
		return "", nil
	}
	return s.runner.Run(ctx, cmd)
}

// connectSides opens SSH connections for the remote endpoints and
// assigns the local runner to the rest.
func (o *Orchestrator) connectSides(ctx context.Context) error {
	build := func(role string, cfg config.EndpointConfig) (*side, error) {
		s := &side{role: role, cfg: cfg}
		if cfg.IsRemote() {
			client, err := o.dial(ctx, cfg, remote.ConnectOptions{
				KnownHostsPath: o.opts.KnownHostsPath,
				Interactive:    o.opts.Interactive && !o.cfg.Yes,
			})
			if err != nil {
				return nil, err
			}
			s.client = client
			s.runner = client
		} else {
			s.runner = o.local
		}
		return s, nil
	}

	origin, err := build("origin", o.cfg.Origin)
	if err != nil {
		return err
	}
	o.origin = origin

	target, err := build("target", o.cfg.Target)
	if err != nil {
		origin.closeClient()
		return err
	}
	o.target = target
	return nil
}

func (s *side) closeClient() {
	if s != nil && s.client != nil {
		s.client.Close()
	}
}

func (o *Orchestrator) closeSides() {
	o.target.closeClient()
	o.origin.closeClient()
}

// resolveCredentials produces complete database credentials for both
// sides, extracting from framework files where a path is configured.
func (o *Orchestrator) resolveCredentials(ctx context.Context) error {
	for _, s := range []*side{o.origin, o.target} {
		if s.cfg.IsEmpty() {
			// dump-only runs have no target, import-only runs may
			// leave the origin out
			continue
		}
		creds, err := credentials.Resolve(ctx, s.runner, s.cfg, o.cfg.Type)
		if err != nil {
			return err
		}
		s.creds = creds
		s.cmd = command.Endpoint{Credentials: creds, Console: s.cfg.Console}
		o.log.WithField(s.role, creds.Name).Debug("database credentials resolved")
	}
	return nil
}

// guardProtectedTarget enforces the protection flag before any side
// effect. --yes counts as the explicit non-interactive override;
// otherwise the user must confirm on a terminal. The default answer
// is abort.
func (o *Orchestrator) guardProtectedTarget() error {
	if o.syncMode.IsDump() || !o.cfg.Target.Protect {
		return nil
	}
	label := o.cfg.Target.Label("target")
	ok, err := o.confirm.Confirm(
		fmt.Sprintf("The target %s is protected against imports. Continue anyway?", label),
		o.cfg.Yes)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Newf(apperrors.ErrorTypeConfiguration,
			"target %s is protected against the import of a database dump", label)
	}
	return nil
}

// setupDefaultsFiles creates the per-side mysql credential files.
// They also exist in dry-run: creating and deleting a 0600 temp file
// is setup, not a synchronized side effect.
func (o *Orchestrator) setupDefaultsFiles(ctx context.Context) error {
	for _, s := range []*side{o.origin, o.target} {
		if s.creds.Name == "" {
			continue
		}
		path := command.NewDefaultsFilePath()
		content := command.DefaultsFileContent(s.creds)

		if s.isRemote() {
			out, err := s.runner.Run(ctx, command.RemoteDefaultsFileCommand(path, content))
			if err != nil {
				return apperrors.New(apperrors.ErrorTypeConnection,
					fmt.Sprintf("cannot create credentials file on %s", s.role), err)
			}
			if !strings.Contains(out, "OK") {
				return apperrors.Newf(apperrors.ErrorTypeConnection,
					"cannot create credentials file on %s", s.role)
			}
		} else {
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				return apperrors.New(apperrors.ErrorTypeConfiguration,
					"cannot create credentials file", err)
			}
		}
		s.cmd.DefaultsFile = path
		s.defaultsMade = true
	}
	return nil
}

// removeDefaultsFiles deletes the credential files on both sides. It
// runs from a defer and must succeed quietly even mid-error.
func (o *Orchestrator) removeDefaultsFiles(ctx context.Context) {
	for _, s := range []*side{o.origin, o.target} {
		if s == nil || !s.defaultsMade {
			continue
		}
		if s.isRemote() {
			if _, err := s.runner.Run(ctx, command.RemoveFileCommand(s.cmd.DefaultsFile)); err != nil {
				o.log.Warnf("cannot remove credentials file on %s: %v", s.role, err)
			}
		} else if err := os.Remove(s.cmd.DefaultsFile); err != nil && !os.IsNotExist(err) {
			o.log.Warnf("cannot remove credentials file: %v", err)
		}
		s.defaultsMade = false
	}
}

// probeServerVersion logs the engine flavor and decides whether
// mysqldump may use --no-tablespaces.
func (o *Orchestrator) probeServerVersion(ctx context.Context, s *side) (noTablespaces bool) {
	out, err := o.exec(ctx, s, command.VersionCommand(s.cmd), false)
	if err != nil || out == "" {
		o.log.Debugf("cannot determine database version on %s", s.role)
		return true
	}
	system, version := dump.ParseServerVersion(out)
	o.log.Infof("%s database: %s v%s", s.role, system, version)
	return dump.SupportsNoTablespaces(system, version)
}

// liveTables fetches the table list of a side's database.
func (o *Orchestrator) liveTables(ctx context.Context, s *side) ([]string, error) {
	cmd, err := command.TableListCommand(s.cmd)
	if err != nil {
		return nil, err
	}
	out, err := o.exec(ctx, s, cmd, false)
	if err != nil {
		return nil, apperrors.ClassifyDatabase(
			fmt.Sprintf("cannot list tables on %s", s.role), err)
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// createDump runs mysqldump on the origin, streamed through gzip into
// the origin's dump directory. It returns the expanded ignore list and
// the live table list for the later verification step.
func (o *Orchestrator) createDump(ctx context.Context) (ignored, live []string, err error) {
	o.fileName = dump.FileName(o.origin.creds.Name, o.cfg.DumpName, o.opts.Now())

	live, err = o.liveTables(ctx, o.origin)
	if err != nil {
		return nil, nil, err
	}
	ignored = tablefilter.Sorted(tablefilter.Expand(o.cfg.IgnoreTables, live))

	noTablespaces := o.probeServerVersion(ctx, o.origin)

	if _, err := o.exec(ctx, o.origin, command.MkdirCommand(o.origin.cfg.DumpDir), true); err != nil {
		return nil, nil, apperrors.New(apperrors.ErrorTypeConfiguration,
			fmt.Sprintf("cannot create dump directory %s", o.origin.cfg.DumpDir), err)
	}

	dumpPath := o.origin.dumpPath(o.fileName)
	o.log.Infof("creating database dump %s", dumpPath)

	cmd, err := command.DumpCommand(o.origin.cmd, command.DumpOptions{
		DumpPath:          dumpPath,
		Tables:            o.cfg.Tables,
		IgnoreTables:      ignored,
		Where:             o.cfg.Where,
		AdditionalOptions: o.cfg.AdditionalMysqldumpOptions,
		NoTablespaces:     noTablespaces,
	})
	if err != nil {
		return nil, nil, err
	}
	if _, err := o.exec(ctx, o.origin, cmd, true); err != nil {
		return nil, nil, apperrors.ClassifyDatabase("database dump failed", err)
	}
	return ignored, live, nil
}

// verifyDump checks the completion trailer and the exported table
// count. Disabled via check_dump; skipped in dry-run because no file
// was produced.
func (o *Orchestrator) verifyDump(ctx context.Context, ignored, live []string) error {
	if !o.cfg.CheckDump || o.cfg.DryRun {
		return nil
	}
	// a table subset or row filter legitimately changes the count
	partial := len(o.cfg.Tables) > 0 || o.cfg.Where != ""

	dumpPath := o.origin.dumpPath(o.fileName)
	if !o.origin.isRemote() {
		tables, err := dump.VerifyLocalFile(dumpPath)
		if err != nil {
			return err
		}
		o.log.Infof("%d table(s) exported", tables)
		if partial {
			return nil
		}
		return dump.CheckTableCount(tables, live, ignored)
	}

	line, err := o.exec(ctx, o.origin, command.DumpTailCommand(dumpPath), false)
	if err != nil {
		return apperrors.New(apperrors.ErrorTypeDatabase, "cannot verify dump", err)
	}
	if err := dump.VerifyTrailerLine(line); err != nil {
		return err
	}
	countOut, err := o.exec(ctx, o.origin, command.CreateTableCountCommand(dumpPath), false)
	if err != nil {
		return apperrors.New(apperrors.ErrorTypeDatabase, "cannot count dump tables", err)
	}
	count, err := strconv.Atoi(strings.TrimSpace(countOut))
	if err != nil {
		return apperrors.Newf(apperrors.ErrorTypeDatabase,
			"unexpected table count output %q", countOut)
	}
	o.log.Infof("%d table(s) exported", count)
	if partial {
		return nil
	}
	return dump.CheckTableCount(count, live, ignored)
}

// transferDump moves the dump between hosts according to the mode.
func (o *Orchestrator) transferDump(ctx context.Context) error {
	if o.cfg.DryRun {
		o.log.Info("dry-run: transfer skipped")
		return nil
	}

	switch o.syncMode {
	case mode.Receiver:
		return o.transfer(ctx, o.local, o.origin.client, o.origin.cfg, remote.TransferOptions{
			Direction:    remote.Download,
			RemotePath:   o.origin.dumpPath(o.fileName),
			LocalPath:    o.target.dumpPath(o.fileName),
			UseRsync:     o.cfg.UseRsync,
			RsyncOptions: o.cfg.RsyncOptions,
		})
	case mode.Sender:
		return o.transfer(ctx, o.local, o.target.client, o.target.cfg, remote.TransferOptions{
			Direction:    remote.Upload,
			RemotePath:   o.target.dumpPath(o.fileName),
			LocalPath:    o.origin.dumpPath(o.fileName),
			UseRsync:     o.cfg.UseRsync,
			RsyncOptions: o.cfg.RsyncOptions,
		})
	case mode.Proxy:
		o.localProxyPath = filepath.Join(os.TempDir(), "db_sync_tool", o.fileName)
		if err := os.MkdirAll(filepath.Dir(o.localProxyPath), 0o700); err != nil {
			return apperrors.New(apperrors.ErrorTypeTransfer, "cannot create local staging directory", err)
		}
		if err := o.transfer(ctx, o.local, o.origin.client, o.origin.cfg, remote.TransferOptions{
			Direction:    remote.Download,
			RemotePath:   o.origin.dumpPath(o.fileName),
			LocalPath:    o.localProxyPath,
			UseRsync:     o.cfg.UseRsync,
			RsyncOptions: o.cfg.RsyncOptions,
		}); err != nil {
			return err
		}
		return o.transfer(ctx, o.local, o.target.client, o.target.cfg, remote.TransferOptions{
			Direction:    remote.Upload,
			RemotePath:   o.target.dumpPath(o.fileName),
			LocalPath:    o.localProxyPath,
			UseRsync:     o.cfg.UseRsync,
			RsyncOptions: o.cfg.RsyncOptions,
		})
	default:
		return nil
	}
}

// importPath picks the file the import step reads from.
func (o *Orchestrator) importPath() string {
	if o.syncMode.IsImport() {
		return o.cfg.ImportFile
	}
	if o.cfg.Origin.SameHost(o.cfg.Target) {
		return o.origin.dumpPath(o.fileName)
	}
	return o.target.dumpPath(o.fileName)
}

// importDump clears/truncates as requested and feeds the dump into the
// target database, then applies after_dump and post_sql extras.
func (o *Orchestrator) importDump(ctx context.Context) error {
	if o.cfg.ClearDatabase {
		o.log.Info("clearing target database before import")
		tables, err := o.liveTables(ctx, o.target)
		if err != nil {
			return err
		}
		cmd, err := command.ClearDatabaseCommand(o.target.cmd, tables)
		if err != nil {
			return err
		}
		if _, err := o.exec(ctx, o.target, cmd, true); err != nil {
			return apperrors.ClassifyDatabase("clearing database failed", err)
		}
	}

	if len(o.cfg.TruncateTables) > 0 {
		tables, err := o.liveTables(ctx, o.target)
		if err != nil {
			return err
		}
		expanded := tablefilter.Expand(o.cfg.TruncateTables, tables)
		if len(expanded) > 0 {
			o.log.Infof("truncating %d table(s) before import", len(expanded))
			cmd, err := command.TruncateCommand(o.target.cmd, expanded)
			if err != nil {
				return err
			}
			if _, err := o.exec(ctx, o.target, cmd, true); err != nil {
				return apperrors.ClassifyDatabase("truncating tables failed", err)
			}
		}
	}

	if o.cfg.KeepDump {
		o.log.Info("keeping dump file, skipping import")
		return nil
	}

	importPath := o.importPath()

	// nothing will be written in dry-run, so an unattended run must not
	// block on the prompt
	if !o.cfg.DryRun {
		ok, err := o.confirm.Confirm(
			fmt.Sprintf("Import the dump file into the %s database?", o.target.cfg.Label("target")),
			o.cfg.Yes)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.Newf(apperrors.ErrorTypeInterruption, "import declined")
		}
	}

	o.probeServerVersion(ctx, o.target)
	if err := o.verifyImportFile(ctx, importPath); err != nil {
		return err
	}

	o.log.Infof("importing database dump %s", importPath)
	cmd, err := command.ImportCommand(o.target.cmd, importPath)
	if err != nil {
		return err
	}
	if _, err := o.exec(ctx, o.target, cmd, true); err != nil {
		return apperrors.ClassifyDatabase("database import failed", err)
	}

	if after := o.target.cfg.AfterDump; after != "" {
		o.log.Infof("importing after_dump file %s", after)
		cmd, err := command.ImportCommand(o.target.cmd, after)
		if err != nil {
			return err
		}
		if _, err := o.exec(ctx, o.target, cmd, true); err != nil {
			return apperrors.ClassifyDatabase("after_dump import failed", err)
		}
	}

	for _, sql := range o.target.cfg.PostSQL {
		cmd, err := command.SQLCommand(o.target.cmd, sql)
		if err != nil {
			return err
		}
		if _, err := o.exec(ctx, o.target, cmd, true); err != nil {
			return apperrors.ClassifyDatabase("post_sql command failed", err)
		}
	}
	return nil
}

// verifyImportFile re-checks the dump trailer on the target side right
// before it is imported.
func (o *Orchestrator) verifyImportFile(ctx context.Context, path string) error {
	if !o.cfg.CheckDump || o.cfg.DryRun {
		return nil
	}
	if !o.target.isRemote() {
		_, err := dump.VerifyLocalFile(path)
		return err
	}
	line, err := o.exec(ctx, o.target, command.DumpTailCommand(path), false)
	if err != nil {
		return apperrors.New(apperrors.ErrorTypeDatabase, "cannot verify dump before import", err)
	}
	return dump.VerifyTrailerLine(line)
}

// cleanup removes transient dump files. Dump-only runs keep their
// artifact and apply the keep_dumps retention instead.
func (o *Orchestrator) cleanup(ctx context.Context) error {
	if o.syncMode.IsImport() || o.cfg.DryRun {
		return nil
	}

	if o.syncMode.IsDump() {
		o.log.Infof("database dump saved to %s", o.origin.dumpPath(o.fileName))
		if o.origin.cfg.KeepDumps > 0 {
			if err := o.applyRetention(ctx, o.origin); err != nil {
				o.log.Warnf("dump retention failed: %v", err)
			}
		}
		return nil
	}

	if !o.cfg.KeepDump {
		if _, err := o.exec(ctx, o.origin, command.RemoveFileCommand(o.origin.dumpPath(o.fileName)), true); err != nil {
			o.log.Warnf("cannot remove origin dump: %v", err)
		}
		if !o.cfg.Origin.SameHost(o.cfg.Target) {
			if _, err := o.exec(ctx, o.target, command.RemoveFileCommand(o.target.dumpPath(o.fileName)), true); err != nil {
				o.log.Warnf("cannot remove target dump: %v", err)
			}
		}
	} else {
		o.log.Infof("database dump saved to %s", o.importPath())
	}

	if o.localProxyPath != "" {
		if err := os.Remove(o.localProxyPath); err != nil && !os.IsNotExist(err) {
			o.log.Warnf("cannot remove proxy dump copy: %v", err)
		}
	}
	return nil
}

// runScripts runs the global lifecycle hooks plus both endpoints'
// hooks of the given kind.
func (o *Orchestrator) runScripts(ctx context.Context, kind string) error {
	for _, script := range scriptsOf(o.cfg.Script, kind) {
		o.log.Infof("running %s script", kind)
		if _, err := o.exec(ctx, &side{role: "local", runner: o.local}, script, true); err != nil {
			return apperrors.New(apperrors.ErrorTypeConfiguration,
				fmt.Sprintf("%s script failed", kind), err)
		}
	}
	if err := o.runEndpointScripts(ctx, o.origin, kind); err != nil {
		return err
	}
	if kind != "before" {
		// the target's before script runs later, right before import
		return o.runEndpointScripts(ctx, o.target, kind)
	}
	return nil
}

func (o *Orchestrator) runEndpointScripts(ctx context.Context, s *side, kind string) error {
	for _, script := range scriptsOf(s.cfg.Script, kind) {
		o.log.Infof("running %s script on %s", kind, s.role)
		if _, err := o.exec(ctx, s, script, true); err != nil {
			return apperrors.New(apperrors.ErrorTypeConfiguration,
				fmt.Sprintf("%s script failed on %s", kind, s.role), err)
		}
	}
	return nil
}

// runErrorScripts fires the error hooks with the failure available in
// the environment. Hook failures are logged, never recursed into.
func (o *Orchestrator) runErrorScripts(ctx context.Context, cause error) {
	o.enter(StateErrorScriptRun, nil)
	message := strings.ReplaceAll(cause.Error(), "'", "")

	run := func(s *side, scripts []string) {
		for _, script := range scripts {
			wrapped := "DB_SYNC_ERROR='" + message + "' " + script
			if _, err := o.exec(ctx, s, wrapped, true); err != nil {
				o.log.Warnf("error script failed on %s: %v", s.role, err)
			}
		}
	}

	run(&side{role: "local", runner: o.local}, scriptsOf(o.cfg.Script, "error"))
	if o.origin != nil {
		run(o.origin, scriptsOf(o.origin.cfg.Script, "error"))
	}
	if o.target != nil {
		run(o.target, scriptsOf(o.target.cfg.Script, "error"))
	}
}

func scriptsOf(s config.ScriptConfig, kind string) []string {
	switch kind {
	case "before":
		return s.Before
	case "after":
		return s.After
	case "error":
		return s.Error
	default:
		return nil
	}
}
