// Package mode classifies a sync run into one of nine topologies based
// on the shape of the origin and target endpoints. Classification is a
// pure function of the configuration and happens exactly once per run,
// after a possible --reverse swap.
package mode

import (
	"db-sync-tool/internal/config"
)

// Mode is one of the nine sync topologies.
type Mode string

const (
	Receiver     Mode = "RECEIVER"
	Sender       Mode = "SENDER"
	Proxy        Mode = "PROXY"
	DumpLocal    Mode = "DUMP_LOCAL"
	DumpRemote   Mode = "DUMP_REMOTE"
	ImportLocal  Mode = "IMPORT_LOCAL"
	ImportRemote Mode = "IMPORT_REMOTE"
	SyncLocal    Mode = "SYNC_LOCAL"
	SyncRemote   Mode = "SYNC_REMOTE"
)

// Description returns the topology arrow shown next to the mode name.
func (m Mode) Description() string {
	switch m {
	case Receiver:
		return "remote to local"
	case Sender:
		return "local to remote"
	case Proxy:
		return "remote to local to remote"
	case DumpLocal:
		return "local, export only"
	case DumpRemote:
		return "remote, export only"
	case ImportLocal:
		return "local, import only"
	case ImportRemote:
		return "remote, import only"
	case SyncLocal:
		return "local to local"
	case SyncRemote:
		return "remote to remote"
	default:
		return ""
	}
}

// OriginRemote reports whether the mode executes origin-side commands
// over SSH.
func (m Mode) OriginRemote() bool {
	switch m {
	case Receiver, Proxy, DumpRemote, ImportRemote, SyncRemote:
		return true
	}
	return false
}

// TargetRemote reports whether the mode executes target-side commands
// over SSH.
func (m Mode) TargetRemote() bool {
	switch m {
	case Sender, Proxy, DumpRemote, ImportRemote, SyncRemote:
		return true
	}
	return false
}

// IsImport reports whether the run imports a given file with no dump
// step.
func (m Mode) IsImport() bool {
	return m == ImportLocal || m == ImportRemote
}

// IsDump reports whether the run exports only, with no import step.
func (m Mode) IsDump() bool {
	return m == DumpLocal || m == DumpRemote
}

// NeedsTransfer reports whether the dump artifact moves between hosts.
func (m Mode) NeedsTransfer() bool {
	switch m {
	case Receiver, Sender, Proxy:
		return true
	}
	return false
}

// Classify selects the single applicable mode. Candidate predicates
// are evaluated in a fixed order with the last match winning, so an
// explicit import file always overrides dump-shaped configurations and
// a same-host pair with differing paths or credentials upgrades from
// dump-only to a full sync.
func Classify(cfg *config.SyncConfig) Mode {
	originRemote := cfg.Origin.IsRemote()
	targetRemote := cfg.Target.IsRemote()
	fullRemote := originRemote && targetRemote
	fullLocal := !originRemote && !targetRemote
	sameHost := cfg.Origin.SameHost(cfg.Target)
	differing := differingSync(cfg.Origin, cfg.Target)
	hasImport := cfg.ImportFile != ""

	syncRemote := fullRemote && sameHost && differing
	syncLocal := fullLocal && sameHost && differing
	proxy := fullRemote

	candidates := []struct {
		mode    Mode
		applies bool
	}{
		{Receiver, originRemote && !proxy && !syncRemote},
		{Sender, targetRemote && !proxy && !syncRemote},
		{Proxy, proxy},
		{DumpLocal, fullLocal && sameHost && !syncLocal},
		{DumpRemote, fullRemote && sameHost && !syncRemote},
		{ImportLocal, hasImport && !targetRemote},
		{ImportRemote, hasImport && targetRemote},
		{SyncLocal, syncLocal},
		{SyncRemote, syncRemote},
	}

	selected := Receiver
	for _, c := range candidates {
		if c.applies {
			selected = c.mode
		}
	}
	return selected
}

// differingSync reports whether the two endpoints address different
// data on the same machine: differing framework paths or differing
// database credentials.
func differingSync(origin, target config.EndpointConfig) bool {
	if origin.Path != "" && target.Path != "" && origin.Path != target.Path {
		return true
	}
	if hasDB(origin) && hasDB(target) && origin.DB != target.DB {
		return true
	}
	return false
}

// hasDB reports whether a db block was actually configured; defaulted
// host and port values alone do not count.
func hasDB(e config.EndpointConfig) bool {
	return e.DB.Name != "" || e.DB.User != ""
}
