package sync

import (
	"context"
	"strings"

	"db-sync-tool/internal/command"
)

// applyRetention keeps the N most recent dump artifacts in a side's
// dump directory and removes the rest. N comes from the endpoint's
// keep_dumps setting; the fresh dump counts toward it.
func (o *Orchestrator) applyRetention(ctx context.Context, s *side) error {
	out, err := o.exec(ctx, s, command.ListDumpsCommand(s.cfg.DumpDir), false)
	if err != nil {
		return err
	}
	if out == "" {
		return nil
	}

	// ls -1t already sorts newest first
	var dumps []string
	for _, name := range strings.Split(out, "\n") {
		if name = strings.TrimSpace(name); name != "" {
			dumps = append(dumps, name)
		}
	}
	if len(dumps) <= s.cfg.KeepDumps {
		return nil
	}

	o.log.Infof("cleaning up dump directory %s, keeping %d dump(s)", s.cfg.DumpDir, s.cfg.KeepDumps)
	for _, name := range dumps[s.cfg.KeepDumps:] {
		if _, err := o.exec(ctx, s, command.RemoveFileCommand(s.cfg.DumpDir+name), true); err != nil {
			return err
		}
	}
	return nil
}
