package pkgctl

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl/internal/admindir"
	"github.com/pkgctl/pkgctl/internal/archive"
	"github.com/pkgctl/pkgctl/internal/conffile"
	"github.com/pkgctl/pkgctl/internal/feedback"
	"github.com/pkgctl/pkgctl/internal/fsnode"
	"github.com/pkgctl/pkgctl/internal/pkgdb"
	"github.com/pkgctl/pkgctl/internal/trigger"
)

// Session is the one-per-run handle a front end opens against an admin
// directory: it holds the package set, node table, and trigger index loaded
// from disk, plus the collaborators (archive pipeline, trigger engine) that
// operate on them, mirroring the teacher's Ctx.LoadProject assembling a
// Project from a directory before cmd/dep's subcommands touch it.
type Session struct {
	Dir    admindir.Dir
	Config admindir.Config

	PS    *pkgdb.PackageSet
	Table *fsnode.Table

	store   *pkgdb.Store
	index   *trigger.Index
	lock    *admindir.SessionLock
	Trigger *trigger.Engine
	Archive *archive.Pipeline
	Feedback *feedback.Log
}

// Open loads every on-disk collaborator a session needs from dir: the
// package database (status/available/updates journal, merging any pending
// journal the way a crash-recovered run would), the filesystem node table
// (rebuilt from each package's info/<pkg>.list plus diversions and
// statoverride), and the trigger index (always rebuilt fresh, since it is
// process-local derived state per spec §4.9's rebuild-not-persist note).
//
// Open acquires the admin-directory lock and does not release it; callers
// must call Close when done.
func Open(dir admindir.Dir) (*Session, error) {
	lock := admindir.NewSessionLock(dir)
	if err := lock.Acquire(); err != nil {
		return nil, errors.Wrap(err, "acquiring admin directory lock")
	}

	cfg, err := admindir.LoadConfig(dir.Config())
	if err != nil {
		lock.Release()
		return nil, errors.Wrap(err, "loading configuration")
	}

	store := &pkgdb.Store{AdminDir: dir.Admin}
	ps, err := store.Load()
	if err != nil {
		lock.Release()
		return nil, errors.Wrap(err, "loading package database")
	}

	if err := os.MkdirAll(dir.InfoDir(), 0755); err != nil {
		lock.Release()
		return nil, errors.Wrap(err, "creating info directory")
	}
	if err := os.MkdirAll(dir.TriggersDir(), 0755); err != nil {
		lock.Release()
		return nil, errors.Wrap(err, "creating triggers directory")
	}

	table := fsnode.New()
	if err := fsnode.RebuildFromInfoDir(table, dir.InfoDir()); err != nil {
		lock.Release()
		return nil, errors.Wrap(err, "rebuilding filesystem node table")
	}
	divs, err := fsnode.LoadDiversions(dir.Diversions())
	if err != nil {
		lock.Release()
		return nil, errors.Wrap(err, "loading diversions")
	}
	overrides, err := fsnode.LoadStatOverrides(dir.StatOverride())
	if err != nil {
		lock.Release()
		return nil, errors.Wrap(err, "loading stat overrides")
	}
	table.Apply(divs, overrides)

	idx, err := trigger.OpenIndex(filepath.Join(dir.TriggersDir(), ".index.boltdb"))
	if err != nil {
		lock.Release()
		return nil, errors.Wrap(err, "opening trigger index")
	}
	if err := idx.Rebuild(ps); err != nil {
		idx.Close()
		lock.Release()
		return nil, errors.Wrap(err, "rebuilding trigger index")
	}

	fb := feedback.NewLog()
	pipeline := &archive.Pipeline{
		Dir:        dir,
		Table:      table,
		PS:         ps,
		Force:      cfg.Force(),
		ConfPolicy: conffileDefault(cfg),
		Feedback:   fb,
	}

	return &Session{
		Dir:      dir,
		Config:   cfg,
		PS:       ps,
		Table:    table,
		store:    store,
		index:    idx,
		lock:     lock,
		Trigger:  trigger.NewEngine(dir, idx, cfg.TriggerCycleBound),
		Archive:  pipeline,
		Feedback: fb,
	}, nil
}

// conffileDefault maps the session's configured conffile policy name onto
// internal/conffile's Policy enum, defaulting to PolicyDefault (confdef)
// the way dpkg itself behaves non-interactively.
func conffileDefault(cfg admindir.Config) conffile.Policy {
	switch cfg.ConffilePolicy {
	case "confold":
		return conffile.PolicyKeepOld
	case "confnew":
		return conffile.PolicyUseNew
	case "confask":
		return conffile.PolicyAsk
	default:
		return conffile.PolicyDefault
	}
}

// Recover runs the crash-recovery pass (spec §4.7) over every package Open
// loaded, before any new install/remove request is accepted.
func (s *Session) Recover(ctx context.Context) error {
	return s.Archive.Recover(ctx, s.PS)
}

// Merge flushes the updates journal into status the way a clean shutdown
// must (spec §4.3 "the engine must merge on clean shutdown and on startup").
func (s *Session) Merge() error {
	return s.store.MergeJournal(s.PS)
}

// Commit persists every package's current record: a journal entry per
// package (crash-safe, appended as the session mutates state) would
// ordinarily be written incrementally by each operation; Commit additionally
// merges the journal and rewrites available, leaving status fully
// up-to-date on disk before Close.
func (s *Session) Commit() error {
	for _, p := range s.PS.All() {
		if err := s.store.WriteJournalEntry(p); err != nil {
			return errors.Wrapf(err, "journaling %s", p.Name)
		}
	}
	if err := s.store.MergeJournal(s.PS); err != nil {
		return errors.Wrap(err, "merging journal")
	}
	return s.store.WriteAvailable(s.PS)
}

// Close releases the admin-directory lock and the trigger index's backing
// database. It does not implicitly Commit; callers decide whether a given
// run's mutations should be persisted.
func (s *Session) Close() error {
	idxErr := s.index.Close()
	lockErr := s.lock.Release()
	if idxErr != nil {
		return errors.Wrap(idxErr, "closing trigger index")
	}
	if lockErr != nil {
		return errors.Wrap(lockErr, "releasing admin directory lock")
	}
	return nil
}
