package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl"
	"github.com/pkgctl/pkgctl/internal/admindir"
	"github.com/pkgctl/pkgctl/internal/trigger"
)

const triggersShortHelp = `Process every deferred trigger`
const triggersLongHelp = `
Process every package currently in triggers-pending status, without
touching anything that is merely unpacked (the S5 "process deferred
triggers only" operation, distinct from a full configure pass).
`

type triggersCommand struct{}

func (cmd *triggersCommand) Name() string      { return "triggers" }
func (cmd *triggersCommand) Args() string      { return "" }
func (cmd *triggersCommand) ShortHelp() string { return triggersShortHelp }
func (cmd *triggersCommand) LongHelp() string  { return triggersLongHelp }
func (cmd *triggersCommand) Hidden() bool      { return false }

func (cmd *triggersCommand) Register(fs *flag.FlagSet) {}

func (cmd *triggersCommand) Run(env *Env, args []string) error {
	sess, err := pkgctl.Open(env.Dir)
	if err != nil {
		return errors.Wrap(err, "opening admin directory")
	}
	defer sess.Close()

	ctx, cancel := admindir.SignalContext(context.Background())
	defer cancel()

	if err := sess.Recover(ctx); err != nil {
		return errors.Wrap(err, "recovering prior interrupted run")
	}

	pending := trigger.Pending(sess.PS)
	if len(pending) == 0 {
		env.Out.Println("no triggers pending")
		return nil
	}

	var failed bool
	for _, p := range pending {
		outcome, err := sess.Trigger.ProcessOne(ctx, sess.PS, p)
		switch outcome {
		case trigger.OutcomeProcessed:
			env.Out.Printf("processed triggers for %s\n", p.Name)
		case trigger.OutcomeDeferred:
			env.Out.Printf("deferred %s to next run (re-entry bound reached)\n", p.Name)
		case trigger.OutcomeFailed:
			failed = true
			env.Err.Printf("trigger processing failed for %s: %v\n", p.Name, err)
		}
	}

	if env.DryRun {
		return nil
	}
	if err := sess.Commit(); err != nil {
		return errors.Wrap(err, "committing package database")
	}
	if failed {
		return errors.New("one or more trigger runs failed")
	}
	return nil
}
