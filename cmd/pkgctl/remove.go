package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl"
	"github.com/pkgctl/pkgctl/internal/admindir"
)

const removeShortHelp = `Remove or purge installed packages`
const removeLongHelp = `
Remove each named package: run its prerm/postrm remove scripts and unlink
the files it owns, leaving declared conffiles in place. With -purge, also
delete those conffiles and forget the package entirely.
`

type removeCommand struct {
	purge bool
}

func (cmd *removeCommand) Name() string      { return "remove" }
func (cmd *removeCommand) Args() string      { return "<package>..." }
func (cmd *removeCommand) ShortHelp() string { return removeShortHelp }
func (cmd *removeCommand) LongHelp() string  { return removeLongHelp }
func (cmd *removeCommand) Hidden() bool      { return false }

func (cmd *removeCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.purge, "purge", false, "also delete conffiles and forget the package")
}

func (cmd *removeCommand) Run(env *Env, args []string) error {
	if len(args) == 0 {
		return errors.New("remove: at least one package name is required")
	}

	sess, err := pkgctl.Open(env.Dir)
	if err != nil {
		return errors.Wrap(err, "opening admin directory")
	}
	defer sess.Close()

	if err := applyFlags(sess, env); err != nil {
		return err
	}

	ctx, cancel := admindir.SignalContext(context.Background())
	defer cancel()

	if err := sess.Recover(ctx); err != nil {
		return errors.Wrap(err, "recovering prior interrupted run")
	}

	for _, name := range args {
		p, ok := findByName(sess, name)
		if !ok {
			return errors.Errorf("remove: %s is not installed", name)
		}
		if err := sess.Archive.Remove(ctx, p, cmd.purge); err != nil {
			return errors.Wrapf(err, "removing %s", name)
		}
		env.Out.Printf("removed %s\n", name)
	}

	if env.DryRun {
		return nil
	}
	if err := sess.Commit(); err != nil {
		return errors.Wrap(err, "committing package database")
	}
	sess.Feedback.WriteTo(env.Out)
	if sess.Feedback.Failed() {
		return errors.New("one or more operations failed")
	}
	return nil
}
