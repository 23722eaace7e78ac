package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl"
	"github.com/pkgctl/pkgctl/internal/admindir"
	"github.com/pkgctl/pkgctl/internal/pkgdb"
)

const configureShortHelp = `Configure unpacked packages`
const configureLongHelp = `
Run postinst configure for each named package still in the unpacked state,
or for every such package with -pending.
`

type configureCommand struct {
	pending bool
}

func (cmd *configureCommand) Name() string      { return "configure" }
func (cmd *configureCommand) Args() string      { return "<package>..." }
func (cmd *configureCommand) ShortHelp() string { return configureShortHelp }
func (cmd *configureCommand) LongHelp() string  { return configureLongHelp }
func (cmd *configureCommand) Hidden() bool      { return false }

func (cmd *configureCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.pending, "pending", false, "configure every unpacked package")
}

func (cmd *configureCommand) Run(env *Env, args []string) error {
	if !cmd.pending && len(args) == 0 {
		return errors.New("configure: at least one package name is required (or use -pending)")
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

	targets, err := cmd.resolveTargets(sess, args)
	if err != nil {
		return err
	}

	for _, p := range targets {
		if err := sess.Archive.Configure(ctx, p); err != nil {
			return errors.Wrapf(err, "configuring %s", p.Name)
		}
		env.Out.Printf("configured %s\n", p.Name)
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

func (cmd *configureCommand) resolveTargets(sess *pkgctl.Session, args []string) ([]*pkgdb.Package, error) {
	if cmd.pending {
		var out []*pkgdb.Package
		for _, p := range sess.PS.All() {
			if p.Status == pkgdb.StatusUnpacked {
				out = append(out, p)
			}
		}
		return out, nil
	}

	out := make([]*pkgdb.Package, 0, len(args))
	for _, name := range args {
		p, ok := findByName(sess, name)
		if !ok {
			return nil, errors.Errorf("configure: %s is not known to this admin directory", name)
		}
		out = append(out, p)
	}
	return out, nil
}
