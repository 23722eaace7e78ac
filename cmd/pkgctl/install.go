package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl"
	"github.com/pkgctl/pkgctl/internal/admindir"
)

const installShortHelp = `Unpack and configure one or more packages`
const installLongHelp = `
Unpack each named package directory (a decoded archive: control stanza plus
an extracted data tree) and, unless -unpack-only is given, configure it
immediately afterward.
`

type installCommand struct {
	unpackOnly bool
}

func (cmd *installCommand) Name() string      { return "install" }
func (cmd *installCommand) Args() string      { return "<package-dir>..." }
func (cmd *installCommand) ShortHelp() string { return installShortHelp }
func (cmd *installCommand) LongHelp() string  { return installLongHelp }
func (cmd *installCommand) Hidden() bool      { return false }

func (cmd *installCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.unpackOnly, "unpack-only", false, "unpack without running postinst configure")
}

func (cmd *installCommand) Run(env *Env, args []string) error {
	if len(args) == 0 {
		return errors.New("install: at least one package directory is required")
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

	for _, dir := range args {
		pkg, err := loadStagedPackage(dir)
		if err != nil {
			return errors.Wrapf(err, "loading %s", dir)
		}
		if err := sess.Archive.Install(ctx, pkg, !cmd.unpackOnly); err != nil {
			return errors.Wrapf(err, "installing %s", dir)
		}
		env.Out.Printf("installed %s %s\n", pkg.Control.Name, pkg.Control.Binary.Version.String())
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

// applyFlags layers the command-line -force and -dry-run flags on top of
// whatever internal/admindir.Config already set from config.toml (spec §6:
// a per-invocation --force-<name> takes precedence over the standing
// default).
func applyFlags(sess *pkgctl.Session, env *Env) error {
	sess.Archive.DryRun = env.DryRun
	if env.Force == "" {
		return nil
	}
	f, err := admindir.ParseForce(env.Force)
	if err != nil {
		return err
	}
	sess.Archive.Force |= f
	return nil
}
