package main

import (
	"flag"
	"sort"

	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl"
)

const statusShortHelp = `Report the status of packages known to the admin directory`
const statusLongHelp = `
With no arguments, print the status of every package this engine knows
about. With one or more names, report only those.
`

type statusCommand struct{}

func (cmd *statusCommand) Name() string      { return "status" }
func (cmd *statusCommand) Args() string      { return "[package...]" }
func (cmd *statusCommand) ShortHelp() string { return statusShortHelp }
func (cmd *statusCommand) LongHelp() string  { return statusLongHelp }
func (cmd *statusCommand) Hidden() bool      { return false }

func (cmd *statusCommand) Register(fs *flag.FlagSet) {}

func (cmd *statusCommand) Run(env *Env, args []string) error {
	sess, err := pkgctl.Open(env.Dir)
	if err != nil {
		return errors.Wrap(err, "opening admin directory")
	}
	defer sess.Close()

	all := sess.PS.All()
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].Arch < all[j].Arch
	})

	wanted := map[string]bool{}
	for _, a := range args {
		wanted[a] = true
	}

	for _, p := range all {
		if len(wanted) > 0 && !wanted[p.Name] {
			continue
		}
		env.Out.Printf("%-24s %-10s %-10s %-18s %s\n", p.Name, p.Arch, p.Want, p.Status, p.Installed.Version.String())
	}
	return nil
}
