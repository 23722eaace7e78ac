// Command pkgctl is a system package manager installation engine front end.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pkgctl/pkgctl/internal/admindir"
)

// command is the shape every subcommand implements, dispatched from a
// flag.FlagSet the same way the teacher's cmd/dep/main.go dispatches init,
// ensure, status, and so on.
type command interface {
	Name() string           // "install"
	Args() string           // "<archive>..."
	ShortHelp() string      // "Unpack and configure packages"
	LongHelp() string       // full usage text
	Register(*flag.FlagSet) // command-specific flags
	Hidden() bool
	Run(env *Env, args []string) error
}

// Env is the shared, post-flag-parsing context every subcommand's Run
// receives: where the admin directory and install root live, and loggers to
// report through - mirroring the teacher's *dep.Ctx threaded into every
// command.Run.
type Env struct {
	Dir     admindir.Dir
	DryRun  bool
	Force   string
	Out     *log.Logger
	Err     *log.Logger
}

func main() {
	c := &Config{
		Args:   os.Args,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Env:    os.Environ(),
	}
	os.Exit(c.Run())
}

// Config specifies a full configuration for one pkgctl execution.
type Config struct {
	Args           []string
	Env            []string
	Stdout, Stderr io.Writer
}

// Run executes a configuration and returns a process exit code (spec §6
// "Process exit codes").
func (c *Config) Run() (exitCode int) {
	commands := []command{
		&installCommand{},
		&removeCommand{},
		&configureCommand{},
		&triggersCommand{},
		&statusCommand{},
	}

	outLogger := log.New(c.Stdout, "", 0)
	errLogger := log.New(c.Stderr, "", 0)

	usage := func() {
		errLogger.Println("pkgctl drives package installation against an admin directory")
		errLogger.Println()
		errLogger.Println("Usage: pkgctl <command> [flags] [args]")
		errLogger.Println()
		errLogger.Println("Commands:")
		errLogger.Println()
		w := tabwriter.NewWriter(c.Stderr, 0, 4, 2, ' ', 0)
		for _, cmd := range commands {
			if !cmd.Hidden() {
				fmt.Fprintf(w, "\t%s\t%s\n", cmd.Name(), cmd.ShortHelp())
			}
		}
		w.Flush()
		errLogger.Println()
		errLogger.Println(`Use "pkgctl <command> -h" for more information about a command.`)
	}

	cmdName, printCommandHelp, exit := parseArgs(c.Args)
	if exit {
		usage()
		return 1
	}

	for _, cmd := range commands {
		if cmd.Name() != cmdName {
			continue
		}

		fs := flag.NewFlagSet(cmdName, flag.ContinueOnError)
		fs.SetOutput(c.Stderr)

		admin := fs.String("admindir", "/var/lib/pkgctl", "admin directory")
		root := fs.String("root", "/", "install root")
		dryRun := fs.Bool("dry-run", false, "plan only, do not write to disk")
		force := fs.String("force", "", "comma-separated force flags (spec §7)")

		cmd.Register(fs)
		resetUsage(errLogger, fs, cmdName, cmd.Args(), cmd.LongHelp())

		if printCommandHelp {
			fs.Usage()
			return 1
		}

		if err := fs.Parse(c.Args[2:]); err != nil {
			return 1
		}

		env := &Env{
			Dir:    admindir.Dir{Admin: *admin, Root: *root},
			DryRun: *dryRun,
			Force:  *force,
			Out:    outLogger,
			Err:    errLogger,
		}

		if err := cmd.Run(env, fs.Args()); err != nil {
			errLogger.Printf("%v\n", err)
			return 1
		}
		return 0
	}

	errLogger.Printf("pkgctl: %s: no such command\n", cmdName)
	usage()
	return 1
}

func resetUsage(logger *log.Logger, fs *flag.FlagSet, name, args, longHelp string) {
	var (
		hasFlags   bool
		flagBlock  bytes.Buffer
		flagWriter = tabwriter.NewWriter(&flagBlock, 0, 4, 2, ' ', 0)
	)
	fs.VisitAll(func(f *flag.Flag) {
		hasFlags = true
		defValue := f.DefValue
		if defValue == "" {
			defValue = "<none>"
		}
		fmt.Fprintf(flagWriter, "\t-%s\t%s (default: %s)\n", f.Name, f.Usage, defValue)
	})
	flagWriter.Flush()
	fs.Usage = func() {
		logger.Printf("Usage: pkgctl %s %s\n", name, args)
		logger.Println()
		logger.Println(strings.TrimSpace(longHelp))
		logger.Println()
		if hasFlags {
			logger.Println("Flags:")
			logger.Println()
			logger.Println(flagBlock.String())
		}
	}
}

// parseArgs determines the subcommand name and whether the user asked for help.
func parseArgs(args []string) (cmdName string, printCmdUsage bool, exit bool) {
	isHelpArg := func() bool {
		return strings.Contains(strings.ToLower(args[1]), "help") || strings.ToLower(args[1]) == "-h"
	}

	switch len(args) {
	case 0, 1:
		exit = true
	case 2:
		if isHelpArg() {
			exit = true
		}
		cmdName = args[1]
	default:
		if isHelpArg() {
			cmdName = args[2]
			printCmdUsage = true
		} else {
			cmdName = args[1]
		}
	}
	return cmdName, printCmdUsage, exit
}
