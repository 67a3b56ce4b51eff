// Command midivcs edits MIDI projects from the command line and keeps their
// revision history.
package main

import (
	"fmt"
	"os"

	"github.com/Southclaws/fault/ftag"
	"github.com/spf13/cobra"
	"github.com/vsariola/midivcs/config"
	"github.com/vsariola/midivcs/version"
	"go.uber.org/zap"
)

const defaultWorkspace = "project.midivcs.yml"

type cli struct {
	file       string
	configPath string
	verbose    bool

	cfg config.Config
	log *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if ftag.Get(err) == ftag.NotFound {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "midivcs",
		Short: "Edit MIDI projects and keep their revision history",
		Long: `midivcs keeps a MIDI project and its revision history in one YAML
workspace file. Projects are created empty or imported from standard MIDI
files, edited with undo, committed, checked out and exported back
to MIDI.

Examples:
  midivcs import song.mid
  midivcs note add lead 4 60 --length 0.5
  midivcs commit -m "lead melody"
  midivcs export out.mid`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				c.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&c.file, "file", "f", defaultWorkspace, "Workspace file")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Config file (default: midivcs/config.yml in the user config directory)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log debug messages")

	root.AddCommand(
		c.newCmd(),
		c.importCmd(),
		c.exportCmd(),
		c.infoCmd(),
		c.setCmd(),
		c.trackCmd(),
		c.noteCmd(),
		c.undoCmd(),
		c.statusCmd(),
		c.commitCmd(),
		c.logCmd(),
		c.checkoutCmd(),
		c.resetCmd(),
		c.cherryPickCmd(),
		c.stashCmd(),
		c.amendCmd(),
		c.diffCmd(),
	)
	return root
}

func (c *cli) setup() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.verbose {
		cfg.Log.Level = "debug"
	}
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	c.cfg, c.log = cfg, log
	return nil
}

// edit opens the workspace, runs fn in a new undo transaction and saves the
// workspace if fn succeeds.
func (c *cli) edit(name string, fn func(w *workspace) error) error {
	w, err := openWorkspace(c.file, c.cfg, c.log)
	if err != nil {
		return err
	}
	w.project.BeginTransaction(name)
	if err := fn(w); err != nil {
		return err
	}
	w.project.Checkpoint()
	return w.save()
}

// view opens the workspace read-only.
func (c *cli) view(fn func(w *workspace) error) error {
	w, err := openWorkspace(c.file, c.cfg, c.log)
	if err != nil {
		return err
	}
	return fn(w)
}
