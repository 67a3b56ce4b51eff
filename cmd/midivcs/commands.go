package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/vsariola/midivcs"
	"github.com/vsariola/midivcs/project"
	"github.com/vsariola/midivcs/vcs"
)

func (c *cli) newCmd() *cobra.Command {
	var title string
	var force bool
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create an empty workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(c.file); err == nil && !force {
				return fault.New(fmt.Sprintf("%s already exists, use --force to overwrite", c.file), ftag.With(ftag.AlreadyExists))
			}
			w := newWorkspace(c.file, c.cfg, c.log)
			if title != "" {
				w.project.Info().Set(project.TitleDelta, title, false)
			}
			if err := w.commitBaseline("new project"); err != nil {
				return err
			}
			if err := w.save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", c.file)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Project title")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing workspace")
	return cmd
}

func (c *cli) importCmd() *cobra.Command {
	var track string
	cmd := &cobra.Command{
		Use:   "import <file.mid>",
		Short: "Import a standard MIDI file",
		Long: `Without --track, import replaces the project of the workspace with the
content of the MIDI file, creating the workspace if needed; the revision
history is kept. With --track, only the notes or automation of that track
are replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fault.Wrap(err, fmsg.With("could not read MIDI file"))
			}
			w, err := openWorkspace(c.file, c.cfg, c.log)
			created := false
			if ftag.Get(err) == ftag.NotFound && track == "" {
				w, err, created = newWorkspace(c.file, c.cfg, c.log), nil, true
			}
			if err != nil {
				return err
			}
			if track == "" {
				err = w.project.ImportMidi(bytes.NewReader(data))
			} else {
				err = importTrack(w, track, bytes.NewReader(data))
			}
			if err != nil {
				return err
			}
			if created {
				if err := w.commitBaseline("import " + filepath.Base(args[0])); err != nil {
					return err
				}
			}
			if err := w.save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%s)\n", args[0], humanize.Bytes(uint64(len(data))))
			return nil
		},
	}
	cmd.Flags().StringVar(&track, "track", "", "Import into this track only (id or path)")
	return cmd
}

func importTrack(w *workspace, name string, r io.Reader) error {
	t, err := w.track(name)
	if err != nil {
		return err
	}
	switch t := t.(type) {
	case *project.PianoTrack:
		return t.ImportMidi(r)
	case *project.AutomationTrack:
		return t.ImportMidi(r)
	}
	return fault.New(fmt.Sprintf("cannot import into track %q", name), ftag.With(ftag.InvalidArgument))
}

func (c *cli) exportCmd() *cobra.Command {
	var resolution int
	cmd := &cobra.Command{
		Use:   "export <file.mid>",
		Short: "Export the project as a standard MIDI file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if resolution == 0 {
				resolution = c.cfg.Midi.Resolution
			}
			return c.view(func(w *workspace) error {
				var b bytes.Buffer
				if err := w.project.ExportMidi(&b, resolution); err != nil {
					return err
				}
				if err := os.WriteFile(args[0], b.Bytes(), 0o644); err != nil {
					return fault.Wrap(err, fmsg.With("could not write MIDI file"))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %s (%s)\n", args[0], humanize.Bytes(uint64(b.Len())))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&resolution, "resolution", 0, "Ticks per quarter note (default from config)")
	return cmd
}

func (c *cli) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the project info and tracks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.view(func(w *workspace) error {
				out := cmd.OutOrStdout()
				info := w.project.Info()
				fmt.Fprintf(out, "project  %s\n", w.project.ID())
				for _, f := range []project.InfoField{project.TitleDelta, project.AuthorDelta, project.DescriptionDelta, project.LicenseDelta, project.TemperamentDelta} {
					if v := info.Field(f); v != "" {
						fmt.Fprintf(out, "%-8s %s\n", f, v)
					}
				}
				first, last := w.project.BeatRange()
				fmt.Fprintf(out, "beats    %g..%g\n", first, last)
				stack := w.project.UndoStack()
				fmt.Fprintf(out, "undo     %s transactions, %s units\n", humanize.Comma(int64(stack.NumTransactions())), humanize.Comma(int64(stack.TotalUnits())))
				for _, t := range w.project.Tracks() {
					fmt.Fprintf(out, "\n%s %s\n", t.ID(), t.Path())
					switch t := t.(type) {
					case *project.PianoTrack:
						fmt.Fprintf(out, "  piano, channel %d, %s notes", t.Channel(), humanize.Comma(int64(t.Notes().Len())))
					case *project.AutomationTrack:
						fmt.Fprintf(out, "  automation cc%d, channel %d, %s events", t.Controller(), t.Channel(), humanize.Comma(int64(t.Events().Len())))
					}
					fmt.Fprintf(out, ", %d clips", t.Pattern().Len())
					if t.Mute() {
						fmt.Fprint(out, ", muted")
					}
					fmt.Fprintln(out)
				}
				return nil
			})
		},
	}
}

func (c *cli) setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <field> <value>",
		Short: "Set a project info field (title, author, description, license, temperament)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.edit("set "+args[0], func(w *workspace) error {
				if !w.project.Info().Set(project.InfoField(args[0]), args[1], true) {
					return fault.New(fmt.Sprintf("could not set %q", args[0]), ftag.With(ftag.InvalidArgument))
				}
				return nil
			})
		},
	}
}

func (c *cli) trackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Add, remove and edit tracks",
	}
	var controller int
	add := &cobra.Command{
		Use:   "add <path>",
		Short: "Add a piano track, or an automation track with --cc",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.edit("add track", func(w *workspace) error {
				var t project.Track
				var ok bool
				if controller >= 0 {
					t, ok = w.project.AddAutomationTrack(args[0], controller, true)
				} else {
					t, ok = w.project.AddPianoTrack(args[0], true)
				}
				if !ok {
					return fault.New("could not add track", ftag.With(ftag.InvalidArgument))
				}
				fmt.Fprintln(cmd.OutOrStdout(), t.ID())
				return nil
			})
		},
	}
	add.Flags().IntVar(&controller, "cc", -1, "Controller number of an automation track")
	rm := &cobra.Command{
		Use:   "rm <track>",
		Short: "Remove a track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.edit("remove track", func(w *workspace) error {
				t, err := w.track(args[0])
				if err != nil {
					return err
				}
				w.project.RemoveTrack(t.ID(), true)
				return nil
			})
		},
	}
	set := &cobra.Command{
		Use:   "set <track> <property> <value>",
		Short: "Set a track property (path, colour, instrument, channel, mute)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.edit("set track "+args[1], func(w *workspace) error {
				t, err := w.track(args[0])
				if err != nil {
					return err
				}
				return setTrackProperty(t, args[1], args[2])
			})
		},
	}
	cmd.AddCommand(add, rm, set)
	return cmd
}

func setTrackProperty(t project.Track, property, value string) error {
	invalid := func(err error) error {
		return fault.Wrap(err, fmsg.With(fmt.Sprintf("invalid %s %q", property, value)), ftag.With(ftag.InvalidArgument))
	}
	switch property {
	case "path":
		t.SetPath(value, true)
	case "instrument":
		t.SetInstrument(value, true)
	case "colour", "color":
		col, err := midivcs.ParseColour(value)
		if err != nil {
			return invalid(err)
		}
		t.SetColour(col, true)
	case "channel":
		ch, err := strconv.Atoi(value)
		if err != nil {
			return invalid(err)
		}
		if !t.SetChannel(ch, true) && ch != t.Channel() {
			return invalid(fmt.Errorf("channel must be %d..%d", project.MinChannel, project.MaxChannel))
		}
	case "mute":
		mute, err := strconv.ParseBool(value)
		if err != nil {
			return invalid(err)
		}
		t.SetMute(mute, true)
	default:
		return fault.New(fmt.Sprintf("unknown track property %q", property), ftag.With(ftag.InvalidArgument))
	}
	return nil
}

func (c *cli) noteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note",
		Short: "List, add and remove the notes of a piano track",
	}
	list := &cobra.Command{
		Use:   "ls <track>",
		Short: "List the notes of a track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.view(func(w *workspace) error {
				t, err := w.pianoTrack(args[0])
				if err != nil {
					return err
				}
				for n := range t.Notes().All() {
					fmt.Fprintf(cmd.OutOrStdout(), "%-6s beat %-8g key %-4d length %-6g velocity %.2f\n", n.ID, n.Beat, n.Key, n.Length, n.Velocity)
				}
				return nil
			})
		},
	}
	var length, velocity float32
	add := &cobra.Command{
		Use:   "add <track> <beat> <key>",
		Short: "Add a note",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			beat, err := strconv.ParseFloat(args[1], 32)
			if err != nil {
				return fault.Wrap(err, fmsg.With("invalid beat"), ftag.With(ftag.InvalidArgument))
			}
			key, err := strconv.Atoi(args[2])
			if err != nil {
				return fault.Wrap(err, fmsg.With("invalid key"), ftag.With(ftag.InvalidArgument))
			}
			return c.edit("add note", func(w *workspace) error {
				t, err := w.pianoTrack(args[0])
				if err != nil {
					return err
				}
				n, ok := t.Notes().Insert(midivcs.NewNote(float32(beat), key, length, velocity), true)
				if !ok {
					return fault.New("the track already has an identical note", ftag.With(ftag.AlreadyExists))
				}
				fmt.Fprintln(cmd.OutOrStdout(), n.ID)
				return nil
			})
		},
	}
	add.Flags().Float32Var(&length, "length", 1, "Length in beats")
	add.Flags().Float32Var(&velocity, "velocity", 0.8, "Velocity, 0..1")
	rm := &cobra.Command{
		Use:   "rm <track> <note id>...",
		Short: "Remove notes",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.edit("remove notes", func(w *workspace) error {
				t, err := w.pianoTrack(args[0])
				if err != nil {
					return err
				}
				var notes []midivcs.Note
				for _, id := range args[1:] {
					n, ok := t.Notes().Find(midivcs.ID(id))
					if !ok {
						return fault.New(fmt.Sprintf("no note %s", id), ftag.With(ftag.NotFound))
					}
					notes = append(notes, n)
				}
				t.Notes().RemoveGroup(notes, true)
				return nil
			})
		},
	}
	var semitones int
	var beats float32
	move := &cobra.Command{
		Use:   "move <track>",
		Short: "Shift and transpose all the notes of a track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.edit("move notes", func(w *workspace) error {
				t, err := w.pianoTrack(args[0])
				if err != nil {
					return err
				}
				if beats != 0 {
					project.ShiftBeatGroup(t.Notes(), t.Notes().Events(), beats, true)
				}
				if semitones != 0 {
					project.TransposeGroup(t.Notes(), t.Notes().Events(), semitones, true)
				}
				return nil
			})
		},
	}
	move.Flags().Float32Var(&beats, "beats", 0, "Beats to shift by")
	move.Flags().IntVar(&semitones, "semitones", 0, "Semitones to transpose by")
	cmd.AddCommand(list, add, rm, move)
	return cmd
}

func (c *cli) undoCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Undo the last edits",
		Long: `undo reverts the most recent edits of the saved undo history. Only the
undoable part of the history is saved, so undone edits cannot be redone in
a later invocation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := openWorkspace(c.file, c.cfg, c.log)
			if err != nil {
				return err
			}
			for i := 0; i < steps; i++ {
				name := w.project.UndoStack().UndoName()
				if !w.project.Undo() {
					if i == 0 {
						return fault.New("nothing to undo", ftag.With(ftag.InvalidArgument))
					}
					break
				}
				fmt.Fprintf(cmd.OutOrStdout(), "undo %s\n", name)
			}
			return w.save()
		},
	}
	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "Number of edits to undo")
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the uncommitted changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.view(func(w *workspace) error {
				pending, err := w.history.Status()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "on revision %s\n", w.history.Head().ID)
				if pending.IsEmpty() {
					fmt.Fprintln(out, "nothing to commit")
					return nil
				}
				printItems(out, w, pending.Items)
				return nil
			})
		},
	}
}

func (c *cli) commitCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "commit [item id]...",
		Short: "Commit the changes of all items, or of the given items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.view(func(w *workspace) error {
				rev, err := w.history.Commit(message, args...)
				if err != nil {
					return err
				}
				if err := w.save(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", rev.ID, rev.Message)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message")
	return cmd
}

func (c *cli) logCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "log",
		Short: "List the revisions from the head back to the root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.view(func(w *workspace) error {
				out := cmd.OutOrStdout()
				for _, rev := range w.history.Log() {
					fmt.Fprintf(out, "%s  %s", rev.ID, humanize.Time(rev.Timestamp))
					if rev.Author != "" {
						fmt.Fprintf(out, "  %s", rev.Author)
					}
					fmt.Fprintf(out, "\n    %s\n", rev.Message)
					if verbose {
						printItems(out, w, rev.Items)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&verbose, "items", false, "Show the changed items of each revision")
	return cmd
}

func (c *cli) checkoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <revision>",
		Short: "Reset the project to a revision and move the head there",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.view(func(w *workspace) error {
				if err := w.history.Checkout(args[0]); err != nil {
					return err
				}
				return w.save()
			})
		},
	}
}

func (c *cli) resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [item id]...",
		Short: "Revert the uncommitted changes of all items, or of the given items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.view(func(w *workspace) error {
				if err := w.history.ResetChanges(args...); err != nil {
					return err
				}
				return w.save()
			})
		},
	}
}

func (c *cli) cherryPickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cherry-pick <revision> [item id]...",
		Short: "Apply the changes of a revision to the project without committing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.view(func(w *workspace) error {
				if err := w.history.CherryPick(args[0], args[1:]...); err != nil {
					return err
				}
				return w.save()
			})
		},
	}
}

func (c *cli) stashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stash",
		Short: "Put uncommitted changes aside and bring them back later",
	}
	var message string
	var keep bool
	push := &cobra.Command{
		Use:   "push [item id]...",
		Short: "Stash the changes of all items, or of the given items, and revert them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.view(func(w *workspace) error {
				rev, err := w.history.Stash(message, keep, args...)
				if err != nil {
					return err
				}
				if err := w.save(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", rev.ID, rev.Message)
				return nil
			})
		},
	}
	push.Flags().StringVarP(&message, "message", "m", "", "Stash message")
	push.Flags().BoolVar(&keep, "keep", false, "Keep the changes in the project")
	list := &cobra.Command{
		Use:   "ls",
		Short: "List the stashes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.view(func(w *workspace) error {
				out := cmd.OutOrStdout()
				for _, rev := range w.history.Stashes() {
					fmt.Fprintf(out, "%s  %s\n    %s\n", rev.ID, humanize.Time(rev.Timestamp), rev.Message)
				}
				if w.history.HasQuickStash() {
					fmt.Fprintln(out, "quick stash in use")
				}
				return nil
			})
		},
	}
	var keepStash bool
	apply := &cobra.Command{
		Use:   "apply <stash>",
		Short: "Apply a stash on top of the project and drop it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.view(func(w *workspace) error {
				if err := w.history.ApplyStash(args[0], keepStash); err != nil {
					return err
				}
				return w.save()
			})
		},
	}
	apply.Flags().BoolVar(&keepStash, "keep", false, "Keep the stash after applying it")
	drop := &cobra.Command{
		Use:   "drop <stash>",
		Short: "Drop a stash without applying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.view(func(w *workspace) error {
				if err := w.history.DropStash(args[0]); err != nil {
					return err
				}
				return w.save()
			})
		},
	}
	toggle := &cobra.Command{
		Use:   "toggle",
		Short: "Move all changes to the quick stash, or apply the quick stash if it is in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.view(func(w *workspace) error {
				var err error
				if w.history.HasQuickStash() {
					err = w.history.ApplyQuickStash()
				} else {
					err = w.history.QuickStashAll()
				}
				if err != nil {
					return err
				}
				return w.save()
			})
		},
	}
	cmd.AddCommand(push, list, apply, drop, toggle)
	return cmd
}

func (c *cli) amendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "amend <item id>...",
		Short: "Fold the uncommitted changes of the given items into the head revision",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.view(func(w *workspace) error {
				if err := w.history.QuickAmend(args...); err != nil {
					return err
				}
				return w.save()
			})
		},
	}
}

func (c *cli) diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <from> <to>",
		Short: "Show the changes between two revisions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.view(func(w *workspace) error {
				d, err := w.history.DiffRevisions(args[0], args[1])
				if err != nil {
					return err
				}
				printItems(cmd.OutOrStdout(), w, d.Items)
				return nil
			})
		},
	}
}

func printItems(out io.Writer, w *workspace, items []*vcs.RevisionItem) {
	for _, item := range items {
		name := item.ID
		if t, ok := w.project.Track(item.ID); ok && t.Path() != "" {
			name = fmt.Sprintf("%s (%s)", item.ID, t.Path())
		}
		fmt.Fprintf(out, "  %-8s %s %s\n", item.Type, item.Logic, name)
		for _, d := range item.Deltas {
			fmt.Fprintf(out, "           %s\n", d.Description)
		}
	}
}
