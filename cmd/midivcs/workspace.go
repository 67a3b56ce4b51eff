package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/vsariola/midivcs/config"
	"github.com/vsariola/midivcs/project"
	"github.com/vsariola/midivcs/vcs"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// workspace is a project together with its revision history, stored in a
// single YAML file.
type workspace struct {
	path    string
	project *project.Project
	history *vcs.VersionControl
	log     *zap.Logger
}

type workspaceRecord struct {
	Project yaml.Node `yaml:"project"`
	History yaml.Node `yaml:"history,omitempty"`
}

func newWorkspace(path string, cfg config.Config, log *zap.Logger) *workspace {
	p := project.New(cfg.UndoLimits(), log)
	v := vcs.New(p, project.Schema(), log)
	v.SetAuthor(cfg.VCS.AuthorName)
	return &workspace{path: path, project: p, history: v, log: log}
}

// commitBaseline commits the initial state of a new workspace, so that a
// fresh workspace has nothing pending.
func (w *workspace) commitBaseline(message string) error {
	if _, err := w.history.Commit(message); err != nil {
		return fault.Wrap(err, fmsg.With("could not commit the new project"), ftag.With(ftag.Internal))
	}
	return nil
}

// openWorkspace reads the workspace file. A missing file is NotFound.
func openWorkspace(path string, cfg config.Config, log *zap.Logger) (*workspace, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fault.Wrap(err, fmsg.With(fmt.Sprintf("no workspace at %s, create one with new or import", path)), ftag.With(ftag.NotFound))
	}
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("could not read workspace"))
	}
	w := newWorkspace(path, cfg, log)
	if err := w.decode(data); err != nil {
		return nil, fault.Wrap(err, fmsg.With(fmt.Sprintf("could not load workspace %s", path)))
	}
	log.Debug("workspace opened", zap.String("path", path), zap.Int("bytes", len(data)))
	return w, nil
}

func (w *workspace) decode(data []byte) error {
	var rec workspaceRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return fault.Wrap(err, ftag.With(ftag.InvalidArgument))
	}
	if rec.Project.Kind == 0 {
		return fault.New("workspace has no project", ftag.With(ftag.InvalidArgument))
	}
	if err := rec.Project.Decode(w.project); err != nil {
		return err
	}
	if rec.History.Kind != 0 {
		if err := rec.History.Decode(w.history); err != nil {
			return fault.Wrap(err, fmsg.With("invalid revision history"), ftag.With(ftag.InvalidArgument))
		}
	}
	return nil
}

func (w *workspace) encode() ([]byte, error) {
	var b bytes.Buffer
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	err := enc.Encode(struct {
		Project *project.Project    `yaml:"project"`
		History *vcs.VersionControl `yaml:"history"`
	}{w.project, w.history})
	if err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// save writes the workspace to a temporary file next to it and renames it
// over the old one.
func (w *workspace) save() error {
	data, err := w.encode()
	if err != nil {
		return fault.Wrap(err, fmsg.With("could not encode workspace"), ftag.With(ftag.Internal))
	}
	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fault.Wrap(err, fmsg.With("could not write workspace"))
	}
	if err := os.Rename(tmp, w.path); err != nil {
		os.Remove(tmp)
		return fault.Wrap(err, fmsg.With("could not write workspace"))
	}
	w.log.Debug("workspace saved", zap.String("path", w.path), zap.Int("bytes", len(data)))
	return nil
}

// track finds a track by id or by path.
func (w *workspace) track(name string) (project.Track, error) {
	if t, ok := w.project.Track(name); ok {
		return t, nil
	}
	for _, t := range w.project.Tracks() {
		if t.Path() == name {
			return t, nil
		}
	}
	return nil, fault.New(fmt.Sprintf("no track %q", name), ftag.With(ftag.NotFound))
}

func (w *workspace) pianoTrack(name string) (*project.PianoTrack, error) {
	t, err := w.track(name)
	if err != nil {
		return nil, err
	}
	p, ok := t.(*project.PianoTrack)
	if !ok {
		return nil, fault.New(fmt.Sprintf("track %q is not a piano track", name), ftag.With(ftag.InvalidArgument))
	}
	return p, nil
}
