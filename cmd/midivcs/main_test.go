package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Southclaws/fault/ftag"
)

type session struct {
	t    *testing.T
	file string
}

func newSession(t *testing.T) *session {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return &session{t: t, file: filepath.Join(t.TempDir(), "test.midivcs.yml")}
}

func (s *session) run(args ...string) (string, error) {
	s.t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"-f", s.file}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (s *session) must(args ...string) string {
	s.t.Helper()
	out, err := s.run(args...)
	if err != nil {
		s.t.Fatalf("midivcs %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestEditCommitCheckout(t *testing.T) {
	s := newSession(t)
	s.must("new", "--title", "demo")
	s.must("track", "add", "lead")
	s.must("note", "add", "lead", "0", "60")
	if out := s.must("status"); !strings.Contains(out, "added") || !strings.Contains(out, "lead") {
		t.Errorf("status does not show the new track:\n%s", out)
	}
	first := strings.Fields(s.must("commit", "-m", "first"))[0]
	if out := s.must("status"); !strings.Contains(out, "nothing to commit") {
		t.Errorf("expected a clean status after commit:\n%s", out)
	}
	s.must("note", "add", "lead", "1", "62")
	s.must("commit", "-m", "second")
	if out := s.must("log"); !strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Errorf("log is missing revisions:\n%s", out)
	}
	s.must("checkout", first)
	if out := s.must("note", "ls", "lead"); strings.Count(out, "\n") != 1 {
		t.Errorf("expected one note after checkout, got:\n%s", out)
	}
}

func TestUndoAcrossInvocations(t *testing.T) {
	s := newSession(t)
	s.must("new")
	s.must("track", "add", "bass")
	s.must("note", "add", "bass", "0", "36")
	s.must("note", "add", "bass", "1", "38")
	if out := s.must("undo"); !strings.Contains(out, "add note") {
		t.Errorf("unexpected undo output %q", out)
	}
	if out := s.must("note", "ls", "bass"); strings.Count(out, "\n") != 1 {
		t.Errorf("expected one note after undo, got:\n%s", out)
	}
	if out := s.must("undo", "-n", "5"); strings.Count(out, "undo ") != 2 {
		t.Errorf("expected two more edits to undo, got:\n%s", out)
	}
	if out := s.must("info"); strings.Contains(out, "bass") {
		t.Errorf("track still exists after undoing everything:\n%s", out)
	}
}

func TestMidiExportImport(t *testing.T) {
	s := newSession(t)
	s.must("new")
	s.must("track", "add", "keys")
	s.must("note", "add", "keys", "0", "60", "--length", "0.5")
	s.must("note", "add", "keys", "2", "64")
	mid := filepath.Join(t.TempDir(), "out.mid")
	s.must("export", mid)

	other := &session{t: t, file: filepath.Join(t.TempDir(), "imported.midivcs.yml")}
	other.must("import", mid)
	if out := other.must("info"); !strings.Contains(out, "keys") || !strings.Contains(out, "2 notes") {
		t.Errorf("unexpected info after import:\n%s", out)
	}
}

func TestNewWorkspaceIsClean(t *testing.T) {
	s := newSession(t)
	s.must("new", "--title", "clean")
	if out := s.must("status"); !strings.Contains(out, "nothing to commit") {
		t.Errorf("a new workspace should have nothing to commit:\n%s", out)
	}
	if out := s.must("log"); !strings.Contains(out, "new project") {
		t.Errorf("log is missing the initial revision:\n%s", out)
	}
	s.must("track", "add", "keys")
	s.must("note", "add", "keys", "0", "60")
	mid := filepath.Join(t.TempDir(), "clean.mid")
	s.must("export", mid)

	other := &session{t: t, file: filepath.Join(t.TempDir(), "imported.midivcs.yml")}
	other.must("import", mid)
	if out := other.must("status"); !strings.Contains(out, "nothing to commit") {
		t.Errorf("an imported workspace should have nothing to commit:\n%s", out)
	}
	if _, err := other.run("commit", "-m", "again"); ftag.Get(err) != ftag.InvalidArgument {
		t.Errorf("expected InvalidArgument when committing an imported workspace, got %v", err)
	}
}

func TestStashAcrossInvocations(t *testing.T) {
	s := newSession(t)
	s.must("new")
	s.must("track", "add", "pad")
	s.must("commit", "-m", "pad")
	s.must("note", "add", "pad", "0", "48")
	id := strings.Fields(s.must("stash", "push", "-m", "chord"))[0]
	if out := s.must("note", "ls", "pad"); out != "" {
		t.Errorf("stashed note is still in the project:\n%s", out)
	}
	if out := s.must("stash", "ls"); !strings.Contains(out, id) || !strings.Contains(out, "chord") {
		t.Errorf("stash missing from the list:\n%s", out)
	}
	s.must("stash", "apply", id)
	if out := s.must("note", "ls", "pad"); strings.Count(out, "\n") != 1 {
		t.Errorf("expected the stashed note back, got:\n%s", out)
	}
	s.must("stash", "toggle")
	if out := s.must("status"); !strings.Contains(out, "nothing to commit") {
		t.Errorf("expected a clean status with the quick stash in use:\n%s", out)
	}
	s.must("stash", "toggle")
	if out := s.must("status"); strings.Contains(out, "nothing to commit") {
		t.Errorf("quick stash was not applied:\n%s", out)
	}
}

func TestErrors(t *testing.T) {
	s := newSession(t)
	if _, err := s.run("info"); ftag.Get(err) != ftag.NotFound {
		t.Errorf("expected NotFound for a missing workspace, got %v", err)
	}
	s.must("new")
	if _, err := s.run("new"); ftag.Get(err) != ftag.AlreadyExists {
		t.Errorf("expected AlreadyExists, got %v", err)
	}
	if _, err := s.run("note", "add", "nope", "0", "60"); ftag.Get(err) != ftag.NotFound {
		t.Errorf("expected NotFound for a missing track, got %v", err)
	}
	if _, err := s.run("undo"); err == nil {
		t.Errorf("expected an error when there is nothing to undo")
	}
	if _, err := s.run("commit", "-m", "empty"); err == nil {
		t.Errorf("expected an error when there is nothing to commit")
	}
}
