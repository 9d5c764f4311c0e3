package state

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestDefaultState_EmptyCollections(t *testing.T) {
	s := NewFileStateStore(filepath.Join(t.TempDir(), "state.json"), testLogger())
	state := s.DefaultState()

	if state.Version != "1" {
		t.Errorf("expected Version '1', got %q", state.Version)
	}
	if state.Upstreams == nil || len(state.Upstreams) != 0 {
		t.Errorf("expected empty Upstreams slice, got %v", state.Upstreams)
	}
	if state.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestLoad_NoFile_ReturnsDefaultState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewFileStateStore(path, testLogger())

	state, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.Version != "1" {
		t.Errorf("expected default version, got %q", state.Version)
	}
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewFileStateStore(path, testLogger())

	want := s.DefaultState()
	want.Upstreams = []UpstreamEntry{
		{
			Name:   "gdrive",
			URL:    "https://gdrive.internal/mcp",
			Status: "connected",
			Tools: []ToolEntry{
				{Name: "listFiles", Description: "list files in a folder"},
			},
		},
	}

	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Upstreams) != 1 || got.Upstreams[0].Name != "gdrive" {
		t.Fatalf("unexpected round-tripped upstreams: %+v", got.Upstreams)
	}
	if len(got.Upstreams[0].Tools) != 1 || got.Upstreams[0].Tools[0].Name != "listFiles" {
		t.Fatalf("unexpected round-tripped tools: %+v", got.Upstreams[0].Tools)
	}
}

func TestSave_CreatesBackupOfPreviousFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewFileStateStore(path, testLogger())

	first := s.DefaultState()
	if err := s.Save(first); err != nil {
		t.Fatalf("first Save: %v", err)
	}

	second := s.DefaultState()
	second.Upstreams = []UpstreamEntry{{Name: "slack"}}
	if err := s.Save(second); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Fatalf("expected backup file, got error: %v", err)
	}
}

func TestLoad_InvalidJSON_ReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("not json"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := NewFileStateStore(path, testLogger())
	if _, err := s.Load(); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewFileStateStore(path, testLogger())

	if s.Exists() {
		t.Error("expected Exists() false before any Save")
	}
	if err := s.Save(s.DefaultState()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !s.Exists() {
		t.Error("expected Exists() true after Save")
	}
}
