package collection

import (
	"path/filepath"
	"testing"

	"github.com/klingon-tech/uaas/internal/dbwriter"
)

func TestRegistry_AddMonitor_PersistsToDynamicFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dynamic.json")
	r, err := NewRegistry(nil, path)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	w := dbwriter.New(nil, 1, 0)

	def := Definition{Name: "watch", LockingScriptRegex: "^6a"}
	if err := r.AddMonitor(w, def); err != nil {
		t.Fatalf("AddMonitor: %v", err)
	}

	reloaded, err := NewRegistry(nil, path)
	if err != nil {
		t.Fatalf("reloading registry from dynamic file: %v", err)
	}
	if _, ok := reloaded.byName["watch"]; !ok {
		t.Error("expected monitor added in a prior run to reload from the dynamic-config file")
	}
}

func TestRegistry_DeleteMonitor_RemovesFromDynamicFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dynamic.json")
	r, err := NewRegistry(nil, path)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	w := dbwriter.New(nil, 1, 0)

	if err := r.AddMonitor(w, Definition{Name: "watch", LockingScriptRegex: "^6a"}); err != nil {
		t.Fatalf("AddMonitor: %v", err)
	}
	if err := r.DeleteMonitor(w, "watch"); err != nil {
		t.Fatalf("DeleteMonitor: %v", err)
	}

	reloaded, err := NewRegistry(nil, path)
	if err != nil {
		t.Fatalf("reloading registry from dynamic file: %v", err)
	}
	if _, ok := reloaded.byName["watch"]; ok {
		t.Error("expected deleted monitor to be absent from the reloaded dynamic-config file")
	}
}

func TestRegistry_DeleteMonitor_BroadcastIsProtected(t *testing.T) {
	r, err := NewRegistry(nil, "")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	w := dbwriter.New(nil, 1, 0)
	if err := r.DeleteMonitor(w, BroadcastName); err != nil {
		t.Fatalf("DeleteMonitor: %v", err)
	}
	if _, ok := r.byName[BroadcastName]; !ok {
		t.Error("expected broadcast collection to remain registered")
	}
}

func TestNewRegistry_BlankDynamicFileSkipsPersistence(t *testing.T) {
	r, err := NewRegistry(nil, "")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	w := dbwriter.New(nil, 1, 0)
	if err := r.AddMonitor(w, Definition{Name: "watch"}); err != nil {
		t.Fatalf("AddMonitor with blank dynamic file should not error: %v", err)
	}
}
