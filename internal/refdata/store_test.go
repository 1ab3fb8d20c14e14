package refdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pterm/pterm"
)

func writeDataset(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".json"), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write dataset: %v", err)
	}
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelError)
	return NewStore(dir, logger), dir
}

func TestStore_Category_MissingFile(t *testing.T) {
	store, _ := newTestStore(t)

	entries := store.Category("bots")
	if entries == nil {
		t.Fatal("Expected empty list for missing file, got nil")
	}
	if len(entries) != 0 {
		t.Errorf("Expected 0 entries, got %d", len(entries))
	}
}

func TestStore_Category_MalformedFile(t *testing.T) {
	store, dir := newTestStore(t)
	writeDataset(t, dir, "bots", "{not json")

	if entries := store.Category("bots"); len(entries) != 0 {
		t.Errorf("Expected 0 entries for malformed file, got %d", len(entries))
	}
}

func TestStore_Category_LoadsEntriesInFileOrder(t *testing.T) {
	store, dir := newTestStore(t)
	writeDataset(t, dir, "apps", `{"entries": [
		{"name": "Overcast", "pattern": "Overcast"},
		{"name": "AntennaPod", "pattern": "AntennaPod"}
	]}`)

	entries := store.Category("apps")
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Name != "Overcast" || entries[1].Name != "AntennaPod" {
		t.Errorf("Entries out of file order: %s, %s", entries[0].Name, entries[1].Name)
	}
}

func TestStore_Category_SkipsInvalidPattern(t *testing.T) {
	store, dir := newTestStore(t)
	writeDataset(t, dir, "bots", `{"entries": [
		{"name": "Broken", "pattern": "(unclosed"},
		{"name": "Googlebot", "pattern": "Googlebot"}
	]}`)

	entries := store.Category("bots")
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry after skipping invalid pattern, got %d", len(entries))
	}
	if entries[0].Name != "Googlebot" {
		t.Errorf("Expected Googlebot, got %s", entries[0].Name)
	}
}

func TestStore_Category_Cached(t *testing.T) {
	store, dir := newTestStore(t)
	writeDataset(t, dir, "bots", `{"entries": [{"name": "Googlebot", "pattern": "Googlebot"}]}`)

	if len(store.Category("bots")) != 1 {
		t.Fatal("Expected 1 entry on first load")
	}

	// Removing the file must not affect the cached category
	if err := os.Remove(filepath.Join(dir, "bots.json")); err != nil {
		t.Fatalf("Failed to remove dataset: %v", err)
	}
	if len(store.Category("bots")) != 1 {
		t.Error("Expected cached entries to survive file removal")
	}
}

func TestStore_Match_FirstMatchWins(t *testing.T) {
	store, dir := newTestStore(t)
	writeDataset(t, dir, "browsers", `{"entries": [
		{"name": "Generic Mozilla", "pattern": "Mozilla"},
		{"name": "Firefox", "pattern": "Firefox"}
	]}`)

	match := store.Match("browsers", "Mozilla/5.0 Firefox/120.0")
	if match == nil {
		t.Fatal("Expected a match")
	}
	if match.Name != "Generic Mozilla" {
		t.Errorf("Expected first entry to win, got %s", match.Name)
	}
}

func TestStore_Match_UnanchoredSearch(t *testing.T) {
	store, dir := newTestStore(t)
	writeDataset(t, dir, "apps", `{"entries": [{"name": "AntennaPod", "pattern": "AntennaPod/\\d"}]}`)

	if store.Match("apps", "something AntennaPod/3.2 something") == nil {
		t.Error("Expected unanchored pattern to match mid-string")
	}
	if store.Match("apps", "AntennaPod") != nil {
		t.Error("Expected no match when pattern does not apply")
	}
}
