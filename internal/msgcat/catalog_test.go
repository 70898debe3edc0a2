package msgcat

import (
    "os"
    "path/filepath"
    "strings"
    "testing"
)

func TestEmbeddedRender(t *testing.T) {
    c, err := New("")
    if err != nil { t.Fatalf("New: %v", err) }
    got, err := c.Render(KeyJoined, map[string]string{"Name": "Alice", "Room": "r1"})
    if err != nil { t.Fatalf("Render: %v", err) }
    if got != "Alice has joined r1" { t.Fatalf("got %q", got) }
    if !c.Has(KeyCheckmate) { t.Fatalf("nested key not flattened") }

    if _, err := c.Render(KeyJoined, map[string]string{"Name": "Alice"}); err == nil {
        t.Fatalf("expected error on missing template field")
    }
    if _, err := c.Render("no.such.key", nil); err == nil {
        t.Fatalf("expected error on unknown key")
    }
}

func TestDomainMessages(t *testing.T) {
    c, err := New("")
    if err != nil { t.Fatalf("New: %v", err) }
    if got := c.Dropped("Bob", "r1"); got != "Bob has dropped from r1" { t.Fatalf("Dropped: %q", got) }
    if got := c.Checkmate("Alice"); got != "Checkmate! Alice wins." { t.Fatalf("Checkmate: %q", got) }
    if got := c.Author(); got != "System" { t.Fatalf("Author: %q", got) }
    if got := c.Error(CodeRoomFull, "r9"); got != "Room r9 already has two players" { t.Fatalf("Error: %q", got) }
    if got := c.Error("bogus", "r9"); got != c.Error(CodeInternal, "r9") { t.Fatalf("unknown code rendered %q", got) }
    for _, code := range Codes() {
        if !c.Has(ErrorKey(code)) { t.Fatalf("no message for %s", code) }
    }
}

func TestNilCatalogFallsBack(t *testing.T) {
    var c *Catalog
    if got := c.Reset(); got != "The board has been reset" { t.Fatalf("Reset: %q", got) }
    if got := c.Error(CodeNotReady, ""); got != "Waiting for the second player" { t.Fatalf("Error: %q", got) }
    if c.Has(KeyReset) { t.Fatalf("nil catalog has keys") }
}

func TestOverrideDir(t *testing.T) {
    dir := t.TempDir()
    if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("system:\n  reset: \"Fresh board\"\n"), 0o644); err != nil { t.Fatal(err) }
    c, err := New(dir)
    if err != nil { t.Fatalf("New: %v", err) }
    if got := c.Reset(); got != "Fresh board" { t.Fatalf("override not applied: %q", got) }
    if got := c.Started(); !strings.HasPrefix(got, "Both players are here") { t.Fatalf("embedded message lost: %q", got) }

    if err := os.WriteFile(filepath.Join(dir, "b.yml"), []byte("system:\n  reset: \"Again\"\n"), 0o644); err != nil { t.Fatal(err) }
    if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate override key") {
        t.Fatalf("expected duplicate key error, got %v", err)
    }
}

func TestOverrideMustCompile(t *testing.T) {
    dir := t.TempDir()
    if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("error:\n  internal: \"{{.Room\"\n"), 0o644); err != nil { t.Fatal(err) }
    if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "error.internal") {
        t.Fatalf("expected compile error, got %v", err)
    }
}
