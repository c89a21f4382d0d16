package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/mgrund/gridplace/pkg/snapshot"
)

func TestRootCommandSubcommands(t *testing.T) {
	c := New(io.Discard, log.InfoLevel)
	root := c.RootCommand()

	want := []string{"place", "legalize", "check", "cache", "completion"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command is missing subcommand %q", name)
		}
	}
}

func writeSnapshot(t *testing.T) string {
	t.Helper()
	snap := snapshot.Snapshot{
		Rows: []snapshot.Row{
			{Bottom: 0, Height: 2, SiteWidth: 1, NumSites: 30},
			{Bottom: 2, Height: 2, SiteWidth: 1, NumSites: 30},
		},
		Nodes: []snapshot.Node{
			{Name: "tl", X: 1, Y: 1, Width: 1, Height: 1, Fixed: "xy", Kind: "terminal"},
			{Name: "tr", X: 29, Y: 3, Width: 1, Height: 1, Fixed: "xy", Kind: "terminal"},
			{Name: "a", X: 15, Y: 1, Width: 2, Height: 2},
			{Name: "b", X: 15, Y: 1, Width: 2, Height: 2},
		},
		Nets: []snapshot.Net{
			{Name: "n0", Pins: []snapshot.Pin{{Node: "tl"}, {Node: "a"}}},
			{Name: "n1", Pins: []snapshot.Pin{{Node: "tr"}, {Node: "b"}}},
		},
	}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "design.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPlaceCommandEndToEnd(t *testing.T) {
	input := writeSnapshot(t)
	output := filepath.Join(t.TempDir(), "out.placement.json")

	c := New(io.Discard, log.FatalLevel)
	root := c.RootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{
		"place", input,
		"-o", output,
		"--no-cache",
		"--seed", "5",
		"--target-overflow", "0.8",
		"--max-iterations", "300",
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("place command error = %v", err)
	}

	p, err := snapshot.ReadPlacement(mustOpen(t, output))
	if err != nil {
		t.Fatalf("read placement: %v", err)
	}
	if len(p.Cells) != 2 {
		t.Errorf("placed %d cells, want 2", len(p.Cells))
	}
	if p.Metrics.TerminalState == "" {
		t.Error("terminal state should be set")
	}
}

func TestLegalizeCommandEndToEnd(t *testing.T) {
	input := writeSnapshot(t)
	output := filepath.Join(t.TempDir(), "out.placement.json")

	c := New(io.Discard, log.FatalLevel)
	root := c.RootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"legalize", input, "-o", output, "--no-cache"})

	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("legalize command error = %v", err)
	}
	if _, err := os.Stat(output); err != nil {
		t.Errorf("output file should exist: %v", err)
	}
}

func TestCheckCommandValidSnapshot(t *testing.T) {
	input := writeSnapshot(t)

	c := New(io.Discard, log.FatalLevel)
	root := c.RootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"check", input})

	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Errorf("check command error = %v", err)
	}
}

func TestCheckCommandRejectsDanglingPin(t *testing.T) {
	snap := snapshot.Snapshot{
		Rows:  []snapshot.Row{{Bottom: 0, Height: 2, SiteWidth: 1, NumSites: 10}},
		Nodes: []snapshot.Node{{Name: "a", X: 2, Y: 1, Width: 2, Height: 2}},
		Nets:  []snapshot.Net{{Name: "n0", Pins: []snapshot.Pin{{Node: "missing"}}}},
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	input := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(input, data, 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(io.Discard, log.FatalLevel)
	root := c.RootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"check", input})

	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Error("check should fail on a dangling pin")
	}
}

func mustOpen(t *testing.T, path string) io.Reader {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}
