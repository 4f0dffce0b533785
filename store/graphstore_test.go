package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"gitlab.com/trawler/store"
	"gitlab.com/trawler/trawl"
)

func TestInit(t *testing.T) {
	dir, err := os.MkdirTemp("", "trawler-graph")
	if err != nil {
		t.Fatalf("error opening testdir: %s\n", err)
	}
	defer os.RemoveAll(dir)
	s, err := store.InitGraph("bolt", filepath.Join(dir, "graph"))
	if err != nil {
		t.Fatalf("error init graph: %s\n", err)
	}
	s.Close()
}

func TestLinkGraph(t *testing.T) {
	g := store.NewLinkGraph(store.MemoryGraph, "")
	if err := g.Init(); err != nil {
		t.Fatalf("error init graph: %s\n", err)
	}
	defer g.Close()

	links := [][2]string{
		{"http://example.test/", "http://example.test/a"},
		{"http://example.test/", "http://example.test/b"},
		{"http://example.test/a", "http://example.test/b"},
		{"http://example.test/", "http://example.test/a"},
	}
	for _, l := range links {
		if err := g.AddLink(l[0], l[1]); err != nil {
			t.Fatalf("error adding link: %s\n", err)
		}
	}

	children, err := g.Children("http://example.test/")
	if err != nil {
		t.Fatalf("error reading children: %s\n", err)
	}
	if len(children) != 2 || children[0] != "http://example.test/a" || children[1] != "http://example.test/b" {
		t.Fatalf("unexpected children %v\n", children)
	}

	parents, err := g.Parents("http://example.test/b")
	if err != nil {
		t.Fatalf("error reading parents: %s\n", err)
	}
	if len(parents) != 2 {
		t.Fatalf("expected 2 parents got %v\n", parents)
	}
}

func TestCheckpoint(t *testing.T) {
	dir, err := os.MkdirTemp("", "trawler-checkpoint")
	if err != nil {
		t.Fatalf("error opening testdir: %s\n", err)
	}
	defer os.RemoveAll(dir)

	root, _ := trawl.NewGetRequest("http://Example.test/app/")
	layout := store.NewLayout(dir, root, trawl.ScopeFolder)
	if filepath.Base(layout.Dir)[:len("example.test_folder_")] != "example.test_folder_" {
		t.Fatalf("unexpected session dir %s\n", layout.Dir)
	}

	type state struct {
		Counts map[string]int
		Seen   []uint64
	}

	var loaded state
	if err := store.LoadCheckpoint(layout.CheckpointPath(), &loaded); err != trawl.ErrNotFound {
		t.Fatalf("expected ErrNotFound got %v\n", err)
	}

	saved := state{Counts: map[string]int{"/app/": 3}, Seen: []uint64{1, 2, 3}}
	if err := store.SaveCheckpoint(layout.CheckpointPath(), &saved); err != nil {
		t.Fatalf("error saving checkpoint: %s\n", err)
	}
	if err := store.LoadCheckpoint(layout.CheckpointPath(), &loaded); err != nil {
		t.Fatalf("error loading checkpoint: %s\n", err)
	}
	if loaded.Counts["/app/"] != 3 || len(loaded.Seen) != 3 {
		t.Fatalf("checkpoint mismatch %v\n", loaded)
	}

	if err := store.RemoveCheckpoint(layout.CheckpointPath()); err != nil {
		t.Fatalf("error removing checkpoint: %s\n", err)
	}
	if err := store.RemoveCheckpoint(layout.CheckpointPath()); err != nil {
		t.Fatalf("removing a missing checkpoint should not fail: %s\n", err)
	}
}
