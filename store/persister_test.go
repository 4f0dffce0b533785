package store_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"gitlab.com/trawler/store"
	"gitlab.com/trawler/trawl"
)

func testPersister(t *testing.T) (*store.Persister, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "trawler-store")
	if err != nil {
		t.Fatalf("error opening testdir: %s\n", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	s := store.NewPersister(dir)
	if err := s.Init(); err != nil {
		t.Fatalf("error init store: %s\n", err)
	}
	return s, dir
}

func testResource(t *testing.T, path string, params int) *trawl.Resource {
	t.Helper()
	names := make([]string, params)
	for i := 0; i < params; i++ {
		names[i] = fmt.Sprintf("p%d=%d", i, i)
	}
	u := "http://example.test" + path
	if params > 0 {
		u += "?" + strings.Join(names, "&")
	}
	req, err := trawl.NewGetRequest(u)
	if err != nil {
		t.Fatalf("error creating request: %s\n", err)
	}
	return &trawl.Resource{Request: req, Response: &trawl.Response{URL: u, Status: 200}}
}

func drainResources(ch <-chan *trawl.Resource) []*trawl.Resource {
	out := make([]*trawl.Resource, 0)
	for r := range ch {
		out = append(out, r)
	}
	return out
}

func TestSaveRequestsIdempotent(t *testing.T) {
	s, _ := testPersister(t)
	defer s.Close()

	form, _ := trawl.NewRequest("POST", "http://example.test/login", []trawl.Param{{Name: "user", Value: "x"}}, nil)
	batch := []*trawl.Resource{
		testResource(t, "/", 0),
		testResource(t, "/a", 1),
		{Request: form},
	}
	for i := 0; i < 2; i++ {
		if err := s.SaveRequests(batch); err != nil {
			t.Fatalf("error saving: %s\n", err)
		}
	}

	count, err := s.CountPaths()
	if err != nil || count != 3 {
		t.Fatalf("expected 3 paths got %d (%v)\n", count, err)
	}

	links := drainResources(s.GetLinks(context.Background(), ""))
	if len(links) != 2 {
		t.Fatalf("expected 2 links got %d\n", len(links))
	}
	if links[0].Request.URL != "http://example.test/" || links[1].Request.Path() != "/a" {
		t.Fatalf("links not in insertion order: %s %s\n", links[0].Request, links[1].Request)
	}

	forms := drainResources(s.GetForms(context.Background(), ""))
	if len(forms) != 1 || forms[0].Request.PostParams[0].Name != "user" {
		t.Fatalf("expected the login form got %v\n", forms)
	}
}

func TestRemoveBigRequests(t *testing.T) {
	s, _ := testPersister(t)
	defer s.Close()

	batch := []*trawl.Resource{
		testResource(t, "/two", 2),
		testResource(t, "/three", 3),
		testResource(t, "/five", 5),
		testResource(t, "/seven", 7),
	}
	if err := s.SaveRequests(batch); err != nil {
		t.Fatalf("error saving: %s\n", err)
	}

	removed, err := s.RemoveBigRequests(3)
	if err != nil {
		t.Fatalf("error removing: %s\n", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed got %d\n", removed)
	}

	links := drainResources(s.GetLinks(context.Background(), ""))
	if len(links) != 2 {
		t.Fatalf("expected 2 remaining got %d\n", len(links))
	}
	for _, l := range links {
		if l.Request.ParamCount() > 3 {
			t.Fatalf("big request survived: %s\n", l.Request)
		}
	}
	if count, _ := s.CountPaths(); count != 2 {
		t.Fatalf("path index not updated, got %d\n", count)
	}

	// removed resources can be crawled again
	if err := s.SaveRequests(batch[2:3]); err != nil {
		t.Fatalf("error saving: %s\n", err)
	}
	if count, _ := s.CountPaths(); count != 3 {
		t.Fatalf("expected 3 paths got %d\n", count)
	}
}

func TestSetAttacked(t *testing.T) {
	s, _ := testPersister(t)
	defer s.Close()

	batch := make([]*trawl.Resource, 0)
	for i := 0; i < 5; i++ {
		batch = append(batch, testResource(t, fmt.Sprintf("/r%d", i), 1))
	}
	if err := s.SaveRequests(batch); err != nil {
		t.Fatalf("error saving: %s\n", err)
	}

	// marking the first n leaves exactly the rest, re-marking is a no-op
	for n := 0; n <= len(batch); n++ {
		ids := make([]string, 0, n)
		for _, r := range batch[:n] {
			ids = append(ids, r.Request.PathID())
		}
		if err := s.SetAttacked(ids, "module_x"); err != nil {
			t.Fatalf("error setting attacked: %s\n", err)
		}
		if count, _ := s.CountAttacked("module_x"); count != n {
			t.Fatalf("expected %d attacked got %d\n", n, count)
		}

		remaining := drainResources(s.GetLinks(context.Background(), "module_x"))
		if len(remaining) != len(batch)-n {
			t.Fatalf("expected %d unattacked links got %d\n", len(batch)-n, len(remaining))
		}
		for i, r := range remaining {
			if r.Request.PathID() != batch[n+i].Request.PathID() {
				t.Fatalf("n=%d: expected %s got %s\n", n, batch[n+i].Request, r.Request)
			}
		}
	}

	// other modules are unaffected, including ones sharing a name prefix
	if n, _ := s.CountAttacked("module_xy"); n != 0 {
		t.Fatalf("module_xy should have no attacked resources got %d\n", n)
	}
	if n := len(drainResources(s.GetLinks(context.Background(), "module_xy"))); n != 5 {
		t.Fatalf("expected 5 links for module_xy got %d\n", n)
	}

	if err := s.FlushAttacks(); err != nil {
		t.Fatalf("error flushing attacks: %s\n", err)
	}
	if n, _ := s.CountAttacked("module_x"); n != 0 {
		t.Fatalf("expected flushed attacked set got %d\n", n)
	}
}

func TestFrontierSurvivesRestart(t *testing.T) {
	s, dir := testPersister(t)

	reqs := make([]*trawl.Request, 0)
	for i := 0; i < 250; i++ {
		r, _ := trawl.NewGetRequest(fmt.Sprintf("http://example.test/page%d", i))
		r.Depth = i % 3
		reqs = append(reqs, r)
	}
	if err := s.SetToBrowse(reqs); err != nil {
		t.Fatalf("error setting frontier: %s\n", err)
	}
	if err := s.SetRootURL("http://example.test/"); err != nil {
		t.Fatalf("error setting root: %s\n", err)
	}
	s.Close()

	s = store.NewPersister(dir)
	if err := s.Init(); err != nil {
		t.Fatalf("error re-opening store: %s\n", err)
	}
	defer s.Close()

	if root, err := s.GetRootURL(); err != nil || root != "http://example.test/" {
		t.Fatalf("expected root url got %s (%v)\n", root, err)
	}

	i := 0
	for req := range s.GetToBrowse(context.Background()) {
		if req.URL != reqs[i].URL || req.Depth != reqs[i].Depth {
			t.Fatalf("frontier entry %d mismatch: %s depth %d\n", i, req.URL, req.Depth)
		}
		i++
	}
	if i != len(reqs) {
		t.Fatalf("expected %d frontier entries got %d\n", len(reqs), i)
	}

	started, err := s.HasScanStarted()
	if err != nil || !started {
		t.Fatalf("scan should be started")
	}

	if err := s.SetToBrowse(reqs[:1]); err != nil {
		t.Fatalf("error replacing frontier: %s\n", err)
	}
	if n, _ := s.CountToBrowse(); n != 1 {
		t.Fatalf("expected replaced frontier of 1 got %d\n", n)
	}
}

func TestGetToBrowseCancel(t *testing.T) {
	s, _ := testPersister(t)
	defer s.Close()

	reqs := make([]*trawl.Request, 0)
	for i := 0; i < 10; i++ {
		r, _ := trawl.NewGetRequest(fmt.Sprintf("http://example.test/%d", i))
		reqs = append(reqs, r)
	}
	s.SetToBrowse(reqs)

	ctx, cancel := context.WithCancel(context.Background())
	ch := s.GetToBrowse(ctx)
	<-ch
	cancel()
	for range ch {
	}
}

func TestStorageLocked(t *testing.T) {
	s, dir := testPersister(t)
	defer s.Close()

	other := store.NewPersister(dir)
	err := other.Init()
	if err == nil {
		other.Close()
		t.Fatalf("expected second open to fail")
	}
	if !errors.Is(err, trawl.ErrStorageLocked) {
		t.Fatalf("expected ErrStorageLocked got %s\n", err)
	}
}

func TestPayloadsAndScanState(t *testing.T) {
	s, _ := testPersister(t)
	defer s.Close()

	if _, err := s.GetRootURL(); err != trawl.ErrNotFound {
		t.Fatalf("expected ErrNotFound for a fresh store got %v\n", err)
	}
	if finished, _ := s.HasScanFinished(); finished {
		t.Fatalf("fresh store should not be finished")
	}

	res := testResource(t, "/x", 1)
	for i := 0; i < 3; i++ {
		p := &trawl.Payload{
			Type:     trawl.PayloadVulnerability,
			Category: "Test",
			Level:    trawl.LevelHigh,
			Request:  res.Request,
			PathID:   res.Request.PathID(),
			Info:     fmt.Sprintf("finding %d", i),
			Module:   "test",
			WSTG:     []string{"WSTG-INPV-01"},
		}
		if err := s.AddPayload(p); err != nil {
			t.Fatalf("error adding payload: %s\n", err)
		}
	}

	i := 0
	for p := range s.GetPayloads(context.Background()) {
		if p.Info != fmt.Sprintf("finding %d", i) || p.Request.URL != res.Request.URL {
			t.Fatalf("unexpected payload %d: %v\n", i, p)
		}
		i++
	}
	if i != 3 {
		t.Fatalf("expected 3 payloads got %d\n", i)
	}

	if err := s.SetScanFinished(true); err != nil {
		t.Fatalf("error setting finished: %s\n", err)
	}
	if finished, _ := s.HasScanFinished(); !finished {
		t.Fatalf("scan should be finished")
	}

	if err := s.FlushSession(); err != nil {
		t.Fatalf("error flushing session: %s\n", err)
	}
	if started, _ := s.HasScanStarted(); started {
		t.Fatalf("flushed session should not be started")
	}
}
