package explorer_test

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/trawler/scanner"
	"gitlab.com/trawler/scanner/explorer"
	"gitlab.com/trawler/store"
	"gitlab.com/trawler/transport"
	"gitlab.com/trawler/trawl"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testServer(pages map[string]string, delay time.Duration) (string, *http.Server) {
	router := gin.New()
	router.Any("/*path", func(c *gin.Context) {
		if delay > 0 {
			time.Sleep(delay)
		}
		page, ok := pages[c.Request.URL.Path]
		if !ok {
			c.String(http.StatusNotFound, "not found")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte("<html><body>"+page+"</body></html>"))
	})

	testListener, _ := net.Listen("tcp", "127.0.0.1:0")
	srv := &http.Server{Handler: router}
	go func() {
		if err := srv.Serve(testListener); err != http.ErrServerClosed {
			log.Fatalf("Serve(): %s", err)
		}
	}()
	return fmt.Sprintf("http://%s", testListener.Addr().String()), srv
}

func links(paths ...string) string {
	b := &strings.Builder{}
	for _, p := range paths {
		fmt.Fprintf(b, `<a href="%s">%s</a>`, p, p)
	}
	return b.String()
}

func testExplorer(t *testing.T, base string, policy trawl.ScopePolicy, opts explorer.Options) (*explorer.Explorer, *trawl.Request) {
	t.Helper()
	tr, err := transport.New(transport.Config{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("error creating transport: %s\n", err)
	}
	root, err := trawl.NewGetRequest(base + "/")
	if err != nil {
		t.Fatalf("error creating root: %s\n", err)
	}
	if opts.MaxDepth == 0 {
		opts.MaxDepth = trawl.DefaultMaxDepth
	}
	if opts.QSLimit == 0 {
		opts.QSLimit = 1
	}
	scope := scanner.NewScopeService(policy, root)
	return explorer.New(tr, scope, scanner.NewExclusionList(nil), opts), root
}

func collect(ch <-chan *trawl.Resource) []string {
	paths := make([]string, 0)
	for res := range ch {
		paths = append(paths, res.Request.Parsed().RequestURI())
	}
	sort.Strings(paths)
	return paths
}

func TestExploreDomainScope(t *testing.T) {
	pages := map[string]string{
		"/":  links("/a", "/b", "http://other.test/c"),
		"/a": links("/b", "/"),
		"/b": "nothing here",
	}
	base, srv := testServer(pages, 0)
	defer srv.Shutdown(context.Background())

	e, root := testExplorer(t, base, trawl.ScopeDomain, explorer.Options{})
	got := collect(e.Explore(context.Background(), []*trawl.Request{root}))

	if strings.Join(got, ",") != "/,/a,/b" {
		t.Fatalf("expected /,/a,/b got %v\n", got)
	}
	if len(e.Remaining()) != 0 {
		t.Fatalf("frontier should be drained")
	}
}

func TestExploreMaxDepth(t *testing.T) {
	pages := make(map[string]string)
	pages["/"] = links("/d1")
	for i := 1; i < 6; i++ {
		pages[fmt.Sprintf("/d%d", i)] = links(fmt.Sprintf("/d%d", i+1))
	}
	base, srv := testServer(pages, 0)
	defer srv.Shutdown(context.Background())

	e, root := testExplorer(t, base, trawl.ScopeFolder, explorer.Options{Limits: explorer.Limits{MaxDepth: 2}})
	got := collect(e.Explore(context.Background(), []*trawl.Request{root}))
	if strings.Join(got, ",") != "/,/d1,/d2" {
		t.Fatalf("expected depth capped at 2 got %v\n", got)
	}
}

func TestExploreLimits(t *testing.T) {
	files := make([]string, 0)
	for i := 0; i < 10; i++ {
		files = append(files, fmt.Sprintf("/files/%d.html", i))
	}
	pages := map[string]string{
		"/":      links(append(files, "/item?a=1", "/item?b=1", "/item?c=1", "/item?a=2")...),
		"/item":  "item",
		"/other": "other",
	}
	for _, f := range files {
		pages[f] = "file"
	}
	base, srv := testServer(pages, 0)
	defer srv.Shutdown(context.Background())

	e, root := testExplorer(t, base, trawl.ScopeFolder, explorer.Options{
		Limits: explorer.Limits{MaxFilesPerDir: 3, QSLimit: 0.1},
	})
	got := collect(e.Explore(context.Background(), []*trawl.Request{root}))

	fileCount, itemCount := 0, 0
	for _, p := range got {
		if strings.HasPrefix(p, "/files/") {
			fileCount++
		}
		if strings.HasPrefix(p, "/item") {
			itemCount++
		}
	}
	if fileCount != 3 {
		t.Fatalf("expected 3 files in /files/ got %d (%v)\n", fileCount, got)
	}
	if itemCount != 2 {
		t.Fatalf("expected 2 query variants of /item got %d (%v)\n", itemCount, got)
	}

	e, root = testExplorer(t, base, trawl.ScopeFolder, explorer.Options{
		Limits: explorer.Limits{MaxLinksPerPage: 2},
	})
	got = collect(e.Explore(context.Background(), []*trawl.Request{root}))
	if len(got) != 3 {
		t.Fatalf("expected root plus 2 links got %v\n", got)
	}
}

func TestExploreFilesPerDirCountsVariants(t *testing.T) {
	pages := map[string]string{
		"/":    links("/d/x", "/d/x?a=1", "/d/x?b=1", "/d/x?c=1", "/d/y", "/d/sub/"),
		"/d/x": "x",
		"/d/y": "y",
	}
	base, srv := testServer(pages, 0)
	defer srv.Shutdown(context.Background())

	for _, k := range []int{1, 2, 4} {
		e, root := testExplorer(t, base, trawl.ScopeFolder, explorer.Options{
			Limits: explorer.Limits{MaxFilesPerDir: k},
		})
		got := collect(e.Explore(context.Background(), []*trawl.Request{root}))

		fromDir := make([]string, 0)
		for _, p := range got {
			if strings.HasPrefix(p, "/d/") && !strings.HasPrefix(p, "/d/sub/") {
				fromDir = append(fromDir, p)
			}
		}
		if len(fromDir) != k {
			t.Fatalf("expected %d resources from /d/ got %d (%v)\n", k, len(fromDir), got)
		}
	}
}

func TestExploreCancel(t *testing.T) {
	paths := make([]string, 0)
	pages := make(map[string]string)
	for i := 0; i < 20; i++ {
		p := fmt.Sprintf("/p%d", i)
		paths = append(paths, p)
		pages[p] = "page"
	}
	pages["/"] = links(paths...)
	base, srv := testServer(pages, 50*time.Millisecond)
	defer srv.Shutdown(context.Background())

	e, root := testExplorer(t, base, trawl.ScopeFolder, explorer.Options{Parallelism: 2})

	ctx, cancel := context.WithCancel(context.Background())
	ch := e.Explore(ctx, []*trawl.Request{root})
	first := <-ch
	if first.Request.URL != root.URL {
		t.Fatalf("expected the root first got %s\n", first.Request.URL)
	}
	cancel()

	count := 1
	for range ch {
		count++
	}
	if count > 3 {
		t.Fatalf("expected at most the in flight fetches after cancel got %d\n", count)
	}
	if len(e.Remaining()) < 18 {
		t.Fatalf("expected the frontier to be kept got %d\n", len(e.Remaining()))
	}
}

func TestExploreDropsFailedFetch(t *testing.T) {
	pages := map[string]string{
		"/":       links("/broken", "/ok"),
		"/ok":     "fine",
		"/broken": "never served",
	}
	base, srv := testServer(pages, 0)
	defer srv.Shutdown(context.Background())

	live, _ := transport.New(transport.Config{Timeout: 2 * time.Second})
	failing := trawl.TransportFunc(func(ctx context.Context, req *trawl.Request) (*trawl.Response, error) {
		if req.Path() == "/broken" {
			return nil, trawl.NewTransportError(req.URL, context.DeadlineExceeded)
		}
		return live.Send(ctx, req)
	})

	root, _ := trawl.NewGetRequest(base + "/")
	e := explorer.New(failing, scanner.NewScopeService(trawl.ScopeFolder, root), nil, explorer.Options{
		Limits: explorer.Limits{MaxDepth: 5, QSLimit: 1},
	})
	got := collect(e.Explore(context.Background(), []*trawl.Request{root}))
	if strings.Join(got, ",") != "/,/ok" {
		t.Fatalf("expected the broken page to be dropped got %v\n", got)
	}
}

func TestExploreExcluded(t *testing.T) {
	pages := map[string]string{
		"/":       links("/logout", "/admin/users", "/ok"),
		"/ok":     "fine",
		"/logout": "bye",
	}
	base, srv := testServer(pages, 0)
	defer srv.Shutdown(context.Background())

	tr, _ := transport.New(transport.Config{Timeout: 2 * time.Second})
	root, _ := trawl.NewGetRequest(base + "/")
	excluded := scanner.NewExclusionList([]string{base + "/logout", "*/admin/*"})
	e := explorer.New(tr, scanner.NewScopeService(trawl.ScopeFolder, root), excluded, explorer.Options{
		Limits: explorer.Limits{MaxDepth: 5, QSLimit: 1},
	})
	got := collect(e.Explore(context.Background(), []*trawl.Request{root}))
	if strings.Join(got, ",") != "/,/ok" {
		t.Fatalf("expected excluded pages to be skipped got %v\n", got)
	}
}

func TestExploreResumeWithState(t *testing.T) {
	pages := map[string]string{
		"/":  links("/a", "/b"),
		"/a": "a",
		"/b": "b",
	}
	base, srv := testServer(pages, 0)
	defer srv.Shutdown(context.Background())

	dir, err := os.MkdirTemp("", "trawler-explorer")
	if err != nil {
		t.Fatalf("error opening testdir: %s\n", err)
	}
	defer os.RemoveAll(dir)
	statePath := filepath.Join(dir, "explorer.state")

	e, root := testExplorer(t, base, trawl.ScopeFolder, explorer.Options{StatePath: statePath})
	if got := collect(e.Explore(context.Background(), []*trawl.Request{root})); len(got) != 3 {
		t.Fatalf("expected 3 pages got %v\n", got)
	}

	var state explorer.State
	if err := store.LoadCheckpoint(statePath, &state); err != nil {
		t.Fatalf("error loading checkpoint: %s\n", err)
	}
	if state.Fetched != 3 {
		t.Fatalf("expected 3 fetched in checkpoint got %d\n", state.Fetched)
	}

	resumed, root := testExplorer(t, base, trawl.ScopeFolder, explorer.Options{StatePath: statePath})
	if err := resumed.LoadSavedState(statePath); err != nil {
		t.Fatalf("error loading state: %s\n", err)
	}
	got := collect(resumed.Explore(context.Background(), []*trawl.Request{root}))
	if strings.Join(got, ",") != "/" {
		t.Fatalf("expected only the seed to be fetched again got %v\n", got)
	}
	if resumed.Fetched() != 4 {
		t.Fatalf("expected fetched counter to carry over got %d\n", resumed.Fetched())
	}

	fresh, _ := testExplorer(t, base, trawl.ScopeFolder, explorer.Options{})
	if err := fresh.LoadSavedState(filepath.Join(dir, "missing.state")); err != trawl.ErrNotFound {
		t.Fatalf("expected ErrNotFound for a missing checkpoint got %v\n", err)
	}
}
