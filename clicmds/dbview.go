package clicmds

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"gitlab.com/trawler/store"
	"gitlab.com/trawler/trawl"
)

// DBViewFlags for the dbview command
func DBViewFlags() []cli.Flag {
	return append(TargetFlags(),
		&cli.BoolFlag{
			Name:  "urls",
			Usage: "prints stored links and forms",
			Value: true,
		},
		&cli.BoolFlag{
			Name:  "payloads",
			Usage: "prints stored findings",
			Value: true,
		},
		&cli.BoolFlag{
			Name:  "dump",
			Usage: "dumps every stored value",
		},
	)
}

// existingSession resolves the layout of a scan that must already exist
func existingSession(ctx *cli.Context) (*trawl.Config, *store.Layout, error) {
	cfg, err := LoadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	layout, err := openSession(cfg)
	if err != nil {
		return nil, nil, err
	}
	if _, err := os.Stat(layout.Dir); err != nil {
		return nil, nil, errors.Wrapf(trawl.ErrNotFound, "no scan of %s with scope %s in %s", cfg.URL, cfg.Scope, cfg.DataPath)
	}
	return cfg, layout, nil
}

// DBView prints what a scan stored
func DBView(ctx *cli.Context) error {
	setupLogging(ctx)
	_, layout, err := existingSession(ctx)
	if err != nil {
		return err
	}

	db := store.NewPersister(layout.DBPath())
	if err := db.Init(); err != nil {
		log.Error().Err(err).Msg("failed to init database for viewing")
		return err
	}
	defer func() {
		log.Info().Msg("closing db & syncing, please wait")
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}()
	return viewStore(ctx, db, os.Stdout)
}

func viewStore(ctx *cli.Context, db trawl.Storer, out io.Writer) error {
	root, err := db.GetRootURL()
	if err != nil {
		return err
	}
	paths, _ := db.CountPaths()
	toBrowse, _ := db.CountToBrowse()
	finished, _ := db.HasScanFinished()
	fmt.Fprintf(out, "Root: %s\nStored: %d resources, %d left to browse, crawl finished: %t\n", root, paths, toBrowse, finished)

	if ctx.Bool("urls") {
		for res := range db.GetLinks(ctx.Context, "") {
			printResource(out, ctx.Bool("dump"), res)
		}
		for res := range db.GetForms(ctx.Context, "") {
			printResource(out, ctx.Bool("dump"), res)
		}
	}

	if ctx.Bool("payloads") {
		found := 0
		for p := range db.GetPayloads(ctx.Context) {
			found++
			if ctx.Bool("dump") {
				spew.Fdump(out, p)
				continue
			}
			fmt.Fprintf(out, "[%s] %s %s %s: %s\n", p.Module, p.Type, p.Request.Method, p.Request.URL, p.Info)
		}
		fmt.Fprintf(out, "Had %d findings\n", found)
	}
	return nil
}

func printResource(out io.Writer, dump bool, res *trawl.Resource) {
	if dump {
		spew.Fdump(out, res)
		return
	}
	status := 0
	if res.Response != nil {
		status = res.Response.Status
	}
	fmt.Fprintf(out, "%d %s %s (depth %d)\n", status, res.Request.Method, res.Request.URL, res.Request.Depth)
}

// SitemapFlags for the sitemap command
func SitemapFlags() []cli.Flag {
	return append(TargetFlags(),
		&cli.IntFlag{
			Name:  "depth",
			Usage: "max depth to print",
			Value: trawl.DefaultMaxDepth,
		},
	)
}

// Sitemap prints the link graph of a scan as a tree from the root url
func Sitemap(ctx *cli.Context) error {
	setupLogging(ctx)
	cfg, layout, err := existingSession(ctx)
	if err != nil {
		return err
	}
	root, err := trawl.NewGetRequest(cfg.URL)
	if err != nil {
		return err
	}

	graph := store.NewLinkGraph(GraphDB, layout.GraphPath())
	if err := graph.Init(); err != nil {
		return err
	}
	defer graph.Close()
	return printTree(os.Stdout, graph, root.URL, ctx.Int("depth"))
}

func printTree(out io.Writer, graph trawl.LinkGrapher, root string, maxDepth int) error {
	seen := map[string]bool{root: true}
	var walk func(url string, depth int) error
	walk = func(url string, depth int) error {
		fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", depth), url)
		if depth >= maxDepth {
			return nil
		}
		children, err := graph.Children(url)
		if err != nil {
			return err
		}
		for _, child := range children {
			if seen[child] {
				continue
			}
			seen[child] = true
			if err := walk(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(root, 0)
}
