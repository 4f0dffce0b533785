package store

import (
	"context"
	"os"
	"sort"

	"github.com/cayleygraph/cayley"
	"github.com/cayleygraph/cayley/graph"
	_ "github.com/cayleygraph/cayley/graph/kv/bolt"
	"github.com/cayleygraph/quad"
	"github.com/pkg/errors"
	"gitlab.com/trawler/trawl"
)

// MemoryGraph is the db type of a non persistent graph
const MemoryGraph = "memstore"

var linksTo = quad.IRI("links_to")

// InitGraph creates the quad store if needed and opens it
func InitGraph(dbType, filepath string) (*cayley.Handle, error) {
	var err error

	if dbType == MemoryGraph {
		return cayley.NewMemoryGraph()
	}

	if err = os.MkdirAll(filepath, 0755); err != nil {
		return nil, err
	}

	// Initialize the database
	err = graph.InitQuadStore(dbType, filepath, nil)
	if err != nil && err != graph.ErrDatabaseExists {
		return nil, err
	}

	// Open and use the database
	store, err := cayley.NewGraph(dbType, filepath, nil)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// LinkGraph records referer -> url edges discovered while crawling
type LinkGraph struct {
	Store    *cayley.Handle
	filepath string
	dbType   string
}

var _ trawl.LinkGrapher = (*LinkGraph)(nil)

// NewLinkGraph of dbType (bolt or memstore) at filepath
func NewLinkGraph(dbType, filepath string) *LinkGraph {
	return &LinkGraph{dbType: dbType, filepath: filepath}
}

// Init the graph
func (g *LinkGraph) Init() error {
	var err error

	g.Store, err = InitGraph(g.dbType, g.filepath)
	return errors.Wrap(err, "opening link graph")
}

// AddLink from a page to a resource it references, duplicate edges are ignored
func (g *LinkGraph) AddLink(from, to string) error {
	if from == "" || to == "" {
		return nil
	}
	err := g.Store.AddQuad(quad.Make(quad.IRI(from), linksTo, quad.IRI(to), nil))
	if err != nil && !graph.IsQuadExist(err) {
		return err
	}
	return nil
}

// Children are the urls referenced by from
func (g *LinkGraph) Children(from string) ([]string, error) {
	p := cayley.StartPath(g.Store, quad.IRI(from)).Out(linksTo)
	return g.collect(p)
}

// Parents are the pages that referenced to
func (g *LinkGraph) Parents(to string) ([]string, error) {
	p := cayley.StartPath(g.Store, quad.IRI(to)).In(linksTo)
	return g.collect(p)
}

func (g *LinkGraph) collect(p *cayley.Path) ([]string, error) {
	values, err := p.Iterate(context.Background()).AllValues(g.Store)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(values))
	for _, v := range values {
		if iri, ok := v.(quad.IRI); ok {
			urls = append(urls, string(iri))
		}
	}
	sort.Strings(urls)
	return urls, nil
}

// Close the graph
func (g *LinkGraph) Close() error {
	if g.Store == nil {
		return nil
	}
	return g.Store.Close()
}
