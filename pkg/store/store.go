// Package store persists pages and component templates and serves them to
// the compiler.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sambeau/trellis/pkg/block"
	terrors "github.com/sambeau/trellis/pkg/errors"
)

// ErrNotFound is wrapped by every error reporting a missing document.
var ErrNotFound = errors.New("document not found")

// Component is a reusable block subtree addressed by id.
type Component struct {
	ID            string       `json:"id"`
	Name          string       `json:"name,omitempty"`
	BlockTemplate *block.Block `json:"blockTemplate"`
}

// Page is a routable block tree plus the static data previews render with.
type Page struct {
	Route  string         `json:"route"`
	Name   string         `json:"name,omitempty"`
	Title  string         `json:"title,omitempty"`
	Blocks []*block.Block `json:"blocks"`
	Data   map[string]any `json:"data,omitempty"`

	// BlockData holds static results for block data scripts, keyed by
	// block id, used where no script runtime is available.
	BlockData map[string]map[string]any `json:"blockData,omitempty"`
}

// Store reads and writes documents. Implementations are safe for
// concurrent use.
type Store interface {
	GetComponent(ctx context.Context, id string) (*Component, error)
	GetPage(ctx context.Context, route string) (*Page, error)
	PutComponent(ctx context.Context, c *Component) error
	PutPage(ctx context.Context, p *Page) error
	ListComponents(ctx context.Context) ([]string, error)
	ListPages(ctx context.Context) ([]string, error)
	Close() error
}

// Supported drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Options select and configure a store.
type Options struct {
	Driver string
	DSN    string // database drivers
	Dir    string // file driver
}

// Open creates the store named by opts.Driver. Database stores are
// migrated before they are returned.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverFile:
		return NewFileStore(opts.Dir)
	case DriverSQLite, DriverPostgres, DriverMySQL:
		s, err := OpenSQL(opts.Driver, opts.DSN)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	}
	return nil, terrors.New("STORE-0003", map[string]any{"Driver": opts.Driver})
}

func notFound(kind, id string) error {
	return terrors.New("STORE-0001", map[string]any{"Kind": kind, "ID": id}).WithCause(ErrNotFound)
}

func decodeError(kind, id string, err error) error {
	return terrors.New("STORE-0002", map[string]any{"Kind": kind, "ID": id, "Reason": err.Error()}).WithCause(err)
}

// normalizePage prepares a decoded page for use.
func normalizePage(p *Page) {
	kept := p.Blocks[:0]
	for _, b := range p.Blocks {
		if b != nil {
			b.Normalize()
			kept = append(kept, b)
		}
	}
	p.Blocks = kept
}

func validateComponent(c *Component) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("component id is required")
	}
	if c.BlockTemplate == nil {
		return fmt.Errorf("component %q has no blockTemplate", c.ID)
	}
	return nil
}

func validatePage(p *Page) error {
	if p == nil || p.Route == "" {
		return fmt.Errorf("page route is required")
	}
	return nil
}

// CleanRoute returns route with exactly one leading slash and no trailing
// slash, so "about/", "/about" and "about" address the same page.
func CleanRoute(route string) string {
	return "/" + strings.Trim(strings.TrimSpace(route), "/")
}
