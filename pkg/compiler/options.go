package compiler

import (
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sambeau/trellis/pkg/block"
)

const (
	// DefaultClassPrefix starts every generated scoped class name.
	DefaultClassPrefix = "trellis-"

	// DefaultMaxComponentDepth bounds nested component resolution.
	DefaultMaxComponentDepth = 32

	// TextBlockClass marks blocks rendered from text-bearing tags.
	TextBlockClass = "__text_block__"

	// Breakpoints (desktop first). Tablet is declared before mobile so the
	// narrower query wins.
	TabletMaxWidth = 1023
	MobileMaxWidth = 576
)

// Lookup provides component templates and standard prop metadata. It is
// the only collaborator the compiler reads from and may be shared between
// concurrent compilations.
type Lookup interface {
	GetComponentByID(id string) (*block.Block, error)
	GetStandardPropType(componentID, propName string) string
}

// ComponentLister is optionally implemented by a Lookup to improve missing
// component messages.
type ComponentLister interface {
	ComponentIDs() []string
}

// ErrComponentNotFound is returned by lookups for unknown ids.
var ErrComponentNotFound = errors.New("component not found")

// Options control one compilation.
type Options struct {
	// ClassPrefix defaults to DefaultClassPrefix.
	ClassPrefix string

	// BaseURL, when set, is prefixed to root-relative img src attributes.
	BaseURL string

	// PreserveFalsyInRepeaters keeps empty strings and zero from falling
	// back to static content in key bindings inside repeater bodies, the
	// same as outside repeaters.
	PreserveFalsyInRepeaters bool

	// MaxComponentDepth defaults to DefaultMaxComponentDepth.
	MaxComponentDepth int

	// NewClassSuffix returns the random part of a scoped class name.
	NewClassSuffix func() string

	// Logger receives diagnostics. Nil disables logging.
	Logger *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.ClassPrefix == "" {
		o.ClassPrefix = DefaultClassPrefix
	}
	if o.MaxComponentDepth <= 0 {
		o.MaxComponentDepth = DefaultMaxComponentDepth
	}
	if o.NewClassSuffix == nil {
		o.NewClassSuffix = randomSuffix
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	return o
}

func randomSuffix() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}

// MapLookup serves components from memory. Standard prop types come from
// the props declared on each component's root block.
type MapLookup map[string]*block.Block

// GetComponentByID implements Lookup.
func (m MapLookup) GetComponentByID(id string) (*block.Block, error) {
	b, ok := m[id]
	if !ok || b == nil {
		return nil, ErrComponentNotFound
	}
	return b, nil
}

// GetStandardPropType implements Lookup.
func (m MapLookup) GetStandardPropType(componentID, propName string) string {
	b, ok := m[componentID]
	if !ok || b == nil {
		return ""
	}
	return b.Props[propName].StandardType()
}

// ComponentIDs implements ComponentLister.
func (m MapLookup) ComponentIDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
