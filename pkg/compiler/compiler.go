// Package compiler turns a block tree into CSS, an HTML template carrying
// directives for the runtime evaluator, and a font usage map.
//
// A compilation works on a private deep copy of its input and owns all of
// its accumulators, so one Compiler may be used from many goroutines as
// long as its Lookup is safe for concurrent use.
package compiler

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/sambeau/trellis/pkg/block"
	terrors "github.com/sambeau/trellis/pkg/errors"
)

// Result is the output of one compilation.
type Result struct {
	HTML        string              `json:"html"`
	CSS         string              `json:"css"`
	Fonts       FontMap             `json:"fonts"`
	Diagnostics terrors.Diagnostics `json:"diagnostics"`

	// BlockScripts maps a block id to its blockDataScript, for the
	// runtime's block_data function.
	BlockScripts map[string]string `json:"blockScripts"`
}

// Compiler compiles block trees against one component lookup.
type Compiler struct {
	lookup Lookup
	opts   Options
}

// New creates a compiler. A nil lookup resolves no components.
func New(lookup Lookup, opts Options) *Compiler {
	if lookup == nil {
		lookup = MapLookup{}
	}
	return &Compiler{lookup: lookup, opts: opts.withDefaults()}
}

// Compile decodes a JSON block or array of blocks and compiles it. Only
// malformed input fails; every other problem is reported in
// Result.Diagnostics.
func (cp *Compiler) Compile(data []byte) (*Result, error) {
	blocks, err := block.Decode(data)
	if err != nil {
		return nil, err
	}
	return cp.CompileBlocks(blocks), nil
}

// CompileBlocks compiles already decoded root blocks. The blocks are not
// modified.
func (cp *Compiler) CompileBlocks(blocks []*block.Block) *Result {
	c := cp.newCompilation()

	roots := make([]*block.Block, 0, len(blocks))
	for _, b := range blocks {
		if b == nil {
			continue
		}
		root := b.Clone()
		root.Normalize()
		root.Walk(func(x *block.Block) bool {
			for _, cls := range x.Classes {
				c.classes[cls] = true
			}
			return true
		})
		roots = append(roots, root)
	}

	c.out.WriteString("{% with " + propsVar + " = {} %}{% with " + passedDownPropsVar + " = {} %}")
	for _, root := range roots {
		c.emit(root, scope{})
	}
	c.out.WriteString("{% endwith %}{% endwith %}")

	return &Result{
		HTML:         c.out.String(),
		CSS:          c.css.String(),
		Fonts:        c.fonts,
		Diagnostics:  c.diags,
		BlockScripts: c.scripts,
	}
}

// compilation holds the state of one Compile call.
type compilation struct {
	opts   Options
	lookup Lookup
	log    zerolog.Logger

	out     strings.Builder
	css     strings.Builder
	fonts   FontMap
	diags   terrors.Diagnostics
	classes map[string]bool
	scripts map[string]string
	seq     int
}

func (cp *Compiler) newCompilation() *compilation {
	log := zerolog.Nop()
	if cp.opts.Logger != nil {
		log = *cp.opts.Logger
	}
	return &compilation{
		opts:    cp.opts,
		lookup:  cp.lookup,
		log:     log,
		fonts:   FontMap{},
		diags:   terrors.Diagnostics{},
		classes: map[string]bool{},
		scripts: map[string]string{},
	}
}

// report records a recovered problem and logs it.
func (c *compilation) report(kind terrors.Kind, blockID string, err *terrors.TrellisError) {
	d := terrors.DiagnosticFrom(kind, blockID, err)
	c.diags = append(c.diags, d)
	c.log.Warn().
		Str("kind", kind.String()).
		Str("code", d.Code).
		Str("block", blockID).
		Msg(d.Message)
}

// nextID returns a per-compilation sequence number.
func (c *compilation) nextID() int {
	c.seq++
	return c.seq
}

// UsesComponent reports whether any block in the trees extends the
// component id.
func UsesComponent(blocks []*block.Block, id string) bool {
	for _, b := range blocks {
		if b == nil {
			continue
		}
		found := !b.Walk(func(x *block.Block) bool {
			return x.ExtendedFromComponent != id
		})
		if found {
			return true
		}
	}
	return false
}
