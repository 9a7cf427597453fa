package store

import (
	"context"
	"errors"
	"sync"

	"github.com/sambeau/trellis/pkg/block"
	"github.com/sambeau/trellis/pkg/compiler"
)

// ComponentLookup adapts a Store to compiler.Lookup for one request.
// Components are fetched at most once per lookup.
type ComponentLookup struct {
	ctx   context.Context
	store Store

	mu   sync.Mutex
	seen map[string]*Component
	errs map[string]error
}

// Lookup returns a compiler lookup reading from s with ctx.
func Lookup(ctx context.Context, s Store) *ComponentLookup {
	return &ComponentLookup{
		ctx:   ctx,
		store: s,
		seen:  make(map[string]*Component),
		errs:  make(map[string]error),
	}
}

func (l *ComponentLookup) component(id string) (*Component, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c, ok := l.seen[id]; ok {
		return c, nil
	}
	if err, ok := l.errs[id]; ok {
		return nil, err
	}
	c, err := l.store.GetComponent(l.ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = compiler.ErrComponentNotFound
		}
		l.errs[id] = err
		return nil, err
	}
	l.seen[id] = c
	return c, nil
}

// GetComponentByID implements compiler.Lookup.
func (l *ComponentLookup) GetComponentByID(id string) (*block.Block, error) {
	c, err := l.component(id)
	if err != nil {
		return nil, err
	}
	return c.BlockTemplate, nil
}

// GetStandardPropType implements compiler.Lookup from the props declared on
// the component's root block.
func (l *ComponentLookup) GetStandardPropType(componentID, propName string) string {
	c, err := l.component(componentID)
	if err != nil || c.BlockTemplate == nil {
		return ""
	}
	return c.BlockTemplate.Props[propName].StandardType()
}

// ComponentIDs implements compiler.ComponentLister.
func (l *ComponentLookup) ComponentIDs() []string {
	ids, err := l.store.ListComponents(l.ctx)
	if err != nil {
		return nil
	}
	return ids
}
