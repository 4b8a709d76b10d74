// Package attr keeps a table of named device attributes. Each attribute has
// a show function and, if writable, a store function, mirroring the way a
// hwmon driver exposes its files.
package attr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrNotFound = errors.New("attribute not found")
	ErrReadOnly = errors.New("attribute is read-only")
	ErrExists   = errors.New("attribute already registered")
)

type ShowFunc func(ctx context.Context) (string, error)

type StoreFunc func(ctx context.Context, value string) error

// Attribute binds a name to device accessors. A nil Store makes it read-only.
type Attribute struct {
	Name  string
	Show  ShowFunc
	Store StoreFunc
}

func (a Attribute) Writable() bool {
	return a.Store != nil
}

// Provider is implemented by devices that publish attributes.
type Provider interface {
	Attributes() []Attribute
}

// Group is a registration table for the attributes of one device.
type Group struct {
	mx    sync.RWMutex
	name  string
	attrs map[string]Attribute
}

func NewGroup(name string) *Group {
	return &Group{name: name, attrs: make(map[string]Attribute)}
}

func (g *Group) Name() string {
	return g.name
}

// Register adds attributes to the group. Either all of them are added or,
// on a duplicate or invalid entry, none is.
func (g *Group) Register(attrs ...Attribute) error {
	g.mx.Lock()
	defer g.mx.Unlock()
	seen := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		if a.Name == "" || a.Show == nil {
			return fmt.Errorf("%s: invalid attribute %q", g.name, a.Name)
		}
		if _, ok := g.attrs[a.Name]; ok {
			return fmt.Errorf("%s/%s: %w", g.name, a.Name, ErrExists)
		}
		if _, ok := seen[a.Name]; ok {
			return fmt.Errorf("%s/%s: %w", g.name, a.Name, ErrExists)
		}
		seen[a.Name] = struct{}{}
	}
	for _, a := range attrs {
		g.attrs[a.Name] = a
	}
	return nil
}

// RegisterProvider registers everything p publishes.
func (g *Group) RegisterProvider(p Provider) error {
	return g.Register(p.Attributes()...)
}

func (g *Group) Unregister(name string) {
	g.mx.Lock()
	defer g.mx.Unlock()
	delete(g.attrs, name)
}

func (g *Group) lookup(name string) (Attribute, error) {
	g.mx.RLock()
	defer g.mx.RUnlock()
	a, ok := g.attrs[name]
	if !ok {
		return Attribute{}, fmt.Errorf("%s/%s: %w", g.name, name, ErrNotFound)
	}
	return a, nil
}

func (g *Group) Show(ctx context.Context, name string) (string, error) {
	a, err := g.lookup(name)
	if err != nil {
		return "", err
	}
	return a.Show(ctx)
}

func (g *Group) Store(ctx context.Context, name, value string) error {
	a, err := g.lookup(name)
	if err != nil {
		return err
	}
	if !a.Writable() {
		return fmt.Errorf("%s/%s: %w", g.name, name, ErrReadOnly)
	}
	return a.Store(ctx, value)
}

// Names returns registered attribute names in lexical order.
func (g *Group) Names() []string {
	g.mx.RLock()
	defer g.mx.RUnlock()
	names := make([]string, 0, len(g.attrs))
	for name := range g.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the attribute registered under name.
func (g *Group) Get(name string) (Attribute, bool) {
	a, err := g.lookup(name)
	return a, err == nil
}
