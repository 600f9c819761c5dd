// Package agent defines the capability handler model: queries, handler
// descriptors, invocation results, and the process-lifetime registry the
// router selects from.
package agent

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDuplicateName indicates two descriptors registered the same name.
	ErrDuplicateName = errors.New("duplicate handler name")

	// ErrUnknownHandler indicates a lookup for an unregistered handler.
	ErrUnknownHandler = errors.New("unknown handler")

	// ErrNoFallback indicates a registry constructed without a fallback handler.
	ErrNoFallback = errors.New("fallback handler not registered")
)

// Turn is one entry of the conversation history, newest last.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Query is the immutable per-request input value. History is owned by the
// caller; the engine never mutates it.
type Query struct {
	Text          string `json:"text"`
	CompetitionID string `json:"competition_id"`
	UserID        string `json:"user_id"`
	History       []Turn `json:"history,omitempty"`
}

// Context is the structured context a handler receives alongside the query
// text. Plain strings keep handlers decoupled from the classifier and
// corpus packages.
type Context struct {
	// Category and Intent come from classification.
	Category string
	Intent   string

	// UnavailableSections lists corpus sections that failed to materialize
	// for this request. Retrieval handlers degrade rather than abort.
	UnavailableSections []string

	// PriorText carries the previous handler's output in pipeline and graph
	// topologies. Empty for the first handler.
	PriorText string
}

// Result is the outcome of one handler invocation. Failures are values:
// a failed handler yields Success=false with an error summary, never a
// panic across the executor boundary.
type Result struct {
	HandlerName string `json:"handler_name"`
	Text        string `json:"text"`
	Success     bool   `json:"success"`
	Err         string `json:"err,omitempty"`
	LatencyMS   int64  `json:"latency_ms"`
}

// InvokeFunc is the uniform handler call signature. Implementations return
// a populated Result; a non-nil error is treated by the executor the same
// as Success=false.
type InvokeFunc func(ctx context.Context, query Query, hctx Context) (Result, error)

// Descriptor describes one capability handler. Descriptors are registered
// at startup and never mutated at runtime. Multiple descriptors may share
// capability tags; the router resolves the ambiguity.
type Descriptor struct {
	Name            string
	Description     string
	Capabilities    []string
	KeywordAffinity map[string]float64
	Priority        int
	Invoke          InvokeFunc
}

// HasCapability reports whether the descriptor declares the given tag.
func (d *Descriptor) HasCapability(tag string) bool {
	for _, c := range d.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// Registry is the immutable-after-init catalogue of handler descriptors.
// It replaces module-level mutable registries with an explicitly
// constructed object passed into the engine at startup.
type Registry struct {
	byName   map[string]*Descriptor
	ordered  []*Descriptor
	fallback *Descriptor
}

// NewRegistry builds a registry from descriptors. The fallback name must
// identify one of them; the router and executor rely on it always existing.
func NewRegistry(descriptors []*Descriptor, fallbackName string) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, errors.New("at least one handler required")
	}

	byName := make(map[string]*Descriptor, len(descriptors))
	ordered := make([]*Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Name == "" {
			return nil, errors.New("handler name required")
		}
		if d.Invoke == nil {
			return nil, fmt.Errorf("handler %q has no invoke function", d.Name)
		}
		if _, exists := byName[d.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, d.Name)
		}
		byName[d.Name] = d
		ordered = append(ordered, d)
	}

	fallback, ok := byName[fallbackName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoFallback, fallbackName)
	}

	return &Registry{
		byName:   byName,
		ordered:  ordered,
		fallback: fallback,
	}, nil
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (*Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandler, name)
	}
	return d, nil
}

// All returns the descriptors in registration order. Callers must not
// modify the returned slice.
func (r *Registry) All() []*Descriptor {
	return r.ordered
}

// ByCapability returns descriptors declaring the given capability tag, in
// registration order.
func (r *Registry) ByCapability(tag string) []*Descriptor {
	var out []*Descriptor
	for _, d := range r.ordered {
		if d.HasCapability(tag) {
			out = append(out, d)
		}
	}
	return out
}

// Fallback returns the designated fallback conversational handler.
func (r *Registry) Fallback() *Descriptor {
	return r.fallback
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	return len(r.ordered)
}
