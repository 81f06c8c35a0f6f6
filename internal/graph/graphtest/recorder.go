// Package graphtest provides an in-memory graph.Runner that records queries.
package graphtest

import (
	"context"
	"strings"
	"sync"

	"github.com/ademuri/playlist-builder/internal/graph"
)

// Call is one recorded query.
type Call struct {
	Cypher string
	Params map[string]any
}

// Responder produces the rows for a matched query.
type Responder func(params map[string]any) ([]graph.Record, error)

type route struct {
	fragment string
	respond  Responder
}

// Recorder answers queries by the first registered fragment they contain and
// returns no rows for anything else.
type Recorder struct {
	mu     sync.Mutex
	routes []route
	calls  []Call
}

var _ graph.Runner = (*Recorder)(nil)

func New() *Recorder {
	return &Recorder{}
}

// On registers fn for every query containing fragment.
func (r *Recorder) On(fragment string, fn Responder) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route{fragment: fragment, respond: fn})
	return r
}

// Rows registers fixed rows for every query containing fragment.
func (r *Recorder) Rows(fragment string, rows ...graph.Record) *Recorder {
	return r.On(fragment, func(map[string]any) ([]graph.Record, error) {
		return rows, nil
	})
}

// Fail makes every query containing fragment return err.
func (r *Recorder) Fail(fragment string, err error) *Recorder {
	return r.On(fragment, func(map[string]any) ([]graph.Record, error) {
		return nil, err
	})
}

func (r *Recorder) Run(_ context.Context, cypher string, params map[string]any) ([]graph.Record, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Cypher: cypher, Params: params})
	routes := r.routes
	r.mu.Unlock()

	for _, rt := range routes {
		if strings.Contains(cypher, rt.fragment) {
			return rt.respond(params)
		}
	}
	return nil, nil
}

// Calls returns every query run so far, in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Matching returns the recorded calls whose query contains fragment.
func (r *Recorder) Matching(fragment string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if strings.Contains(c.Cypher, fragment) {
			out = append(out, c)
		}
	}
	return out
}
