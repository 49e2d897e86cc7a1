// Package report generates, caches, and renders the detailed career report.
package report

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pavelanni/careercompass/internal/model"

	"golang.org/x/sync/singleflight"
)

// callTimeout bounds a shared gateway call once no caller's context governs it.
const callTimeout = 2 * time.Minute

// Reporter produces a detailed report. *llm.Client implements it.
type Reporter interface {
	Report(ctx context.Context, req model.ReportRequest) (model.DetailedReport, error)
}

// Generator caches reports per (stream, feedback, answers) and collapses
// identical concurrent requests into one gateway call. Failures are never
// cached.
type Generator struct {
	rep   Reporter
	group singleflight.Group

	mu    sync.Mutex
	cache map[string]model.DetailedReport
	gen   uint64
}

// NewGenerator creates a generator with an empty cache.
func NewGenerator(rep Reporter) *Generator {
	return &Generator{rep: rep, cache: make(map[string]model.DetailedReport)}
}

// Generate returns the report for req, calling the gateway only on a cache miss.
func (g *Generator) Generate(ctx context.Context, req model.ReportRequest) (model.DetailedReport, error) {
	if req.Stream == "" {
		return model.DetailedReport{}, model.ErrNoStream
	}
	if !req.Feedback.Valid() {
		return model.DetailedReport{}, model.ErrInvalidFeedback
	}

	key := cacheKey(req)
	g.mu.Lock()
	if r, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return r, nil
	}
	gen := g.gen
	g.mu.Unlock()

	// The shared call outlives any single caller; each caller stops
	// waiting on its own context.
	ch := g.group.DoChan(fmt.Sprintf("%d|%s", gen, key), func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), callTimeout)
		defer cancel()
		r, err := g.rep.Report(callCtx, req)
		if err != nil {
			return nil, err
		}
		g.mu.Lock()
		if g.gen == gen {
			g.cache[key] = r
		}
		g.mu.Unlock()
		return r, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return model.DetailedReport{}, res.Err
		}
		return res.Val.(model.DetailedReport), nil
	case <-ctx.Done():
		return model.DetailedReport{}, ctx.Err()
	}
}

// Cached returns the cached report for req, if any.
func (g *Generator) Cached(req model.ReportRequest) (model.DetailedReport, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.cache[cacheKey(req)]
	return r, ok
}

// Invalidate drops every cached report. Calls already in flight still
// return to their callers but are not cached.
func (g *Generator) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen++
	clear(g.cache)
}

func cacheKey(req model.ReportRequest) string {
	return req.Stream + "\x00" + string(req.Feedback) + "\x00" + strings.Join(req.Answers, "\x1f")
}
