// ABOUTME: Uniform operation dispatch shared by the MCP server and CLI
// ABOUTME: Closed operation set, detail levels, token accounting, truncation
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/florinutz/narra/internal/arc"
	"github.com/florinutz/narra/internal/backfill"
	"github.com/florinutz/narra/internal/composite"
	"github.com/florinutz/narra/internal/config"
	"github.com/florinutz/narra/internal/consistency"
	"github.com/florinutz/narra/internal/embed"
	"github.com/florinutz/narra/internal/export"
	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/perception"
	"github.com/florinutz/narra/internal/roles"
	"github.com/florinutz/narra/internal/search"
	"github.com/florinutz/narra/internal/session"
	"github.com/florinutz/narra/internal/storage"
	"github.com/florinutz/narra/internal/temporal"
	"github.com/florinutz/narra/internal/tension"
	"github.com/florinutz/narra/internal/vectorops"
)

// DetailLevel grades how much of an entity a response carries
type DetailLevel string

const (
	DetailSummary  DetailLevel = "summary"
	DetailCompact  DetailLevel = "compact"
	DetailStandard DetailLevel = "standard"
	DetailFull     DetailLevel = "full"
)

// Per-tool-type default token budgets.
const (
	compositeBudget = 4000
	lookupBudget    = 1000
)

// Request is the uniform shape of every operation call
type Request struct {
	Operation   string         `json:"operation"`
	TokenBudget int            `json:"token_budget,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
}

// Truncation explains a list cut short by the token budget
type Truncation struct {
	Reason        string `json:"reason"`
	OriginalCount int    `json:"original_count"`
	ReturnedCount int    `json:"returned_count"`
}

// Response wraps an operation result with token accounting
type Response struct {
	Result        any         `json:"result"`
	Hints         []string    `json:"hints,omitempty"`
	TokenEstimate int         `json:"token_estimate"`
	Truncated     *Truncation `json:"truncated,omitempty"`
}

// toolType picks the default budget for an operation
type toolType int

const (
	toolLookup toolType = iota
	toolComposite
)

// handler runs one operation. It returns the result payload, the entity
// IDs the caller touched (for session access tracking), and optional
// hints for the author.
type handler func(ctx context.Context, req *call) (any, []string, []string, error)

type operation struct {
	tool toolType
	run  handler
}

// Dispatcher routes operations to services
type Dispatcher struct {
	cfg      *config.Config
	store    *storage.Storage
	backend  embed.Backend
	render   *composite.Renderer
	searcher *search.Service
	arcs     *arc.Service
	percept  *perception.Service
	vec      *vectorops.Service
	temporal *temporal.Service
	roles    *roles.Service
	tension  *tension.Service
	checker  *consistency.Service
	session  *session.Manager
	exporter *export.Service
	backfill *backfill.Service

	ops map[string]operation
}

// New wires a dispatcher over the full service stack
func New(cfg *config.Config, store *storage.Storage, backend embed.Backend) *Dispatcher {
	d := &Dispatcher{
		cfg:      cfg,
		store:    store,
		backend:  backend,
		render:   composite.NewRenderer(store),
		searcher: search.NewService(store, backend),
		arcs:     arc.NewService(store),
		percept:  perception.NewService(store),
		vec:      vectorops.NewService(store),
		temporal: temporal.NewService(store),
		roles:    roles.NewService(store),
		tension:  tension.NewService(store),
		checker:  consistency.NewService(store),
		session:  session.NewManager(cfg.SessionPath, cfg.RecentAccessLimit),
		exporter: export.NewService(store),
		backfill: backfill.NewService(store, backend),
	}
	d.ops = d.registry()
	return d
}

// Session exposes the session manager to front-ends
func (d *Dispatcher) Session() *session.Manager { return d.session }

// Searcher exposes the search service so front-ends can invalidate
// semantic indexes after a backfill.
func (d *Dispatcher) Searcher() *search.Service { return d.searcher }

// Operations lists the closed operation set, sorted
func (d *Dispatcher) Operations() []string {
	out := make([]string, 0, len(d.ops))
	for name := range d.ops {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// call is one in-flight request with its resolved context
type call struct {
	params params
	detail DetailLevel
	budget int
}

// Dispatch validates, routes, and wraps one operation request
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (*Response, error) {
	op, ok := d.ops[req.Operation]
	if !ok {
		return nil, narraerr.Validation("unknown operation %q", req.Operation)
	}
	if err := ctx.Err(); err != nil {
		return nil, narraerr.Wrap(narraerr.KindCancelled, err, "request cancelled")
	}

	budget := d.resolveBudget(req.TokenBudget, op.tool)
	c := &call{
		params: params(req.Params),
		detail: d.resolveDetail(req, budget),
		budget: budget,
	}

	result, accessed, hints, err := op.run(ctx, c)
	if err != nil {
		if ctx.Err() != nil && narraerr.KindOf(err) == narraerr.KindDatabase {
			return nil, narraerr.Wrap(narraerr.KindCancelled, err, "request cancelled")
		}
		return nil, err
	}

	resp, err := d.account(result, budget)
	if err != nil {
		return nil, err
	}
	resp.Hints = hints

	if len(accessed) > 0 {
		if err := d.session.RecordAccess(accessed...); err != nil {
			// Access tracking never fails the operation
			resp.Hints = append(resp.Hints, "session access tracking unavailable")
		}
	}
	return resp, nil
}

// resolveBudget applies the precedence chain: explicit request budget,
// then environment override, then the per-tool default. Always capped.
func (d *Dispatcher) resolveBudget(requested int, tool toolType) int {
	budget := requested
	if budget <= 0 {
		budget = d.cfg.TokenBudget
	}
	if budget <= 0 {
		if tool == toolComposite {
			budget = compositeBudget
		} else {
			budget = lookupBudget
		}
	}
	if budget > config.MaxTokenBudget {
		budget = config.MaxTokenBudget
	}
	return budget
}

// resolveDetail maps an explicit detail_level param, else the effective
// budget, onto a detail level.
func (d *Dispatcher) resolveDetail(req *Request, budget int) DetailLevel {
	if explicit, ok := params(req.Params).str("detail_level"); ok {
		switch DetailLevel(explicit) {
		case DetailSummary, DetailCompact, DetailStandard, DetailFull:
			return DetailLevel(explicit)
		}
	}
	switch {
	case budget <= 500:
		return DetailSummary
	case budget <= 1500:
		return DetailCompact
	case budget <= 3500:
		return DetailStandard
	default:
		return DetailFull
	}
}

// account estimates token cost and truncates list results to the budget
func (d *Dispatcher) account(result any, budget int) (*Response, error) {
	estimate, err := estimateTokens(result)
	if err != nil {
		return nil, err
	}
	resp := &Response{Result: result, TokenEstimate: estimate}
	if estimate <= budget {
		return resp, nil
	}

	v := reflect.ValueOf(result)
	if v.Kind() != reflect.Slice || v.Len() <= 1 {
		// Non-list results are returned whole; the estimate tells the
		// caller it overran
		return resp, nil
	}

	original := v.Len()
	kept := v
	for kept.Len() > 1 && estimate > budget {
		// Proportional cut, at least one element per round
		target := kept.Len() * budget / estimate
		if target >= kept.Len() {
			target = kept.Len() - 1
		}
		if target < 1 {
			target = 1
		}
		kept = kept.Slice(0, target)
		estimate, err = estimateTokens(kept.Interface())
		if err != nil {
			return nil, err
		}
	}

	resp.Result = kept.Interface()
	resp.TokenEstimate = estimate
	resp.Truncated = &Truncation{
		Reason:        "token_budget",
		OriginalCount: original,
		ReturnedCount: kept.Len(),
	}
	return resp, nil
}

// estimateTokens approximates one token per four JSON characters
func estimateTokens(v any) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("failed to encode result: %w", err)
	}
	return (len(data) + 3) / 4, nil
}
