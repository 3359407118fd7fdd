// ABOUTME: Tests for the operation dispatcher
// ABOUTME: Budget resolution, routing, the consistency gate, and truncation
package dispatch

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/florinutz/narra/internal/config"
	"github.com/florinutz/narra/internal/embed"
	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/storage"
)

const testDim = 8

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	return newTestDispatcherWith(t, embed.NewStub(testDim))
}

func newTestDispatcherWith(t *testing.T, backend embed.Backend) *Dispatcher {
	t.Helper()
	store, err := storage.OpenInMemory(testDim)
	if err != nil {
		t.Fatalf("OpenInMemory() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{
		DataPath:           ":memory:",
		SessionPath:        filepath.Join(t.TempDir(), "session.json"),
		EmbeddingDimension: testDim,
		BackfillBatchSize:  4,
		SnapshotThreshold:  0.15,
		SearchDefaultK:     10,
		RecentAccessLimit:  10,
	}
	return New(cfg, store, backend)
}

func dispatchOK(t *testing.T, d *Dispatcher, op string, params map[string]any) *Response {
	t.Helper()
	resp, err := d.Dispatch(context.Background(), &Request{Operation: op, Params: params})
	if err != nil {
		t.Fatalf("Dispatch(%s) failed: %v", op, err)
	}
	return resp
}

func TestDispatch_UnknownOperation(t *testing.T) {
	d := newTestDispatcher(t)

	_, err := d.Dispatch(context.Background(), &Request{Operation: "no_such_op"})
	if err == nil {
		t.Fatal("expected error for unknown operation")
	}
	if narraerr.KindOf(err) != narraerr.KindValidation {
		t.Errorf("kind = %s, want %s", narraerr.KindOf(err), narraerr.KindValidation)
	}
}

func TestDispatch_CancelledContext(t *testing.T) {
	d := newTestDispatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Dispatch(ctx, &Request{Operation: "overview"})
	if narraerr.KindOf(err) != narraerr.KindCancelled {
		t.Errorf("kind = %s, want %s", narraerr.KindOf(err), narraerr.KindCancelled)
	}
}

func TestResolveBudget(t *testing.T) {
	d := newTestDispatcher(t)

	tests := []struct {
		name      string
		requested int
		envBudget int
		tool      toolType
		want      int
	}{
		{"request wins", 2000, 3000, toolLookup, 2000},
		{"env next", 0, 3000, toolLookup, 3000},
		{"lookup default", 0, 0, toolLookup, lookupBudget},
		{"composite default", 0, 0, toolComposite, compositeBudget},
		{"capped", 99999, 0, toolLookup, config.MaxTokenBudget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d.cfg.TokenBudget = tt.envBudget
			got := d.resolveBudget(tt.requested, tt.tool)
			if got != tt.want {
				t.Errorf("resolveBudget(%d) = %d, want %d", tt.requested, got, tt.want)
			}
		})
	}
	d.cfg.TokenBudget = 0
}

func TestResolveDetail(t *testing.T) {
	d := newTestDispatcher(t)

	tests := []struct {
		budget int
		want   DetailLevel
	}{
		{400, DetailSummary},
		{1000, DetailCompact},
		{3000, DetailStandard},
		{8000, DetailFull},
	}
	for _, tt := range tests {
		got := d.resolveDetail(&Request{}, tt.budget)
		if got != tt.want {
			t.Errorf("resolveDetail(budget=%d) = %s, want %s", tt.budget, got, tt.want)
		}
	}

	// Explicit detail_level overrides the budget
	req := &Request{Params: map[string]any{"detail_level": "full"}}
	if got := d.resolveDetail(req, 400); got != DetailFull {
		t.Errorf("explicit detail = %s, want %s", got, DetailFull)
	}
}

func TestDispatch_CreateAndLookup(t *testing.T) {
	d := newTestDispatcher(t)

	resp := dispatchOK(t, d, "create_character", map[string]any{
		"name":        "Alice",
		"description": "A cartographer with a guilty conscience.",
	})

	if resp.Result == nil {
		t.Fatal("create_character returned nil result")
	}

	characters, err := d.store.Characters.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(characters) != 1 {
		t.Fatalf("got %d characters, want 1", len(characters))
	}
	id := characters[0].ID
	if !strings.HasPrefix(id, "character:") {
		t.Errorf("ID = %q, want character: prefix", id)
	}

	look := dispatchOK(t, d, "lookup", map[string]any{"entity_id": id})
	view, ok := look.Result.(entityView)
	if !ok {
		t.Fatalf("lookup result is %T, want entityView", look.Result)
	}
	if view.Name != "Alice" {
		t.Errorf("Name = %q, want Alice", view.Name)
	}
	if !strings.Contains(view.Content, "cartographer") {
		t.Errorf("Content = %q, want the description rendered in", view.Content)
	}
}

func TestDispatch_StrictFactBlocksContradiction(t *testing.T) {
	d := newTestDispatcher(t)

	dispatchOK(t, d, "create_fact", map[string]any{
		"title":             "No firearms",
		"enforcement_level": "strict",
	})

	_, err := d.Dispatch(context.Background(), &Request{
		Operation: "create_character",
		Params: map[string]any{
			"name":        "Cole",
			"description": "A smuggler who deals in firearms across the straits.",
		},
	})
	if err == nil {
		t.Fatal("expected a consistency violation to block the create")
	}
	if narraerr.KindOf(err) != narraerr.KindConsistency {
		t.Errorf("kind = %s, want %s", narraerr.KindOf(err), narraerr.KindConsistency)
	}

	// Nothing was written
	characters, err := d.store.Characters.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(characters) != 0 {
		t.Errorf("got %d characters, want 0 after blocked create", len(characters))
	}
}

func TestDispatch_StrictFactBlocksProfileContradiction(t *testing.T) {
	d := newTestDispatcher(t)

	dispatchOK(t, d, "create_fact", map[string]any{
		"title":             "No firearms",
		"enforcement_level": "strict",
	})

	// The violating word appears only in a profile entry
	_, err := d.Dispatch(context.Background(), &Request{
		Operation: "create_character",
		Params: map[string]any{
			"name":        "Cole",
			"description": "A quiet dockworker.",
			"profile": map[string]any{
				"secrets": []any{"Keeps a crate of firearms below deck."},
			},
		},
	})
	if err == nil {
		t.Fatal("expected a consistency violation to block the create")
	}
	if narraerr.KindOf(err) != narraerr.KindConsistency {
		t.Errorf("kind = %s, want %s", narraerr.KindOf(err), narraerr.KindConsistency)
	}

	characters, err := d.store.Characters.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(characters) != 0 {
		t.Errorf("got %d characters, want 0 after blocked create", len(characters))
	}

	// The same contradiction through update is also blocked
	dispatchOK(t, d, "create_character", map[string]any{"name": "Mara"})
	characters, _ = d.store.Characters.List()
	_, err = d.Dispatch(context.Background(), &Request{
		Operation: "update",
		Params: map[string]any{
			"entity_id": characters[0].ID,
			"fields": map[string]any{
				"profile": map[string]any{
					"secrets": []any{"Smuggles firearms for the guild."},
				},
			},
		},
	})
	if narraerr.KindOf(err) != narraerr.KindConsistency {
		t.Errorf("update kind = %s, want %s", narraerr.KindOf(err), narraerr.KindConsistency)
	}
}

func TestDispatch_KnowledgeNeverBlocked(t *testing.T) {
	d := newTestDispatcher(t)

	dispatchOK(t, d, "create_fact", map[string]any{
		"title":             "No firearms",
		"enforcement_level": "strict",
	})
	dispatchOK(t, d, "create_character", map[string]any{"name": "Mara"})

	// A character can believe a forbidden thing; that is dramatic irony
	resp := dispatchOK(t, d, "record_knowledge", map[string]any{
		"character_id": "Mara",
		"fact":         "The duke keeps firearms hidden under the chapel.",
		"certainty":    "believes_wrongly",
	})
	if resp.Result == nil {
		t.Fatal("record_knowledge returned nil result")
	}
}

func TestDispatch_TruncatesListResults(t *testing.T) {
	d := newTestDispatcher(t)

	for i := 0; i < 40; i++ {
		dispatchOK(t, d, "create_fact", map[string]any{
			"title":       "Rules of the long road " + strings.Repeat("x", i%7),
			"description": strings.Repeat("travelers swap stories at every waypost along the route ", 4),
		})
	}

	resp, err := d.Dispatch(context.Background(), &Request{
		Operation:   "list_facts",
		TokenBudget: 200,
	})
	if err != nil {
		t.Fatalf("Dispatch(list_facts) failed: %v", err)
	}
	if resp.Truncated == nil {
		t.Fatal("expected truncation for a tiny budget")
	}
	if resp.Truncated.OriginalCount != 40 {
		t.Errorf("OriginalCount = %d, want 40", resp.Truncated.OriginalCount)
	}
	if resp.Truncated.ReturnedCount >= resp.Truncated.OriginalCount {
		t.Errorf("ReturnedCount = %d, want fewer than %d",
			resp.Truncated.ReturnedCount, resp.Truncated.OriginalCount)
	}
	if resp.Truncated.ReturnedCount < 1 {
		t.Error("truncation must keep at least one element")
	}
}

func TestDispatch_RecordsSessionAccess(t *testing.T) {
	d := newTestDispatcher(t)

	dispatchOK(t, d, "create_character", map[string]any{"name": "Ines"})
	characters, _ := d.store.Characters.List()
	id := characters[0].ID

	dispatchOK(t, d, "lookup", map[string]any{"entity_id": id})

	state, err := d.session.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	found := false
	for _, accessed := range state.RecentAccesses {
		if accessed == id {
			found = true
		}
	}
	if !found {
		t.Errorf("RecentAccesses = %v, want %s tracked", state.RecentAccesses, id)
	}
}

func TestOperationFamilies_Partition(t *testing.T) {
	d := newTestDispatcher(t)

	all := d.Operations()
	queries := d.QueryOperations()
	mutations := d.MutationOperations()
	sessions := d.SessionOperations()

	if len(queries)+len(mutations)+len(sessions) != len(all) {
		t.Errorf("families overlap or miss: %d + %d + %d != %d",
			len(queries), len(mutations), len(sessions), len(all))
	}
	for _, name := range mutations {
		if !IsMutation(name) {
			t.Errorf("IsMutation(%s) = false", name)
		}
	}
	for _, name := range sessions {
		if !IsSession(name) {
			t.Errorf("IsSession(%s) = false", name)
		}
	}
}

func TestDispatch_MissingRequiredParam(t *testing.T) {
	d := newTestDispatcher(t)

	_, err := d.Dispatch(context.Background(), &Request{Operation: "lookup"})
	if narraerr.KindOf(err) != narraerr.KindValidation {
		t.Errorf("kind = %s, want %s", narraerr.KindOf(err), narraerr.KindValidation)
	}
}

func TestDispatch_BatchCreate(t *testing.T) {
	d := newTestDispatcher(t)

	resp := dispatchOK(t, d, "batch_create_characters", map[string]any{
		"items": []any{
			map[string]any{"name": "Alice"},
			map[string]any{"name": "Bob"},
			map[string]any{"name": "Cass"},
		},
	})
	result, ok := resp.Result.(*batchResult)
	if !ok {
		t.Fatalf("result is %T, want *batchResult", resp.Result)
	}
	if result.Created != 3 {
		t.Errorf("Created = %d, want 3", result.Created)
	}

	characters, _ := d.store.Characters.List()
	if len(characters) != 3 {
		t.Errorf("got %d characters, want 3", len(characters))
	}
}

func TestDispatch_DeleteInvalidatesSearch(t *testing.T) {
	d := newTestDispatcher(t)

	dispatchOK(t, d, "create_character", map[string]any{"name": "Finn"})
	characters, _ := d.store.Characters.List()
	id := characters[0].ID

	dispatchOK(t, d, "delete", map[string]any{"entity_id": id})

	remaining, _ := d.store.Characters.List()
	if len(remaining) != 0 {
		t.Errorf("got %d characters after delete, want 0", len(remaining))
	}
}
