// ABOUTME: Embedding backfill service: batch-encodes stale entities
// ABOUTME: One run at a time process-wide; drift snapshots are taken inline
package backfill

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/florinutz/narra/internal/composite"
	"github.com/florinutz/narra/internal/embed"
	"github.com/florinutz/narra/internal/models"
	"github.com/florinutz/narra/internal/narraerr"
	"github.com/florinutz/narra/internal/progress"
	"github.com/florinutz/narra/internal/storage"
	"github.com/florinutz/narra/internal/vmath"
)

// running guards against concurrent backfills process-wide.
var running atomic.Bool

// Options tune one backfill run
type Options struct {
	// Types limits the run to these entity types; empty means all embeddable
	Types []models.EntityType
	// BatchSize is how many texts go to the backend per encode call
	BatchSize int
	// SnapshotThreshold is the drift delta above which a snapshot is taken
	SnapshotThreshold float64
	// ForceBaseline snapshots every re-embedded entity regardless of drift
	ForceBaseline bool
	// Reporter receives per-batch progress; nil means silent
	Reporter progress.Reporter
}

// Stats summarizes one backfill run
type Stats struct {
	TotalEntities int            `json:"total_entities"`
	Embedded      int            `json:"embedded"`
	Skipped       int            `json:"skipped"`
	Failed        int            `json:"failed"`
	Snapshots     int            `json:"snapshots"`
	PerType       map[string]int `json:"per_type"`
}

// Service runs embedding backfills
type Service struct {
	store    *storage.Storage
	backend  embed.Backend
	renderer *composite.Renderer
}

// NewService creates a backfill service
func NewService(store *storage.Storage, backend embed.Backend) *Service {
	return &Service{
		store:    store,
		backend:  backend,
		renderer: composite.NewRenderer(store),
	}
}

// Run backfills all stale entities. Only one run may be active per process;
// concurrent calls fail with a busy error.
func (s *Service) Run(ctx context.Context, opts Options) (*Stats, error) {
	if !s.backend.Capabilities().CanEncode {
		return nil, embed.ErrUnavailable()
	}
	if !running.CompareAndSwap(false, true) {
		return nil, narraerr.New(narraerr.KindBusy, "a backfill is already running")
	}
	defer running.Store(false)

	types := opts.Types
	if len(types) == 0 {
		types = models.EmbeddableTypes()
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = progress.Nop{}
	}

	stats := &Stats{PerType: map[string]int{}}
	for _, t := range types {
		if err := ctx.Err(); err != nil {
			return stats, narraerr.Wrap(narraerr.KindCancelled, err, "backfill cancelled")
		}
		if err := s.runType(ctx, t, batchSize, opts, stats, reporter); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (s *Service) runType(ctx context.Context, t models.EntityType, batchSize int, opts Options, stats *Stats, reporter progress.Reporter) error {
	_, _, staleTotal, err := s.store.Embeddings.CountByState(t)
	if err != nil {
		return err
	}
	if staleTotal == 0 {
		return nil
	}

	// Fetch the work list once; re-listing inside the loop would repeat
	// entities whose render or store failed.
	all, err := s.store.Embeddings.ListStale(t, staleTotal)
	if err != nil {
		return err
	}

	for done := 0; done < len(all); done += batchSize {
		if err := ctx.Err(); err != nil {
			return narraerr.Wrap(narraerr.KindCancelled, err, "backfill cancelled")
		}

		end := done + batchSize
		if end > len(all) {
			end = len(all)
		}
		batch := all[done:end]

		// Render composites first: byte-identical text means the stored
		// vector is still valid and no encode call is needed.
		type pending struct {
			id   string
			text string
			old  []float32
		}
		var toEncode []pending
		for _, e := range batch {
			stats.TotalEntities++
			stats.PerType[string(t)]++

			text, err := s.renderer.Render(t, e.ID)
			if err != nil {
				log.Printf("warning: failed to render composite for %s: %v", e.ID, err)
				stats.Failed++
				continue
			}
			if text == e.CompositeText && len(e.Embedding) > 0 && !opts.ForceBaseline {
				if err := s.store.Embeddings.ClearStale(t, e.ID); err != nil {
					return err
				}
				stats.Skipped++
				continue
			}
			toEncode = append(toEncode, pending{id: e.ID, text: text, old: e.Embedding})
		}

		if len(toEncode) > 0 {
			texts := make([]string, len(toEncode))
			for i, p := range toEncode {
				texts[i] = p.text
			}
			vecs, err := s.backend.Encode(ctx, texts)
			if err != nil {
				return err
			}

			for i, p := range toEncode {
				if err := s.store.Embeddings.SetEmbedding(t, p.id, vecs[i], p.text); err != nil {
					log.Printf("warning: failed to store embedding for %s: %v", p.id, err)
					stats.Failed++
					continue
				}
				stats.Embedded++

				if snap := s.maybeSnapshot(t, p.id, p.old, vecs[i], opts); snap {
					stats.Snapshots++
				}
			}
		}

		reporter.Report("backfill "+string(t), end, len(all))
	}
	return nil
}

// maybeSnapshot records an arc snapshot when the new vector drifted past
// the threshold, or unconditionally with ForceBaseline or no prior vector.
func (s *Service) maybeSnapshot(t models.EntityType, id string, old, fresh []float32, opts Options) bool {
	var delta float32
	if len(old) > 0 {
		delta = 1 - vmath.CosineSimilarity(old, fresh)
	}
	take := opts.ForceBaseline || len(old) == 0 || float64(delta) > opts.SnapshotThreshold
	if !take {
		return false
	}

	snap := &models.ArcSnapshot{
		ID:         "arc_snapshot:" + uuid.NewString(),
		EntityID:   id,
		EntityType: string(t),
		Embedding:  fresh,
	}
	if len(old) > 0 {
		d := delta
		snap.DeltaMagnitude = &d
	}
	if err := s.store.Snapshots.Append(snap); err != nil {
		log.Printf("warning: failed to record snapshot for %s: %v", id, err)
		return false
	}
	return true
}
