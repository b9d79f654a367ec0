package services

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newworld-app/worldcore/internal/domain/entities"
	"github.com/newworld-app/worldcore/internal/domain/ports"
)

// maxInFlightUpdates bounds the number of concurrent peer updates issued by
// one Sync or Apply call.
const maxInFlightUpdates = 8

// SyncReport lists the inverse updates issued by a sync call. Failed is
// non-empty exactly when the call returned a PartialSyncError.
type SyncReport struct {
	Applied []RefOp
	Failed  []RefOpFailure
}

// merge folds a later report (e.g. a retry of the failed subset) into this
// one.
func (r *SyncReport) merge(other *SyncReport) {
	r.Applied = append(r.Applied, other.Applied...)
	r.Failed = other.Failed
}

// SyncEngine propagates relationship deltas to the mirrored fields of peer
// documents. It holds no state across calls; concurrent invocations are
// safe as long as the store is.
type SyncEngine struct {
	store  ports.DocumentStore
	schema *entities.Schema
	logger *zap.Logger
}

// NewSyncEngine creates a new SyncEngine.
func NewSyncEngine(store ports.DocumentStore, schema *entities.Schema, logger *zap.Logger) *SyncEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncEngine{
		store:  store,
		schema: schema,
		logger: logger,
	}
}

// Delta computes the set difference between two reference lists. Both sides
// are treated as sets: duplicates are tolerated and ordering is ignored.
func Delta(prev, next []string) (added, removed []string) {
	prevSet := make(map[string]bool, len(prev))
	for _, id := range prev {
		prevSet[id] = true
	}
	nextSet := make(map[string]bool, len(next))
	for _, id := range next {
		if nextSet[id] {
			continue
		}
		nextSet[id] = true
		if !prevSet[id] {
			added = append(added, id)
		}
	}
	for _, id := range prev {
		if prevSet[id] && !nextSet[id] {
			removed = append(removed, id)
			prevSet[id] = false // report each id once
		}
	}
	return added, removed
}

// Sync computes the add/remove delta between an entity's previous and new
// relationship state and issues the mirrored updates on peer documents.
// Fields without a declared inverse are skipped. When prev equals next for
// every field, no store writes are issued. On partial failure the returned
// report lists both subsets and the error is a *PartialSyncError; applied
// updates are not rolled back.
func (s *SyncEngine) Sync(ctx context.Context, entityID string, kind entities.Kind, prev, next entities.RefState) (*SyncReport, error) {
	ops := s.plan(entityID, kind, prev, next)
	if len(ops) == 0 {
		return &SyncReport{}, nil
	}
	return s.Apply(ctx, ops)
}

// plan turns the per-field deltas into the list of inverse updates to issue.
func (s *SyncEngine) plan(entityID string, kind entities.Kind, prev, next entities.RefState) []RefOp {
	var ops []RefOp
	for _, rel := range s.schema.FieldsOf(kind) {
		if !rel.Bidirectional() {
			continue
		}
		added, removed := Delta(prev[rel.Field], next[rel.Field])
		for _, peerID := range added {
			ops = append(ops, RefOp{Kind: rel.Target, PeerID: peerID, Field: rel.Inverse, Ref: entityID, Add: true})
		}
		for _, peerID := range removed {
			ops = append(ops, RefOp{Kind: rel.Target, PeerID: peerID, Field: rel.Inverse, Ref: entityID, Add: false})
		}
	}
	return ops
}

// Apply issues the given inverse updates concurrently and reports per-op
// outcomes. A failing update does not cancel its siblings: each op settles
// independently, and the engine awaits all of them before returning.
func (s *SyncEngine) Apply(ctx context.Context, ops []RefOp) (*SyncReport, error) {
	report := &SyncReport{}
	if len(ops) == 0 {
		return report, nil
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(maxInFlightUpdates)

	for _, op := range ops {
		op := op
		g.Go(func() error {
			var err error
			if op.Add {
				err = s.store.AddRef(ctx, op.Kind, []string{op.PeerID}, op.Field, op.Ref)
			} else {
				err = s.store.RemoveRef(ctx, op.Kind, []string{op.PeerID}, op.Field, op.Ref)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, RefOpFailure{Op: op, Err: err})
			} else {
				report.Applied = append(report.Applied, op)
			}
			return nil
		})
	}
	_ = g.Wait() // closures never return an error; outcomes are in the report

	if len(report.Failed) > 0 {
		s.logger.Warn("inverse sync incomplete",
			zap.Int("applied", len(report.Applied)),
			zap.Int("failed", len(report.Failed)))
		return report, &PartialSyncError{Applied: report.Applied, Failed: report.Failed}
	}
	return report, nil
}
