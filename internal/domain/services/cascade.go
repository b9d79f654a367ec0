package services

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newworld-app/worldcore/internal/domain/entities"
	"github.com/newworld-app/worldcore/internal/domain/ports"
)

// auditActionCascade marks a completed cascade cleanup for a deleted entity.
const auditActionCascade = "entity.cascade_cleanup"

// CleanupReport lists the outcome of a cascade cleanup. Removed counts the
// documents that actually held a dangling reference. Failed is non-empty
// exactly when the call returned a PartialCleanupError.
type CleanupReport struct {
	Cleaned []CleanupTarget
	Removed int
	Failed  []CleanupFailure
}

// CascadeCleaner strips inbound references to a deleted entity from every
// collection/field that can legally hold them.
type CascadeCleaner struct {
	store  ports.DocumentStore
	schema *entities.Schema
	logger *zap.Logger
}

// NewCascadeCleaner creates a new CascadeCleaner.
func NewCascadeCleaner(store ports.DocumentStore, schema *entities.Schema, logger *zap.Logger) *CascadeCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CascadeCleaner{
		store:  store,
		schema: schema,
		logger: logger,
	}
}

// Cleanup removes entityID from every (source kind, field) pair declared in
// the schema as targeting the entity's kind. Each pair is processed exactly
// once, including fields the kind declares on itself. Pulls run
// concurrently; a failing pull does not cancel its siblings. On partial
// failure the report names the pairs that may still hold dangling
// references and the error is a *PartialCleanupError.
func (c *CascadeCleaner) Cleanup(ctx context.Context, entityID string, kind entities.Kind) (*CleanupReport, error) {
	report := &CleanupReport{}
	inbound := c.schema.Inbound(kind)
	if len(inbound) == 0 {
		return report, nil
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(maxInFlightUpdates)

	for _, rel := range inbound {
		target := CleanupTarget{Kind: rel.Kind, Field: rel.Field}
		g.Go(func() error {
			n, err := c.store.PullRef(ctx, target.Kind, target.Field, entityID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, CleanupFailure{Target: target, Err: err})
			} else {
				report.Cleaned = append(report.Cleaned, target)
				report.Removed += n
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := c.store.LogAction(ctx, auditActionCascade, entityID, map[string]any{
		"kind":    string(kind),
		"removed": report.Removed,
		"failed":  len(report.Failed),
	}); err != nil {
		c.logger.Warn("audit log write failed",
			zap.String("entity_id", entityID),
			zap.Error(err))
	}

	if len(report.Failed) > 0 {
		c.logger.Warn("cascade cleanup incomplete",
			zap.String("entity_id", entityID),
			zap.String("kind", string(kind)),
			zap.Int("cleaned", len(report.Cleaned)),
			zap.Int("failed", len(report.Failed)))
		return report, &PartialCleanupError{Cleaned: report.Cleaned, Failed: report.Failed}
	}

	c.logger.Debug("cascade cleanup complete",
		zap.String("entity_id", entityID),
		zap.String("kind", string(kind)),
		zap.Int("documents_changed", report.Removed))
	return report, nil
}
