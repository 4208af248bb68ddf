package sync

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/common"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/logger"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/schema"
)

// Destination is the slice of the destination store the orchestrator drives.
// *grist.Client implements it.
type Destination interface {
	schema.ColumnStore
	Records(ctx context.Context, limit int) ([]common.Record, error)
	AddRecords(ctx context.Context, rows []common.MappedRow) ([]int64, error)
	UpdateRecords(ctx context.Context, updates []common.RecordUpdate) error
}

// Syncer reconciles mapped rows into a destination table. One Syncer runs
// one invocation at a time; callers must serialize concurrent runs against
// the same destination table themselves, since classification is computed
// against a single fetch and the engine offers no transactional guarantee
// over a destination mutated in between.
type Syncer struct {
	config common.SyncConfig
	dest   Destination
	log    logger.Log
}

// NewSyncer creates a new syncer. Passing a nil log leaves the engine
// silent.
func NewSyncer(config common.SyncConfig, dest Destination, log logger.Log) *Syncer {
	if log == nil {
		log = logger.Nop()
	}
	return &Syncer{
		config: config,
		dest:   dest,
		log:    log,
	}
}

// validate rejects impossible configurations before any destination I/O.
func (s *Syncer) validate() error {
	switch s.config.Mode {
	case common.ModeAdd, common.ModeUpdate, common.ModeUpsert:
	default:
		return common.NewConfigurationError(fmt.Sprintf("unknown sync mode %q", s.config.Mode))
	}

	if s.config.Mode != common.ModeAdd && s.config.UniqueKey == "" {
		return common.NewConfigurationError(fmt.Sprintf("uniqueKey is required for mode %q", s.config.Mode))
	}
	return nil
}

// plan validates the config, fetches the destination snapshot when the mode
// needs one, and classifies all rows against it.
func (s *Syncer) plan(ctx context.Context, rows []common.MappedRow) (Plan, error) {
	if err := s.validate(); err != nil {
		return Plan{}, err
	}

	var existing []common.Record
	if s.config.Mode != common.ModeAdd {
		var err error
		existing, err = s.dest.Records(ctx, s.config.FetchLimit)
		if err != nil {
			return Plan{}, fmt.Errorf("failed to fetch existing records: %w", err)
		}
		s.log.Infof("Fetched %d existing records for classification", len(existing))
	}

	return Classify(s.config.Mode, s.config.UniqueKey, rows, existing), nil
}

// DryRun classifies the rows and reports what a real run would do, without
// issuing any mutating destination call.
func (s *Syncer) DryRun(ctx context.Context, rows []common.MappedRow) (*common.DryRunResult, error) {
	runID := uuid.NewString()
	s.log.Infof("[%s] Dry run started: mode=%s rows=%d", runID, s.config.Mode, len(rows))

	plan, err := s.plan(ctx, rows)
	if err != nil {
		return nil, err
	}

	result := &common.DryRunResult{
		ToAdd:     plan.ToAdd,
		ToUpdate:  plan.ToUpdate,
		Unchanged: plan.Unchanged,
		Summary: common.DryRunSummary{
			ToAdd:     len(plan.ToAdd),
			ToUpdate:  len(plan.ToUpdate),
			Unchanged: len(plan.Unchanged),
		},
	}

	s.log.Infof("[%s] Dry run finished: toAdd=%d toUpdate=%d unchanged=%d",
		runID, result.Summary.ToAdd, result.Summary.ToUpdate, result.Summary.Unchanged)
	return result, nil
}

// Sync reconciles the rows into the destination. Schema evolution and the
// add and update buckets are independent: a failure in one is counted into
// the result and the others still run. Only a configuration error or a
// failure to fetch the destination snapshot aborts the whole operation.
func (s *Syncer) Sync(ctx context.Context, rows []common.MappedRow) (*common.SyncResult, error) {
	if s.config.DryRun {
		return nil, common.NewConfigurationError("Sync called with dryRun set, use DryRun")
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	s.log.Infof("[%s] Sync started: mode=%s rows=%d", runID, s.config.Mode, len(rows))

	if s.config.AutoCreateColumns {
		s.log.Debugf("[%s] Ensuring destination columns", runID)
		schema.EnsureColumns(ctx, rows, s.dest, s.log)
	}

	plan, err := s.plan(ctx, rows)
	if err != nil {
		return nil, err
	}

	result := &common.SyncResult{}

	if len(plan.ToAdd) > 0 {
		ids, err := s.dest.AddRecords(ctx, plan.ToAdd)
		if err != nil {
			result.Errors++
			result.Details = append(result.Details, fmt.Sprintf("add failed for %d rows: %v", len(plan.ToAdd), err))
			s.log.Errorf("[%s] Add batch failed: %v", runID, err)
		} else {
			result.Added = len(ids)
			result.Details = append(result.Details, fmt.Sprintf("added %d rows", len(ids)))
			s.log.Infof("[%s] Added %d rows", runID, len(ids))
		}
	}

	if len(plan.ToUpdate) > 0 {
		updates := make([]common.RecordUpdate, 0, len(plan.ToUpdate))
		for _, candidate := range plan.ToUpdate {
			updates = append(updates, common.RecordUpdate{
				ID:     candidate.ID,
				Fields: candidate.Fields,
			})
		}

		if err := s.dest.UpdateRecords(ctx, updates); err != nil {
			result.Errors++
			result.Details = append(result.Details, fmt.Sprintf("update failed for %d rows: %v", len(updates), err))
			s.log.Errorf("[%s] Update batch failed: %v", runID, err)
		} else {
			result.Updated = len(updates)
			result.Details = append(result.Details, fmt.Sprintf("updated %d rows", len(updates)))
			s.log.Infof("[%s] Updated %d rows", runID, len(updates))
		}
	}

	result.Unchanged = len(plan.Unchanged)

	s.log.Infof("[%s] Sync finished: added=%d updated=%d unchanged=%d errors=%d",
		runID, result.Added, result.Updated, result.Unchanged, result.Errors)
	return result, nil
}
