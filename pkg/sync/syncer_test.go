package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/common"
)

// fakeDestination keeps destination state in memory and counts every call,
// so tests can assert both outcomes and side effects.
type fakeDestination struct {
	records []common.Record
	columns []common.Column
	nextID  int64

	failAdd    error
	failUpdate error
	failFetch  error

	fetchCalls  int
	addCalls    int
	updateCalls int
	listCalls   int
	createCalls int
}

func (f *fakeDestination) Records(ctx context.Context, limit int) ([]common.Record, error) {
	f.fetchCalls++
	if f.failFetch != nil {
		return nil, f.failFetch
	}
	return f.records, nil
}

func (f *fakeDestination) AddRecords(ctx context.Context, rows []common.MappedRow) ([]int64, error) {
	f.addCalls++
	if f.failAdd != nil {
		return nil, f.failAdd
	}
	var ids []int64
	for _, row := range rows {
		f.nextID++
		fields := make(map[string]any, len(row))
		for k, v := range row {
			fields[k] = v
		}
		f.records = append(f.records, common.Record{ID: f.nextID, Fields: fields})
		ids = append(ids, f.nextID)
	}
	return ids, nil
}

func (f *fakeDestination) UpdateRecords(ctx context.Context, updates []common.RecordUpdate) error {
	f.updateCalls++
	if f.failUpdate != nil {
		return f.failUpdate
	}
	for _, update := range updates {
		for i := range f.records {
			if f.records[i].ID == update.ID {
				for k, v := range update.Fields {
					f.records[i].Fields[k] = v
				}
			}
		}
	}
	return nil
}

func (f *fakeDestination) Columns(ctx context.Context) ([]common.Column, error) {
	f.listCalls++
	return f.columns, nil
}

func (f *fakeDestination) AddColumns(ctx context.Context, columns []common.Column) error {
	f.createCalls++
	f.columns = append(f.columns, columns...)
	return nil
}

func upsertConfig() common.SyncConfig {
	return common.SyncConfig{Mode: common.ModeUpsert, UniqueKey: "k"}
}

func TestSyncUpsertIsIdempotent(t *testing.T) {
	dest := &fakeDestination{}
	rows := []common.MappedRow{
		{"k": "a", "v": float64(1)},
		{"k": "b", "v": float64(2)},
	}

	first, err := NewSyncer(upsertConfig(), dest, nil).Sync(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Added)
	assert.Zero(t, first.Updated)
	assert.Zero(t, first.Errors)

	second, err := NewSyncer(upsertConfig(), dest, nil).Sync(context.Background(), rows)
	require.NoError(t, err)
	assert.Zero(t, second.Added)
	assert.Zero(t, second.Updated)
	assert.Equal(t, 2, second.Unchanged)
}

func TestSyncUpsertAddAndUpdate(t *testing.T) {
	dest := &fakeDestination{
		records: []common.Record{
			{ID: 1, Fields: map[string]any{"k": "a", "v": float64(1)}},
		},
		nextID: 1,
	}
	rows := []common.MappedRow{
		{"k": "a", "v": float64(2)},
		{"k": "b", "v": float64(1)},
	}

	result, err := NewSyncer(upsertConfig(), dest, nil).Sync(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 1, result.Updated)
	assert.Zero(t, result.Unchanged)
	assert.Zero(t, result.Errors)
	assert.Len(t, result.Details, 2)
}

func TestSyncMissingUniqueKeyFailsBeforeIO(t *testing.T) {
	for _, mode := range []common.SyncMode{common.ModeUpdate, common.ModeUpsert} {
		dest := &fakeDestination{}
		s := NewSyncer(common.SyncConfig{Mode: mode}, dest, nil)

		_, err := s.Sync(context.Background(), []common.MappedRow{{"k": "a"}})

		var confErr *common.ConfigurationError
		require.ErrorAs(t, err, &confErr, "mode %s", mode)
		assert.Zero(t, dest.fetchCalls)
		assert.Zero(t, dest.addCalls)
		assert.Zero(t, dest.updateCalls)
		assert.Zero(t, dest.listCalls)
	}
}

func TestDryRunHasZeroSideEffects(t *testing.T) {
	dest := &fakeDestination{
		records: []common.Record{
			{ID: 1, Fields: map[string]any{"k": "a", "v": float64(1)}},
		},
	}
	cfg := upsertConfig()
	cfg.DryRun = true
	cfg.AutoCreateColumns = true

	rows := []common.MappedRow{
		{"k": "a", "v": float64(2)},
		{"k": "c", "v": float64(3)},
	}

	result, err := NewSyncer(cfg, dest, nil).DryRun(context.Background(), rows)
	require.NoError(t, err)

	// classification is complete
	assert.Equal(t, 1, result.Summary.ToAdd)
	assert.Equal(t, 1, result.Summary.ToUpdate)
	assert.Zero(t, result.Summary.Unchanged)
	require.Len(t, result.ToUpdate, 1)
	assert.Equal(t, common.FieldChange{Old: float64(1), New: float64(2)}, result.ToUpdate[0].Changes["v"])

	// the read is allowed, nothing else is
	assert.Equal(t, 1, dest.fetchCalls)
	assert.Zero(t, dest.addCalls)
	assert.Zero(t, dest.updateCalls)
	assert.Zero(t, dest.listCalls)
	assert.Zero(t, dest.createCalls)
}

func TestSyncRejectsDryRunConfig(t *testing.T) {
	cfg := upsertConfig()
	cfg.DryRun = true
	dest := &fakeDestination{}

	_, err := NewSyncer(cfg, dest, nil).Sync(context.Background(), nil)

	var confErr *common.ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Zero(t, dest.fetchCalls)
}

func TestSyncAddFailureDoesNotAbortUpdates(t *testing.T) {
	dest := &fakeDestination{
		records: []common.Record{
			{ID: 1, Fields: map[string]any{"k": "a", "v": float64(1)}},
		},
		nextID:  1,
		failAdd: errors.New("add rejected"),
	}
	rows := []common.MappedRow{
		{"k": "a", "v": float64(2)},
		{"k": "b", "v": float64(1)},
	}

	result, err := NewSyncer(upsertConfig(), dest, nil).Sync(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Errors)
	assert.Zero(t, result.Added)
	assert.Equal(t, 1, result.Updated)
	require.Len(t, result.Details, 2)
	assert.Contains(t, result.Details[0], "add failed")
	assert.Equal(t, 1, dest.updateCalls)
}

func TestSyncAddModeNeverFetches(t *testing.T) {
	dest := &fakeDestination{}
	rows := []common.MappedRow{{"v": float64(1)}, {"v": float64(2)}}

	result, err := NewSyncer(common.SyncConfig{Mode: common.ModeAdd}, dest, nil).Sync(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Added)
	assert.Zero(t, dest.fetchCalls)
	assert.Equal(t, 1, dest.addCalls)
}

func TestSyncSkipsEmptyBuckets(t *testing.T) {
	dest := &fakeDestination{
		records: []common.Record{
			{ID: 1, Fields: map[string]any{"k": "a", "v": float64(1)}},
		},
	}
	rows := []common.MappedRow{{"k": "a", "v": float64(1)}}

	result, err := NewSyncer(upsertConfig(), dest, nil).Sync(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Unchanged)
	assert.Zero(t, dest.addCalls)
	assert.Zero(t, dest.updateCalls)
}

func TestSyncAutoCreateColumns(t *testing.T) {
	dest := &fakeDestination{
		columns: []common.Column{{ID: "k"}},
	}
	cfg := common.SyncConfig{Mode: common.ModeAdd, AutoCreateColumns: true}
	rows := []common.MappedRow{{"k": "a", "v": float64(1)}}

	_, err := NewSyncer(cfg, dest, nil).Sync(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, 1, dest.createCalls)
	require.Len(t, dest.columns, 2)
	assert.Equal(t, "v", dest.columns[1].ID)
	assert.Equal(t, common.TypeInt, dest.columns[1].Type)
}

func TestSyncFetchFailureAborts(t *testing.T) {
	dest := &fakeDestination{failFetch: errors.New("network down")}

	_, err := NewSyncer(upsertConfig(), dest, nil).Sync(context.Background(), []common.MappedRow{{"k": "a"}})

	require.Error(t, err)
	assert.Zero(t, dest.addCalls)
	assert.Zero(t, dest.updateCalls)
}

func TestSyncUnknownModeRejected(t *testing.T) {
	dest := &fakeDestination{}
	_, err := NewSyncer(common.SyncConfig{Mode: "replace"}, dest, nil).Sync(context.Background(), nil)

	var confErr *common.ConfigurationError
	require.ErrorAs(t, err, &confErr)
}
