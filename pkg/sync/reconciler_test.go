package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/common"
)

func TestClassifyUpsertCompleteness(t *testing.T) {
	existing := []common.Record{
		{ID: 1, Fields: map[string]any{"k": "a", "v": 1}},
	}
	rows := []common.MappedRow{
		{"k": "a", "v": 2},
		{"k": "b", "v": 1},
	}

	plan := Classify(common.ModeUpsert, "k", rows, existing)

	require.Len(t, plan.ToAdd, 1)
	assert.Equal(t, common.MappedRow{"k": "b", "v": 1}, plan.ToAdd[0])

	require.Len(t, plan.ToUpdate, 1)
	assert.Equal(t, int64(1), plan.ToUpdate[0].ID)
	assert.Equal(t, common.MappedRow{"k": "a", "v": 2}, plan.ToUpdate[0].Fields)
	require.Contains(t, plan.ToUpdate[0].Changes, "v")
	assert.Equal(t, 1, plan.ToUpdate[0].Changes["v"].Old)
	assert.Equal(t, 2, plan.ToUpdate[0].Changes["v"].New)

	assert.Empty(t, plan.Unchanged)
}

func TestClassifyUnchanged(t *testing.T) {
	existing := []common.Record{
		{ID: 7, Fields: map[string]any{"k": "a", "v": float64(1), "extra": "kept"}},
	}
	rows := []common.MappedRow{{"k": "a", "v": float64(1)}}

	plan := Classify(common.ModeUpsert, "k", rows, existing)

	assert.Empty(t, plan.ToAdd)
	assert.Empty(t, plan.ToUpdate)
	require.Len(t, plan.Unchanged, 1)
	assert.Equal(t, int64(7), plan.Unchanged[0].ID)
}

func TestClassifyDiffIsTypeSensitive(t *testing.T) {
	existing := []common.Record{
		{ID: 1, Fields: map[string]any{"k": "a", "v": "1"}},
	}
	rows := []common.MappedRow{{"k": "a", "v": float64(1)}}

	plan := Classify(common.ModeUpsert, "k", rows, existing)

	require.Len(t, plan.ToUpdate, 1)
	require.Contains(t, plan.ToUpdate[0].Changes, "v")
}

func TestClassifyKeyMatchingIsStringNormalized(t *testing.T) {
	// the number 1 and the string "1" correlate to the same record
	existing := []common.Record{
		{ID: 1, Fields: map[string]any{"k": float64(1), "v": "x"}},
	}
	rows := []common.MappedRow{{"k": "1", "v": "x"}}

	plan := Classify(common.ModeUpsert, "k", rows, existing)

	assert.Empty(t, plan.ToAdd)
	// the key field itself differs in type, so this is an update
	require.Len(t, plan.ToUpdate, 1)
	require.Contains(t, plan.ToUpdate[0].Changes, "k")
}

func TestClassifyMissingKeyRow(t *testing.T) {
	rows := []common.MappedRow{
		{"v": 1},           // no key at all
		{"k": nil, "v": 2}, // explicit null key
	}

	upsert := Classify(common.ModeUpsert, "k", rows, nil)
	assert.Len(t, upsert.ToAdd, 2)

	// under update mode such rows are silently dropped
	update := Classify(common.ModeUpdate, "k", rows, nil)
	assert.Empty(t, update.ToAdd)
	assert.Empty(t, update.ToUpdate)
	assert.Empty(t, update.Unchanged)
}

func TestClassifyUnmatchedRowUnderUpdateIsDropped(t *testing.T) {
	rows := []common.MappedRow{{"k": "new", "v": 1}}

	plan := Classify(common.ModeUpdate, "k", rows, nil)

	assert.Empty(t, plan.ToAdd)
	assert.Empty(t, plan.ToUpdate)
	assert.Empty(t, plan.Unchanged)
}

func TestClassifyAddModeIgnoresExisting(t *testing.T) {
	existing := []common.Record{
		{ID: 1, Fields: map[string]any{"k": "a"}},
	}
	rows := []common.MappedRow{{"k": "a"}, {"k": "b"}}

	plan := Classify(common.ModeAdd, "", rows, existing)

	assert.Len(t, plan.ToAdd, 2)
	assert.Empty(t, plan.ToUpdate)
	assert.Empty(t, plan.Unchanged)
}

func TestClassifyDiffSeesFieldMissingOnDestination(t *testing.T) {
	existing := []common.Record{
		{ID: 1, Fields: map[string]any{"k": "a"}},
	}
	rows := []common.MappedRow{{"k": "a", "new_col": "value"}}

	plan := Classify(common.ModeUpsert, "k", rows, existing)

	require.Len(t, plan.ToUpdate, 1)
	change := plan.ToUpdate[0].Changes["new_col"]
	assert.Nil(t, change.Old)
	assert.Equal(t, "value", change.New)
}
