package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/common"
)

func TestInferType(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  common.ColumnType
	}{
		{"integral float", float64(5), common.TypeInt},
		{"fractional float", 5.5, common.TypeNumeric},
		{"int", 5, common.TypeInt},
		{"bool", true, common.TypeBool},
		{"date string", "2024-01-01", common.TypeDateTime},
		{"datetime string", "2024-01-01T10:00:00Z", common.TypeDateTime},
		{"plain string", "x", common.TypeText},
		{"almost a date", "2024-1-1", common.TypeText},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows := []common.MappedRow{{"c": tc.value}}
			assert.Equal(t, tc.want, InferType(rows, "c"))
		})
	}
}

func TestInferTypeNoSamples(t *testing.T) {
	assert.Equal(t, common.TypeText, InferType(nil, "c"))
	assert.Equal(t, common.TypeText, InferType([]common.MappedRow{{"c": nil}}, "c"))
	assert.Equal(t, common.TypeText, InferType([]common.MappedRow{{"other": 1}}, "c"))
}

func TestInferTypeSkipsNilsAndMixes(t *testing.T) {
	rows := []common.MappedRow{
		{"c": nil},
		{"c": float64(1)},
		{"c": 2.5},
	}
	// integral + fractional widens to Numeric
	assert.Equal(t, common.TypeNumeric, InferType(rows, "c"))

	mixed := []common.MappedRow{
		{"c": float64(1)},
		{"c": "x"},
	}
	assert.Equal(t, common.TypeText, InferType(mixed, "c"))
}

func TestInferTypeSampleCap(t *testing.T) {
	// The eleventh value never gets inspected.
	rows := make([]common.MappedRow, 0, 11)
	for i := 0; i < 10; i++ {
		rows = append(rows, common.MappedRow{"c": float64(i)})
	}
	rows = append(rows, common.MappedRow{"c": "not a number"})

	assert.Equal(t, common.TypeInt, InferType(rows, "c"))
}

type fakeColumnStore struct {
	columns   []common.Column
	listErr   error
	addErr    error
	added     []common.Column
	listCalls int
	addCalls  int
}

func (f *fakeColumnStore) Columns(ctx context.Context) ([]common.Column, error) {
	f.listCalls++
	return f.columns, f.listErr
}

func (f *fakeColumnStore) AddColumns(ctx context.Context, columns []common.Column) error {
	f.addCalls++
	f.added = append(f.added, columns...)
	return f.addErr
}

func TestEnsureColumnsCreatesMissing(t *testing.T) {
	store := &fakeColumnStore{
		columns: []common.Column{{ID: "name", Label: "name", Type: common.TypeText}},
	}
	rows := []common.MappedRow{
		{"name": "x", "age": float64(30), "joined": "2024-01-01"},
	}

	EnsureColumns(context.Background(), rows, store, nil)

	require.Len(t, store.added, 2)
	byID := make(map[string]common.Column)
	for _, col := range store.added {
		byID[col.ID] = col
	}

	age := byID["age"]
	assert.Equal(t, "age", age.Label)
	assert.Equal(t, common.TypeInt, age.Type)

	joined := byID["joined"]
	assert.Equal(t, common.TypeDateTime, joined.Type)
}

func TestEnsureColumnsNothingMissing(t *testing.T) {
	store := &fakeColumnStore{
		columns: []common.Column{{ID: "name"}, {ID: "age"}},
	}
	rows := []common.MappedRow{{"name": "x", "age": float64(1)}}

	EnsureColumns(context.Background(), rows, store, nil)
	assert.Zero(t, store.addCalls)
}

func TestEnsureColumnsListFailureIsBestEffort(t *testing.T) {
	store := &fakeColumnStore{listErr: errors.New("boom")}
	rows := []common.MappedRow{{"name": "x"}}

	// must not panic and must not attempt creation
	EnsureColumns(context.Background(), rows, store, nil)
	assert.Zero(t, store.addCalls)
}

func TestEnsureColumnsAddFailureIsBestEffort(t *testing.T) {
	store := &fakeColumnStore{addErr: errors.New("permission denied")}
	rows := []common.MappedRow{{"name": "x"}}

	EnsureColumns(context.Background(), rows, store, nil)
	assert.Equal(t, 1, store.addCalls)
}

func TestEnsureColumnsEmptyRows(t *testing.T) {
	store := &fakeColumnStore{}
	EnsureColumns(context.Background(), nil, store, nil)
	assert.Zero(t, store.listCalls)
}
