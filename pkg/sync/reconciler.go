package sync

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/common"
)

// Plan is the classification of a batch of incoming rows against one
// snapshot of the destination.
type Plan struct {
	ToAdd     []common.MappedRow
	ToUpdate  []common.UpdateCandidate
	Unchanged []common.MatchedRow
}

// Classify buckets every incoming row as add, update or unchanged.
//
// Mode add never consults the existing records: every row is an add. For
// update and upsert, rows are correlated with existing records through the
// string-normalized unique-key value. A row whose key is missing, or whose
// key matches no existing record, becomes an add under upsert and is
// silently dropped under update.
func Classify(mode common.SyncMode, uniqueKey string, rows []common.MappedRow, existing []common.Record) Plan {
	plan := Plan{}

	if mode == common.ModeAdd {
		plan.ToAdd = append(plan.ToAdd, rows...)
		return plan
	}

	index := indexByKey(existing, uniqueKey)

	for _, row := range rows {
		keyValue, ok := row[uniqueKey]
		if !ok || keyValue == nil {
			if mode == common.ModeUpsert {
				plan.ToAdd = append(plan.ToAdd, row)
			}
			continue
		}

		record, found := index[normalizeKey(keyValue)]
		if !found {
			if mode == common.ModeUpsert {
				plan.ToAdd = append(plan.ToAdd, row)
			}
			continue
		}

		changes := diffFields(row, record.Fields)
		if len(changes) == 0 {
			plan.Unchanged = append(plan.Unchanged, common.MatchedRow{
				ID:     record.ID,
				Fields: row,
			})
			continue
		}

		plan.ToUpdate = append(plan.ToUpdate, common.UpdateCandidate{
			ID:      record.ID,
			Fields:  row,
			Changes: changes,
		})
	}

	return plan
}

// indexByKey indexes existing records by their normalized unique-key value.
// Records without the key are unreachable by correlation and are skipped.
func indexByKey(records []common.Record, uniqueKey string) map[string]common.Record {
	index := make(map[string]common.Record, len(records))
	for _, record := range records {
		value, ok := record.Fields[uniqueKey]
		if !ok || value == nil {
			continue
		}
		index[normalizeKey(value)] = record
	}
	return index
}

// normalizeKey renders a unique-key value as a string for correlation.
// Matching is string-typed: the number 1 and the string "1" correlate to the
// same record, mirroring the lookup behavior this engine replaces.
func normalizeKey(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// diffFields compares each key present in the row against the existing
// record fields using canonical-JSON equality, which keeps the comparison
// type-sensitive: the number 1 and the string "1" differ.
func diffFields(row common.MappedRow, existing map[string]any) map[string]common.FieldChange {
	changes := make(map[string]common.FieldChange)
	for field, newValue := range row {
		oldValue, ok := existing[field]
		if !ok {
			oldValue = nil
		}
		if canonicalJSON(oldValue) != canonicalJSON(newValue) {
			changes[field] = common.FieldChange{Old: oldValue, New: newValue}
		}
	}
	return changes
}

// canonicalJSON is stable for everything a MappedRow or a decoded API
// response can hold: scalars, and maps with deterministically ordered keys.
func canonicalJSON(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(data)
}
