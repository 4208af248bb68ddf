package mapper

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/common"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/logger"
)

// RecordMapper maps source records to flat destination rows
type RecordMapper struct {
	mappings []common.FieldMapping
	log      logger.Log
}

// NewRecordMapper creates a new record mapper
func NewRecordMapper(mappings []common.FieldMapping, log logger.Log) *RecordMapper {
	if log == nil {
		log = logger.Nop()
	}
	return &RecordMapper{
		mappings: mappings,
		log:      log,
	}
}

// MapRecord maps a single source record to a flat row. Mappings are applied
// in list order, so a later mapping to the same destination column overwrites
// an earlier one. Mappings with an empty column or path, or explicitly
// disabled, are skipped.
func (m *RecordMapper) MapRecord(record any) common.MappedRow {
	row := make(common.MappedRow)

	for i := range m.mappings {
		mapping := &m.mappings[i]
		if mapping.DestinationColumn == "" || mapping.SourcePath == "" {
			continue
		}
		if !mapping.IsEnabled() {
			continue
		}

		raw := ExtractValue(record, mapping.SourcePath)
		if mapping.Transform != nil {
			// Transform output is used verbatim, no serialization.
			row[mapping.DestinationColumn] = mapping.Transform(raw)
			continue
		}
		row[mapping.DestinationColumn] = Serialize(raw)
	}

	return row
}

// MapRecords maps each record independently. Mapping a single record never
// fails: unreachable paths resolve to nil and the row is still produced.
func (m *RecordMapper) MapRecords(records []any) []common.MappedRow {
	rows := make([]common.MappedRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, m.MapRecord(record))
	}
	return rows
}

// ExtractValue resolves a dot-separated path through nested maps. It fails
// closed: if any intermediate segment is missing or not a map, the result is
// nil. It never panics.
func ExtractValue(record any, path string) any {
	if path == "" {
		return nil
	}

	current := record
	for _, segment := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		value, ok := obj[segment]
		if !ok {
			return nil
		}
		current = value
	}
	return current
}

// Serialize converts an extracted value into a destination-safe scalar:
// nil stays nil, times become RFC 3339 strings, arrays become their
// serialized elements joined with ";", maps become JSON strings, and plain
// scalars pass through unchanged.
func Serialize(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case []any:
		parts := make([]string, len(v))
		for i, elem := range v {
			parts[i] = stringifyElement(Serialize(elem))
		}
		return strings.Join(parts, ";")
	case map[string]any:
		return encodeJSON(v)
	default:
		return v
	}
}

// stringifyElement renders one already-serialized array element for joining.
// A nil element renders as an empty string, matching the upstream join
// behavior for null entries.
func stringifyElement(v any) string {
	switch e := v.(type) {
	case nil:
		return ""
	case string:
		return e
	case bool:
		return strconv.FormatBool(e)
	case float64:
		return strconv.FormatFloat(e, 'f', -1, 64)
	case int:
		return strconv.Itoa(e)
	case int64:
		return strconv.FormatInt(e, 10)
	default:
		return encodeJSON(e)
	}
}

func encodeJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// GenerateMappingsFromSample walks a sample record through nested maps only
// (arrays are treated as leaves) up to maxDepth and emits one enabled
// candidate mapping per reachable path. The destination column is the dotted
// path with "." replaced by "_". Pass maxDepth <= 0 for the default of 5.
func GenerateMappingsFromSample(sample any, maxDepth int) []common.FieldMapping {
	if maxDepth <= 0 {
		maxDepth = 5
	}

	var mappings []common.FieldMapping
	walkSample(sample, "", maxDepth, &mappings)
	return mappings
}

func walkSample(value any, prefix string, depth int, out *[]common.FieldMapping) {
	obj, ok := value.(map[string]any)
	if !ok || depth == 0 {
		return
	}

	// Deterministic output order for stable config generation.
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		if child, ok := obj[key].(map[string]any); ok && depth > 1 {
			walkSample(child, path, depth-1, out)
			continue
		}

		enabled := true
		*out = append(*out, common.FieldMapping{
			DestinationColumn: strings.ReplaceAll(path, ".", "_"),
			SourcePath:        path,
			Enabled:           &enabled,
		})
	}
}
