package schema

import (
	"context"
	"math"
	"regexp"
	"sort"

	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/common"
	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/logger"
)

// maxTypeSamples caps how many non-nil values are inspected per column.
const maxTypeSamples = 10

var dateTimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// ColumnStore is the slice of the destination the schema reconciler needs.
type ColumnStore interface {
	Columns(ctx context.Context) ([]common.Column, error)
	AddColumns(ctx context.Context, columns []common.Column) error
}

// InferType inspects up to the first ten non-nil values of the column across
// the rows and picks the narrowest matching destination type. Columns with
// no sample value default to Text.
func InferType(rows []common.MappedRow, columnID string) common.ColumnType {
	sampled := 0
	inferred := common.ColumnType("")

	for _, row := range rows {
		value, ok := row[columnID]
		if !ok || value == nil {
			continue
		}

		current := typeOf(value)
		if inferred == "" {
			inferred = current
		} else if inferred != current {
			// Mixed samples widen to Text, except Int+Numeric which
			// stays Numeric.
			if (inferred == common.TypeInt && current == common.TypeNumeric) ||
				(inferred == common.TypeNumeric && current == common.TypeInt) {
				inferred = common.TypeNumeric
			} else {
				return common.TypeText
			}
		}

		sampled++
		if sampled >= maxTypeSamples {
			break
		}
	}

	if inferred == "" {
		return common.TypeText
	}
	return inferred
}

func typeOf(value any) common.ColumnType {
	switch v := value.(type) {
	case bool:
		return common.TypeBool
	case float64:
		if v == math.Trunc(v) {
			return common.TypeInt
		}
		return common.TypeNumeric
	case float32:
		if float64(v) == math.Trunc(float64(v)) {
			return common.TypeInt
		}
		return common.TypeNumeric
	case int, int32, int64:
		return common.TypeInt
	case string:
		if dateTimePattern.MatchString(v) {
			return common.TypeDateTime
		}
		return common.TypeText
	default:
		return common.TypeText
	}
}

// EnsureColumns creates every column referenced by the rows that does not
// exist on the destination yet. Schema evolution is strictly best-effort:
// any failure is logged as a warning and the sync proceeds without it.
func EnsureColumns(ctx context.Context, rows []common.MappedRow, dest ColumnStore, log logger.Log) {
	if log == nil {
		log = logger.Nop()
	}
	if len(rows) == 0 {
		return
	}

	required := make(map[string]struct{})
	for _, row := range rows {
		for column := range row {
			required[column] = struct{}{}
		}
	}

	existing, err := dest.Columns(ctx)
	if err != nil {
		log.Warnf("Skipping column creation, could not list destination columns: %v", err)
		return
	}
	for _, col := range existing {
		delete(required, col.ID)
	}

	if len(required) == 0 {
		return
	}

	missing := make([]string, 0, len(required))
	for column := range required {
		missing = append(missing, column)
	}
	sort.Strings(missing)

	columns := make([]common.Column, 0, len(missing))
	for _, column := range missing {
		columns = append(columns, common.Column{
			ID:    column,
			Label: column,
			Type:  InferType(rows, column),
		})
	}

	log.Infof("Creating %d missing destination columns: %v", len(columns), missing)
	if err := dest.AddColumns(ctx, columns); err != nil {
		log.Warnf("Column creation failed, continuing without schema changes: %v", err)
	}
}
