package source

import "context"

// Source is any adapter that returns a batch of heterogeneous records.
// Records are arbitrary decoded JSON values; the mapper fails closed on any
// shape it cannot traverse.
type Source interface {
	Fetch(ctx context.Context) ([]any, error)
}

// UnwrapRecords normalizes a decoded response body into a record batch.
// A top-level array is used as-is; object responses are unwrapped from
// {data: [...]}, {results: [...]} or {items: [...]}; any other shape is
// wrapped as a single-element batch.
func UnwrapRecords(body any) []any {
	switch v := body.(type) {
	case nil:
		return nil
	case []any:
		return v
	case map[string]any:
		for _, envelope := range []string{"data", "results", "items"} {
			if inner, ok := v[envelope].([]any); ok {
				return inner
			}
		}
		return []any{v}
	default:
		return []any{v}
	}
}
