package grist

import (
	"net/url"
	"strings"
)

// DocEndpoint is the result of parsing a Grist document URL.
type DocEndpoint struct {
	BaseURL string
	DocID   string
	TableID string // optional
}

// ResolveDocURL parses a Grist document URL into its base URL, document id
// and, when present, table id. Accepted forms:
//
//	https://host/doc/{docId}
//	https://host/d/{docId}
//	https://host/o/{org}/doc/{docId}
//	...any of the above followed by /p/{table}
//
// A tableId= or table= query parameter takes precedence over a path-derived
// table id. Unparseable or incomplete URLs resolve to nil so callers can
// fall back to explicit configuration fields.
func ResolveDocURL(raw string) *DocEndpoint {
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}

	segments := splitPath(u.Path)

	var docID, tableID string
	for i := 0; i < len(segments); i++ {
		switch segments[i] {
		case "o":
			// organization scope: skip the org segment
			i++
		case "doc", "d":
			if i+1 < len(segments) {
				docID = segments[i+1]
				i++
			}
		case "p":
			if i+1 < len(segments) {
				tableID = segments[i+1]
				i++
			}
		}
	}

	if docID == "" {
		return nil
	}

	query := u.Query()
	if t := query.Get("tableId"); t != "" {
		tableID = t
	} else if t := query.Get("table"); t != "" {
		tableID = t
	}

	return &DocEndpoint{
		BaseURL: u.Scheme + "://" + u.Host,
		DocID:   docID,
		TableID: tableID,
	}
}

func splitPath(path string) []string {
	var segments []string
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}
