// Package fallback provides a fixed local listing set used when neither the
// backend nor a cached snapshot is available.
package fallback

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/julianbeese/immo_search/internal/domain"
	"github.com/julianbeese/immo_search/internal/ingest"
)

//go:embed sample.json
var sampleJSON []byte

// Records returns the sample listings of the given rent type, ingested with
// the same rules as backend data. An empty rent type returns every record.
func Records(rentType domain.RentType, opts ingest.Options) ([]domain.PropertyRecord, error) {
	var raw []map[string]any
	if err := json.Unmarshal(sampleJSON, &raw); err != nil {
		return nil, fmt.Errorf("decode sample: %w", err)
	}

	records, _ := ingest.Records(raw, opts)
	if rentType == "" {
		return records, nil
	}

	out := make([]domain.PropertyRecord, 0, len(records))
	for _, r := range records {
		if r.RentType == rentType {
			out = append(out, r)
		}
	}
	return out, nil
}
