package entity

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// flexTime accepts the timestamp spellings the backend actually emits:
// RFC3339 with or without nanoseconds, naive isoformat without a zone, and
// epoch milliseconds. Unparseable values degrade to the zero time rather than
// failing the whole payload.
type flexTime struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func (t *flexTime) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		t.Time = time.Time{}
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				t.Time = parsed.UTC()
				return nil
			}
		}
		t.Time = time.Time{}
		return nil
	}
	if ms, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	t.Time = time.Time{}
	return nil
}
