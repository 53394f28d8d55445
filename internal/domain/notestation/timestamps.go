package notestation

import (
	"strconv"
	"strings"
	"time"
)

// NoteTimestamps returns access and modification times for an exported note.
// Missing values fall back to each other; ok is false when neither is known.
func NoteTimestamps(rec NoteRecord) (created time.Time, modified time.Time, ok bool) {
	created, hasCreated := ParseTimestamp(rec.CTime)
	modified, hasModified := ParseTimestamp(rec.MTime)
	if !hasModified {
		modified = created
	}
	if !hasCreated {
		created = modified
	}
	if created.IsZero() || modified.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	return created, modified, true
}

func ParseTimestamp(value any) (time.Time, bool) {
	toUnixSeconds := func(v int64) int64 {
		if v > 1_000_000_000_000 || v < -1_000_000_000_000 {
			return v / 1000
		}
		return v
	}

	switch t := value.(type) {
	case float64:
		if t == 0 {
			return time.Time{}, false
		}
		return time.Unix(toUnixSeconds(int64(t)), 0).UTC(), true
	case int:
		if t == 0 {
			return time.Time{}, false
		}
		return time.Unix(toUnixSeconds(int64(t)), 0).UTC(), true
	case int64:
		if t == 0 {
			return time.Time{}, false
		}
		return time.Unix(toUnixSeconds(t), 0).UTC(), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(toUnixSeconds(i), 0).UTC(), true
		}
		if tm, err := time.Parse(time.RFC3339, s); err == nil {
			return tm.UTC(), true
		}
		if tm, err := time.Parse("2006-01-02", s); err == nil {
			return tm.UTC(), true
		}
	}

	return time.Time{}, false
}
