package store

import "github.com/cuongbtq/genjob-notify/internal/tracker/domain"

// MergeResult is the outcome of diffing a freshly fetched snapshot against the stored one.
type MergeResult struct {
	// Merged holds the new records in server order. Records that did not change
	// keep the pointer from the old snapshot.
	Merged []*domain.NotificationRecord
	// Changed holds status transitions and brand-new records.
	Changed []domain.Change
	// Modified is true when anything observable differs from the old snapshot.
	Modified bool
}

// MergeAndDiff compares next against prev record by record.
//
// A record is reported in Changed when its status differs from the previous
// version, or when it is brand new and prev has already been loaded once. The
// initial load never reports history as new.
func MergeAndDiff(prev, next domain.Snapshot) MergeResult {
	byID := make(map[string]*domain.NotificationRecord, len(prev.Records))
	for _, r := range prev.Records {
		byID[r.ID] = r
	}

	result := MergeResult{
		Merged:   make([]*domain.NotificationRecord, 0, len(next.Records)),
		Modified: len(prev.Records) != len(next.Records),
	}

	seen := make(map[string]struct{}, len(next.Records))
	for i, rec := range next.Records {
		if _, dup := seen[rec.ID]; dup {
			result.Modified = true
			continue
		}
		seen[rec.ID] = struct{}{}

		old, existed := byID[rec.ID]
		switch {
		case !existed:
			result.Merged = append(result.Merged, rec)
			result.Modified = true
			if prev.Loaded {
				result.Changed = append(result.Changed, domain.Change{New: rec})
			}
		case old.Equal(rec):
			result.Merged = append(result.Merged, old)
			if i >= len(prev.Records) || prev.Records[i].ID != rec.ID {
				result.Modified = true
			}
		default:
			result.Merged = append(result.Merged, rec)
			result.Modified = true
			if old.Status != rec.Status {
				result.Changed = append(result.Changed, domain.Change{Old: old, New: rec})
			}
		}
	}

	return result
}
