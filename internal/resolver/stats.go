package resolver

import (
	"fmt"

	"github.com/starford/vaultfix/internal/report"
)

// Stats counts what a run did to the vault and the map.
type Stats struct {
	NewUIDAssigned           int
	SupplementalEntriesAdded int
	RenamesToUID             int
	DuplicatesDeleted        int
	ConflictsSerialized      int
	TempsRepaired            int
	OrphanTargetsSeen        int
	Skipped                  int
	Failed                   int
	LeftoverTemps            int

	MapEntriesBefore int
	MapEntriesAfter  int
}

// Fields returns the counters keyed by their report names.
func (s Stats) Fields() map[string]int {
	return map[string]int{
		"new_uid_assigned":           s.NewUIDAssigned,
		"supplemental_entries_added": s.SupplementalEntriesAdded,
		"renames_to_uid":             s.RenamesToUID,
		"duplicates_deleted":         s.DuplicatesDeleted,
		"conflicts_serialized":       s.ConflictsSerialized,
		"temps_repaired":             s.TempsRepaired,
		"orphan_targets_seen":        s.OrphanTargetsSeen,
		"skipped":                    s.Skipped,
		"failed":                     s.Failed,
		"leftover_temps":             s.LeftoverTemps,
		"map_entries_before":         s.MapEntriesBefore,
		"map_entries_after":          s.MapEntriesAfter,
	}
}

func (s Stats) summarize(rep *report.Report) {
	rep.Log("")
	rep.Log("Summary (this run)")
	rep.Logf("  - map_entries_before        : %d", s.MapEntriesBefore)
	rep.Logf("  - map_entries_after         : %d", s.MapEntriesAfter)
	rep.Logf("  - map_entries_delta         : %+d", s.MapEntriesAfter-s.MapEntriesBefore)
	rep.Logf("  - new_uid_assigned          : %d", s.NewUIDAssigned)
	rep.Logf("  - supplemental_entries_added: %d", s.SupplementalEntriesAdded)
	rep.Logf("  - renames_to_uid            : %d", s.RenamesToUID)
	rep.Logf("  - duplicates_deleted        : %d", s.DuplicatesDeleted)
	rep.Logf("  - conflicts_serialized      : %d", s.ConflictsSerialized)
	rep.Logf("  - temps_repaired            : %d", s.TempsRepaired)
	rep.Logf("  - orphan_targets_seen       : %d", s.OrphanTargetsSeen)
	if s.Failed > 0 || s.LeftoverTemps > 0 {
		rep.Log(fmt.Sprintf("  - failed: %d, leftover temps: %d", s.Failed, s.LeftoverTemps))
	}
}
