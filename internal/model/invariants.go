package model

import (
	"encoding/json"
	"maps"

	"github.com/rotisserie/eris"
)

// CheckInvariants verifies that after is a legal successor of before: the
// raw extraction is untouched, audit lists only grew, and the export status
// did not silently revert. Stores run it on every update.
func CheckInvariants(before, after *Specimen) error {
	if before.ID != after.ID {
		return eris.Errorf("invariant: specimen id changed from %s to %s", before.ID, after.ID)
	}
	if !sameJSON(before.Raw, after.Raw) {
		return eris.Errorf("invariant: raw extraction of %s was modified", before.ID)
	}
	if err := appendOnly("corrections", before.Corrections, after.Corrections); err != nil {
		return err
	}
	if err := appendOnly("transitions", before.Transitions, after.Transitions); err != nil {
		return err
	}
	if err := appendOnly("export history", before.Export.History, after.Export.History); err != nil {
		return err
	}
	if after.Export.Count < before.Export.Count {
		return eris.Errorf("invariant: export count of %s decreased", before.ID)
	}

	exported := after.Export.Count > before.Export.Count
	if !exported && before.Export.Status == ExportStatusModifiedSinceExport &&
		after.Export.Status != ExportStatusModifiedSinceExport {
		return eris.Errorf("invariant: export status of %s reverted without a new export", before.ID)
	}
	if !exported && before.Export.Status == ExportStatusExported &&
		!maps.Equal(before.Fields, after.Fields) &&
		after.Export.Status != ExportStatusModifiedSinceExport {
		return eris.Errorf("invariant: %s modified after export without status change", before.ID)
	}
	return nil
}

func appendOnly[T any](name string, before, after []T) error {
	if len(after) < len(before) {
		return eris.Errorf("invariant: %s shrank from %d to %d", name, len(before), len(after))
	}
	for i := range before {
		if !sameJSON(before[i], after[i]) {
			return eris.Errorf("invariant: %s entry %d was rewritten", name, i)
		}
	}
	return nil
}

func sameJSON(a, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}
