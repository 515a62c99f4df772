package autosave

import "reflect"

// Diff compares live against prev key by key and returns the fields of live
// whose values differ. A key present in prev but missing from live is
// reported as nil so the removal is persisted; a nil in prev already counts
// as removed.
func Diff(live, prev Record) Patch {
	patch := Patch{}
	for key, value := range live {
		old, ok := prev[key]
		if ok && reflect.DeepEqual(old, value) {
			continue
		}
		patch[key] = value
	}
	for key, old := range prev {
		if _, ok := live[key]; ok || old == nil {
			continue
		}
		patch[key] = nil
	}
	return patch
}

// Merge returns a copy of base with patch applied on top.
func Merge(base Record, patch Patch) Record {
	out := make(Record, len(base)+len(patch))
	for key, value := range base {
		out[key] = value
	}
	for key, value := range patch {
		out[key] = value
	}
	return out
}

func clonePatch(p Patch) Patch {
	out := make(Patch, len(p))
	for key, value := range p {
		out[key] = value
	}
	return out
}
