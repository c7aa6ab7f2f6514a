package tracker

import (
	"sort"

	"github.com/fabulist/fabula/internal/ir"
)

// diffAttributes compares two attribute snapshots key-by-key. Either side may
// be nil (entity absent from that snapshot entirely); a key present on only
// one side reports ir.Absent for the other.
func diffAttributes(from, to ir.AttributeSnapshot) []ir.AttributeChange {
	keys := make(map[string]bool, len(from)+len(to))
	for k := range from {
		keys[k] = true
	}
	for k := range to {
		keys[k] = true
	}

	ordered := make([]string, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)

	var changes []ir.AttributeChange
	for _, k := range ordered {
		oldVal, hadOld := from[k]
		newVal, hadNew := to[k]
		if !hadOld {
			oldVal = ir.Absent
		}
		if !hadNew {
			newVal = ir.Absent
		}
		if hadOld && hadNew && ir.Equal(oldVal, newVal) {
			continue
		}
		changes = append(changes, ir.AttributeChange{
			Attribute: k,
			OldValue:  oldVal,
			NewValue:  newVal,
		})
	}
	return changes
}
