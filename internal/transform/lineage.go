package transform

import (
	"fmt"
	"strings"

	"duck-pipeline/internal/domain"
)

// StepLineage describes which earlier steps a descriptor reads from.
type StepLineage struct {
	Index     int
	Output    string
	DependsOn []int // indices of the steps producing this step's curated inputs
	Depth     int   // 0 when the step reads only raw or pre-existing tables
	Warnings  []string
}

// Lineage computes step dependencies from the structured descriptors. Each
// curated or plain input is attributed to the latest earlier step writing a
// table of that name. A curated input that only a later step produces is
// reported as a warning, since execution order is never changed.
func Lineage(transforms []domain.Transform) []StepLineage {
	// producers[name] lists step indices writing curated.<name>, ascending.
	// Names are folded to lower case to match catalog lookups.
	producers := make(map[string][]int, len(transforms))
	for i, t := range transforms {
		key := strings.ToLower(t.Output())
		producers[key] = append(producers[key], i)
	}

	out := make([]StepLineage, len(transforms))
	for i, t := range transforms {
		sl := StepLineage{Index: i, Output: t.Output()}
		seen := make(map[int]bool)

		for _, ref := range Inputs(t) {
			if ref.Namespace == domain.NamespaceRaw {
				continue
			}
			prev, next := -1, -1
			for _, p := range producers[strings.ToLower(ref.Name)] {
				if p < i {
					prev = p
				} else if p > i && next < 0 {
					next = p
				}
			}

			switch {
			case prev >= 0:
				if !seen[prev] {
					seen[prev] = true
					sl.DependsOn = append(sl.DependsOn, prev)
					if d := out[prev].Depth + 1; d > sl.Depth {
						sl.Depth = d
					}
				}
			case next >= 0 && ref.Qualified():
				sl.Warnings = append(sl.Warnings,
					fmt.Sprintf("reads %s before step #%d creates it", ref, next))
			}
		}
		out[i] = sl
	}
	return out
}
