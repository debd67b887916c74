package availability

import "sort"

// Move changes an existing slot's time in place.
type Move struct {
	From string `json:"de"`
	To   string `json:"para"`
}

// Plan is the set of backend calls that turns one day's original times
// into the desired ones.
type Plan struct {
	Moves   []Move   `json:"movidos"`
	Deletes []string `json:"removidos"`
	Creates []string `json:"criados"`
}

func (p Plan) Calls() int {
	return len(p.Moves) + len(p.Deletes) + len(p.Creates)
}

// PlanEdit diffs two time sets. Removed and added times are paired in
// ascending order into moves; the leftovers become deletes or creates.
func PlanEdit(original, desired []string) Plan {
	orig := toSet(original)
	want := toSet(desired)

	var toRemove, toAdd []string
	for t := range orig {
		if _, ok := want[t]; !ok {
			toRemove = append(toRemove, t)
		}
	}
	for t := range want {
		if _, ok := orig[t]; !ok {
			toAdd = append(toAdd, t)
		}
	}
	sort.Strings(toRemove)
	sort.Strings(toAdd)

	n := min(len(toRemove), len(toAdd))
	var p Plan
	for i := 0; i < n; i++ {
		p.Moves = append(p.Moves, Move{From: toRemove[i], To: toAdd[i]})
	}
	p.Deletes = toRemove[n:]
	p.Creates = toAdd[n:]
	return p
}

func toSet(times []string) map[string]struct{} {
	out := make(map[string]struct{}, len(times))
	for _, t := range times {
		out[t] = struct{}{}
	}
	return out
}
