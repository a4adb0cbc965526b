package entity

import (
	"fmt"
	"strings"
)

// topoSort orders names so every dependency precedes its dependents. The sort
// is stable with respect to declaration order, so unrelated types keep their
// declared relative positions. A dependency cycle is a declaration bug and
// returns an error naming the types involved.
func topoSort(names []string, byName map[string]Descriptor) ([]string, error) {
	indegree := make(map[string]int, len(names))
	dependents := make(map[string][]string, len(names))
	for _, name := range names {
		indegree[name] = len(byName[name].DependsOn)
		for _, dep := range byName[name].DependsOn {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	order := make([]string, 0, len(names))
	done := make(map[string]bool, len(names))
	for len(order) < len(names) {
		progressed := false
		for _, name := range names {
			if done[name] || indegree[name] != 0 {
				continue
			}
			done[name] = true
			order = append(order, name)
			for _, dependent := range dependents[name] {
				indegree[dependent]--
			}
			progressed = true
		}
		if !progressed {
			var stuck []string
			for _, name := range names {
				if !done[name] {
					stuck = append(stuck, name)
				}
			}
			return nil, fmt.Errorf("entity dependency cycle involving: %s", strings.Join(stuck, ", "))
		}
	}
	return order, nil
}
