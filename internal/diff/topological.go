package diff

import (
	"sort"

	"github.com/pgschema/viewmig/internal/ir"
)

// topologicallySortViews orders views so that every view comes after the
// declared views it depends on. Dependencies on tables outside the set are
// ignored. Cycles are broken deterministically by table name.
func topologicallySortViews(views []*ir.View) []*ir.View {
	if len(views) <= 1 {
		return views
	}

	viewMap := make(map[string]*ir.View, len(views))
	insertionOrder := make([]string, 0, len(views))
	for _, v := range views {
		viewMap[v.Table] = v
		insertionOrder = append(insertionOrder, v.Table)
	}
	sort.Strings(insertionOrder)

	inDegree := make(map[string]int, len(viewMap))
	adjList := make(map[string][]string, len(viewMap))
	for table := range viewMap {
		inDegree[table] = 0
	}

	// edge dependency -> dependent
	for table, v := range viewMap {
		seen := make(map[string]bool, len(v.Dependencies))
		for _, dep := range v.Dependencies {
			if dep == table || seen[dep] {
				continue
			}
			seen[dep] = true
			if _, exists := viewMap[dep]; exists {
				adjList[dep] = append(adjList[dep], table)
				inDegree[table]++
			}
		}
	}

	// Kahn's algorithm with deterministic cycle breaking
	var queue []string
	result := make([]string, 0, len(viewMap))
	processed := make(map[string]bool, len(viewMap))

	for table, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, table)
		}
	}
	sort.Strings(queue)

	for len(result) < len(viewMap) {
		if len(queue) == 0 {
			// cycle: release the first unprocessed view in name order
			next := nextInOrder(insertionOrder, processed)
			if next == "" {
				break
			}
			queue = append(queue, next)
			inDegree[next] = 0
		}

		current := queue[0]
		queue = queue[1:]
		if processed[current] {
			continue
		}
		processed[current] = true
		result = append(result, current)

		neighbors := append([]string(nil), adjList[current]...)
		sort.Strings(neighbors)
		for _, neighbor := range neighbors {
			inDegree[neighbor]--
			if inDegree[neighbor] <= 0 && !processed[neighbor] {
				queue = append(queue, neighbor)
				sort.Strings(queue)
			}
		}
	}

	sorted := make([]*ir.View, 0, len(result))
	for _, table := range result {
		sorted = append(sorted, viewMap[table])
	}
	return sorted
}

func nextInOrder(order []string, processed map[string]bool) string {
	for _, key := range order {
		if !processed[key] {
			return key
		}
	}
	return ""
}
