package composition

// sortDAG runs Kahn's algorithm over the dependency relation. It returns
// the nodes dependencies-first, or a cycle path when the graph is not
// acyclic. Node order and the deps callback are deterministic, so the
// returned order is too.
func sortDAG(nodes []string, deps func(string) []string) (sorted []string, cycle []string) {
	if len(nodes) == 0 {
		return nil, nil
	}

	nodeSet := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		nodeSet[n] = true
	}

	// inDegree counts unresolved dependencies; dependents is the reverse
	// adjacency (dependency -> nodes waiting on it).
	inDegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string)
	for _, n := range nodes {
		inDegree[n] = 0
	}
	for _, n := range nodes {
		for _, dep := range deps(n) {
			if !nodeSet[dep] {
				continue
			}
			inDegree[n]++
			dependents[dep] = append(dependents[dep], n)
		}
	}

	var queue []string
	for _, n := range nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		sorted = append(sorted, node)
		for _, dependent := range dependents[node] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) == len(nodes) {
		return sorted, nil
	}
	return nil, findCyclePath(nodes, deps, inDegree)
}

// findCyclePath reconstructs one cycle among the nodes Kahn's algorithm
// could not place, so the error names the offending chain instead of just
// announcing "a cycle exists".
func findCyclePath(nodes []string, deps func(string) []string, inDegree map[string]int) []string {
	const (
		white = 0 // unvisited
		gray  = 1 // on current path
		black = 2 // finished
	)

	color := make(map[string]int)
	parent := make(map[string]string)

	var cyclePath []string

	var dfs func(node string) bool
	dfs = func(node string) bool {
		color[node] = gray
		for _, dep := range deps(node) {
			if color[dep] == gray {
				cyclePath = []string{dep}
				current := node
				for current != dep {
					cyclePath = append(cyclePath, current)
					current = parent[current]
				}
				cyclePath = append(cyclePath, dep)
				for i, j := 0, len(cyclePath)-1; i < j; i, j = i+1, j-1 {
					cyclePath[i], cyclePath[j] = cyclePath[j], cyclePath[i]
				}
				return true
			}
			if color[dep] == white {
				parent[dep] = node
				if dfs(dep) {
					return true
				}
			}
		}
		color[node] = black
		return false
	}

	for _, n := range nodes {
		if inDegree[n] > 0 && color[n] == white {
			if dfs(n) {
				return cyclePath
			}
		}
	}
	return []string{"(cycle detected)"}
}
