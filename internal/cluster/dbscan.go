package cluster

// DBSCAN labels each point with a cluster id or NoiseLabel.
//
// A point is core when at least minPts points, itself included, lie within eps.
// Clusters grow from core points in index order, so label values follow discovery order
// and a border point shared by two clusters joins the one discovered first.
func DBSCAN(idx NeighborIndex, n int, eps float64, minPts int) []int {
	labels := make([]int, n)
	for i := range labels {
		labels[i] = NoiseLabel
	}
	if n < minPts {
		return labels
	}

	neighborhoods := make([][]int, n)
	core := make([]bool, n)
	for i := range n {
		neighborhoods[i] = idx.Neighbors(i, eps)
		core[i] = len(neighborhoods[i]) >= minPts
	}

	next := 0
	var stack []int
	for i := range n {
		if labels[i] != NoiseLabel || !core[i] {
			continue
		}
		stack = append(stack[:0], i)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if labels[p] != NoiseLabel {
				continue
			}
			labels[p] = next
			if !core[p] {
				continue
			}
			for _, q := range neighborhoods[p] {
				if labels[q] == NoiseLabel {
					stack = append(stack, q)
				}
			}
		}
		next++
	}
	return labels
}
