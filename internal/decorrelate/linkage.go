package decorrelate

import (
	"math"
	"sort"
)

type linkNode struct {
	members []int // sorted ascending
}

func (n *linkNode) minLeaf() int {
	return n.members[0]
}

type linkStep struct {
	left     []int
	right    []int
	distance float64
}

// averageLinkage agglomerates items while the closest pair of clusters is
// within cutoff. The distance between clusters is the mean pairwise
// distance of their members. Ties between candidate pairs go to the pair
// with the lowest member indices. Groups are returned ordered by their
// lowest member.
func averageLinkage(corr [][]float64, cutoff float64) ([][]int, []linkStep) {
	n := len(corr)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			if i != j {
				dist[i][j] = Distance(corr[i][j])
			}
		}
	}

	clusters := make([]*linkNode, n)
	for i := range clusters {
		clusters[i] = &linkNode{members: []int{i}}
	}

	var steps []linkStep
	for len(clusters) > 1 {
		bestI, bestJ := -1, -1
		bestD := math.Inf(1)
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				d := averageDistance(dist, clusters[i], clusters[j])
				if bestI < 0 || d < bestD || (d == bestD && pairLess(clusters[i], clusters[j], clusters[bestI], clusters[bestJ])) {
					bestD, bestI, bestJ = d, i, j
				}
			}
		}
		if bestD > cutoff {
			break
		}

		a, b := clusters[bestI], clusters[bestJ]
		if b.minLeaf() < a.minLeaf() {
			a, b = b, a
		}
		merged := &linkNode{members: append(append([]int(nil), a.members...), b.members...)}
		sort.Ints(merged.members)
		steps = append(steps, linkStep{left: a.members, right: b.members, distance: bestD})

		next := make([]*linkNode, 0, len(clusters)-1)
		for k, c := range clusters {
			if k != bestI && k != bestJ {
				next = append(next, c)
			}
		}
		clusters = append(next, merged)
	}

	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].minLeaf() < clusters[j].minLeaf()
	})
	groups := make([][]int, len(clusters))
	for i, c := range clusters {
		groups[i] = c.members
	}
	return groups, steps
}

func averageDistance(dist [][]float64, a, b *linkNode) float64 {
	sum := 0.0
	for _, i := range a.members {
		for _, j := range b.members {
			sum += dist[i][j]
		}
	}
	return sum / float64(len(a.members)*len(b.members))
}

// pairLess orders candidate pairs by (smaller minLeaf, larger minLeaf).
func pairLess(a1, b1, a2, b2 *linkNode) bool {
	x1, y1 := a1.minLeaf(), b1.minLeaf()
	if y1 < x1 {
		x1, y1 = y1, x1
	}
	x2, y2 := a2.minLeaf(), b2.minLeaf()
	if y2 < x2 {
		x2, y2 = y2, x2
	}
	if x1 != x2 {
		return x1 < x2
	}
	return y1 < y2
}
