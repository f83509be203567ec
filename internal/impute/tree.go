package impute

import (
	"math"
	"math/rand"
	"sort"
)

// treeNode is one node of a CART regression tree. Leaves have nil children
// and carry the mean of their training targets.
type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
}

type treeParams struct {
	maxDepth    int
	minLeaf     int
	maxFeatures int
}

// growTree builds a regression tree over the sample indices idx, choosing at
// each node the variance-minimizing split among a random feature subset.
func growTree(x [][]float64, y []float64, idx []int, depth int, p treeParams, rng *rand.Rand) *treeNode {
	node := &treeNode{value: meanAt(y, idx)}
	if depth >= p.maxDepth || len(idx) < 2*p.minLeaf {
		return node
	}

	feature, threshold, ok := bestSplit(x, y, idx, p, rng)
	if !ok {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < p.minLeaf || len(right) < p.minLeaf {
		return node
	}

	node.feature = feature
	node.threshold = threshold
	node.left = growTree(x, y, left, depth+1, p, rng)
	node.right = growTree(x, y, right, depth+1, p, rng)
	return node
}

// bestSplit scans a random subset of features for the threshold maximizing
// the reduction in sum of squared error. Returns ok=false when no split
// separates the samples with both sides at least minLeaf.
func bestSplit(x [][]float64, y []float64, idx []int, p treeParams, rng *rand.Rand) (int, float64, bool) {
	nFeatures := len(x[idx[0]])
	perm := rng.Perm(nFeatures)
	features := perm[:p.maxFeatures]

	// Maximizing sumL^2/nL + sumR^2/nR over splits is equivalent to
	// minimizing total SSE, and lets the scan run on running sums.
	bestScore := math.Inf(-1)
	bestFeature, bestThreshold := -1, 0.0

	order := make([]int, len(idx))
	for _, f := range features {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool {
			if x[order[a]][f] != x[order[b]][f] {
				return x[order[a]][f] < x[order[b]][f]
			}
			return order[a] < order[b]
		})

		var total float64
		for _, i := range order {
			total += y[i]
		}

		var sumLeft float64
		for k := 0; k < len(order)-1; k++ {
			sumLeft += y[order[k]]
			// Can only split between distinct feature values.
			if x[order[k]][f] == x[order[k+1]][f] {
				continue
			}
			nLeft := k + 1
			nRight := len(order) - nLeft
			if nLeft < p.minLeaf || nRight < p.minLeaf {
				continue
			}
			sumRight := total - sumLeft
			score := sumLeft*sumLeft/float64(nLeft) + sumRight*sumRight/float64(nRight)
			if score > bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = (x[order[k]][f] + x[order[k+1]][f]) / 2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func (n *treeNode) predict(x []float64) float64 {
	for n.left != nil {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

func meanAt(y []float64, idx []int) float64 {
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}
