package impute

import (
	"math/rand"
)

// ForestParams are the tree-ensemble hyperparameters. MaxFeatures is the
// fraction of features considered per split; <= 0 means all features.
type ForestParams struct {
	Trees       int
	MaxDepth    int
	MinLeaf     int
	MaxFeatures float64
	Seed        int64
}

func DefaultForestParams() ForestParams {
	return ForestParams{
		Trees:       100,
		MaxDepth:    10,
		MinLeaf:     2,
		MaxFeatures: 0.33,
		Seed:        42,
	}
}

type forest struct {
	trees []*treeNode
}

// fitForest trains Trees bootstrap-sampled regression trees on the rows of x.
func fitForest(x [][]float64, y []float64, p ForestParams, rng *rand.Rand) *forest {
	n := len(x)
	nFeatures := len(x[0])

	maxFeatures := nFeatures
	if p.MaxFeatures > 0 {
		maxFeatures = int(p.MaxFeatures * float64(nFeatures))
		if maxFeatures < 1 {
			maxFeatures = 1
		}
		if maxFeatures > nFeatures {
			maxFeatures = nFeatures
		}
	}
	tp := treeParams{maxDepth: p.MaxDepth, minLeaf: p.MinLeaf, maxFeatures: maxFeatures}

	f := &forest{trees: make([]*treeNode, 0, p.Trees)}
	idx := make([]int, n)
	for t := 0; t < p.Trees; t++ {
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		f.trees = append(f.trees, growTree(x, y, idx, 0, tp, rng))
	}
	return f
}

func (f *forest) predict(x []float64) float64 {
	var sum float64
	for _, t := range f.trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.trees))
}
