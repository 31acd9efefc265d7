package detection

import (
	"math"
	"math/rand"
)

// isolationForest is a one-dimensional isolation forest. Each tree isolates
// points by recursive uniform splits; points isolated in short paths score
// close to 1, points deep in the bulk score near or below 0.5.
type isolationForest struct {
	trees      int
	sampleSize int
	rng        *rand.Rand
}

func newIsolationForest(trees, sampleSize int, seed int64) *isolationForest {
	if trees <= 0 {
		trees = 100
	}
	if sampleSize <= 0 {
		sampleSize = 256
	}
	return &isolationForest{
		trees:      trees,
		sampleSize: sampleSize,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

type isoNode struct {
	split float64
	left  *isoNode
	right *isoNode
	size  int
}

// Scores returns the anomaly score for every input value. Scores are
// deterministic for a fixed seed.
func (f *isolationForest) Scores(values []float64) []float64 {
	n := len(values)
	scores := make([]float64, n)
	if n == 0 {
		return scores
	}

	psi := f.sampleSize
	if psi > n {
		psi = n
	}
	depthLimit := int(math.Ceil(math.Log2(float64(psi))))
	if depthLimit < 1 {
		depthLimit = 1
	}

	trees := make([]*isoNode, f.trees)
	for t := range trees {
		sample := f.subsample(values, psi)
		trees[t] = f.buildTree(sample, 0, depthLimit)
	}

	norm := avgPathLength(psi)
	for i, v := range values {
		total := 0.0
		for _, tree := range trees {
			total += pathLength(tree, v, 0)
		}
		expected := total / float64(len(trees))
		if norm == 0 {
			scores[i] = 0.5
			continue
		}
		scores[i] = math.Pow(2, -expected/norm)
	}
	return scores
}

func (f *isolationForest) subsample(values []float64, psi int) []float64 {
	if psi >= len(values) {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	perm := f.rng.Perm(len(values))
	out := make([]float64, psi)
	for i := 0; i < psi; i++ {
		out[i] = values[perm[i]]
	}
	return out
}

func (f *isolationForest) buildTree(values []float64, depth, limit int) *isoNode {
	if len(values) <= 1 || depth >= limit {
		return &isoNode{size: len(values)}
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		return &isoNode{size: len(values)}
	}

	split := lo + f.rng.Float64()*(hi-lo)
	var left, right []float64
	for _, v := range values {
		if v < split {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}
	return &isoNode{
		split: split,
		left:  f.buildTree(left, depth+1, limit),
		right: f.buildTree(right, depth+1, limit),
		size:  len(values),
	}
}

func pathLength(node *isoNode, value float64, depth int) float64 {
	if node.left == nil && node.right == nil {
		return float64(depth) + avgPathLength(node.size)
	}
	if value < node.split {
		return pathLength(node.left, value, depth+1)
	}
	return pathLength(node.right, value, depth+1)
}

// avgPathLength is c(n), the expected unsuccessful-search depth in a BST of n
// nodes, used to adjust for early tree termination.
func avgPathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	h := math.Log(float64(n-1)) + 0.5772156649015329
	return 2*h - 2*float64(n-1)/float64(n)
}
