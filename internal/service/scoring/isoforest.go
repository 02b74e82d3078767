package scoring

import (
	"fmt"
	"math"
	"math/rand"
)

// IsolationForest is an unsupervised outlier detector. Anomalous points
// isolate in fewer random splits than normal points; the decision score
// maps average path length to (0, 1), higher meaning more anomalous.
//
// A forest is batch-scoped: constructed, fitted, and discarded within one
// investigation. It is not safe for concurrent fitting and must never be
// shared across entities.
type IsolationForest struct {
	numTrees   int
	sampleSize int
	rng        *rand.Rand
	trees      []*isoTree
	// fitSize is the subsample each tree was actually built from, which
	// is smaller than sampleSize for small batches. Score normalization
	// must use it, not the configured cap.
	fitSize int
	fitted  bool
}

type isoTree struct {
	root *isoNode
}

type isoNode struct {
	left       *isoNode
	right      *isoNode
	splitAttr  int
	splitValue float64
	size       int
}

// Forest sizing defaults, following the original isolation forest paper
const (
	DefaultNumTrees   = 100
	DefaultSampleSize = 256
)

// NewIsolationForest creates a forest with a deterministic seed. The same
// seed and training data always produce the same scores.
func NewIsolationForest(numTrees, sampleSize int, seed int64) *IsolationForest {
	if numTrees <= 0 {
		numTrees = DefaultNumTrees
	}
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &IsolationForest{
		numTrees:   numTrees,
		sampleSize: sampleSize,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Fit builds the forest from the sample matrix. Every row must have the
// same number of columns.
func (f *IsolationForest) Fit(samples [][]float64) error {
	if len(samples) == 0 {
		return fmt.Errorf("cannot fit isolation forest on empty sample set")
	}

	width := len(samples[0])
	for i, s := range samples {
		if len(s) != width {
			return fmt.Errorf("sample %d has %d features, expected %d", i, len(s), width)
		}
	}

	subsample := f.sampleSize
	if subsample > len(samples) {
		subsample = len(samples)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(subsample))))

	f.trees = make([]*isoTree, f.numTrees)
	for i := 0; i < f.numTrees; i++ {
		idx := f.rng.Perm(len(samples))[:subsample]
		sub := make([][]float64, subsample)
		for j, k := range idx {
			sub[j] = samples[k]
		}
		f.trees[i] = &isoTree{root: f.buildNode(sub, 0, maxDepth)}
	}

	f.fitSize = subsample
	f.fitted = true
	return nil
}

func (f *IsolationForest) buildNode(samples [][]float64, depth, maxDepth int) *isoNode {
	if depth >= maxDepth || len(samples) <= 1 {
		return &isoNode{size: len(samples)}
	}

	attr := f.rng.Intn(len(samples[0]))
	min, max := samples[0][attr], samples[0][attr]
	for _, s := range samples {
		if s[attr] < min {
			min = s[attr]
		}
		if s[attr] > max {
			max = s[attr]
		}
	}
	if min == max {
		return &isoNode{size: len(samples)}
	}

	split := min + f.rng.Float64()*(max-min)

	var left, right [][]float64
	for _, s := range samples {
		if s[attr] < split {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	return &isoNode{
		splitAttr:  attr,
		splitValue: split,
		size:       len(samples),
		left:       f.buildNode(left, depth+1, maxDepth),
		right:      f.buildNode(right, depth+1, maxDepth),
	}
}

// DecisionScores returns the anomaly score for each sample in (0, 1).
// Scores near 1 indicate isolation in very few splits; scores well below
// 0.5 indicate unremarkable points.
func (f *IsolationForest) DecisionScores(samples [][]float64) ([]float64, error) {
	if !f.fitted {
		return nil, fmt.Errorf("isolation forest is not fitted")
	}

	n := float64(f.fitSize)
	scores := make([]float64, len(samples))
	for i, s := range samples {
		var pathSum float64
		for _, t := range f.trees {
			pathSum += pathLength(t.root, s, 0)
		}
		avgPath := pathSum / float64(len(f.trees))
		scores[i] = math.Pow(2, -avgPath/averagePathLength(n))
	}
	return scores, nil
}

func pathLength(node *isoNode, sample []float64, depth float64) float64 {
	if node.left == nil && node.right == nil {
		return depth + averagePathLength(float64(node.size))
	}
	if sample[node.splitAttr] < node.splitValue {
		return pathLength(node.left, sample, depth+1)
	}
	return pathLength(node.right, sample, depth+1)
}

// averagePathLength is c(n), the expected path length of an unsuccessful
// BST search, used to normalize isolation depths.
func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}
