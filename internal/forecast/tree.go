package forecast

import (
	"sort"

	"github.com/drewgoldman117/UTR-rating-forecast/internal/util"
)

type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
	leaf      bool
}

// regressionTree is a depth-limited CART regressor used as the weak learner
// inside gradient boosting.
type regressionTree struct {
	root     *treeNode
	maxDepth int
	minLeaf  int
}

func newRegressionTree(maxDepth, minLeaf int) *regressionTree {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	if minLeaf <= 0 {
		minLeaf = 1
	}
	return &regressionTree{maxDepth: maxDepth, minLeaf: minLeaf}
}

// fit grows the tree on the samples selected by indices.
func (t *regressionTree) fit(x [][]float64, targets []float64, indices []int) {
	t.root = t.grow(x, targets, indices, 0)
}

func (t *regressionTree) grow(x [][]float64, targets []float64, indices []int, depth int) *treeNode {
	mean := 0.0
	for _, idx := range indices {
		mean += targets[idx]
	}
	mean /= float64(len(indices))

	if depth >= t.maxDepth || len(indices) < 2*t.minLeaf {
		return &treeNode{leaf: true, value: mean}
	}

	feature, threshold, ok := t.bestSplit(x, targets, indices)
	if !ok {
		return &treeNode{leaf: true, value: mean}
	}

	left := make([]int, 0, len(indices))
	right := make([]int, 0, len(indices))
	for _, idx := range indices {
		if x[idx][feature] <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}

	if len(left) < t.minLeaf || len(right) < t.minLeaf {
		return &treeNode{leaf: true, value: mean}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      t.grow(x, targets, left, depth+1),
		right:     t.grow(x, targets, right, depth+1),
	}
}

// bestSplit scans every feature for the threshold maximizing the SSE
// reduction, the classic prefix-sum CART search.
func (t *regressionTree) bestSplit(x [][]float64, targets []float64, indices []int) (int, float64, bool) {
	if len(indices) == 0 {
		return 0, 0, false
	}

	numFeatures := len(x[indices[0]])

	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	total := 0.0
	for _, idx := range indices {
		total += targets[idx]
	}
	n := float64(len(indices))
	parentScore := total * total / n

	order := make([]int, len(indices))

	for feature := 0; feature < numFeatures; feature++ {
		copy(order, indices)
		sort.Slice(order, func(a, b int) bool {
			return x[order[a]][feature] < x[order[b]][feature]
		})

		leftSum := 0.0
		for i := 0; i < len(order)-1; i++ {
			idx := order[i]
			leftSum += targets[idx]

			nl := float64(i + 1)
			nr := n - nl

			// Only split between distinct feature values
			if x[idx][feature] == x[order[i+1]][feature] {
				continue
			}
			if int(nl) < t.minLeaf || int(nr) < t.minLeaf {
				continue
			}

			rightSum := total - leftSum
			gain := leftSum*leftSum/nl + rightSum*rightSum/nr - parentScore
			if gain > bestGain {
				bestGain = gain
				bestFeature = feature
				bestThreshold = (x[idx][feature] + x[order[i+1]][feature]) / 2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func (t *regressionTree) leafFor(features []float64) *treeNode {
	node := t.root
	for node != nil && !node.leaf {
		if features[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node
}

func (t *regressionTree) predict(features []float64) float64 {
	node := t.leafFor(features)
	if node == nil {
		return 0
	}
	return node.value
}

// relabelLeaves replaces each leaf's value with an aggregate over the given
// per-sample values of the training samples routed to that leaf. Quantile
// boosting fits the tree structure to gradients but sets leaf values to a
// residual quantile.
func (t *regressionTree) relabelLeaves(x [][]float64, values []float64, indices []int, agg func([]float64) float64) {
	groups := make(map[*treeNode][]float64)
	for _, idx := range indices {
		leaf := t.leafFor(x[idx])
		if leaf != nil {
			groups[leaf] = append(groups[leaf], values[idx])
		}
	}
	for leaf, vals := range groups {
		leaf.value = agg(vals)
	}
}

// quantileAgg returns an aggregator computing the q-th quantile.
func quantileAgg(q float64) func([]float64) float64 {
	return func(vals []float64) float64 {
		return util.Quantile(vals, q)
	}
}
