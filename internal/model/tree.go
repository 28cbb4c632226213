package model

import "sort"

// node is one split or leaf of a regression tree.
type node struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *node
	right     *node
}

func (n *node) predict(x []float64) float64 {
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// treeBuilder grows a least-squares regression tree on a fixed design matrix.
type treeBuilder struct {
	x               [][]float64
	y               []float64
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
}

func (b *treeBuilder) build(idx []int, depth int) *node {
	mean := b.mean(idx)
	if depth >= b.maxDepth || len(idx) < b.minSamplesSplit || len(idx) < 2*b.minSamplesLeaf {
		return &node{leaf: true, value: mean}
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return &node{leaf: true, value: mean}
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &node{
		feature:   feature,
		threshold: threshold,
		left:      b.build(left, depth+1),
		right:     b.build(right, depth+1),
	}
}

// bestSplit scans every feature and every midpoint between distinct sorted
// values, keeping the split with the largest reduction in squared error.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	var total, totalSq float64
	for _, i := range idx {
		total += b.y[i]
		totalSq += b.y[i] * b.y[i]
	}
	parentSSE := totalSq - total*total/float64(n)
	if parentSSE <= 1e-12*(1+totalSq) {
		return 0, 0, false
	}

	bestGain := 0.0
	bestFeature, bestThreshold := -1, 0.0
	sorted := make([]int, n)

	for f := 0; f < len(b.x[idx[0]]); f++ {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool { return b.x[sorted[a]][f] < b.x[sorted[c]][f] })

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			yi := b.y[sorted[k]]
			leftSum += yi
			leftSq += yi * yi

			lo, hi := b.x[sorted[k]][f], b.x[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			nl, nr := k+1, n-k-1
			if nl < b.minSamplesLeaf || nr < b.minSamplesLeaf {
				continue
			}
			rightSum, rightSq := total-leftSum, totalSq-leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			if gain := parentSSE - sse; gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func (b *treeBuilder) mean(idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var s float64
	for _, i := range idx {
		s += b.y[i]
	}
	return s / float64(len(idx))
}
