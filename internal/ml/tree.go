package ml

import (
	"math/rand"
	"sort"
)

// Node is one node of a flattened regression tree. Leaves have Left == -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
}

// Tree is a CART regression tree minimising squared error.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// TreeParams bound tree growth. Zero MaxDepth means unlimited; zero
// MaxFeatures means every feature is tried at each split.
type TreeParams struct {
	MaxDepth        int `json:"max_depth"`
	MinSamplesSplit int `json:"min_samples_split"`
	MinSamplesLeaf  int `json:"min_samples_leaf"`
	MaxFeatures     int `json:"max_features"`
}

func (p TreeParams) normalized() TreeParams {
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	if p.MinSamplesLeaf < 1 {
		p.MinSamplesLeaf = 1
	}
	return p
}

type treeBuilder struct {
	X      [][]float64
	y      []float64
	width  int
	params TreeParams
	rng    *rand.Rand
	nodes  []Node
}

// growTree fits a tree on the rows listed in idx. rng is only consulted when
// MaxFeatures restricts the candidate features.
func growTree(X [][]float64, y []float64, idx []int, params TreeParams, rng *rand.Rand) Tree {
	b := &treeBuilder{
		X:      X,
		y:      y,
		width:  len(X[0]),
		params: params.normalized(),
		rng:    rng,
	}
	b.build(append([]int(nil), idx...), 0)
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) build(idx []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Left: -1, Right: -1, Value: b.meanOf(idx)})

	if len(idx) < b.params.MinSamplesSplit {
		return id
	}
	if b.params.MaxDepth > 0 && depth >= b.params.MaxDepth {
		return id
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[id].Feature = feature
	b.nodes[id].Threshold = threshold
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

func (b *treeBuilder) meanOf(idx []int) float64 {
	var s float64
	for _, i := range idx {
		s += b.y[i]
	}
	return s / float64(len(idx))
}

func (b *treeBuilder) candidateFeatures() []int {
	k := b.params.MaxFeatures
	if k <= 0 || k >= b.width || b.rng == nil {
		all := make([]int, b.width)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rng.Perm(b.width)[:k]
}

// bestSplit scans every boundary between distinct sorted values and keeps the
// one with the largest reduction in squared error.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	minLeaf := b.params.MinSamplesLeaf

	var total float64
	for _, i := range idx {
		total += b.y[i]
	}
	parentScore := total * total / float64(n)

	bestFeature, bestThreshold := -1, 0.0
	bestScore := parentScore
	sorted := make([]int, n)

	for _, f := range b.candidateFeatures() {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.X[sorted[a]][f] < b.X[sorted[c]][f]
		})

		var leftSum float64
		for k := 1; k < n; k++ {
			leftSum += b.y[sorted[k-1]]
			if k < minLeaf || n-k < minLeaf {
				continue
			}
			lo, hi := b.X[sorted[k-1]][f], b.X[sorted[k]][f]
			if lo == hi {
				continue
			}
			rightSum := total - leftSum
			score := leftSum*leftSum/float64(k) + rightSum*rightSum/float64(n-k)
			if score > bestScore+1e-12 {
				bestScore = score
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func (t Tree) predictOne(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Left < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}
