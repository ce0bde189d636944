package interpolate

import (
	"context"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	apperrors "maizemap/internal/errors"
	"maizemap/pkg/contracts/domain"
)

// forest is a bagged ensemble of CART regression trees
type forest struct {
	dims  int
	trees []*tree
}

func (f *forest) Method() Method { return RandomForest }
func (f *forest) Dims() int      { return f.dims }

// Predict implements Estimator as the mean of the tree predictions
func (f *forest) Predict(features []float64) float64 {
	sum := 0.0
	for _, t := range f.trees {
		sum += t.predict(features)
	}
	return sum / float64(len(f.trees))
}

// node is a split when left >= 0, otherwise a leaf holding value
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
}

type tree struct {
	nodes []node
}

func (t *tree) predict(x []float64) float64 {
	i := 0
	for {
		n := &t.nodes[i]
		if n.left < 0 {
			return n.value
		}
		if x[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

// fitForest grows opts.ForestTrees trees in parallel. Tree i draws from its
// own source seeded with Seed+i, so the forest does not depend on scheduling.
func fitForest(ctx context.Context, samples []domain.PointSample, opts Options) (*forest, error) {
	n := len(samples)
	x := make([][]float64, n)
	y := make([]float64, n)
	for i, s := range samples {
		x[i] = s.Features()
		y[i] = s.Value
	}
	dims := len(x[0])
	mtry := dims / 3
	if mtry < 1 {
		mtry = 1
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	f := &forest{dims: dims, trees: make([]*tree, opts.ForestTrees)}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range f.trees {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(opts.Seed + int64(i)))
			b := &builder{x: x, y: y, mtry: mtry, minLeaf: opts.MinLeaf, rng: rng}
			idx := make([]int, n)
			for j := range idx {
				idx[j] = rng.Intn(n)
			}
			t := &tree{}
			b.grow(t, idx)
			f.trees[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.New(apperrors.CodeCancelled, "random forest fit interrupted").With("cause", err.Error())
	}
	return f, nil
}

type builder struct {
	x       [][]float64
	y       []float64
	mtry    int
	minLeaf int
	rng     *rand.Rand
}

// grow appends the subtree for idx and returns its root position
func (b *builder) grow(t *tree, idx []int) int {
	pos := len(t.nodes)
	t.nodes = append(t.nodes, node{left: -1, right: -1, value: b.mean(idx)})

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return pos
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(t, left)
	r := b.grow(t, right)
	t.nodes[pos].feature = feature
	t.nodes[pos].threshold = threshold
	t.nodes[pos].left = l
	t.nodes[pos].right = r
	return pos
}

func (b *builder) mean(idx []int) float64 {
	vals := make([]float64, len(idx))
	for k, i := range idx {
		vals[k] = b.y[i]
	}
	return stat.Mean(vals, nil)
}

// bestSplit searches mtry randomly chosen features for the split with the
// lowest summed squared error that leaves at least minLeaf rows per side.
func (b *builder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	if n < 2*b.minLeaf {
		return 0, 0, false
	}

	var total, totalSq float64
	for _, i := range idx {
		total += b.y[i]
		totalSq += b.y[i] * b.y[i]
	}
	parent := totalSq - total*total/float64(n)
	if parent <= 1e-12 {
		return 0, 0, false
	}

	dims := len(b.x[0])
	candidates := b.rng.Perm(dims)[:b.mtry]

	bestErr := parent
	bestFeature, bestThreshold, found := 0, 0.0, false
	order := make([]int, n)

	for _, f := range candidates {
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool { return b.x[order[a]][f] < b.x[order[c]][f] })

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			v := b.y[order[k]]
			leftSum += v
			leftSq += v * v

			nl := k + 1
			nr := n - nl
			if nl < b.minLeaf || nr < b.minLeaf {
				continue
			}
			lo, hi := b.x[order[k]][f], b.x[order[k+1]][f]
			if lo == hi {
				continue
			}
			rightSum := total - leftSum
			rightSq := totalSq - leftSq
			sse := leftSq - leftSum*leftSum/float64(nl) + rightSq - rightSum*rightSum/float64(nr)
			if sse < bestErr-1e-12 {
				bestErr = sse
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}
