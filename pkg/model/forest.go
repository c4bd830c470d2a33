package model

import (
	"fmt"
)

const leafChild = -1

// ForestParams holds an ensemble of decision trees whose leaf
// distributions are averaged.
type ForestParams struct {
	Trees []Tree `yaml:"trees" json:"trees"`
}

// Tree is a flat node array rooted at index 0.
type Tree struct {
	Nodes []Node `yaml:"nodes" json:"nodes"`
}

// Node is a split or a leaf. Rows with x[Feature] <= Threshold go Left.
// A leaf has a negative Left and carries per-class weights in Value.
type Node struct {
	Feature   int       `yaml:"feature" json:"feature"`
	Threshold float64   `yaml:"threshold" json:"threshold"`
	Left      int       `yaml:"left" json:"left"`
	Right     int       `yaml:"right" json:"right"`
	Value     []float64 `yaml:"value,omitempty" json:"value,omitempty"`
}

func (n Node) isLeaf() bool {
	return n.Left < 0
}

type forest struct {
	features int
	classes  int
	// leaf distributions normalized at load time, indexed like the nodes
	trees [][]Node
}

func newForest(features, classes int, p *ForestParams) (*forest, error) {
	if p == nil || len(p.Trees) == 0 {
		return nil, fmt.Errorf("%w: forest has no trees", ErrInvalid)
	}

	f := &forest{
		features: features,
		classes:  classes,
		trees:    make([][]Node, 0, len(p.Trees)),
	}

	for ti, t := range p.Trees {
		nodes, err := validateTree(t, features, classes)
		if err != nil {
			return nil, fmt.Errorf("%w: tree %d: %w", ErrInvalid, ti, err)
		}
		f.trees = append(f.trees, nodes)
	}

	return f, nil
}

func validateTree(t Tree, features, classes int) ([]Node, error) {
	if len(t.Nodes) == 0 {
		return nil, fmt.Errorf("no nodes")
	}

	nodes := make([]Node, len(t.Nodes))
	for i, n := range t.Nodes {
		if n.isLeaf() {
			if len(n.Value) != classes {
				return nil, fmt.Errorf("leaf %d has %d values, want %d", i, len(n.Value), classes)
			}
			var sum float64
			for _, v := range n.Value {
				if v < 0 {
					return nil, fmt.Errorf("leaf %d has negative value", i)
				}
				sum += v
			}
			if sum <= 0 {
				return nil, fmt.Errorf("leaf %d has no weight", i)
			}
			norm := make([]float64, classes)
			for c, v := range n.Value {
				norm[c] = v / sum
			}
			nodes[i] = Node{Left: leafChild, Right: leafChild, Value: norm}
			continue
		}

		if n.Feature < 0 || n.Feature >= features {
			return nil, fmt.Errorf("node %d splits on feature %d, model has %d", i, n.Feature, features)
		}
		if n.Left >= len(t.Nodes) || n.Right < 0 || n.Right >= len(t.Nodes) {
			return nil, fmt.Errorf("node %d has child out of range", i)
		}
		nodes[i] = n
	}

	return nodes, nil
}

func (f *forest) Features() int { return f.features }

func (f *forest) Classes() int { return f.classes }

func (f *forest) PredictProba(rows [][]float64) ([][]float64, error) {
	if err := checkBatch(rows, f.features); err != nil {
		return nil, err
	}

	out := make([][]float64, len(rows))
	for i, r := range rows {
		acc := make([]float64, f.classes)
		for ti, nodes := range f.trees {
			leaf, err := walk(nodes, r)
			if err != nil {
				return nil, fmt.Errorf("tree %d: %w", ti, err)
			}
			for c, v := range leaf.Value {
				acc[c] += v
			}
		}
		n := float64(len(f.trees))
		for c := range acc {
			acc[c] /= n
		}
		out[i] = acc
	}
	return out, nil
}

// walk follows splits from the root. Every path visits at most len(nodes)
// nodes, so a longer walk means the tree has a cycle.
func walk(nodes []Node, row []float64) (Node, error) {
	idx := 0
	for steps := 0; steps <= len(nodes); steps++ {
		n := nodes[idx]
		if n.isLeaf() {
			return n, nil
		}
		if row[n.Feature] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
	return Node{}, fmt.Errorf("%w: cycle detected", ErrInvalid)
}
