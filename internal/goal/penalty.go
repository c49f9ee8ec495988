package goal

import "gonum.org/v1/gonum/floats"

// Penalty adds a soft cost for impractical mixtures. Penalties see only the
// normalized weight vector and compose additively.
type Penalty interface {
	Penalty(weights []float64) float64
	Name() string
}

// Sparsity charges PerColor for every weight above Threshold.
type Sparsity struct {
	Threshold float64 `json:"threshold" yaml:"threshold"`
	PerColor  float64 `json:"penaltyPerColor" yaml:"penaltyPerColor"`
}

// NewSparsity returns the sparsity penalty with threshold 0.01 and cost 1 per colour.
func NewSparsity() Sparsity { return Sparsity{Threshold: 0.01, PerColor: 1} }

func (Sparsity) Name() string { return "Sparsity" }

func (s Sparsity) Penalty(weights []float64) float64 {
	active := 0
	for _, w := range weights {
		if w > s.Threshold {
			active++
		}
	}
	return float64(active) * s.PerColor
}

// Similarity charges PerPair for every configured index pair whose weights
// both exceed Threshold. Pairs outside the vector are ignored.
type Similarity struct {
	Pairs     [][2]int `json:"pairs" yaml:"pairs"`
	Threshold float64  `json:"threshold" yaml:"threshold"`
	PerPair   float64  `json:"penaltyPerPair" yaml:"penaltyPerPair"`
}

// NewSimilarity returns a similarity penalty over pairs with threshold 0.1
// and cost 1 per pair.
func NewSimilarity(pairs [][2]int) Similarity {
	return Similarity{Pairs: pairs, Threshold: 0.1, PerPair: 1}
}

func (Similarity) Name() string { return "Similarity" }

func (s Similarity) Penalty(weights []float64) float64 {
	var total float64
	for _, p := range s.Pairs {
		i, j := p[0], p[1]
		if i < 0 || j < 0 || i >= len(weights) || j >= len(weights) {
			continue
		}
		if weights[i] > s.Threshold && weights[j] > s.Threshold {
			total += s.PerPair
		}
	}
	return total
}

// DefaultLambda is the regularization strength used when none is configured.
const DefaultLambda = 0.1

// L1 is lambda·Σ|w|.
type L1 struct {
	Lambda float64 `json:"lambda" yaml:"lambda"`
}

func (L1) Name() string { return "L1" }

func (r L1) Penalty(weights []float64) float64 {
	if len(weights) == 0 {
		return 0
	}
	return r.Lambda * floats.Norm(weights, 1)
}

// L2 is lambda·Σw².
type L2 struct {
	Lambda float64 `json:"lambda" yaml:"lambda"`
}

func (L2) Name() string { return "L2" }

func (r L2) Penalty(weights []float64) float64 {
	return r.Lambda * floats.Dot(weights, weights)
}

// Negatives charges Factor per unit of negative weight mass. The built-in
// normalizers never produce negative weights, so it only bites behind a
// normalizer that lets them through.
type Negatives struct {
	Factor float64 `json:"factor" yaml:"factor"`
}

// NewNegatives returns the negatives penalty with factor 0.1.
func NewNegatives() Negatives { return Negatives{Factor: 0.1} }

func (Negatives) Name() string { return "Negatives" }

func (n Negatives) Penalty(weights []float64) float64 {
	var mass float64
	for _, w := range weights {
		if w < 0 {
			mass -= w
		}
	}
	return mass * n.Factor
}

// PenaltyNames lists the names of ps in order.
func PenaltyNames(ps []Penalty) []string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name()
	}
	return names
}
