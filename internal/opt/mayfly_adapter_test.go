package opt

import (
	"errors"
	"math"
	"testing"
)

// Sphere function: f(x) = sum(x_i^2), minimum at origin
func sphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func box(dim int, lo, hi float64) Bounds {
	b := Bounds{Lower: make([]float64, dim), Upper: make([]float64, dim)}
	for i := 0; i < dim; i++ {
		b.Lower[i] = lo
		b.Upper[i] = hi
	}
	return b
}

func TestMayflyOnSphere(t *testing.T) {
	m := DefaultMayfly()
	m.Seed = 42
	m.MaxEvaluations = 0

	sol, err := m.Minimize(sphere, []float64{5, -5, 5}, box(3, -10, 10))
	if err != nil {
		t.Fatalf("Minimize failed: %v", err)
	}
	if len(sol.X) != 3 {
		t.Fatalf("Expected 3 parameters, got %d", len(sol.X))
	}
	if sol.F > 0.1 {
		t.Errorf("Expected cost near 0, got %f", sol.F)
	}
	for i, v := range sol.X {
		if math.Abs(v) > 1.0 {
			t.Errorf("Parameter %d = %f, expected near 0", i, v)
		}
	}
	if sol.Evaluations == 0 {
		t.Error("Expected evaluations to be counted")
	}
}

func TestMayflyDeterministic(t *testing.T) {
	m := DefaultMayfly()
	m.Iterations = 50
	m.Seed = 123

	sol1, err := m.Minimize(sphere, []float64{1, 1}, box(2, -5, 5))
	if err != nil {
		t.Fatal(err)
	}
	sol2, err := m.Minimize(sphere, []float64{1, 1}, box(2, -5, 5))
	if err != nil {
		t.Fatal(err)
	}
	if sol1.F != sol2.F || sol1.Evaluations != sol2.Evaluations {
		t.Errorf("Non-deterministic: %v/%d vs %v/%d", sol1.F, sol1.Evaluations, sol2.F, sol2.Evaluations)
	}
}

func TestMayflyRespectsBounds(t *testing.T) {
	m := DefaultMayfly()
	m.Iterations = 20
	// Minimum of the unconstrained function lies outside the box.
	f := func(x []float64) float64 { return (x[0] - 3) * (x[0] - 3) }

	sol, err := m.Minimize(f, []float64{0.5}, UnitBounds(1))
	if err != nil {
		t.Fatal(err)
	}
	if sol.X[0] < 0 || sol.X[0] > 1 {
		t.Errorf("Solution %v escaped the unit box", sol.X)
	}
}

func TestMayflyEvaluationBudget(t *testing.T) {
	m := DefaultMayfly()
	m.MaxEvaluations = 100

	sol, err := m.Minimize(sphere, []float64{1, 1}, box(2, -5, 5))
	if err != nil {
		t.Fatal(err)
	}
	if sol.Evaluations > 100 {
		t.Errorf("Expected at most 100 evaluations, got %d", sol.Evaluations)
	}
}

func TestMayflyValidate(t *testing.T) {
	m := DefaultMayfly()
	m.Population = 10
	if err := m.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for small population, got %v", err)
	}

	m = DefaultMayfly()
	m.Iterations = 0
	if _, err := m.Minimize(sphere, []float64{0}, UnitBounds(1)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for zero iterations, got %v", err)
	}
}

func TestMinimizersRecoverPanics(t *testing.T) {
	boom := func(x []float64) float64 { panic("numerical breakdown") }

	minimizers := []Minimizer{DefaultMayfly(), DefaultNelderMead(), DefaultCMAES(), DefaultRandomSearch(), DefaultGenetic()}
	for _, m := range minimizers {
		t.Run(m.Name(), func(t *testing.T) {
			_, err := m.Minimize(boom, []float64{0.5, 0.5}, UnitBounds(2))
			if !errors.Is(err, ErrMinimizerFailed) {
				t.Errorf("Expected ErrMinimizerFailed, got %v", err)
			}
		})
	}
}
