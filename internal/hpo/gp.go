package hpo

import (
	"errors"
	"math"

	"github.com/GoSim-25-26J-441/experiment-core/pkg/utils"
)

var errNotPositiveDefinite = errors.New("kernel matrix is not positive definite")

// gaussianProcess is a zero-mean GP with an RBF kernel over the unit cube,
// fitted to standardized objectives.
type gaussianProcess struct {
	lengthScale float64
	noise       float64

	x     [][]float64
	chol  [][]float64
	alpha []float64
	mean  float64
	scale float64
}

func newGaussianProcess(lengthScale float64) *gaussianProcess {
	return &gaussianProcess{lengthScale: lengthScale, noise: 1e-6}
}

func (gp *gaussianProcess) kernel(a, b []float64) float64 {
	var d float64
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return math.Exp(-d / (2 * gp.lengthScale * gp.lengthScale))
}

// fit conditions the process on (x, y). Jitter grows until the kernel
// matrix factors.
func (gp *gaussianProcess) fit(x [][]float64, y []float64) error {
	gp.x = x
	gp.mean = utils.Mean(y)
	gp.scale = utils.StdDev(y)
	if gp.scale == 0 {
		gp.scale = 1
	}
	ys := make([]float64, len(y))
	for i, v := range y {
		ys[i] = (v - gp.mean) / gp.scale
	}

	n := len(x)
	jitter := gp.noise
	for attempt := 0; attempt < 6; attempt++ {
		k := make([][]float64, n)
		for i := range k {
			k[i] = make([]float64, n)
			for j := range k[i] {
				k[i][j] = gp.kernel(x[i], x[j])
			}
			k[i][i] += jitter
		}
		l, err := cholesky(k)
		if err == nil {
			gp.chol = l
			gp.alpha = backSubstitute(l, forwardSubstitute(l, ys))
			return nil
		}
		jitter *= 100
	}
	return errNotPositiveDefinite
}

// predict returns the posterior mean and standard deviation at p, in
// objective units.
func (gp *gaussianProcess) predict(p []float64) (float64, float64) {
	ks := make([]float64, len(gp.x))
	for i, xi := range gp.x {
		ks[i] = gp.kernel(p, xi)
	}
	var mu float64
	for i := range ks {
		mu += ks[i] * gp.alpha[i]
	}
	v := forwardSubstitute(gp.chol, ks)
	variance := 1.0
	for _, vi := range v {
		variance -= vi * vi
	}
	variance = math.Max(variance, 1e-12)
	return gp.mean + mu*gp.scale, math.Sqrt(variance) * gp.scale
}

// expectedImprovement is the EI acquisition for minimization.
func expectedImprovement(mu, sigma, best, xi float64) float64 {
	if sigma <= 0 {
		return 0
	}
	imp := best - mu - xi
	z := imp / sigma
	return imp*normCDF(z) + sigma*normPDF(z)
}

func normPDF(z float64) float64 {
	return math.Exp(-0.5*z*z) / math.Sqrt(2*math.Pi)
}

func normCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

// cholesky returns the lower-triangular factor of a symmetric positive
// definite matrix.
func cholesky(a [][]float64) ([][]float64, error) {
	n := len(a)
	l := make([][]float64, n)
	for i := range l {
		l[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := a[i][j]
			for k := 0; k < j; k++ {
				sum -= l[i][k] * l[j][k]
			}
			if i == j {
				if sum <= 0 {
					return nil, errNotPositiveDefinite
				}
				l[i][i] = math.Sqrt(sum)
				continue
			}
			l[i][j] = sum / l[j][j]
		}
	}
	return l, nil
}

// forwardSubstitute solves L x = b.
func forwardSubstitute(l [][]float64, b []float64) []float64 {
	x := make([]float64, len(b))
	for i := range b {
		sum := b[i]
		for k := 0; k < i; k++ {
			sum -= l[i][k] * x[k]
		}
		x[i] = sum / l[i][i]
	}
	return x
}

// backSubstitute solves Lᵀ x = b.
func backSubstitute(l [][]float64, b []float64) []float64 {
	n := len(b)
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := b[i]
		for k := i + 1; k < n; k++ {
			sum -= l[k][i] * x[k]
		}
		x[i] = sum / l[i][i]
	}
	return x
}
