package ml

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Ridge is least squares with an L2 penalty on the coefficients. The
// intercept is not penalised.
type Ridge struct {
	Alpha     float64   `json:"alpha"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

func NewRidge(alpha float64) *Ridge {
	return &Ridge{Alpha: alpha}
}

func (m *Ridge) Kind() string { return KindRidge }

// Fit centres the data and solves (XᵀX + αI)w = Xᵀy.
func (m *Ridge) Fit(X [][]float64, y []float64) error {
	width, err := validate(X, y)
	if err != nil {
		return err
	}
	n := len(X)

	xMean := make([]float64, width)
	for _, row := range X {
		for j, v := range row {
			xMean[j] += v
		}
	}
	for j := range xMean {
		xMean[j] /= float64(n)
	}
	yMean := mean(y)

	centered := mat.NewDense(n, width, nil)
	yc := mat.NewVecDense(n, nil)
	for i, row := range X {
		for j, v := range row {
			centered.Set(i, j, v-xMean[j])
		}
		yc.SetVec(i, y[i]-yMean)
	}

	var gram mat.Dense
	gram.Mul(centered.T(), centered)
	for j := 0; j < width; j++ {
		gram.Set(j, j, gram.At(j, j)+m.Alpha)
	}
	var rhs mat.VecDense
	rhs.MulVec(centered.T(), yc)

	var w mat.VecDense
	if err := w.SolveVec(&gram, &rhs); err != nil {
		return fmt.Errorf("ridge solve: %w", err)
	}

	m.Coef = make([]float64, width)
	m.Intercept = yMean
	for j := 0; j < width; j++ {
		m.Coef[j] = w.AtVec(j)
		m.Intercept -= m.Coef[j] * xMean[j]
	}
	return nil
}

func (m *Ridge) Predict(X [][]float64) ([]float64, error) {
	if m.Coef == nil {
		return nil, ErrNotFitted
	}
	if err := checkWidth(X, len(m.Coef)); err != nil {
		return nil, err
	}

	out := make([]float64, len(X))
	for i, x := range X {
		v := m.Intercept
		for j, c := range m.Coef {
			v += c * x[j]
		}
		out[i] = v
	}
	return out, nil
}
