package estimator

import (
	"fmt"
	"math"

	"mibound/nn"
	"mibound/tensor"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// infoNCE is the contrastive bound of van den Oord et al.
//
//	I_NCE = log n + 1/n \sum_j (S_jj - log \sum_i exp(S_ij))
//
// Each y_j is classified against the n candidates x_i, so the estimate can
// never exceed log n.
type infoNCE struct{}

func (infoNCE) Evaluate(scores *mat.Dense, _ []float64) (Result, error) {
	n, err := validate(scores, nil)
	if err != nil {
		return Result{}, err
	}
	inv := 1 / float64(n)
	g := mat.NewDense(n, n, nil)
	col := make([]float64, n)
	var sum float64
	for j := 0; j < n; j++ {
		mat.Col(col, j, scores)
		lse := floats.LogSumExp(col)
		sum += col[j] - lse
		for i, v := range col {
			g.Set(i, j, -inv*math.Exp(v-lse))
		}
		g.Set(j, j, g.At(j, j)+inv)
	}
	v := math.Log(float64(n)) + sum*inv
	return finish(Result{Value: v, Surrogate: v, GradScores: g})
}

// tuba is the tractable unnormalised Barber-Agakov bound
//
//	I_TUBA = 1 + mean_i S'_ii - exp(lme_off(S')),  S'_ij = S_ij + shift - b_j
//
// NWJ is the special case shift = -1 without a baseline.
type tuba struct {
	shift           float64
	useBaseline     bool
	requireBaseline bool
}

func (t tuba) Evaluate(scores *mat.Dense, logBaseline []float64) (Result, error) {
	n, err := validate(scores, logBaseline)
	if err != nil {
		return Result{}, err
	}
	if t.requireBaseline && logBaseline == nil {
		return Result{}, fmt.Errorf("estimator: conditional bound requires a baseline")
	}
	base := logBaseline
	if !t.useBaseline {
		base = nil
	}
	shifted := mat.NewDense(n, n, nil)
	shifted.Apply(func(_, j int, v float64) float64 {
		v += t.shift
		if base != nil {
			v -= base[j]
		}
		return v
	}, scores)

	lme, w := logMeanExpOffDiag(shifted)
	marg := math.Exp(lme)
	inv := 1 / float64(n)
	v := 1 + floats.Sum(tensor.Diag(shifted))*inv - marg

	// off the diagonal ∂/∂S'_ij = -exp(S'_ij)/(n(n-1)) = -marg·w_ij
	g := mat.NewDense(n, n, nil)
	g.Scale(-marg, w)
	for i := 0; i < n; i++ {
		g.Set(i, i, inv)
	}
	r := Result{Value: v, Surrogate: v, GradScores: g}
	if base != nil {
		gb := tensor.ColSums(g).RawMatrix().Data
		floats.Scale(-1, gb)
		r.GradBaseline = gb
	}
	return finish(r)
}

// dv is the Donsker-Varadhan bound
//
//	I_DV = mean_i S_ii - lme_off(S)
type dv struct{}

func (dv) Evaluate(scores *mat.Dense, _ []float64) (Result, error) {
	n, err := validate(scores, nil)
	if err != nil {
		return Result{}, err
	}
	v, g := dvBound(scores, n)
	return finish(Result{Value: v, Surrogate: v, GradScores: g})
}

func dvBound(scores *mat.Dense, n int) (float64, *mat.Dense) {
	lme, w := logMeanExpOffDiag(scores)
	inv := 1 / float64(n)
	g := mat.NewDense(n, n, nil)
	g.Scale(-1, w)
	for i := 0; i < n; i++ {
		g.Set(i, i, inv)
	}
	return floats.Sum(tensor.Diag(scores))*inv - lme, g
}

// js trains on the Jensen-Shannon f-GAN objective
//
//	-mean_i softplus(-S_ii) - mean_{i≠j} softplus(S_ij)
//
// and reads the estimate out with Donsker-Varadhan on the same scores.
type js struct{}

func (js) Evaluate(scores *mat.Dense, _ []float64) (Result, error) {
	n, err := validate(scores, nil)
	if err != nil {
		return Result{}, err
	}
	v, _ := dvBound(scores, n)
	sur, g := jsFGAN(scores, n)
	return finish(Result{Value: v, Surrogate: sur, GradScores: g})
}

// smile is the JS-trained estimator read out with a clipped partition,
//
//	I_SMILE = mean_i S_ii - lme_off(clip(S, -τ, τ))
//
// With τ disabled the readout is plain Donsker-Varadhan.
type smile struct {
	clip float64
}

func (s smile) Evaluate(scores *mat.Dense, _ []float64) (Result, error) {
	n, err := validate(scores, nil)
	if err != nil {
		return Result{}, err
	}
	clipped := scores
	if s.clip > 0 && !math.IsInf(s.clip, 1) {
		tau := s.clip
		clipped = tensor.Apply(func(v float64) float64 {
			return math.Max(-tau, math.Min(tau, v))
		}, scores)
	}
	lme, _ := logMeanExpOffDiag(clipped)
	v := floats.Sum(tensor.Diag(scores))/float64(n) - lme
	sur, g := jsFGAN(scores, n)
	return finish(Result{Value: v, Surrogate: sur, GradScores: g})
}

func jsFGAN(scores *mat.Dense, n int) (float64, *mat.Dense) {
	inv := 1 / float64(n)
	off := 1 / float64(n*(n-1))
	g := mat.NewDense(n, n, nil)
	var joint, marg float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			s := scores.At(i, j)
			if i == j {
				joint += nn.Softplus(-s)
				g.Set(i, j, inv*nn.Sigmoid(-s))
				continue
			}
			marg += nn.Softplus(s)
			g.Set(i, j, -off*nn.Sigmoid(s))
		}
	}
	return -joint*inv - marg*off, g
}

// interpolated is the α-interpolated bound of Poole et al. (2019). The
// partition for y_j mixes a leave-one-out InfoNCE estimate with the
// baseline,
//
//	D_aj = log(α·mean_{k≠a} exp(S_kj) + (1-α)·exp(b_j))
//	I_α  = 1 + mean_{a≠i}(S_ii - D_ai) - mean_{k≠j} exp(S_kj - D_jj)
//
// α → 1 approaches InfoNCE, α → 0 approaches TUBA with baseline b.
// Gradients cost O(n³) through the leave-one-out partitions.
type interpolated struct {
	logAlpha, log1mAlpha float64
}

func newInterpolated(alphaLogit float64) interpolated {
	return interpolated{
		logAlpha:   -nn.Softplus(-alphaLogit),
		log1mAlpha: -nn.Softplus(alphaLogit),
	}
}

func (b interpolated) Evaluate(scores *mat.Dense, logBaseline []float64) (Result, error) {
	n, err := validate(scores, logBaseline)
	if err != nil {
		return Result{}, err
	}
	base := logBaseline
	if base == nil {
		base = make([]float64, n)
	}
	nf := float64(n)
	c := 1 / (nf * (nf - 1))
	logNm1 := math.Log(nf - 1)

	// loo[a][j]: leave-one-out log-mean-exp of column j without row a
	loo := mat.NewDense(n, n, nil)
	part := mat.NewDense(n, n, nil)
	mix := mat.NewDense(n, n, nil)
	col := make([]float64, n)
	rest := make([]float64, 0, n-1)
	for j := 0; j < n; j++ {
		mat.Col(col, j, scores)
		for a := 0; a < n; a++ {
			rest = rest[:0]
			for k, v := range col {
				if k != a {
					rest = append(rest, v)
				}
			}
			l := floats.LogSumExp(rest) - logNm1
			d := logAddExp(b.logAlpha+l, b.log1mAlpha+base[j])
			loo.Set(a, j, l)
			part.Set(a, j, d)
			mix.Set(a, j, math.Exp(b.logAlpha+l-d))
		}
	}

	gS := mat.NewDense(n, n, nil)
	gD := mat.NewDense(n, n, nil)
	var joint, marg float64
	for i := 0; i < n; i++ {
		for a := 0; a < n; a++ {
			if a == i {
				continue
			}
			joint += scores.At(i, i) - part.At(a, i)
			gD.Set(a, i, -c)
		}
		gS.Set(i, i, 1/nf)
	}
	joint *= c
	for j := 0; j < n; j++ {
		djj := part.At(j, j)
		var e float64
		for k := 0; k < n; k++ {
			if k == j {
				continue
			}
			t := c * math.Exp(scores.At(k, j)-djj)
			e += t
			gS.Set(k, j, gS.At(k, j)-t)
		}
		marg += e
		gD.Set(j, j, gD.At(j, j)+e)
	}

	gB := make([]float64, n)
	for j := 0; j < n; j++ {
		for a := 0; a < n; a++ {
			gd := gD.At(a, j)
			p := mix.At(a, j)
			gB[j] += gd * (1 - p)
			gl := gd * p
			if gl == 0 {
				continue
			}
			l := loo.At(a, j)
			for k := 0; k < n; k++ {
				if k != a {
					gS.Set(k, j, gS.At(k, j)+gl*math.Exp(scores.At(k, j)-l-logNm1))
				}
			}
		}
	}

	v := 1 + joint - marg
	r := Result{Value: v, Surrogate: v, GradScores: gS}
	if logBaseline != nil {
		r.GradBaseline = gB
	}
	return finish(r)
}

// logMeanExpOffDiag returns lme_off(s) and the softmax weights of the
// off-diagonal entries, exp(s_ij - lse_off(s)), with zeros on the diagonal.
func logMeanExpOffDiag(s mat.Matrix) (float64, *mat.Dense) {
	n, _ := s.Dims()
	vals := make([]float64, 0, n*(n-1))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				vals = append(vals, s.At(i, j))
			}
		}
	}
	lse := floats.LogSumExp(vals)
	w := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				w.Set(i, j, math.Exp(s.At(i, j)-lse))
			}
		}
	}
	return lse - math.Log(float64(n*(n-1))), w
}

func logAddExp(a, b float64) float64 {
	m := math.Max(a, b)
	if math.IsInf(m, -1) {
		return m
	}
	return m + math.Log1p(math.Exp(-math.Abs(a-b)))
}
