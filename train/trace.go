package train

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

// Trace is the per-iteration record of one estimator run.
type Trace struct {
	Estimator string
	Estimates []float64
	TrueMI    []float64
}

// Len is the number of recorded iterations.
func (t *Trace) Len() int { return len(t.Estimates) }

// EMA smooths the estimates with an exponentially weighted mean of the
// given span, matching pandas' ewm(span=span).mean() (adjust=True):
//
//	ema_t = Σ_k (1-α)^k v_{t-k} / Σ_k (1-α)^k,  α = 2/(span+1)
func (t *Trace) EMA(span float64) ([]float64, error) {
	if !(span >= 1) {
		return nil, fmt.Errorf("train: ema span must be >= 1 (got %v)", span)
	}
	e := newEMAState(span)
	out := make([]float64, len(t.Estimates))
	for i, v := range t.Estimates {
		out[i] = e.push(v)
	}
	return out, nil
}

// Summary describes the tail of a trace.
type Summary struct {
	Estimator string
	Window    int
	Mean      float64
	StdDev    float64
	TrueMI    float64
	Bias      float64
}

// Summarize reports the mean and spread of the last window estimates and
// their bias against the mean true MI over the same iterations.
func (t *Trace) Summarize(window int) (Summary, error) {
	n := len(t.Estimates)
	if n == 0 {
		return Summary{}, fmt.Errorf("train: empty trace")
	}
	if window <= 0 || window > n {
		window = n
	}
	est := t.Estimates[n-window:]
	mean, std := stat.MeanStdDev(est, nil)
	if window == 1 {
		std = 0
	}
	truth := stat.Mean(t.TrueMI[n-window:], nil)
	return Summary{
		Estimator: t.Estimator,
		Window:    window,
		Mean:      mean,
		StdDev:    std,
		TrueMI:    truth,
		Bias:      mean - truth,
	}, nil
}

// WriteCSV writes traces side by side with columns
// iteration, true_mi, <estimator>... All traces must share one schedule.
func WriteCSV(w io.Writer, traces []*Trace) error {
	if len(traces) == 0 {
		return fmt.Errorf("train: no traces to write")
	}
	n := traces[0].Len()
	header := []string{"iteration", "true_mi"}
	for _, tr := range traces {
		if tr.Len() != n || len(tr.TrueMI) != n {
			return fmt.Errorf("train: trace %q has %d rows, want %d", tr.Estimator, tr.Len(), n)
		}
		header = append(header, tr.Estimator)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for i := 0; i < n; i++ {
		row[0] = strconv.Itoa(i)
		row[1] = formatFloat(traces[0].TrueMI[i])
		for j, tr := range traces {
			row[2+j] = formatFloat(tr.Estimates[i])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 8, 64)
}

// emaState is the streaming form of the adjusted exponential mean.
type emaState struct {
	decay    float64
	num, den float64
}

func newEMAState(span float64) emaState {
	return emaState{decay: 1 - 2/(span+1)}
}

func (e *emaState) push(v float64) float64 {
	e.num = e.num*e.decay + v
	e.den = e.den*e.decay + 1
	return e.num / e.den
}

func (e *emaState) value() float64 {
	if e.den == 0 {
		return 0
	}
	return e.num / e.den
}
