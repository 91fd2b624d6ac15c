package series

// Pair is one aligned point: X from the dependent series, Y the mean of the
// independent samples that fell in its window.
type Pair struct {
	X float64
	Y float64
}

// MarshalJSON encodes the pair as [x, y] so merged data plots like a series.
func (p Pair) MarshalJSON() ([]byte, error) {
	return Sample{T: p.X, V: p.Y}.MarshalJSON()
}

// Merge aligns independent samples against the time windows of a dependent
// series.
//
// Each consecutive dependent pair (i, i+1) defines the half-open window
// [t_i, t_{i+1}). Independent values whose time falls in a window are
// averaged and emitted as (dependent_i.V, mean). Windows that collect no
// independent samples are omitted.
//
// Both inputs must be time-ordered. A single cursor walks the independent
// series forward and never rewinds, so the cost is O(len(dependent) +
// len(independent)). Independent samples earlier than the first window are
// skipped; samples at or after the last dependent time are never counted.
func Merge(dependent, independent []Sample) []Pair {
	if len(dependent) < 2 {
		return []Pair{}
	}

	out := make([]Pair, 0, len(dependent)-1)
	j := 0
	for j < len(independent) && independent[j].T < dependent[0].T {
		j++
	}

	for i := 0; i+1 < len(dependent); i++ {
		end := dependent[i+1].T
		var sum float64
		n := 0
		for j < len(independent) && independent[j].T < end {
			sum += independent[j].V
			n++
			j++
		}
		if n > 0 {
			out = append(out, Pair{X: dependent[i].V, Y: sum / float64(n)})
		}
	}

	return out
}

// Decimate thins samples to roughly target points by keeping every
// len/target-th sample. Inputs shorter than target are returned as a copy.
func Decimate(samples []Sample, target int) []Sample {
	if target <= 0 || len(samples) <= target {
		out := make([]Sample, len(samples))
		copy(out, samples)
		return out
	}

	step := len(samples) / target
	out := make([]Sample, 0, target+1)
	for i := 0; i < len(samples); i += step {
		out = append(out, samples[i])
	}
	return out
}
