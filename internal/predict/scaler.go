package predict

// minMaxScaler maps values into [-1, 1] using the min and max of the
// fitted window. A window with zero range scales by one.
type minMaxScaler struct {
	min   float64
	scale float64
}

func fitScaler(values []float64) minMaxScaler {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	return minMaxScaler{min: lo, scale: 2 / span}
}

func (s minMaxScaler) transform(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v-s.min)*s.scale - 1
	}
	return out
}

func (s minMaxScaler) inverse(y float64) float64 {
	return (y+1)/s.scale + s.min
}

// wrapPad left-pads seq to size by repeating it cyclically, so the result
// ends with seq itself.
func wrapPad(seq []float64, size int) []float64 {
	n := len(seq)
	if n == 0 || n >= size {
		return seq
	}
	pad := size - n
	out := make([]float64, size)
	for i := range out {
		out[i] = seq[((i-pad)%n+n)%n]
	}
	return out
}
