package cpu

import "math"

func sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(float64(-x))))
}

func tanhf(x float32) float32 {
	return float32(math.Tanh(float64(x)))
}

func reluf(x float32) float32 {
	if x > 0 {
		return x
	}
	return 0
}

// matVecAcc accumulates y += W @ x for a row-major rows x cols matrix.
func matVecAcc(y, w, x []float32, rows, cols int) {
	for r := 0; r < rows; r++ {
		row := w[r*cols : (r+1)*cols]
		sum := float32(0)
		for c := 0; c < cols; c++ {
			sum += row[c] * x[c]
		}
		y[r] += sum
	}
}

// matTVecAcc accumulates y += W^T @ g for a row-major rows x cols matrix,
// so y has cols elements and g has rows elements.
func matTVecAcc(y, w, g []float32, rows, cols int) {
	for r := 0; r < rows; r++ {
		gv := g[r]
		if gv == 0 {
			continue
		}
		row := w[r*cols : (r+1)*cols]
		for c := 0; c < cols; c++ {
			y[c] += gv * row[c]
		}
	}
}

// outerAcc accumulates W += g (x) x, the outer product of a rows-long
// gradient with a cols-long input, into a row-major rows x cols matrix.
func outerAcc(w, g, x []float32, rows, cols int) {
	for r := 0; r < rows; r++ {
		gv := g[r]
		if gv == 0 {
			continue
		}
		row := w[r*cols : (r+1)*cols]
		for c := 0; c < cols; c++ {
			row[c] += gv * x[c]
		}
	}
}

func addAcc(dst, src []float32) {
	for i, v := range src {
		dst[i] += v
	}
}
