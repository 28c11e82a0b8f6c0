// Package correlation finds, for each instrument, the peer whose recent
// moving-average history is most correlated with its own.
package correlation

import "math"

// Pearson returns the Pearson correlation coefficient of x and y, or NaN when
// it is undefined (fewer than two samples, mismatched lengths, or a
// zero-variance input).
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n < 2 || n != len(y) {
		return math.NaN()
	}
	mx, my := mean(x), mean(y)

	var num, dx2, dy2 float64
	for i := 0; i < n; i++ {
		dx := x[i] - mx
		dy := y[i] - my
		num += dx * dy
		dx2 += dx * dx
		dy2 += dy * dy
	}
	if dx2 == 0 || dy2 == 0 {
		return math.NaN()
	}
	return num / math.Sqrt(dx2*dy2)
}

// PeakContribution returns the index whose deviation product
// |(x_k-x̄)(y_k-ȳ)| is largest; the first such index wins ties. It returns -1
// for empty or mismatched input.
func PeakContribution(x, y []float64) int {
	if len(x) == 0 || len(x) != len(y) {
		return -1
	}
	mx, my := mean(x), mean(y)
	best, bestIdx := -1.0, -1
	for k := range x {
		c := math.Abs((x[k] - mx) * (y[k] - my))
		if c > best {
			best, bestIdx = c, k
		}
	}
	return bestIdx
}

func mean(v []float64) float64 {
	var sum float64
	for _, f := range v {
		sum += f
	}
	return sum / float64(len(v))
}
