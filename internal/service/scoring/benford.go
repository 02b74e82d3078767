package scoring

import (
	"math"
)

// Organic transaction amounts follow the logarithmic first-digit
// distribution; fabricated amounts usually do not. The check is a
// chi-square goodness-of-fit test over leading digits 1-9.

// Minimum amounts before the first-digit test is meaningful
const minSamplesForDigitTest = 30

// Critical value for chi-square with 8 degrees of freedom at p=0.05
const digitTestCriticalValue = 15.507

// FirstDigitCheck holds the outcome of the leading-digit conformance test
type FirstDigitCheck struct {
	ChiSquare  float64
	SampleSize int
	// Conclusive is false when too few amounts exist to test; an
	// inconclusive check never counts as a violation.
	Conclusive bool
}

// Violates reports a significant departure from the expected logarithmic
// distribution
func (c FirstDigitCheck) Violates() bool {
	return c.Conclusive && c.ChiSquare > digitTestCriticalValue
}

// CheckFirstDigitDistribution tests the entity's transaction amounts
// against the expected leading-digit frequencies.
func CheckFirstDigitDistribution(amounts []float64) FirstDigitCheck {
	observed := make([]int, 10)
	n := 0
	for _, a := range amounts {
		d := firstDigit(a)
		if d >= 1 && d <= 9 {
			observed[d]++
			n++
		}
	}

	if n < minSamplesForDigitTest {
		return FirstDigitCheck{SampleSize: n, Conclusive: false}
	}

	var chi float64
	for d := 1; d <= 9; d++ {
		expected := float64(n) * math.Log10(1+1/float64(d))
		diff := float64(observed[d]) - expected
		chi += diff * diff / expected
	}

	return FirstDigitCheck{
		ChiSquare:  chi,
		SampleSize: n,
		Conclusive: true,
	}
}

func firstDigit(amount float64) int {
	a := math.Abs(amount)
	if a == 0 || math.IsInf(a, 0) || math.IsNaN(a) {
		return 0
	}
	for a >= 10 {
		a /= 10
	}
	for a < 1 {
		a *= 10
	}
	return int(a)
}
