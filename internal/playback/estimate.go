package playback

import "math"

// Fraction returns the estimated fraction of an audio file that a single
// byte-range response served. Retried fetches can push the value above 1.0;
// that is left as-is so summed estimates stay unbiased.
func Fraction(responseBodySize, audioFileLength int64) float64 {
	if audioFileLength <= 0 {
		return 0.0
	}
	return float64(responseBodySize) / float64(audioFileLength)
}

// Seconds converts a fetched fraction into estimated listening seconds.
func Seconds(fraction, durationSeconds float64) float64 {
	return fraction * durationSeconds
}

// RoundedSeconds is Seconds rounded to the nearest whole second, the form
// used when aggregating play time for display.
func RoundedSeconds(fraction, durationSeconds float64) float64 {
	return math.Round(Seconds(fraction, durationSeconds))
}

// PercentFetched is the fetched fraction expressed as a percentage.
func PercentFetched(responseBodySize, audioFileLength int64) float64 {
	return Fraction(responseBodySize, audioFileLength) * 100
}

// SumFractions sums per-response fractions into a play count estimate.
// An empty input yields 0.0, never a missing value.
func SumFractions(sizes []int64, audioFileLength int64) float64 {
	total := 0.0
	for _, size := range sizes {
		total += Fraction(size, audioFileLength)
	}
	return total
}
