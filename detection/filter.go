package detection

// Postprocessor filters or modifies the detections of one frame.
type Postprocessor func([]Detection) []Detection

// Qualifies reports whether d is confident enough to be logged. The
// comparison is strict and the threshold is used as given: a threshold of 0
// lets every detection with any positive confidence through.
func Qualifies(d Detection, threshold float64) bool {
	return d.Confidence > threshold
}

// NewScoreFilter returns a Postprocessor keeping the qualifying detections.
func NewScoreFilter(threshold float64) Postprocessor {
	return func(in []Detection) []Detection {
		out := make([]Detection, 0, len(in))
		for _, d := range in {
			if Qualifies(d, threshold) {
				out = append(out, d)
			}
		}
		return out
	}
}
