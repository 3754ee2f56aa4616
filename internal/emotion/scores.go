package emotion

// Scores holds per-label confidences as reported by the face classifier.
// Keys outside the label set are ignored.
type Scores map[Label]float64

// Top returns the highest scoring label and its score. Equal scores resolve to
// the label earliest in canonical order. ok is false when no known label has a
// positive score.
func (s Scores) Top() (label Label, score float64, ok bool) {
	label = None
	for _, l := range labels {
		v, present := s[l]
		if !present {
			continue
		}
		if v > score {
			label, score = l, v
		}
	}
	return label, score, label != None
}
