package cluster

import "slices"

// Summaries groups positions by label, ordered by ascending label.
func Summaries(labels []int) []Summary {
	byLabel := make(map[int][]int)
	for pos, l := range labels {
		byLabel[l] = append(byLabel[l], pos)
	}

	keys := make([]int, 0, len(byLabel))
	for l := range byLabel {
		keys = append(keys, l)
	}
	slices.Sort(keys)

	out := make([]Summary, 0, len(keys))
	for _, l := range keys {
		out = append(out, Summary{Label: l, Count: len(byLabel[l]), Members: byLabel[l]})
	}
	return out
}

// SelectDominant returns the most populated label. Ties go to the smallest label, which
// makes the noise label win a tie against any real cluster. With excludeNoise the noise
// label is only chosen when nothing else exists.
func SelectDominant(labels []int, excludeNoise bool) (Summary, bool) {
	sums := Summaries(labels)
	if len(sums) == 0 {
		return Summary{}, false
	}

	best := -1
	for i, s := range sums {
		if excludeNoise && s.Label == NoiseLabel && len(sums) > 1 {
			continue
		}
		// sums is label-ordered, so strict > keeps the smallest label on ties.
		if best < 0 || s.Count > sums[best].Count {
			best = i
		}
	}
	return sums[best], true
}
