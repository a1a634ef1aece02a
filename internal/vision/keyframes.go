package vision

import "github.com/richardpark-msft/vigil/internal/models"

// SelectKeyframes reduces the sampled frames to at most limit frames for the
// single provider call. The first and last frames are always kept; the middle
// is sampled at an even stride.
func SelectKeyframes(frames []models.Frame, limit int) []models.Frame {
	if len(frames) <= limit {
		return frames
	}
	if limit < 2 {
		limit = 2
	}

	selected := []models.Frame{frames[0]}

	stride := float64(len(frames)) / float64(limit-1)
	for i := 1; i < limit-1; i++ {
		idx := int(float64(i) * stride)
		if idx < len(frames) {
			selected = append(selected, frames[idx])
		}
	}

	last := frames[len(frames)-1]
	if selected[len(selected)-1].Index != last.Index {
		selected = append(selected, last)
	}

	return selected
}
