package memory

import (
	"math"
	"time"
)

// Score combines raw similarity with normalized importance and linear
// recency decay, then applies the soft-forgetting step: mid-importance
// records past the penalty age are down-weighted without being deleted.
func Score(similarity float64, importance int, age time.Duration, weights Weights, decay Decay) float64 {
	normImportance := float64(importance) / 10

	ageDays := age.Hours() / 24
	windowDays := decay.RecencyWindow.Hours() / 24
	recency := math.Max(0, 1-ageDays/windowDays)

	score := similarity*weights.Similarity +
		normImportance*weights.Importance +
		recency*weights.Recency

	if importance >= decay.PenaltyMinImportance &&
		importance <= decay.PenaltyMaxImportance &&
		age >= decay.PenaltyAge {
		score *= decay.Penalty
	}

	return score
}
