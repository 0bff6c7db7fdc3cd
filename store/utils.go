package store

import "math"

func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

func (r Record) Matches(memoryType string, subjectUserId string, minImportance int) bool {
	if len(memoryType) > 0 && r.Type != memoryType {
		return false
	}
	if len(subjectUserId) > 0 && r.SubjectUserId != subjectUserId {
		return false
	}
	if minImportance > 0 && r.Importance < minImportance {
		return false
	}
	return true
}
