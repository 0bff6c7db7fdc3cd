package store

import "time"

type Record struct {
	Id            string
	Content       string
	Type          string
	Importance    int
	SubjectUserId string
	Tags          []string
	Timestamp     time.Time
	CreatedAt     time.Time
	Embedding     []float32
	Score         float32
}
