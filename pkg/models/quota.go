package models

import "time"

// DefaultMaxIdeas is the allowance given to a user whose quota row does not exist yet.
const DefaultMaxIdeas = 6

// QuotaRecord is a user's idea-creation allowance.
// For non-premium users IdeaCount never exceeds MaxIdeas.
type QuotaRecord struct {
	UserID    string    `json:"user_id"`
	IdeaCount int       `json:"idea_count"`
	MaxIdeas  int       `json:"max_ideas"`
	Premium   bool      `json:"premium"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCapacity reports whether another batch may be reserved.
func (q *QuotaRecord) HasCapacity() bool {
	return q.Premium || q.IdeaCount < q.MaxIdeas
}

// Remaining returns the number of batches left, or -1 for premium users.
func (q *QuotaRecord) Remaining() int {
	if q.Premium {
		return -1
	}
	if q.IdeaCount >= q.MaxIdeas {
		return 0
	}
	return q.MaxIdeas - q.IdeaCount
}

// QuotaStatus is the caller-facing view of a quota record.
type QuotaStatus struct {
	Current   int  `json:"current"`
	Max       int  `json:"max"`
	Remaining int  `json:"remaining"`
	Premium   bool `json:"premium"`
}

// Status converts the record to its caller-facing view.
func (q *QuotaRecord) Status() *QuotaStatus {
	return &QuotaStatus{
		Current:   q.IdeaCount,
		Max:       q.MaxIdeas,
		Remaining: q.Remaining(),
		Premium:   q.Premium,
	}
}
