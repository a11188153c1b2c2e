// Package models contains domain types for ideaforge.
package models

import (
	"time"

	"github.com/google/uuid"
)

// IdeasPerBatch is the exact number of ideas persisted by one ideation request.
const IdeasPerBatch = 6

// IdeaSource records how an idea's content was produced.
type IdeaSource string

const (
	// IdeaSourceModel means the idea was recovered from model output.
	IdeaSourceModel IdeaSource = "model"
	// IdeaSourceSynthesized means the idea came from the fallback templates.
	IdeaSourceSynthesized IdeaSource = "synthesized"
)

// IdeaStatus tracks whether code has been generated for an idea.
type IdeaStatus string

const (
	IdeaStatusNew       IdeaStatus = "new"
	IdeaStatusProcessed IdeaStatus = "processed"
)

// Idea is a business concept produced by the ideation stage.
// List fields are always non-nil after normalization.
type Idea struct {
	ID                   uuid.UUID  `json:"id"`
	OwnerID              string     `json:"owner_id"`
	BatchID              uuid.UUID  `json:"batch_id"`
	Keyword              string     `json:"keyword"`
	Name                 string     `json:"name"`
	Tagline              string     `json:"tagline"`
	Description          string     `json:"description"`
	TechStack            []string   `json:"tech_stack"`
	KeyFeatures          []string   `json:"key_features"`
	RevenueModel         []string   `json:"revenue_model"`
	ProblemSolved        []string   `json:"problem_solved"`
	Solution             []string   `json:"solution"`
	CompetitiveAdvantage []string   `json:"competitive_advantage"`
	IsLiked              bool       `json:"is_liked"`
	IsSelected           bool       `json:"is_selected"`
	Source               IdeaSource `json:"source"`
	Status               IdeaStatus `json:"status"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// IsComplete reports whether every required field carries content.
func (i *Idea) IsComplete() bool {
	if i.Name == "" || i.Tagline == "" || i.Description == "" {
		return false
	}
	for _, list := range [][]string{
		i.TechStack, i.KeyFeatures, i.RevenueModel,
		i.ProblemSolved, i.Solution, i.CompetitiveAdvantage,
	} {
		if len(list) == 0 {
			return false
		}
	}
	return true
}

// GenerationRequest carries the inputs of a single ideation call. It is not persisted.
type GenerationRequest struct {
	RequesterID string         `json:"requester_id"`
	Keyword     string         `json:"keyword"`
	Preferences map[string]any `json:"preferences,omitempty"`
}
