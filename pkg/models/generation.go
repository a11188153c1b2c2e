package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerationRecord is the provenance entry written after a code generation batch.
type GenerationRecord struct {
	ID             uuid.UUID   `json:"id"`
	UserID         string      `json:"user_id"`
	IdeaIDs        []uuid.UUID `json:"idea_ids"`
	ProjectName    string      `json:"project_name"`
	FilesGenerated int         `json:"files_generated"`
	TechStack      []string    `json:"tech_stack"`
	DegradedCount  int         `json:"degraded_count"`
	GeneratedAt    time.Time   `json:"generated_at"`
}

// NewGenerationRecord summarizes a set of artifacts into a provenance record.
// The project name is taken from the first artifact and the tech stack is the
// de-duplicated union across artifacts in order of first appearance.
func NewGenerationRecord(userID string, artifacts []*CodeArtifact) *GenerationRecord {
	rec := &GenerationRecord{
		ID:          uuid.New(),
		UserID:      userID,
		IdeaIDs:     make([]uuid.UUID, 0, len(artifacts)),
		TechStack:   []string{},
		GeneratedAt: time.Now().UTC(),
	}

	seen := make(map[string]struct{})
	for _, a := range artifacts {
		rec.IdeaIDs = append(rec.IdeaIDs, a.IdeaID)
		rec.FilesGenerated += len(a.Files)
		if a.Degraded() {
			rec.DegradedCount++
		}
		for _, tech := range a.Architecture.TechStack {
			if _, ok := seen[tech]; ok {
				continue
			}
			seen[tech] = struct{}{}
			rec.TechStack = append(rec.TechStack, tech)
		}
	}

	if len(artifacts) > 0 {
		rec.ProjectName = artifacts[0].Name
		if len(artifacts) > 1 {
			rec.ProjectName = fmt.Sprintf("%s +%d", artifacts[0].Name, len(artifacts)-1)
		}
	}
	return rec
}
