package models

import (
	"github.com/google/uuid"
)

// File categories used to group generated files.
const (
	FileCategoryFrontend = "frontend"
	FileCategoryBackend  = "backend"
	FileCategoryDatabase = "database"
	FileCategoryConfig   = "config"
	FileCategoryDocs     = "docs"
)

// Architecture describes the system design produced for an idea.
type Architecture struct {
	Overview       string   `json:"overview"`
	Diagram        string   `json:"diagram"`
	TechStack      []string `json:"tech_stack"`
	DatabaseSchema []string `json:"database_schema"`
	APIEndpoints   []string `json:"api_endpoints"`
	DatabaseDesign string   `json:"database_design"`
	APIDesign      string   `json:"api_design"`
}

// GeneratedFile is one source file of a code artifact.
type GeneratedFile struct {
	Path        string `json:"path"`
	Language    string `json:"language"`
	Content     string `json:"content"`
	Explanation string `json:"explanation"`
	Category    string `json:"category"`
}

// CodeArtifact is the per-idea output of code generation.
// GenerationError is set when any part of the artifact was synthesized.
type CodeArtifact struct {
	IdeaID            uuid.UUID       `json:"idea_id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Architecture      Architecture    `json:"architecture"`
	Files             []GeneratedFile `json:"files"`
	SetupInstructions string          `json:"setup_instructions"`
	DeploymentGuide   string          `json:"deployment_guide"`
	TestingStrategy   string          `json:"testing_strategy"`
	GenerationError   *string         `json:"generation_error,omitempty"`
}

// Degraded reports whether the artifact carries a generation error.
func (a *CodeArtifact) Degraded() bool {
	return a.GenerationError != nil
}
