package services

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaforge/pkg/apperrors"
	"github.com/ekaya-inc/ideaforge/pkg/llm"
	"github.com/ekaya-inc/ideaforge/pkg/models"
	"github.com/ekaya-inc/ideaforge/pkg/repositories"
)

const (
	architectureJSON = `{
  "overview": "Web app with a REST API",
  "diagram": "client -> api -> db",
  "techStack": ["React", "Go"],
  "databaseSchema": ["pets(id, name)", {"table": "visits", "columns": "id, pet_id"}],
  "apiEndpoints": ["GET /api/pets"],
  "databaseDesign": "Normalized",
  "apiDesign": "REST"
}`
	filesJSON = "```json\n" + `{
  "files": [
    {"path": "main.go", "language": "go", "content": "package main\n\nfunc main() {}\n", "explanation": "entry", "category": "backend"},
    {"path": "web/index.html", "content": "<html></html>"},
    {"path": "", "content": "dropped"}
  ],
  "setupInstructions": "go run .",
  "testingStrategy": ["go test", "playwright"]
}` + "\n```"
)

// codegenModel answers architecture and files prompts, delegating per-idea
// behavior to the hooks when they are set.
type codegenModel struct {
	architecture func(prompt string) (string, error)
	files        func(prompt string) (string, error)
}

func (m *codegenModel) client() *llm.MockLLMClient {
	c := llm.NewMockLLMClient()
	c.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temp float64) (*llm.GenerateResponseResult, error) {
		var (
			content string
			err     error
		)
		switch {
		case strings.Contains(prompt, "# System Architecture Design"):
			content, err = architectureJSON, nil
			if m.architecture != nil {
				content, err = m.architecture(prompt)
			}
		default:
			content, err = filesJSON, nil
			if m.files != nil {
				content, err = m.files(prompt)
			}
		}
		if err != nil {
			return nil, err
		}
		return &llm.GenerateResponseResult{Content: content}, nil
	}
	return c
}

type codegenFixture struct {
	ideas       repositories.IdeaRepository
	generations repositories.GenerationRepository
	cache       *recordingCache
	client      *llm.MockLLMClient
	svc         CodegenService
}

func newCodegenFixture(t *testing.T, model *codegenModel, cfg CodegenConfig) *codegenFixture {
	t.Helper()
	f := &codegenFixture{
		ideas:       repositories.NewMemoryIdeaRepository(),
		generations: repositories.NewMemoryGenerationRepository(),
		cache:       newRecordingCache(),
		client:      model.client(),
	}
	pool := llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: 2}, zap.NewNop())
	f.svc = NewCodegenService(f.ideas, f.generations, f.client, pool, f.cache, cfg, zap.NewNop())
	return f
}

func TestGenerateArtifacts_Clean(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newCodegenFixture(t, &codegenModel{}, DefaultCodegenConfig())
	ideas := seedIdeas(t, f.ideas, "user-1", "PetPal")

	artifacts, err := f.svc.GenerateArtifacts(context.Background(), "user-1", []uuid.UUID{ideas[0].ID})
	require.NoError(t, err)
	require.Len(t, artifacts, 1)

	a := artifacts[0]
	assert.Nil(t, a.GenerationError)
	assert.Equal(t, ideas[0].ID, a.IdeaID)
	assert.Equal(t, "PetPal", a.Name)
	assert.Equal(t, "Web app with a REST API", a.Architecture.Overview)
	assert.Equal(t, []string{"pets(id, name)", "columns: id, pet_id; table: visits"}, a.Architecture.DatabaseSchema)
	require.Len(t, a.Files, 2)
	assert.Equal(t, "package main\n\nfunc main() {}\n", a.Files[0].Content)
	assert.Equal(t, models.FileCategoryFrontend, a.Files[1].Category)
	assert.Equal(t, "go run .", a.SetupInstructions)
	assert.Equal(t, "go test\nplaywright", a.TestingStrategy)
	assert.NotEmpty(t, a.DeploymentGuide, "missing guide falls back to the template")

	// The files prompt is grounded on the architecture.
	prompts := f.client.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "**Endpoint**: GET /api/pets")

	assert.Equal(t, 1, f.cache.sets)
}

func TestGenerateArtifacts_UnparseableArchitectureIsIsolated(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	model := &codegenModel{
		architecture: func(prompt string) (string, error) {
			if strings.Contains(prompt, "**Name**: Beta") {
				return "I'm sorry, I can't produce an architecture for that.", nil
			}
			return architectureJSON, nil
		},
	}
	f := newCodegenFixture(t, model, DefaultCodegenConfig())
	ideas := seedIdeas(t, f.ideas, "user-1", "Alpha", "Beta")

	artifacts, err := f.svc.GenerateArtifacts(context.Background(), "user-1", []uuid.UUID{ideas[0].ID, ideas[1].ID})
	require.NoError(t, err)
	require.Len(t, artifacts, 2)

	assert.Equal(t, ideas[0].ID, artifacts[0].IdeaID)
	assert.Nil(t, artifacts[0].GenerationError)

	assert.Equal(t, ideas[1].ID, artifacts[1].IdeaID)
	require.NotNil(t, artifacts[1].GenerationError)
	assert.Contains(t, *artifacts[1].GenerationError, "architecture")
	assert.NotEmpty(t, artifacts[1].Files)
	assert.NotEmpty(t, artifacts[1].Architecture.Overview)

	records, err := f.generations.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []uuid.UUID{ideas[0].ID, ideas[1].ID}, records[0].IdeaIDs)
	assert.Equal(t, 1, records[0].DegradedCount)

	assert.Equal(t, 1, f.cache.sets, "degraded artifacts are not cached")
}

func TestGenerateArtifacts_FilesFailureUsesTemplates(t *testing.T) {
	model := &codegenModel{
		files: func(prompt string) (string, error) {
			return `{"files": [{"path": "main.go", "content": "package main`, nil
		},
	}
	f := newCodegenFixture(t, model, DefaultCodegenConfig())
	ideas := seedIdeas(t, f.ideas, "user-1", "Gamma")

	artifacts, err := f.svc.GenerateArtifacts(context.Background(), "user-1", []uuid.UUID{ideas[0].ID})
	require.NoError(t, err)

	a := artifacts[0]
	require.NotNil(t, a.GenerationError)
	assert.Contains(t, *a.GenerationError, "files")
	assert.Equal(t, "Web app with a REST API", a.Architecture.Overview, "model architecture is kept")
	assert.Equal(t, SynthesizeArtifact(ideas[0]).Files, a.Files)
}

func TestGenerateArtifacts_TimeoutIsDegradedNotFatal(t *testing.T) {
	model := &codegenModel{
		architecture: func(prompt string) (string, error) {
			if strings.Contains(prompt, "**Name**: Slow") {
				time.Sleep(200 * time.Millisecond)
			}
			return architectureJSON, nil
		},
	}
	f := newCodegenFixture(t, model, CodegenConfig{CallTimeout: 20 * time.Millisecond})
	f.client.GenerateResponseFunc = wrapWithDeadline(f.client.GenerateResponseFunc)
	ideas := seedIdeas(t, f.ideas, "user-1", "Fast", "Slow")

	artifacts, err := f.svc.GenerateArtifacts(context.Background(), "user-1", []uuid.UUID{ideas[0].ID, ideas[1].ID})
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Nil(t, artifacts[0].GenerationError)
	require.NotNil(t, artifacts[1].GenerationError)
	assert.NotEmpty(t, artifacts[1].Files)
}

// wrapWithDeadline makes a response func honor context cancellation the way a
// real provider client does.
func wrapWithDeadline(
	inner func(ctx context.Context, prompt, system string, temp float64) (*llm.GenerateResponseResult, error),
) func(ctx context.Context, prompt, system string, temp float64) (*llm.GenerateResponseResult, error) {
	return func(ctx context.Context, prompt, system string, temp float64) (*llm.GenerateResponseResult, error) {
		type reply struct {
			res *llm.GenerateResponseResult
			err error
		}
		done := make(chan reply, 1)
		go func() {
			res, err := inner(ctx, prompt, system, temp)
			done <- reply{res, err}
		}()
		select {
		case r := <-done:
			return r.res, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func TestGenerateArtifacts_PreservesRequestOrder(t *testing.T) {
	model := &codegenModel{
		architecture: func(prompt string) (string, error) {
			// Earlier ideas finish last.
			switch {
			case strings.Contains(prompt, "**Name**: One"):
				time.Sleep(40 * time.Millisecond)
			case strings.Contains(prompt, "**Name**: Two"):
				time.Sleep(20 * time.Millisecond)
			}
			return architectureJSON, nil
		},
	}
	f := newCodegenFixture(t, model, DefaultCodegenConfig())
	ideas := seedIdeas(t, f.ideas, "user-1", "One", "Two", "Three", "Four")

	requested := []uuid.UUID{ideas[2].ID, ideas[0].ID, ideas[3].ID, ideas[1].ID, ideas[0].ID}
	artifacts, err := f.svc.GenerateArtifacts(context.Background(), "user-1", requested)
	require.NoError(t, err)
	require.Len(t, artifacts, 4, "duplicate ids are generated once")

	got := make([]string, len(artifacts))
	for i, a := range artifacts {
		got[i] = a.Name
	}
	assert.Equal(t, []string{"Three", "One", "Four", "Two"}, got)
}

func TestGenerateArtifacts_UnownedIdeaFailsWholeRequest(t *testing.T) {
	f := newCodegenFixture(t, &codegenModel{}, DefaultCodegenConfig())
	mine := seedIdeas(t, f.ideas, "user-1", "Mine")
	theirs := seedIdeas(t, f.ideas, "user-2", "Theirs")

	_, err := f.svc.GenerateArtifacts(context.Background(), "user-1", []uuid.UUID{mine[0].ID, theirs[0].ID})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.GenerateArtifacts(context.Background(), "user-1", []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.Equal(t, 0, f.client.Calls())
	records, _ := f.generations.ListByUser(context.Background(), "user-1")
	assert.Empty(t, records)
}

func TestGenerateArtifacts_InvalidRequest(t *testing.T) {
	f := newCodegenFixture(t, &codegenModel{}, DefaultCodegenConfig())

	_, err := f.svc.GenerateArtifacts(context.Background(), "user-1", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	tooMany := make([]uuid.UUID, MaxIdeasPerGeneration+1)
	for i := range tooMany {
		tooMany[i] = uuid.New()
	}
	_, err = f.svc.GenerateArtifacts(context.Background(), "user-1", tooMany)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestGenerateArtifacts_CacheHitSkipsModel(t *testing.T) {
	f := newCodegenFixture(t, &codegenModel{}, DefaultCodegenConfig())
	ideas := seedIdeas(t, f.ideas, "user-1", "Cached")

	_, err := f.svc.GenerateArtifacts(context.Background(), "user-1", []uuid.UUID{ideas[0].ID})
	require.NoError(t, err)
	calls := f.client.Calls()

	artifacts, err := f.svc.GenerateArtifacts(context.Background(), "user-1", []uuid.UUID{ideas[0].ID})
	require.NoError(t, err)
	assert.Equal(t, calls, f.client.Calls())
	assert.Nil(t, artifacts[0].GenerationError)
}

func TestGenerateArtifacts_MarksIdeasProcessed(t *testing.T) {
	f := newCodegenFixture(t, &codegenModel{}, DefaultCodegenConfig())
	ideas := seedIdeas(t, f.ideas, "user-1", "Done")

	_, err := f.svc.GenerateArtifacts(context.Background(), "user-1", []uuid.UUID{ideas[0].ID})
	require.NoError(t, err)

	idea, err := f.ideas.GetByID(context.Background(), "user-1", ideas[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.IdeaStatusProcessed, idea.Status)
}

func TestGenerateArtifacts_ProvenanceFailureIsSurfaced(t *testing.T) {
	f := newCodegenFixture(t, &codegenModel{}, DefaultCodegenConfig())
	ideas := seedIdeas(t, f.ideas, "user-1", "Lost")
	pool := llm.NewWorkerPool(llm.DefaultWorkerPoolConfig(), zap.NewNop())
	svc := NewCodegenService(f.ideas, &failingGenerationRepo{}, f.client, pool, nil, DefaultCodegenConfig(), zap.NewNop())

	_, err := svc.GenerateArtifacts(context.Background(), "user-1", []uuid.UUID{ideas[0].ID})
	assert.ErrorIs(t, err, errStoreDown)
}

func TestGenerateArtifacts_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	model := &codegenModel{
		architecture: func(prompt string) (string, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			return architectureJSON, nil
		},
	}
	f := newCodegenFixture(t, model, DefaultCodegenConfig())
	ideas := seedIdeas(t, f.ideas, "user-1", "A", "B", "C", "D", "E", "F")
	ids := make([]uuid.UUID, len(ideas))
	for i, idea := range ideas {
		ids[i] = idea.ID
	}

	artifacts, err := f.svc.GenerateArtifacts(context.Background(), "user-1", ids)
	require.NoError(t, err)
	assert.Len(t, artifacts, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestInferCategory(t *testing.T) {
	tests := map[string]string{
		"README.md":                 models.FileCategoryDocs,
		"db/migrations/001.sql":     models.FileCategoryDatabase,
		"package.json":              models.FileCategoryConfig,
		".env.example":              models.FileCategoryConfig,
		"Dockerfile":                models.FileCategoryConfig,
		"src/App.tsx":               models.FileCategoryFrontend,
		"server/routes/users.js":    models.FileCategoryBackend,
		"internal/handlers/pets.go": models.FileCategoryBackend,
	}
	for p, want := range tests {
		assert.Equal(t, want, inferCategory(p), p)
	}
}
