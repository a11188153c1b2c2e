package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaforge/pkg/apperrors"
	"github.com/ekaya-inc/ideaforge/pkg/jsonutil"
	"github.com/ekaya-inc/ideaforge/pkg/llm"
	"github.com/ekaya-inc/ideaforge/pkg/logging"
	"github.com/ekaya-inc/ideaforge/pkg/models"
	"github.com/ekaya-inc/ideaforge/pkg/prompts"
	"github.com/ekaya-inc/ideaforge/pkg/repositories"
)

// MaxIdeasPerGeneration bounds how many ideas one GenerateArtifacts call accepts.
const MaxIdeasPerGeneration = 20

// CodegenConfig tunes code generation.
type CodegenConfig struct {
	CallTimeout time.Duration // per model sub-call
	Temperature float64
}

// DefaultCodegenConfig returns the production defaults.
func DefaultCodegenConfig() CodegenConfig {
	return CodegenConfig{
		CallTimeout: 90 * time.Second,
		Temperature: 0.4,
	}
}

// CodegenService produces code artifacts for a user's ideas.
type CodegenService interface {
	// GenerateArtifacts returns one artifact per distinct requested idea, in
	// request order. If any id is missing or owned by someone else the whole
	// request fails with apperrors.ErrNotFound and no model call is made.
	// Model failures never fail the request: the affected artifact is
	// synthesized and carries GenerationError.
	GenerateArtifacts(ctx context.Context, userID string, ideaIDs []uuid.UUID) ([]*models.CodeArtifact, error)
}

type codegenService struct {
	ideaRepo       repositories.IdeaRepository
	generationRepo repositories.GenerationRepository
	llmClient      llm.LLMClient
	pool           *llm.WorkerPool
	cache          ArtifactCache
	cfg            CodegenConfig
	logger         *zap.Logger
}

// NewCodegenService creates a CodegenService. A nil cache disables caching.
func NewCodegenService(
	ideaRepo repositories.IdeaRepository,
	generationRepo repositories.GenerationRepository,
	llmClient llm.LLMClient,
	pool *llm.WorkerPool,
	cache ArtifactCache,
	cfg CodegenConfig,
	logger *zap.Logger,
) CodegenService {
	if cache == nil {
		cache = NoopArtifactCache{}
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCodegenConfig().CallTimeout
	}
	return &codegenService{
		ideaRepo:       ideaRepo,
		generationRepo: generationRepo,
		llmClient:      llmClient,
		pool:           pool,
		cache:          cache,
		cfg:            cfg,
		logger:         logger.Named("codegen"),
	}
}

var _ CodegenService = (*codegenService)(nil)

func (s *codegenService) GenerateArtifacts(ctx context.Context, userID string, ideaIDs []uuid.UUID) ([]*models.CodeArtifact, error) {
	ids := uniqueIDs(ideaIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one idea id is required: %w", apperrors.ErrInvalidInput)
	}
	if len(ids) > MaxIdeasPerGeneration {
		return nil, fmt.Errorf("at most %d ideas per request: %w", MaxIdeasPerGeneration, apperrors.ErrInvalidInput)
	}

	owned, err := s.ideaRepo.GetByIDs(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load ideas: %w", err)
	}
	byID := make(map[uuid.UUID]*models.Idea, len(owned))
	for _, idea := range owned {
		byID[idea.ID] = idea
	}
	ideas := make([]*models.Idea, len(ids))
	for i, id := range ids {
		idea, ok := byID[id]
		if !ok {
			s.logger.Info("Rejecting generation for unowned idea",
				zap.String("user_id", userID),
				zap.String("idea_id", id.String()))
			return nil, fmt.Errorf("idea %s: %w", id, apperrors.ErrNotFound)
		}
		ideas[i] = idea
	}

	start := time.Now()
	s.logger.Info("Starting code generation",
		zap.String("user_id", userID),
		zap.Int("ideas", len(ideas)),
		zap.Int("max_concurrent", s.pool.MaxConcurrent()))

	// Workers only talk to the model and the cache. The user-scoped database
	// connection in ctx is not safe for concurrent use.
	items := make([]llm.WorkItem[*models.CodeArtifact], len(ideas))
	for i, idea := range ideas {
		idea := idea
		items[i] = llm.WorkItem[*models.CodeArtifact]{
			ID: idea.ID.String(),
			Execute: func(ctx context.Context) (*models.CodeArtifact, error) {
				return s.generateArtifact(ctx, idea), nil
			},
		}
	}

	results := llm.Process(ctx, s.pool, items, func(completed, total int) {
		s.logger.Debug("Code generation progress",
			zap.String("user_id", userID),
			zap.Int("completed", completed),
			zap.Int("total", total))
	})

	artifacts := make([]*models.CodeArtifact, len(results))
	for i, res := range results {
		artifact := res.Result
		if res.Err != nil || artifact == nil {
			cause := "no result"
			if res.Err != nil {
				cause = res.Err.Error()
			}
			artifact = SynthesizeArtifact(ideas[i])
			artifact.GenerationError = degradedMessage([]string{"generation aborted: " + cause})
		}
		artifacts[i] = artifact
	}

	rec := models.NewGenerationRecord(userID, artifacts)
	if err := s.generationRepo.Create(ctx, rec); err != nil {
		s.logger.Error("Failed to record generation",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to record generation: %w", err)
	}

	if err := s.ideaRepo.MarkProcessed(ctx, userID, ids); err != nil {
		s.logger.Error("Failed to mark ideas processed",
			zap.String("user_id", userID),
			zap.Error(err))
	}

	s.logger.Info("Code generation complete",
		zap.String("user_id", userID),
		zap.String("generation_id", rec.ID.String()),
		zap.Int("artifacts", len(artifacts)),
		zap.Int("degraded", rec.DegradedCount),
		zap.Int("files", rec.FilesGenerated),
		zap.Duration("elapsed", time.Since(start)))

	return artifacts, nil
}

// generateArtifact runs the architecture call then the files call for one
// idea. A failing part is synthesized and recorded in GenerationError.
func (s *codegenService) generateArtifact(ctx context.Context, idea *models.Idea) *models.CodeArtifact {
	if cached, ok := s.cache.Get(ctx, idea.ID); ok {
		s.logger.Debug("Using cached artifact", zap.String("idea_id", idea.ID.String()))
		return cached
	}

	ic := prompts.IdeaContext{
		Name:         idea.Name,
		Description:  idea.Description,
		TechStack:    idea.TechStack,
		KeyFeatures:  idea.KeyFeatures,
		RevenueModel: idea.RevenueModel,
	}
	var failures []string

	arch, err := s.generateArchitecture(ctx, ic)
	if err != nil {
		s.logPartFailure(idea, "architecture", err)
		failures = append(failures, "architecture: "+err.Error())
		arch = SynthesizeArchitecture(idea)
	}

	files, err := s.generateFiles(ctx, ic, arch)
	if err != nil {
		s.logPartFailure(idea, "files", err)
		failures = append(failures, "files: "+err.Error())
		files = nil
	}

	fallback := SynthesizeArtifact(idea)
	artifact := &models.CodeArtifact{
		IdeaID:            idea.ID,
		Name:              idea.Name,
		Description:       idea.Description,
		Architecture:      arch,
		Files:             fallback.Files,
		SetupInstructions: fallback.SetupInstructions,
		DeploymentGuide:   fallback.DeploymentGuide,
		TestingStrategy:   fallback.TestingStrategy,
	}
	if files != nil {
		artifact.Files = files.Files
		if files.SetupInstructions != "" {
			artifact.SetupInstructions = files.SetupInstructions
		}
		if files.DeploymentGuide != "" {
			artifact.DeploymentGuide = files.DeploymentGuide
		}
		if files.TestingStrategy != "" {
			artifact.TestingStrategy = files.TestingStrategy
		}
	}

	if len(failures) > 0 {
		artifact.GenerationError = degradedMessage(failures)
		return artifact
	}

	s.cache.Set(ctx, artifact)
	return artifact
}

func (s *codegenService) logPartFailure(idea *models.Idea, part string, err error) {
	fields := []zap.Field{
		zap.String("idea_id", idea.ID.String()),
		zap.String("part", part),
		zap.String("error", logging.SanitizeError(err)),
	}
	var re *llm.RecoveryError
	if errors.As(err, &re) {
		fields = append(fields, zap.String("sample", logging.SanitizeModelOutput(re.Sample)))
	} else {
		fields = append(fields, zap.String("error_type", string(llm.GetErrorType(err))))
	}
	s.logger.Warn("Code generation part failed, synthesizing", fields...)
}

// callModel makes one sub-call under its own timeout.
func (s *codegenService) callModel(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	result, err := s.llmClient.GenerateResponse(callCtx, prompt, prompts.BuildCodegenSystemMessage(), s.cfg.Temperature)
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

func (s *codegenService) generateArchitecture(ctx context.Context, ic prompts.IdeaContext) (models.Architecture, error) {
	raw, err := s.callModel(ctx, prompts.BuildArchitecturePrompt(ic))
	if err != nil {
		return models.Architecture{}, err
	}
	return parseArchitecture(raw)
}

// filesResult is the decoded output of the files sub-call.
type filesResult struct {
	Files             []models.GeneratedFile
	SetupInstructions string
	DeploymentGuide   string
	TestingStrategy   string
}

func (s *codegenService) generateFiles(ctx context.Context, ic prompts.IdeaContext, arch models.Architecture) (*filesResult, error) {
	raw, err := s.callModel(ctx, prompts.BuildFilesPrompt(ic, prompts.ArchitectureContext{
		Overview:       arch.Overview,
		TechStack:      arch.TechStack,
		DatabaseSchema: arch.DatabaseSchema,
		APIEndpoints:   arch.APIEndpoints,
	}))
	if err != nil {
		return nil, err
	}
	return parseFiles(raw)
}

// parseArchitecture recovers an architecture object. It fails when nothing
// usable was found.
func parseArchitecture(raw string) (models.Architecture, error) {
	m, err := recoverObject(raw, "architecture")
	if err != nil {
		return models.Architecture{}, err
	}

	arch := models.Architecture{
		Overview:       jsonutil.NormalizeText(lookup(m, "overview", "summary")),
		Diagram:        rawText(lookup(m, "diagram")),
		TechStack:      jsonutil.NormalizeList(lookup(m, "techStack", "tech_stack")),
		DatabaseSchema: describeList(lookup(m, "databaseSchema", "database_schema", "tables")),
		APIEndpoints:   describeList(lookup(m, "apiEndpoints", "api_endpoints", "endpoints")),
		DatabaseDesign: jsonutil.NormalizeText(lookup(m, "databaseDesign", "database_design")),
		APIDesign:      jsonutil.NormalizeText(lookup(m, "apiDesign", "api_design")),
	}
	if arch.Overview == "" && len(arch.DatabaseSchema) == 0 && len(arch.APIEndpoints) == 0 {
		return models.Architecture{}, &llm.RecoveryError{
			Stage: llm.StageDecode,
			Cause: errors.New("architecture has no overview, schema or endpoints"),
		}
	}
	return arch, nil
}

// parseFiles recovers the files payload. Files without a path or content are
// dropped; it fails when none remain.
func parseFiles(raw string) (*filesResult, error) {
	v, err := llm.Recover(raw)
	if err != nil {
		return nil, err
	}

	var fileItems []any
	m, _ := v.(map[string]any)
	switch t := v.(type) {
	case map[string]any:
		fileItems, _ = lookup(t, "files").([]any)
	case []any:
		fileItems = t
	}

	res := &filesResult{Files: make([]models.GeneratedFile, 0, len(fileItems))}
	for _, item := range fileItems {
		fm, ok := item.(map[string]any)
		if !ok {
			continue
		}
		f := models.GeneratedFile{
			Path:        jsonutil.NormalizeText(lookup(fm, "path", "filename", "name")),
			Language:    jsonutil.NormalizeText(lookup(fm, "language", "lang")),
			Content:     rawText(lookup(fm, "content", "code")),
			Explanation: jsonutil.NormalizeText(lookup(fm, "explanation", "description")),
			Category:    strings.ToLower(jsonutil.NormalizeText(lookup(fm, "category", "type"))),
		}
		if f.Path == "" || strings.TrimSpace(f.Content) == "" {
			continue
		}
		if !validCategory(f.Category) {
			f.Category = inferCategory(f.Path)
		}
		res.Files = append(res.Files, f)
	}
	if len(res.Files) == 0 {
		return nil, &llm.RecoveryError{
			Stage: llm.StageDecode,
			Cause: errors.New("no usable files"),
		}
	}

	if m != nil {
		res.SetupInstructions = jsonutil.NormalizeText(lookup(m, "setupInstructions", "setup_instructions", "setup"))
		res.DeploymentGuide = jsonutil.NormalizeText(lookup(m, "deploymentGuide", "deployment_guide", "deployment"))
		res.TestingStrategy = jsonutil.NormalizeText(lookup(m, "testingStrategy", "testing_strategy", "testing"))
	}
	return res, nil
}

// recoverObject recovers a JSON object, unwrapping it from key when the model
// nested it there.
func recoverObject(raw, key string) (map[string]any, error) {
	v, err := llm.Recover(raw)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &llm.RecoveryError{Stage: llm.StageDecode, Cause: fmt.Errorf("expected object, got %T", v)}
	}
	if inner, ok := m[key].(map[string]any); ok {
		return inner, nil
	}
	return m, nil
}

// describeList normalizes a list whose items may be strings or objects.
// Objects become "key: value" pairs joined with commas.
func describeList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return jsonutil.NormalizeList(v)
	}
	described := make([]any, 0, len(items))
	for _, item := range items {
		switch t := item.(type) {
		case string:
			described = append(described, t)
		case map[string]any:
			described = append(described, describeObject(t))
		}
	}
	return jsonutil.NormalizeList(described)
}

func describeObject(m map[string]any) string {
	parts := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		if text := jsonutil.NormalizeText(m[k]); text != "" {
			parts = append(parts, k+": "+strings.ReplaceAll(text, "\n", ", "))
		}
	}
	return strings.Join(parts, "; ")
}

// rawText keeps string content verbatim, including leading whitespace and
// quotes that NormalizeText would strip.
func rawText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return jsonutil.NormalizeText(v)
}

func validCategory(c string) bool {
	switch c {
	case models.FileCategoryFrontend, models.FileCategoryBackend, models.FileCategoryDatabase,
		models.FileCategoryConfig, models.FileCategoryDocs:
		return true
	}
	return false
}

func inferCategory(p string) string {
	lower := strings.ToLower(p)
	switch ext := path.Ext(lower); {
	case ext == ".md" || ext == ".txt":
		return models.FileCategoryDocs
	case ext == ".sql" || strings.Contains(lower, "migration") || strings.Contains(lower, "schema"):
		return models.FileCategoryDatabase
	case ext == ".json" || ext == ".yaml" || ext == ".yml" || ext == ".toml" ||
		strings.HasPrefix(path.Base(lower), ".env") || strings.HasPrefix(path.Base(lower), "dockerfile"):
		return models.FileCategoryConfig
	case strings.HasPrefix(lower, "src/") || strings.HasPrefix(lower, "client/") || strings.HasPrefix(lower, "frontend/") ||
		ext == ".jsx" || ext == ".tsx" || ext == ".css" || ext == ".html" || ext == ".vue":
		return models.FileCategoryFrontend
	default:
		return models.FileCategoryBackend
	}
}

func degradedMessage(failures []string) *string {
	msg := "generated from templates after model failure: " + strings.Join(failures, "; ")
	return &msg
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
