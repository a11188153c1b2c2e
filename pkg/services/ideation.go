package services

import (
	"context"
	"errors"
	"fmt"
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

// MaxKeywordLength bounds the keyword accepted by CreateIdeas.
const MaxKeywordLength = 200

// IdeationConfig tunes idea generation.
type IdeationConfig struct {
	IdeasPerBatch int
	CallTimeout   time.Duration
	Temperature   float64
}

// DefaultIdeationConfig returns the production defaults.
func DefaultIdeationConfig() IdeationConfig {
	return IdeationConfig{
		IdeasPerBatch: models.IdeasPerBatch,
		CallTimeout:   90 * time.Second,
		Temperature:   0.8,
	}
}

// IdeationService turns a keyword into a persisted batch of ideas.
type IdeationService interface {
	// CreateIdeas reserves quota, asks the model for ideas and persists exactly
	// IdeasPerBatch of them as one batch. Model failures are absorbed by
	// synthesis; only quota and store errors are returned.
	CreateIdeas(ctx context.Context, userID, keyword string, preferences map[string]any) ([]*models.Idea, error)
}

type ideationService struct {
	ideaRepo  repositories.IdeaRepository
	quota     QuotaService
	llmClient llm.LLMClient
	cfg       IdeationConfig
	logger    *zap.Logger
}

// NewIdeationService creates an IdeationService.
func NewIdeationService(
	ideaRepo repositories.IdeaRepository,
	quota QuotaService,
	llmClient llm.LLMClient,
	cfg IdeationConfig,
	logger *zap.Logger,
) IdeationService {
	if cfg.IdeasPerBatch <= 0 {
		cfg.IdeasPerBatch = models.IdeasPerBatch
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultIdeationConfig().CallTimeout
	}
	return &ideationService{
		ideaRepo:  ideaRepo,
		quota:     quota,
		llmClient: llmClient,
		cfg:       cfg,
		logger:    logger.Named("ideation"),
	}
}

var _ IdeationService = (*ideationService)(nil)

func (s *ideationService) CreateIdeas(ctx context.Context, userID, keyword string, preferences map[string]any) ([]*models.Idea, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("keyword is required: %w", apperrors.ErrInvalidInput)
	}
	if len([]rune(keyword)) > MaxKeywordLength {
		return nil, fmt.Errorf("keyword exceeds %d characters: %w", MaxKeywordLength, apperrors.ErrInvalidInput)
	}

	start := time.Now()

	reservation, err := s.quota.Reserve(ctx, userID)
	if err != nil {
		return nil, err
	}

	ideas := s.requestIdeas(ctx, userID, keyword, preferences)

	batchID := uuid.New()
	for _, idea := range ideas {
		idea.OwnerID = userID
		idea.BatchID = batchID
		idea.Keyword = keyword
	}

	// The reserved slot must end committed or cancelled even if the caller is gone.
	persistCtx, cancel := settleContext(ctx)
	defer cancel()

	if err := s.ideaRepo.CreateBatch(persistCtx, ideas); err != nil {
		s.logger.Error("Failed to persist idea batch",
			zap.String("user_id", userID),
			zap.String("batch_id", batchID.String()),
			zap.Error(err))
		if cancelErr := s.quota.Cancel(persistCtx, reservation); cancelErr != nil {
			s.logger.Error("Quota reservation leaked after failed batch",
				zap.String("user_id", userID),
				zap.Error(cancelErr))
		}
		return nil, fmt.Errorf("failed to save ideas: %w", err)
	}

	if err := s.quota.Commit(persistCtx, reservation); err != nil {
		return nil, err
	}

	synthesized := 0
	for _, idea := range ideas {
		if idea.Source == models.IdeaSourceSynthesized {
			synthesized++
		}
	}
	s.logger.Info("Created idea batch",
		zap.String("user_id", userID),
		zap.String("batch_id", batchID.String()),
		zap.String("keyword", keyword),
		zap.Int("ideas", len(ideas)),
		zap.Int("synthesized", synthesized),
		zap.Duration("elapsed", time.Since(start)))

	return ideas, nil
}

// requestIdeas makes the single model call and always returns exactly
// IdeasPerBatch complete ideas.
func (s *ideationService) requestIdeas(ctx context.Context, userID, keyword string, preferences map[string]any) []*models.Idea {
	want := s.cfg.IdeasPerBatch

	prompt := prompts.BuildIdeationPrompt(prompts.IdeationContext{
		Keyword:     keyword,
		Preferences: preferences,
		Count:       want,
	})

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	var recovered []*models.Idea
	result, err := s.llmClient.GenerateResponse(callCtx, prompt, prompts.BuildIdeationSystemMessage(), s.cfg.Temperature)
	if err != nil {
		s.logger.Warn("Ideation model call failed, synthesizing ideas",
			zap.String("user_id", userID),
			zap.String("error_type", string(llm.GetErrorType(err))),
			zap.String("error", logging.SanitizeError(err)))
	} else {
		recovered, err = parseIdeas(result.Content)
		if err != nil {
			s.logger.Warn("Could not recover ideas from model output, synthesizing ideas",
				zap.String("user_id", userID),
				zap.String("sample", recoverySample(err, result.Content)),
				zap.Error(err))
		}
	}

	return completeBatch(keyword, recovered, want, s.logger)
}

// completeBatch fills gaps in recovered ideas from the skeletons, tops the
// batch up with synthesized ideas and truncates it to want.
func completeBatch(keyword string, recovered []*models.Idea, want int, logger *zap.Logger) []*models.Idea {
	if len(recovered) > want {
		logger.Debug("Truncating recovered ideas",
			zap.Int("recovered", len(recovered)),
			zap.Int("want", want))
		recovered = recovered[:want]
	}

	ideas := make([]*models.Idea, 0, want)
	for i, idea := range recovered {
		fillMissing(idea, SynthesizeIdea(keyword, i))
		ideas = append(ideas, idea)
	}

	if missing := want - len(ideas); missing > 0 {
		logger.Info("Synthesizing fallback ideas",
			zap.String("keyword", keyword),
			zap.Int("recovered", len(ideas)),
			zap.Int("synthesized", missing))
		for i := len(ideas); i < want; i++ {
			ideas = append(ideas, SynthesizeIdea(keyword, i))
		}
	}
	return ideas
}

// parseIdeas recovers model text and keeps the items that carry a name and a
// description. The payload may be {"ideas": [...]}, a bare array or a single idea.
func parseIdeas(raw string) ([]*models.Idea, error) {
	v, err := llm.Recover(raw)
	if err != nil {
		return nil, err
	}

	var items []any
	switch t := v.(type) {
	case map[string]any:
		if list, ok := lookup(t, "ideas").([]any); ok {
			items = list
		} else {
			items = []any{t}
		}
	case []any:
		items = t
	default:
		return nil, &llm.RecoveryError{Stage: llm.StageDecode, Cause: fmt.Errorf("unexpected payload type %T", v)}
	}

	ideas := make([]*models.Idea, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		idea := &models.Idea{
			Name:                 jsonutil.NormalizeText(lookup(m, "name", "title")),
			Tagline:              jsonutil.NormalizeText(lookup(m, "tagline")),
			Description:          jsonutil.NormalizeText(lookup(m, "description")),
			TechStack:            jsonutil.NormalizeList(lookup(m, "techStack", "tech_stack")),
			KeyFeatures:          jsonutil.NormalizeList(lookup(m, "keyFeatures", "key_features", "features")),
			RevenueModel:         jsonutil.NormalizeList(lookup(m, "revenueModel", "revenue_model")),
			ProblemSolved:        jsonutil.NormalizeList(lookup(m, "problemSolved", "problem_solved", "problem")),
			Solution:             jsonutil.NormalizeList(lookup(m, "solution")),
			CompetitiveAdvantage: jsonutil.NormalizeList(lookup(m, "competitiveAdvantage", "competitive_advantage")),
			Source:               models.IdeaSourceModel,
		}
		if idea.Name == "" || idea.Description == "" {
			continue
		}
		ideas = append(ideas, idea)
	}
	return ideas, nil
}

// fillMissing copies fields from fallback into the empty fields of idea.
func fillMissing(idea, fallback *models.Idea) {
	if idea.Tagline == "" {
		idea.Tagline = fallback.Tagline
	}
	fill := func(dst *[]string, src []string) {
		if len(*dst) == 0 {
			*dst = src
		}
	}
	fill(&idea.TechStack, fallback.TechStack)
	fill(&idea.KeyFeatures, fallback.KeyFeatures)
	fill(&idea.RevenueModel, fallback.RevenueModel)
	fill(&idea.ProblemSolved, fallback.ProblemSolved)
	fill(&idea.Solution, fallback.Solution)
	fill(&idea.CompetitiveAdvantage, fallback.CompetitiveAdvantage)
}

// lookup returns the first present key. Model output mixes camelCase and snake_case.
func lookup(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

// recoverySample returns a loggable sample of the output that failed to
// parse, preferring the one carried by a RecoveryError.
func recoverySample(err error, raw string) string {
	var re *llm.RecoveryError
	if errors.As(err, &re) && re.Sample != "" {
		return logging.SanitizeModelOutput(re.Sample)
	}
	return logging.SanitizeModelOutput(raw)
}
