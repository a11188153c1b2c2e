// test-model-outputs checks that ideation responses survive structured recovery.
// It sends the ideation prompt to each listed model of the configured provider,
// or reads saved responses with -file, and reports how many ideas were recovered.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaforge/pkg/config"
	"github.com/ekaya-inc/ideaforge/pkg/llm"
	"github.com/ekaya-inc/ideaforge/pkg/logging"
	"github.com/ekaya-inc/ideaforge/pkg/models"
	"github.com/ekaya-inc/ideaforge/pkg/prompts"
)

type TestResult struct {
	Name         string
	Success      bool
	Error        string
	IdeaCount    int
	DurationMs   int64
	TokensPerSec float64
}

func main() {
	timeout := flag.Duration("timeout", 120*time.Second, "Timeout for each model call")
	keyword := flag.String("keyword", "fitness", "Keyword for the ideation prompt")
	modelList := flag.String("models", "", "Comma-separated models to try (default: configured model)")
	file := flag.String("file", "", "Check a saved response file instead of calling a model")
	flag.Parse()

	logConfig := zap.NewDevelopmentConfig()
	logConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, _ := logConfig.Build()
	defer logger.Sync()

	var results []TestResult
	if *file != "" {
		content, err := os.ReadFile(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", *file, err)
			os.Exit(1)
		}
		results = append(results, checkContent(*file, string(content)))
	} else {
		cfg, err := config.Load("probe")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		names := []string{cfg.LLM.Model}
		if *modelList != "" {
			names = strings.Split(*modelList, ",")
		}
		for _, name := range names {
			results = append(results, testModel(context.Background(), cfg, strings.TrimSpace(name), *keyword, logger, *timeout))
		}
	}

	fmt.Printf("\n%s\nSUMMARY\n%s\n\n", strings.Repeat("=", 80), strings.Repeat("=", 80))
	allPassed := true
	for _, result := range results {
		status := "PASS"
		if !result.Success {
			status = "FAIL"
			allPassed = false
		}
		fmt.Printf("%s: %s (%d ideas)\n", status, result.Name, result.IdeaCount)
		if result.Error != "" {
			fmt.Printf("  Error: %s\n", result.Error)
		}
	}
	if !allPassed {
		os.Exit(1)
	}
}

func testModel(ctx context.Context, cfg *config.Config, model, keyword string, logger *zap.Logger, timeout time.Duration) TestResult {
	fmt.Printf("\n%s\nTesting: %s (%s)\n%s\n", strings.Repeat("-", 80), model, cfg.LLM.Provider, strings.Repeat("-", 80))

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := llm.NewClientFromConfig(ctx, &llm.Config{
		Provider:  cfg.LLM.Provider,
		Endpoint:  cfg.LLM.BaseURL,
		Model:     model,
		APIKey:    cfg.LLM.APIKey,
		MaxTokens: cfg.LLM.MaxTokens,
	}, logger)
	if err != nil {
		return TestResult{Name: model, Error: fmt.Sprintf("failed to create client: %v", err)}
	}

	prompt := prompts.BuildIdeationPrompt(prompts.IdeationContext{Keyword: keyword, Count: models.IdeasPerBatch})
	start := time.Now()
	resp, err := client.GenerateResponse(ctx, prompt, prompts.BuildIdeationSystemMessage(), cfg.LLM.Temperature)
	if err != nil {
		return TestResult{Name: model, Error: fmt.Sprintf("model call failed: %s", logging.SanitizeError(err))}
	}

	result := checkContent(model, resp.Content)
	result.DurationMs = time.Since(start).Milliseconds()
	if result.DurationMs > 0 && resp.CompletionTokens > 0 {
		result.TokensPerSec = float64(resp.CompletionTokens) / (float64(result.DurationMs) / 1000.0)
	}
	fmt.Printf("Tokens: prompt=%d, completion=%d; %dms, %.1f tok/s\n",
		resp.PromptTokens, resp.CompletionTokens, result.DurationMs, result.TokensPerSec)
	return result
}

// checkContent recovers the response and counts objects carrying a name and description.
func checkContent(name, content string) TestResult {
	result := TestResult{Name: name}

	fmt.Println("--- Raw Response ---")
	fmt.Println(logging.TruncateString(content, 800))

	if _, err := llm.ExtractJSON(content); err != nil {
		fmt.Println("Strict extraction: FAILED (payload needs repair)")
	} else {
		fmt.Println("Strict extraction: OK")
	}

	value, err := llm.Recover(content)
	if err != nil {
		result.Error = fmt.Sprintf("recovery failed: %v", err)
		return result
	}

	var items []any
	switch v := value.(type) {
	case []any:
		items = v
	case map[string]any:
		items, _ = v["ideas"].([]any)
	}

	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		n, _ := obj["name"].(string)
		d, _ := obj["description"].(string)
		if strings.TrimSpace(n) != "" && strings.TrimSpace(d) != "" {
			result.IdeaCount++
		}
	}

	result.Success = result.IdeaCount == models.IdeasPerBatch
	if !result.Success {
		result.Error = fmt.Sprintf("expected %d usable ideas", models.IdeasPerBatch)
	}
	return result
}
