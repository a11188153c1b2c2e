package prompts

import (
	"fmt"
	"strings"
)

// IdeaContext is the part of an idea that code generation prompts need.
type IdeaContext struct {
	Name         string
	Description  string
	TechStack    []string
	KeyFeatures  []string
	RevenueModel []string
}

// ArchitectureContext carries the first-stage result into the files prompt.
type ArchitectureContext struct {
	Overview       string
	TechStack      []string
	DatabaseSchema []string
	APIEndpoints   []string
}

func writeIdea(prompt *strings.Builder, ic IdeaContext) {
	prompt.WriteString("## Product\n\n")
	prompt.WriteString(fmt.Sprintf("- **Name**: %s\n", ic.Name))
	prompt.WriteString(fmt.Sprintf("- **Description**: %s\n", ic.Description))
	if len(ic.TechStack) > 0 {
		prompt.WriteString(fmt.Sprintf("- **Tech stack**: %s\n", strings.Join(ic.TechStack, ", ")))
	}
	if len(ic.KeyFeatures) > 0 {
		prompt.WriteString(fmt.Sprintf("- **Key features**: %s\n", strings.Join(ic.KeyFeatures, ", ")))
	}
	if len(ic.RevenueModel) > 0 {
		prompt.WriteString(fmt.Sprintf("- **Revenue model**: %s\n", strings.Join(ic.RevenueModel, ", ")))
	}
	prompt.WriteString("\n")
}

// BuildArchitecturePrompt asks for the system architecture of one idea.
func BuildArchitecturePrompt(ic IdeaContext) string {
	var prompt strings.Builder

	prompt.WriteString("# System Architecture Design\n\n")
	prompt.WriteString("Design a production-ready architecture for the product below.\n\n")
	writeIdea(&prompt, ic)

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond in JSON with:\n")
	prompt.WriteString("- `overview`: Short description of the architecture\n")
	prompt.WriteString("- `diagram`: ASCII diagram of the main components\n")
	prompt.WriteString("- `techStack`: Array of technologies\n")
	prompt.WriteString("- `databaseSchema`: Array of table definitions, one per item\n")
	prompt.WriteString("- `apiEndpoints`: Array like \"GET /api/items - list items\"\n")
	prompt.WriteString("- `databaseDesign`: Paragraph on data modeling choices\n")
	prompt.WriteString("- `apiDesign`: Paragraph on API conventions\n\n")

	prompt.WriteString("Return ONLY the JSON, no additional text.\n")

	return prompt.String()
}

// BuildFilesPrompt asks for the starter source files, grounded on a prior architecture.
func BuildFilesPrompt(ic IdeaContext, ac ArchitectureContext) string {
	var prompt strings.Builder

	prompt.WriteString("# Code Generation\n\n")
	prompt.WriteString("Generate a complete, runnable starter codebase for the product below.\n\n")
	writeIdea(&prompt, ic)

	prompt.WriteString("## Architecture\n\n")
	if ac.Overview != "" {
		prompt.WriteString(ac.Overview)
		prompt.WriteString("\n\n")
	}
	if len(ac.TechStack) > 0 {
		prompt.WriteString(fmt.Sprintf("- **Tech stack**: %s\n", strings.Join(ac.TechStack, ", ")))
	}
	for _, table := range ac.DatabaseSchema {
		prompt.WriteString(fmt.Sprintf("- **Table**: %s\n", table))
	}
	for _, ep := range ac.APIEndpoints {
		prompt.WriteString(fmt.Sprintf("- **Endpoint**: %s\n", ep))
	}
	prompt.WriteString("\n")

	prompt.WriteString("## Requirements\n\n")
	prompt.WriteString("- Include frontend, backend, database and config files\n")
	prompt.WriteString("- Every file must contain working code, not placeholders\n")
	prompt.WriteString("- Escape newlines and quotes inside `content` strings\n\n")

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond in JSON with:\n")
	prompt.WriteString("- `files`: Array of files\n")
	prompt.WriteString("  - `path`: Relative file path\n")
	prompt.WriteString("  - `language`: Source language\n")
	prompt.WriteString("  - `content`: Full file content\n")
	prompt.WriteString("  - `explanation`: What the file does\n")
	prompt.WriteString("  - `category`: One of \"frontend\", \"backend\", \"database\", \"config\", \"docs\"\n")
	prompt.WriteString("- `setupInstructions`: Steps to run locally\n")
	prompt.WriteString("- `deploymentGuide`: Steps to deploy\n")
	prompt.WriteString("- `testingStrategy`: How to test the product\n\n")

	prompt.WriteString("Return ONLY the JSON, no additional text.\n")

	return prompt.String()
}

// BuildCodegenSystemMessage returns the system message for both code generation calls.
func BuildCodegenSystemMessage() string {
	return `You are a senior full-stack engineer. You design pragmatic architectures and write production-quality starter code. Always answer with valid JSON.`
}
