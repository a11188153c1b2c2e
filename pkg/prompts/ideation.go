package prompts

import (
	"fmt"
	"sort"
	"strings"
)

// IdeationContext holds the inputs for an idea-generation prompt.
type IdeationContext struct {
	Keyword     string
	Preferences map[string]any
	Count       int
}

// BuildIdeationPrompt asks the model for Count startup ideas around the keyword.
func BuildIdeationPrompt(ic IdeationContext) string {
	var prompt strings.Builder

	prompt.WriteString("# Startup Idea Generation\n\n")
	prompt.WriteString(fmt.Sprintf("Generate exactly %d innovative, distinct startup ideas based on the keyword: **%s**\n\n",
		ic.Count, ic.Keyword))

	if len(ic.Preferences) > 0 {
		prompt.WriteString("## Preferences\n\n")
		keys := make([]string, 0, len(ic.Preferences))
		for k := range ic.Preferences {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			prompt.WriteString(fmt.Sprintf("- **%s**: %v\n", k, ic.Preferences[k]))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Requirements\n\n")
	prompt.WriteString("- Each idea must be a realistic, buildable product\n")
	prompt.WriteString("- Ideas must differ in target market and approach\n")
	prompt.WriteString("- Use modern technologies in the tech stack\n")
	prompt.WriteString("- Keep list items short (one phrase each)\n\n")

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond in JSON with a single `ideas` array. Each idea has:\n")
	prompt.WriteString("- `name`: Product name\n")
	prompt.WriteString("- `tagline`: One-line pitch\n")
	prompt.WriteString("- `description`: Two or three sentences\n")
	prompt.WriteString("- `techStack`: Array of technologies\n")
	prompt.WriteString("- `keyFeatures`: Array of features\n")
	prompt.WriteString("- `revenueModel`: Array of revenue streams\n")
	prompt.WriteString("- `problemSolved`: Array of problems addressed\n")
	prompt.WriteString("- `solution`: Array describing how the product solves them\n")
	prompt.WriteString("- `competitiveAdvantage`: Array of differentiators\n\n")

	prompt.WriteString("Example:\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "ideas": [
    {
      "name": "FitPulse",
      "tagline": "Workouts that adapt to your day",
      "description": "A mobile coach that rebuilds each workout from sleep and calendar data.",
      "techStack": ["React Native", "Node.js", "PostgreSQL"],
      "keyFeatures": ["Adaptive plans", "Wearable sync"],
      "revenueModel": ["Monthly subscription"],
      "problemSolved": ["Rigid training plans ignore daily energy levels"],
      "solution": ["Daily plan regeneration from recovery signals"],
      "competitiveAdvantage": ["Calendar-aware scheduling"]
    }
  ]
}
`)
	prompt.WriteString("```\n\n")

	prompt.WriteString("Return ONLY the JSON, no additional text.\n")

	return prompt.String()
}

// BuildIdeationSystemMessage returns the system message for idea generation.
func BuildIdeationSystemMessage() string {
	return `You are a startup strategist and product expert. You produce concrete, differentiated business ideas and always answer with valid JSON.`
}
