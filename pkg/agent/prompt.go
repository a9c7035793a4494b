package agent

import (
	"encoding/json"
	"strconv"
	"strings"

	"ai-sales-agent-be/internal/constant"
	"ai-sales-agent-be/pkg/store"
)

// PromptInput carries everything the sales prompt is built from.
type PromptInput struct {
	CompanyName   string
	Language      string
	MaxSentences  int
	Instruction   string
	Profile       map[string]interface{}
	Context       string
	History       []store.Turn
	LatestMessage string
}

// BuildSalesPrompt renders the generation prompt. The company name is also
// substituted inside the strategy instruction.
func BuildSalesPrompt(in PromptInput) string {
	instruction := strings.ReplaceAll(in.Instruction, "{company_name}", in.CompanyName)

	r := strings.NewReplacer(
		"{company_name}", in.CompanyName,
		"{instruction}", instruction,
		"{user_data}", formatProfile(in.Profile),
		"{rag_context}", in.Context,
		"{conversation_history}", FormatHistory(in.History),
		"{latest_user_message}", in.LatestMessage,
		"{language}", in.Language,
		"{max_sentences}", strconv.Itoa(in.MaxSentences),
	)
	return r.Replace(constant.SalesPromptTemplate)
}

// BuildSearchQueryPrompt renders the reformulation prompt.
func BuildSearchQueryPrompt(history []store.Turn, latest string) string {
	r := strings.NewReplacer(
		"{conversation_history}", FormatHistory(history),
		"{latest_user_message}", latest,
	)
	return r.Replace(constant.SearchQueryPromptTemplate)
}

// FormatHistory renders turns as "User: ..." / "Agent: ..." lines.
func FormatHistory(history []store.Turn) string {
	lines := make([]string, len(history))
	for i, t := range history {
		prefix := constant.TurnPrefixAgent
		if t.Speaker == store.SpeakerUser {
			prefix = constant.TurnPrefixUser
		}
		lines[i] = prefix + t.Text
	}
	return strings.Join(lines, "\n")
}

func formatProfile(profile map[string]interface{}) string {
	if len(profile) == 0 {
		return "{}"
	}
	b, err := json.Marshal(profile)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// cleanSearchQuery keeps the first non-empty line of a reformulation and
// strips wrapping quotes and a leading label.
func cleanSearchQuery(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if idx := strings.Index(line, ":"); idx >= 0 && strings.HasPrefix(strings.ToLower(line), "requête") {
			line = strings.TrimSpace(line[idx+1:])
		}
		return strings.Trim(line, "\"'` ")
	}
	return ""
}
