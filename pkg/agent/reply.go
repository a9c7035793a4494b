package agent

import (
	"encoding/json"
	"strings"
)

// Reply is the parsed form of a generated e-mail.
type Reply struct {
	Intent  string `json:"intent,omitempty"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
	Raw     string `json:"raw"`
}

type generatedMail struct {
	Intent string `json:"intent"`
	Mail   struct {
		Subject string `json:"subject"`
	} `json:"mail"`
	Body string `json:"body"`
}

// ParseReply extracts the JSON e-mail from generated text. Output that does
// not parse keeps the raw text as the body.
func ParseReply(raw string) Reply {
	reply := Reply{Raw: raw, Body: strings.TrimSpace(raw)}

	candidate := extractJSON(raw)
	if candidate == "" {
		return reply
	}

	var mail generatedMail
	if err := json.Unmarshal([]byte(candidate), &mail); err != nil {
		// Models sometimes answer with single-quoted pseudo JSON.
		if err := json.Unmarshal([]byte(strings.ReplaceAll(candidate, "'", `"`)), &mail); err != nil {
			return reply
		}
	}

	if strings.TrimSpace(mail.Body) == "" {
		return reply
	}
	reply.Intent = mail.Intent
	reply.Subject = mail.Mail.Subject
	reply.Body = strings.TrimSpace(mail.Body)
	return reply
}

// extractJSON returns the substring from the first "{" to the last "}".
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}
