package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// LabelScore is one candidate label and its model probability.
type LabelScore struct {
	Label string
	Score float64
}

// ZeroShotModel scores text against an arbitrary closed label set.
// Results are ordered best first.
type ZeroShotModel interface {
	Classify(ctx context.Context, text string, labels []string, hypothesisTemplate string) ([]LabelScore, error)
}

// HuggingFaceZeroShot calls a zero-shot-classification pipeline exposed by the
// Hugging Face inference API (or a self-hosted endpoint with the same contract).
type HuggingFaceZeroShot struct {
	model string
	http  *resty.Client
}

var _ ZeroShotModel = &HuggingFaceZeroShot{}

type zeroShotRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
}

type zeroShotParameters struct {
	CandidateLabels    []string `json:"candidate_labels"`
	HypothesisTemplate string   `json:"hypothesis_template,omitempty"`
	MultiLabel         bool     `json:"multi_label"`
}

type zeroShotResponse struct {
	Sequence string    `json:"sequence"`
	Labels   []string  `json:"labels"`
	Scores   []float64 `json:"scores"`
	Error    string    `json:"error,omitempty"`
}

func NewHuggingFaceZeroShot(baseURL, model, apiKey string, timeout time.Duration) *HuggingFaceZeroShot {
	if baseURL == "" {
		baseURL = "https://api-inference.huggingface.co"
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &HuggingFaceZeroShot{model: model, http: client}
}

func (z *HuggingFaceZeroShot) Classify(ctx context.Context, text string, labels []string, hypothesisTemplate string) ([]LabelScore, error) {
	reqBody := zeroShotRequest{
		Inputs: text,
		Parameters: zeroShotParameters{
			CandidateLabels:    labels,
			HypothesisTemplate: hypothesisTemplate,
			MultiLabel:         false,
		},
	}

	// Model ids contain a slash ("joeddav/xlm-roberta-large-xnli") that must
	// stay a path separator.
	path := "/models/" + strings.Join(escapeSegments(z.model), "/")
	resp, err := z.http.R().SetContext(ctx).SetBody(reqBody).Post(path)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("zero-shot api error (status %d): %s", resp.StatusCode(), resp.String())
	}

	var zsResp zeroShotResponse
	if err := json.Unmarshal(resp.Body(), &zsResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if zsResp.Error != "" {
		return nil, fmt.Errorf("zero-shot api returned error: %s", zsResp.Error)
	}

	if len(zsResp.Labels) == 0 || len(zsResp.Labels) != len(zsResp.Scores) {
		return nil, fmt.Errorf("malformed zero-shot response: %d labels, %d scores", len(zsResp.Labels), len(zsResp.Scores))
	}

	scored := make([]LabelScore, len(zsResp.Labels))
	for i, label := range zsResp.Labels {
		scored[i] = LabelScore{Label: label, Score: zsResp.Scores[i]}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	return scored, nil
}

func escapeSegments(model string) []string {
	parts := strings.Split(model, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return parts
}
