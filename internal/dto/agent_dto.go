package dto

import (
	"time"

	"ai-sales-agent-be/pkg/embedding"
	"ai-sales-agent-be/pkg/events"
)

type SendMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

type ExchangeResponse struct {
	UserID      string   `json:"user_id"`
	Strategy    string   `json:"strategy"`
	Intent      string   `json:"intent,omitempty"`
	IntentScore float64  `json:"intent_score,omitempty"`
	Products    []string `json:"products,omitempty"`
	SearchQuery string   `json:"search_query,omitempty"`
	Sources     []string `json:"sources,omitempty"`
	Subject     string   `json:"subject,omitempty"`
	Body        string   `json:"body"`
}

type TurnResponse struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Subject   string    `json:"subject,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type HistoryResponse struct {
	UserID   string         `json:"user_id"`
	State    string         `json:"state"`
	Strategy string         `json:"strategy,omitempty"`
	Turns    []TurnResponse `json:"turns"`
}

type TranscriptResponse struct {
	UserID string              `json:"user_id"`
	Turns  []events.TurnRecord `json:"turns"`
}

type DispatchRequest struct {
	To      string `json:"to" validate:"omitempty,email"`
	Subject string `json:"subject"`
}

type DispatchResponse struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
}

type ClassifyRequest struct {
	Text string `json:"text" validate:"required"`
}

type ClassifyResponse struct {
	Intent       string   `json:"intent"`
	IntentScore  float64  `json:"intent_score"`
	Products     []string `json:"products"`
	ProductScore float64  `json:"product_score"`
}

type RetrieveRequest struct {
	Query string `json:"query" validate:"required"`
	TopK  int    `json:"top_k" validate:"omitempty,gte=1,lte=20"`
}

type DocumentResponse struct {
	Text     string  `json:"text"`
	Source   string  `json:"source"`
	Distance float64 `json:"distance"`
}

type RetrieveResponse struct {
	Query     string             `json:"query"`
	Documents []DocumentResponse `json:"documents"`
}

type HealthResponse struct {
	Status         string           `json:"status"`
	Embedding      embedding.Status `json:"embedding"`
	ActiveSessions int              `json:"active_sessions"`
}
