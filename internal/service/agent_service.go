package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-sales-agent-be/internal/dto"
	"ai-sales-agent-be/internal/pkg/logger"
	"ai-sales-agent-be/internal/pkg/mailer"
	"ai-sales-agent-be/internal/repository/contract"
	"ai-sales-agent-be/pkg/agent"
	"ai-sales-agent-be/pkg/classifier"
	"ai-sales-agent-be/pkg/embedding"
	"ai-sales-agent-be/pkg/store"
)

const agentModule = "AGENT_SERVICE"

var (
	ErrNoRecipient            = errors.New("agent: no recipient e-mail for dispatch")
	ErrTranscriptsUnavailable = errors.New("agent: transcript store unavailable")
)

// Conversation is the session surface of the orchestrator.
type Conversation interface {
	Initiate(ctx context.Context, userID string) (*agent.Exchange, error)
	Respond(ctx context.Context, userID, message string) (*agent.Exchange, error)
	Session(userID string) (store.Session, error)
	LastReply(userID string) (store.Turn, map[string]interface{}, error)
}

type IntentClassifier interface {
	Classify(ctx context.Context, text string) classifier.Result
}

type DocumentRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) []store.Document
}

type EmbeddingStatus interface {
	Status() embedding.Status
}

// SessionCounter reports live sessions for the health endpoint.
type SessionCounter interface {
	ActiveSessions() int
}

type IAgentService interface {
	Initiate(ctx context.Context, userID string) (*dto.ExchangeResponse, error)
	Respond(ctx context.Context, userID string, req *dto.SendMessageRequest) (*dto.ExchangeResponse, error)
	History(ctx context.Context, userID string) (*dto.HistoryResponse, error)
	Transcript(ctx context.Context, userID string, limit int) (*dto.TranscriptResponse, error)
	Dispatch(ctx context.Context, userID string, req *dto.DispatchRequest) (*dto.DispatchResponse, error)
	Classify(ctx context.Context, req *dto.ClassifyRequest) (*dto.ClassifyResponse, error)
	Retrieve(ctx context.Context, req *dto.RetrieveRequest) (*dto.RetrieveResponse, error)
	Health(ctx context.Context) *dto.HealthResponse
}

type AgentServiceDeps struct {
	Conversation Conversation
	Classifier   IntentClassifier
	Retriever    DocumentRetriever
	Embedding    EmbeddingStatus
	Sessions     SessionCounter
	Transcripts  contract.TranscriptRepository
	Mailer       mailer.IEmailService
	CompanyName  string
	TopK         int
}

type agentService struct {
	deps   AgentServiceDeps
	logger logger.ILogger
}

func NewAgentService(deps AgentServiceDeps, log logger.ILogger) IAgentService {
	if deps.TopK <= 0 {
		deps.TopK = 3
	}
	return &agentService{deps: deps, logger: log}
}

func (s *agentService) Initiate(ctx context.Context, userID string) (*dto.ExchangeResponse, error) {
	ex, err := s.deps.Conversation.Initiate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toExchangeResponse(ex), nil
}

func (s *agentService) Respond(ctx context.Context, userID string, req *dto.SendMessageRequest) (*dto.ExchangeResponse, error) {
	ex, err := s.deps.Conversation.Respond(ctx, userID, req.Message)
	if err != nil {
		return nil, err
	}
	return toExchangeResponse(ex), nil
}

func (s *agentService) History(ctx context.Context, userID string) (*dto.HistoryResponse, error) {
	session, err := s.deps.Conversation.Session(userID)
	if err != nil {
		return nil, err
	}

	res := &dto.HistoryResponse{
		UserID:   session.UserID,
		State:    string(session.State),
		Strategy: session.Strategy,
		Turns:    make([]dto.TurnResponse, 0, len(session.History)),
	}
	for _, t := range session.History {
		res.Turns = append(res.Turns, dto.TurnResponse{
			Speaker:   string(t.Speaker),
			Text:      t.Text,
			Subject:   t.Subject,
			CreatedAt: t.CreatedAt,
		})
	}
	return res, nil
}

func (s *agentService) Transcript(ctx context.Context, userID string, limit int) (*dto.TranscriptResponse, error) {
	if s.deps.Transcripts == nil {
		return nil, ErrTranscriptsUnavailable
	}
	records, err := s.deps.Transcripts.List(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTranscriptsUnavailable, err)
	}
	return &dto.TranscriptResponse{UserID: userID, Turns: records}, nil
}

// Dispatch e-mails the latest agent reply. The recipient defaults to the
// contact address of the profile the reply was written for.
func (s *agentService) Dispatch(ctx context.Context, userID string, req *dto.DispatchRequest) (*dto.DispatchResponse, error) {
	turn, snapshot, err := s.deps.Conversation.LastReply(userID)
	if err != nil {
		return nil, err
	}

	to := strings.TrimSpace(req.To)
	if to == "" {
		to = contactEmail(snapshot)
	}
	if to == "" {
		return nil, ErrNoRecipient
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = turn.Subject
	}
	if subject == "" {
		subject = s.deps.CompanyName
	}

	if err := s.deps.Mailer.SendAgentReply(to, subject, turn.Text); err != nil {
		s.logger.Error(agentModule, "Failed to dispatch agent reply", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return nil, err
	}

	s.logger.Info(agentModule, "Agent reply dispatched", map[string]interface{}{"user_id": userID, "turn_id": turn.ID})
	return &dto.DispatchResponse{To: to, Subject: subject}, nil
}

func contactEmail(snapshot map[string]interface{}) string {
	contact, ok := snapshot["contact_info"].(map[string]interface{})
	if !ok {
		return ""
	}
	email, _ := contact["email"].(string)
	return strings.TrimSpace(email)
}

func (s *agentService) Classify(ctx context.Context, req *dto.ClassifyRequest) (*dto.ClassifyResponse, error) {
	r := s.deps.Classifier.Classify(ctx, req.Text)
	return &dto.ClassifyResponse{
		Intent:       string(r.Intent),
		IntentScore:  r.IntentScore,
		Products:     productNames(r.Products),
		ProductScore: r.ProductScore,
	}, nil
}

func (s *agentService) Retrieve(ctx context.Context, req *dto.RetrieveRequest) (*dto.RetrieveResponse, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = s.deps.TopK
	}

	docs := s.deps.Retriever.Retrieve(ctx, req.Query, topK)
	res := &dto.RetrieveResponse{Query: req.Query, Documents: make([]dto.DocumentResponse, 0, len(docs))}
	for _, d := range docs {
		res.Documents = append(res.Documents, dto.DocumentResponse{Text: d.Text, Source: d.SourceID, Distance: d.Distance})
	}
	return res, nil
}

// Health is degraded once the embedding ladder has failed outright. A
// resolver that has not run yet counts as healthy.
func (s *agentService) Health(ctx context.Context) *dto.HealthResponse {
	st := s.deps.Embedding.Status()
	status := "ok"
	if !st.Ready && st.LastError != "" {
		status = "degraded"
	}

	active := 0
	if s.deps.Sessions != nil {
		active = s.deps.Sessions.ActiveSessions()
	}
	return &dto.HealthResponse{Status: status, Embedding: st, ActiveSessions: active}
}

func toExchangeResponse(ex *agent.Exchange) *dto.ExchangeResponse {
	res := &dto.ExchangeResponse{
		UserID:      ex.UserID,
		Strategy:    string(ex.Strategy),
		SearchQuery: ex.SearchQuery,
		Subject:     ex.Reply.Subject,
		Body:        ex.Reply.Body,
	}
	if ex.Classification != nil {
		res.Intent = string(ex.Classification.Intent)
		res.IntentScore = ex.Classification.IntentScore
		res.Products = productNames(ex.Classification.Products)
	}
	for _, d := range ex.Documents {
		res.Sources = append(res.Sources, d.SourceID)
	}
	return res
}

func productNames(products []classifier.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = string(p)
	}
	return out
}
