package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ai-sales-agent-be/internal/constant"
	"ai-sales-agent-be/internal/pkg/logger"
	"ai-sales-agent-be/pkg/classifier"
	"ai-sales-agent-be/pkg/events"
	"ai-sales-agent-be/pkg/llm"
	"ai-sales-agent-be/pkg/profile"
	"ai-sales-agent-be/pkg/rag/retriever"
	"ai-sales-agent-be/pkg/store"
	"ai-sales-agent-be/pkg/strategy"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const module = "AGENT"

var (
	ErrGeneration        = errors.New("agent: reply generation failed")
	ErrSessionNotFound   = errors.New("agent: session not found")
	ErrSessionTerminated = errors.New("agent: session terminated")
	ErrAlreadyInitiated  = errors.New("agent: session already initiated")
	ErrEmptyMessage      = errors.New("agent: empty user message")
	ErrNoReplyToDispatch = errors.New("agent: no agent reply to dispatch")
)

type Classifier interface {
	Classify(ctx context.Context, text string) classifier.Result
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) []store.Document
}

// SessionStore keeps sessions for the lifetime of the process.
type SessionStore interface {
	Get(userID string) (*store.Session, bool)
	Save(session *store.Session)
	List() []*store.Session
}

// TurnPublisher receives every completed exchange. Failures never fail a turn.
type TurnPublisher interface {
	PublishTurn(ctx context.Context, record events.TurnRecord) error
}

type Config struct {
	CompanyName       string
	Language          string
	MaxSentences      int
	TopK              int
	GenerationTimeout time.Duration
}

// Exchange is the outcome of one Initiate or Respond call.
type Exchange struct {
	UserID         string             `json:"user_id"`
	Strategy       strategy.Key       `json:"strategy"`
	Classification *classifier.Result `json:"classification,omitempty"`
	SearchQuery    string             `json:"search_query,omitempty"`
	Documents      []store.Document   `json:"documents,omitempty"`
	Reply          Reply              `json:"reply"`
}

// Orchestrator drives per-user sales conversations.
type Orchestrator struct {
	classifier Classifier
	strategies *strategy.Table
	retriever  Retriever
	llm        llm.LLMProvider
	profiles   profile.Fetcher
	sessions   SessionStore
	publisher  TurnPublisher
	logger     logger.ILogger
	cfg        Config
	tracer     trace.Tracer

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewOrchestrator(
	cls Classifier,
	strategies *strategy.Table,
	rtv Retriever,
	provider llm.LLMProvider,
	profiles profile.Fetcher,
	sessions SessionStore,
	publisher TurnPublisher,
	log logger.ILogger,
	cfg Config,
) *Orchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.MaxSentences <= 0 {
		cfg.MaxSentences = 5
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 120 * time.Second
	}
	return &Orchestrator{
		classifier: cls,
		strategies: strategies,
		retriever:  rtv,
		llm:        provider,
		profiles:   profiles,
		sessions:   sessions,
		publisher:  publisher,
		logger:     log,
		cfg:        cfg,
		tracer:     otel.Tracer("ai-sales-agent-be/pkg/agent"),
		locks:      make(map[string]*sync.Mutex),
	}
}

func (o *Orchestrator) lock(userID string) func() {
	o.locksMu.Lock()
	m, ok := o.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		o.locks[userID] = m
	}
	o.locksMu.Unlock()

	m.Lock()
	return m.Unlock
}

func (o *Orchestrator) session(userID string) *store.Session {
	if s, ok := o.sessions.Get(userID); ok {
		return s
	}
	now := time.Now()
	s := &store.Session{
		UserID:    userID,
		State:     store.StateIdle,
		History:   []store.Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.sessions.Save(s)
	return s
}

// Initiate sends the first outbound message of a session. userID may be
// profile.RandomUserID to start with any customer.
func (o *Orchestrator) Initiate(ctx context.Context, userID string) (*Exchange, error) {
	ctx, span := o.tracer.Start(ctx, "agent.initiate", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	p, err := o.profiles.Fetch(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile fetch failed")
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	unlock := o.lock(p.UserID)
	defer unlock()

	session := o.session(p.UserID)
	switch {
	case session.State == store.StateTerminated:
		return nil, ErrSessionTerminated
	case session.State != store.StateIdle || len(session.History) > 0:
		return nil, ErrAlreadyInitiated
	}

	key := initiationKey(p)
	entry, err := o.strategies.Lookup(key)
	if err != nil {
		return nil, err
	}

	prior := session.State
	session.State = store.StateInitiating
	session.Profile = p.Snapshot()

	prompt := BuildSalesPrompt(PromptInput{
		CompanyName:   o.cfg.CompanyName,
		Language:      o.cfg.Language,
		MaxSentences:  o.cfg.MaxSentences,
		Instruction:   entry.Instruction,
		Profile:       session.Profile,
		History:       session.History,
		LatestMessage: constant.NoUserMessagePlaceholder,
	})

	reply, err := o.generate(ctx, prompt)
	if err != nil {
		session.State = prior
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, err
	}

	o.appendTurn(session, store.SpeakerAgent, reply.Body, reply.Subject)
	session.Strategy = string(key)
	session.State = store.StateAwaitingUserInput
	o.sessions.Save(session)

	o.logger.Info(module, "Session initiated", map[string]interface{}{
		"user_id":  p.UserID,
		"strategy": key,
		"decision": p.Decision,
	})

	record := events.NewTurnRecord(p.UserID)
	record.Strategy = string(key)
	record.AgentMessage = reply.Body
	o.publish(ctx, record)

	return &Exchange{UserID: p.UserID, Strategy: key, Reply: reply}, nil
}

// initiationKey picks the opening strategy: unpaid bills first, then missing
// information, then a recommendation, else a generic introduction.
func initiationKey(p *profile.Profile) strategy.Key {
	switch {
	case len(p.BillsDue) > 0:
		return strategy.KeyRemindUnpaidBill
	case len(p.MissingFields) > 0:
		return strategy.KeyCollectMissingInfo
	case len(p.RecommendedProducts) > 0:
		return strategy.KeyRecommendProduct
	default:
		return strategy.KeyGenericOutreach
	}
}

// Respond answers one customer message. History gains the user turn and the
// agent turn only when generation succeeds.
func (o *Orchestrator) Respond(ctx context.Context, userID, message string) (*Exchange, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	ctx, span := o.tracer.Start(ctx, "agent.respond", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	unlock := o.lock(userID)
	defer unlock()

	session := o.session(userID)
	if session.State == store.StateTerminated {
		return nil, ErrSessionTerminated
	}

	prior := session.State
	session.State = store.StateResponding
	restore := func() { session.State = prior }

	o.refreshProfile(ctx, session)

	result := o.classify(ctx, message)
	span.SetAttributes(attribute.String("agent.intent", string(result.Intent)))

	key := strategy.Key(result.Intent)
	entry, err := o.strategies.Lookup(key)
	if err != nil {
		restore()
		return nil, err
	}

	exchange := &Exchange{UserID: userID, Strategy: key, Classification: &result}

	var contextText string
	if entry.RequiresRetrieval {
		exchange.SearchQuery = o.searchQuery(ctx, session.History, message)
		exchange.Documents = o.retrieve(ctx, exchange.SearchQuery)
		contextText = retriever.FormatContext(exchange.Documents)
	}

	prompt := BuildSalesPrompt(PromptInput{
		CompanyName:   o.cfg.CompanyName,
		Language:      o.cfg.Language,
		MaxSentences:  o.cfg.MaxSentences,
		Instruction:   entry.Instruction,
		Profile:       session.Profile,
		Context:       contextText,
		History:       session.History,
		LatestMessage: message,
	})

	reply, err := o.generate(ctx, prompt)
	if err != nil {
		restore()
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, err
	}
	exchange.Reply = reply

	o.appendTurn(session, store.SpeakerUser, message, "")
	o.appendTurn(session, store.SpeakerAgent, reply.Body, reply.Subject)
	session.Strategy = string(key)
	session.State = store.StateAwaitingUserInput
	o.sessions.Save(session)

	o.logger.Info(module, "Responded to user", map[string]interface{}{
		"user_id":   userID,
		"intent":    result.Intent,
		"score":     result.IntentScore,
		"products":  result.ProductLabel(),
		"documents": len(exchange.Documents),
	})

	record := events.NewTurnRecord(userID)
	record.Strategy = string(key)
	record.Intent = string(result.Intent)
	record.IntentScore = result.IntentScore
	for _, p := range result.Products {
		record.Products = append(record.Products, string(p))
	}
	record.UserMessage = message
	record.AgentMessage = reply.Body
	record.UsedContext = contextText != ""
	o.publish(ctx, record)

	return exchange, nil
}

// refreshProfile re-reads the profile. On failure the previous snapshot,
// possibly empty, is kept.
func (o *Orchestrator) refreshProfile(ctx context.Context, session *store.Session) {
	p, err := o.profiles.Fetch(ctx, session.UserID)
	if err != nil {
		o.logger.Warn(module, "Profile refresh failed, using last snapshot", map[string]interface{}{
			"user_id": session.UserID,
			"error":   err.Error(),
		})
		return
	}
	session.Profile = p.Snapshot()
}

func (o *Orchestrator) classify(ctx context.Context, message string) classifier.Result {
	ctx, span := o.tracer.Start(ctx, "agent.classify")
	defer span.End()
	return o.classifier.Classify(ctx, message)
}

// searchQuery reformulates the conversation into a retrieval query and
// falls back to the raw message when that fails.
func (o *Orchestrator) searchQuery(ctx context.Context, history []store.Turn, message string) string {
	ctx, span := o.tracer.Start(ctx, "agent.reformulate")
	defer span.End()

	genCtx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	defer cancel()

	raw, err := o.llm.Generate(genCtx, BuildSearchQueryPrompt(history, message), llm.WithTemperature(0.1))
	if err != nil {
		o.logger.Warn(module, "Query reformulation failed, searching with the raw message", map[string]interface{}{
			"error": err.Error(),
		})
		return message
	}
	query := cleanSearchQuery(raw)
	if query == "" {
		return message
	}
	return query
}

func (o *Orchestrator) retrieve(ctx context.Context, query string) []store.Document {
	ctx, span := o.tracer.Start(ctx, "agent.retrieve", trace.WithAttributes(attribute.String("agent.query", query)))
	defer span.End()

	docs := o.retriever.Retrieve(ctx, query, o.cfg.TopK)
	span.SetAttributes(attribute.Int("agent.documents", len(docs)))
	return docs
}

func (o *Orchestrator) generate(ctx context.Context, prompt string) (Reply, error) {
	ctx, span := o.tracer.Start(ctx, "agent.generate")
	defer span.End()

	genCtx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	defer cancel()

	raw, err := o.llm.Generate(genCtx, prompt, llm.WithJSONOutput())
	if err != nil {
		o.logger.Error(module, "Generation failed", map[string]interface{}{"error": err.Error()})
		return Reply{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if strings.TrimSpace(raw) == "" {
		return Reply{}, fmt.Errorf("%w: empty completion", ErrGeneration)
	}
	return ParseReply(raw), nil
}

func (o *Orchestrator) appendTurn(session *store.Session, speaker store.Speaker, text, subject string) {
	now := time.Now()
	session.History = append(session.History, store.Turn{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Text:      text,
		Subject:   subject,
		CreatedAt: now,
	})
	session.UpdatedAt = now
}

func (o *Orchestrator) publish(ctx context.Context, record events.TurnRecord) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.PublishTurn(ctx, record); err != nil {
		o.logger.Warn(module, "Failed to publish turn event", map[string]interface{}{
			"user_id": record.UserID,
			"error":   err.Error(),
		})
	}
}

// History returns a copy of the conversation so far.
func (o *Orchestrator) History(userID string) ([]store.Turn, error) {
	unlock := o.lock(userID)
	defer unlock()

	s, ok := o.sessions.Get(userID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, userID)
	}
	out := make([]store.Turn, len(s.History))
	copy(out, s.History)
	return out, nil
}

// Session returns a snapshot of the session state and history.
func (o *Orchestrator) Session(userID string) (store.Session, error) {
	unlock := o.lock(userID)
	defer unlock()

	s, ok := o.sessions.Get(userID)
	if !ok {
		return store.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, userID)
	}
	snapshot := *s
	snapshot.History = append([]store.Turn(nil), s.History...)
	return snapshot, nil
}

// LastReply returns the latest agent turn and the profile snapshot it was
// written for.
func (o *Orchestrator) LastReply(userID string) (store.Turn, map[string]interface{}, error) {
	unlock := o.lock(userID)
	defer unlock()

	s, ok := o.sessions.Get(userID)
	if !ok {
		return store.Turn{}, nil, fmt.Errorf("%w: %s", ErrSessionNotFound, userID)
	}
	turn, ok := s.LastAgentTurn()
	if !ok {
		return store.Turn{}, nil, ErrNoReplyToDispatch
	}
	return turn, s.Profile, nil
}

// ActiveSessions counts sessions that are not terminated. Each state is read
// under that user's lock.
func (o *Orchestrator) ActiveSessions() int {
	active := 0
	for _, s := range o.sessions.List() {
		unlock := o.lock(s.UserID)
		if s.State != store.StateTerminated {
			active++
		}
		unlock()
	}
	return active
}

// Shutdown terminates every session. Later calls on them fail with
// ErrSessionTerminated.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	for _, s := range o.sessions.List() {
		if ctx.Err() != nil {
			return
		}
		unlock := o.lock(s.UserID)
		s.State = store.StateTerminated
		s.UpdatedAt = time.Now()
		o.sessions.Save(s)
		unlock()
	}
	o.logger.Info(module, "All sessions terminated", nil)
}
