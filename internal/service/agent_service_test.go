package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ai-sales-agent-be/internal/dto"
	"ai-sales-agent-be/internal/pkg/logger"
	"ai-sales-agent-be/internal/repository/memory"
	"ai-sales-agent-be/pkg/agent"
	"ai-sales-agent-be/pkg/classifier"
	"ai-sales-agent-be/pkg/embedding"
	"ai-sales-agent-be/pkg/events"
	"ai-sales-agent-be/pkg/llm"
	"ai-sales-agent-be/pkg/profile"
	"ai-sales-agent-be/pkg/store"
	"ai-sales-agent-be/pkg/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConversation struct {
	session  store.Session
	turn     store.Turn
	snapshot map[string]interface{}
	err      error
}

func (f *fakeConversation) Initiate(_ context.Context, userID string) (*agent.Exchange, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &agent.Exchange{UserID: userID, Strategy: "remind unpaid bill", Reply: agent.Reply{Subject: "Facture", Body: "Bonjour"}}, nil
}

func (f *fakeConversation) Respond(_ context.Context, userID, _ string) (*agent.Exchange, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &agent.Exchange{
		UserID:         userID,
		Strategy:       "price quote",
		Classification: &classifier.Result{Intent: "price quote", IntentScore: 0.9, Products: []classifier.Product{"auto insurance"}},
		SearchQuery:    "tarif assurance auto",
		Documents:      []store.Document{{Text: "Tarifs", SourceID: "auto.pdf"}},
		Reply:          agent.Reply{Body: "Notre tarif"},
	}, nil
}

func (f *fakeConversation) Session(string) (store.Session, error) { return f.session, f.err }

func (f *fakeConversation) LastReply(string) (store.Turn, map[string]interface{}, error) {
	return f.turn, f.snapshot, f.err
}

type fakeMailer struct {
	to, subject, body string
	err               error
}

func (m *fakeMailer) SendAgentReply(to, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	return m.err
}

type fakeStatus struct{ status embedding.Status }

func (f fakeStatus) Status() embedding.Status { return f.status }

type fakeTranscripts struct{ records []events.TurnRecord }

func (f *fakeTranscripts) Append(_ context.Context, r events.TurnRecord) error {
	f.records = append(f.records, r)
	return nil
}

func (f *fakeTranscripts) List(_ context.Context, _ string, _ int) ([]events.TurnRecord, error) {
	return f.records, nil
}

func newAgentService(conv *fakeConversation, m *fakeMailer) IAgentService {
	return NewAgentService(AgentServiceDeps{
		Conversation: conv,
		Embedding:    fakeStatus{},
		Mailer:       m,
		CompanyName:  "BH Assurance",
	}, logger.NewNopLogger())
}

func TestRespondMapsExchange(t *testing.T) {
	svc := newAgentService(&fakeConversation{}, &fakeMailer{})

	res, err := svc.Respond(context.Background(), "42", &dto.SendMessageRequest{Message: "Combien ?"})
	require.NoError(t, err)

	assert.Equal(t, "price quote", res.Intent)
	assert.Equal(t, []string{"auto insurance"}, res.Products)
	assert.Equal(t, []string{"auto.pdf"}, res.Sources)
	assert.Equal(t, "Notre tarif", res.Body)
}

func TestDispatchDefaultsToProfileEmail(t *testing.T) {
	conv := &fakeConversation{
		turn:     store.Turn{ID: "t1", Speaker: store.SpeakerAgent, Text: "Votre facture", Subject: "Rappel"},
		snapshot: map[string]interface{}{"contact_info": map[string]interface{}{"email": "client@example.com"}},
	}
	m := &fakeMailer{}
	svc := newAgentService(conv, m)

	res, err := svc.Dispatch(context.Background(), "42", &dto.DispatchRequest{})
	require.NoError(t, err)

	assert.Equal(t, "client@example.com", res.To)
	assert.Equal(t, "Rappel", res.Subject)
	assert.Equal(t, "Votre facture", m.body)
}

func TestDispatchOverrides(t *testing.T) {
	conv := &fakeConversation{turn: store.Turn{Text: "Bonjour"}, snapshot: map[string]interface{}{}}
	m := &fakeMailer{}
	svc := newAgentService(conv, m)

	res, err := svc.Dispatch(context.Background(), "42", &dto.DispatchRequest{To: "ops@bh.tn"})
	require.NoError(t, err)
	assert.Equal(t, "ops@bh.tn", m.to)
	assert.Equal(t, "BH Assurance", res.Subject)
}

func TestDispatchWithoutRecipient(t *testing.T) {
	conv := &fakeConversation{turn: store.Turn{Text: "Bonjour"}, snapshot: map[string]interface{}{}}
	svc := newAgentService(conv, &fakeMailer{})

	_, err := svc.Dispatch(context.Background(), "42", &dto.DispatchRequest{})

	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestDispatchPropagatesConversationError(t *testing.T) {
	svc := newAgentService(&fakeConversation{err: agent.ErrNoReplyToDispatch}, &fakeMailer{})

	_, err := svc.Dispatch(context.Background(), "42", &dto.DispatchRequest{})

	assert.ErrorIs(t, err, agent.ErrNoReplyToDispatch)
}

func TestTranscriptUnavailable(t *testing.T) {
	svc := newAgentService(&fakeConversation{}, &fakeMailer{})

	_, err := svc.Transcript(context.Background(), "42", 10)

	assert.ErrorIs(t, err, ErrTranscriptsUnavailable)
}

func TestTranscriptLists(t *testing.T) {
	transcripts := &fakeTranscripts{}
	require.NoError(t, transcripts.Append(context.Background(), events.NewTurnRecord("42")))
	svc := NewAgentService(AgentServiceDeps{Conversation: &fakeConversation{}, Transcripts: transcripts, Embedding: fakeStatus{}}, logger.NewNopLogger())

	res, err := svc.Transcript(context.Background(), "42", 10)
	require.NoError(t, err)
	assert.Len(t, res.Turns, 1)
}

type fakeSessions int

func (f fakeSessions) ActiveSessions() int { return int(f) }

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		status embedding.Status
		want   string
	}{
		{"not resolved yet", embedding.Status{}, "ok"},
		{"ready", embedding.Status{Ready: true}, "ok"},
		{"ladder exhausted", embedding.Status{LastError: "embedding: every fallback model failed to load"}, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAgentService(AgentServiceDeps{
				Conversation: &fakeConversation{},
				Embedding:    fakeStatus{status: tt.status},
				Sessions:     fakeSessions(1),
			}, logger.NewNopLogger())

			res := svc.Health(context.Background())
			assert.Equal(t, tt.want, res.Status)
			assert.Equal(t, 1, res.ActiveSessions)
		})
	}
}

func TestClassifyAndRetrieveDelegate(t *testing.T) {
	var gotTopK int
	svc := NewAgentService(AgentServiceDeps{
		Conversation: &fakeConversation{},
		Embedding:    fakeStatus{},
		Classifier:   classifier.New(nil, 0.7, logger.NewNopLogger()),
		Retriever: retrieverFunc(func(_ context.Context, q string, k int) []store.Document {
			gotTopK = k
			return []store.Document{{Text: q, SourceID: "faq.pdf", Distance: 0.12}}
		}),
		TopK: 4,
	}, logger.NewNopLogger())

	cls, err := svc.Classify(context.Background(), &dto.ClassifyRequest{Text: "Je ne suis pas intéressé"})
	require.NoError(t, err)
	assert.Equal(t, "no interest", cls.Intent)

	ret, err := svc.Retrieve(context.Background(), &dto.RetrieveRequest{Query: "franchise"})
	require.NoError(t, err)
	assert.Equal(t, 4, gotTopK)
	require.Len(t, ret.Documents, 1)
	assert.Equal(t, "faq.pdf", ret.Documents[0].Source)
}

type retrieverFunc func(ctx context.Context, q string, k int) []store.Document

func (f retrieverFunc) Retrieve(ctx context.Context, q string, k int) []store.Document {
	return f(ctx, q, k)
}

type cannedLLM struct{}

func (cannedLLM) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	return cannedLLM{}.Generate(ctx, "", opts...)
}

func (cannedLLM) Generate(context.Context, string, ...llm.Option) (string, error) {
	return `{"mail":{"subject":"Suivi"},"body":"Très bien, bonne journée."}`, nil
}

type missingProfiles struct{}

func (missingProfiles) Fetch(context.Context, string) (*profile.Profile, error) {
	return nil, errors.New("profile service down")
}

// Run with -race: Health reads session state while turns are in flight.
func TestHealthDuringRespond(t *testing.T) {
	log := logger.NewNopLogger()
	cls := classifier.New(nil, classifier.DefaultThreshold, log)
	table, err := strategy.NewDefaultTable(cls)
	require.NoError(t, err)
	orch := agent.NewOrchestrator(cls, table, retrieverFunc(func(context.Context, string, int) []store.Document { return nil }),
		cannedLLM{}, missingProfiles{}, memory.NewSessionRepository(), nil, log, agent.Config{CompanyName: "BH Assurance"})

	svc := NewAgentService(AgentServiceDeps{
		Conversation: orch,
		Embedding:    fakeStatus{},
		Sessions:     orch,
	}, log)

	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, err := orch.Respond(ctx, "u1", "non merci")
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			svc.Health(ctx)
		}
	}()
	wg.Wait()

	assert.Equal(t, 1, svc.Health(ctx).ActiveSessions)
}
