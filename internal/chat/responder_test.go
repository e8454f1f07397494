package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	args := m.Called(ctx, system, user)
	return args.String(0), args.Error(1)
}

type panicCompleter struct{}

func (panicCompleter) Complete(context.Context, string, string) (string, error) {
	panic("boom")
}

func TestRespondValidation(t *testing.T) {
	r := NewResponder(nil, Options{}, nil)
	ctx := context.Background()

	got := r.Respond(ctx, "   ", "")
	assert.False(t, got.Success)
	assert.Equal(t, SourceValidation, got.Source)

	got = r.Respond(ctx, strings.Repeat("a", MaxMessageLength+1), "")
	assert.False(t, got.Success)
	assert.Contains(t, got.Message, "too long")

	got = r.Respond(ctx, strings.Repeat("a", MaxMessageLength), "")
	assert.True(t, got.Success)
}

func TestRespondGreetingWinsOverContent(t *testing.T) {
	llm := new(MockCompleter)
	r := NewResponder(llm, Options{}, nil)

	for _, msg := range []string{"hi", "Hello, how much does it cost?", "HEY there", "good morning"} {
		got := r.Respond(context.Background(), msg, "")
		assert.Equal(t, Reply{Success: true, Message: greetingReply, Source: SourceGreeting}, got, msg)
	}
	// "high" starts with "hi" but is not a greeting
	llm.On("Complete", mock.Anything, mock.Anything, "highest price?").Return("", errors.New("down")).Once()
	got := r.Respond(context.Background(), "highest price?", "")
	assert.Equal(t, SourceKeyword, got.Source)

	llm.AssertExpectations(t)
}

func TestRespondBareTokens(t *testing.T) {
	r := NewResponder(nil, Options{}, nil)
	cases := map[string]string{
		"yes":          yesReply,
		"Yeah!":        yesReply,
		"no":           noReply,
		"Nope.":        noReply,
		"maybe":        maybeReply,
		"I don't know": maybeReply,
	}
	for msg, want := range cases {
		got := r.Respond(context.Background(), msg, "")
		assert.Equal(t, want, got.Message, msg)
		assert.Equal(t, SourceNudge, got.Source, msg)
	}

	// tokens inside a sentence are not nudges
	got := r.Respond(context.Background(), "yes but what does it cost", "")
	assert.Equal(t, SourceKeyword, got.Source)
}

func TestRespondUsesModelVerbatim(t *testing.T) {
	llm := new(MockCompleter)
	llm.On("Complete", mock.Anything, mock.MatchedBy(func(s string) bool {
		return strings.Contains(s, "Acme") && strings.Contains(s, "dental clinic")
	}), "Do you work with Xero?").Return("  Yes, we integrate with Xero.  ", nil).Once()

	r := NewResponder(llm, Options{BusinessName: "Acme"}, nil)
	got := r.Respond(context.Background(), "Do you work with Xero?", "dental")

	assert.Equal(t, Reply{Success: true, Message: "Yes, we integrate with Xero.", Source: SourceModel}, got)
	llm.AssertExpectations(t)
}

func TestRespondFallsBackWhenModelFails(t *testing.T) {
	llm := new(MockCompleter)
	llm.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("503"))

	r := NewResponder(llm, Options{}, nil)

	got := r.Respond(context.Background(), "How much is the premium package?", "")
	assert.Equal(t, SourceKeyword, got.Source)
	assert.Contains(t, got.Message, "three packages")

	got = r.Respond(context.Background(), "Tell me a joke about penguins", "")
	assert.Equal(t, Reply{Success: true, Message: defaultReply, Source: SourceDefault}, got)
}

func TestRespondModelTimeout(t *testing.T) {
	llm := new(MockCompleter)
	llm.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", context.DeadlineExceeded)

	r := NewResponder(llm, Options{Timeout: 20 * time.Millisecond}, nil)
	got := r.Respond(context.Background(), "can I book a call?", "")
	assert.Equal(t, SourceKeyword, got.Source)
}

func TestRespondRecoversFromPanic(t *testing.T) {
	r := NewResponder(panicCompleter{}, Options{}, nil)
	got := r.Respond(context.Background(), "what is your refund policy", "")
	assert.Equal(t, Reply{Message: apologyReply, Source: SourceError}, got)
}

func TestKeywordBucketsOrderAndWordStarts(t *testing.T) {
	cases := map[string]string{
		"What services do you offer?":    "services",
		"how much does it cost":          "pricing",
		"Can I schedule an appointment":  "booking",
		"how do I reach a human":         "contact",
		"how long does setup take":       "setup",
		"does it send WhatsApp messages": "features",
		"do you work in other countries": "international",
		"can you customize the look":     "customization",
		"I feel fine":                    "",
		"my customers are happy":         "",
	}
	for msg, want := range cases {
		b, ok := matchBucket(msg)
		if want == "" {
			assert.False(t, ok, msg)
			continue
		}
		require.True(t, ok, msg)
		assert.Equal(t, want, b.topic, msg)
	}
}

func TestOpenAIClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, 300, req.MaxTokens)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" Hello! "}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(CompleterConfig{APIKey: "sk-test", Model: "gpt-test", BaseURL: srv.URL + "/", MaxTokens: 300})
	out, err := c.Complete(context.Background(), "sys", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", out)
}

func TestOpenAIClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(CompleterConfig{APIKey: "sk-bad", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), "sys", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestNewCompleter(t *testing.T) {
	c, err := NewCompleter(context.Background(), CompleterConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = NewCompleter(context.Background(), CompleterConfig{APIKey: "k", Provider: "OpenAI"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	_, err = NewCompleter(context.Background(), CompleterConfig{APIKey: "k", Provider: "llama"})
	assert.Error(t, err)
}

func TestBreakerOpensAndProbes(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	llm := new(MockCompleter)
	llm.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("503")).Times(2)

	b := NewBreaker(llm, 2, time.Minute).WithClock(clock)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := b.Complete(ctx, "sys", "q")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}

	// open: the model is not called
	_, err := b.Complete(ctx, "sys", "q")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	llm.AssertNumberOfCalls(t, "Complete", 2)

	// after the cool-down one probe goes through and closes the breaker
	now = now.Add(2 * time.Minute)
	llm.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("ok", nil)
	out, err := b.Complete(ctx, "sys", "q")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	out, err = b.Complete(ctx, "sys", "q")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestRespondSkipsModelWhileBreakerOpen(t *testing.T) {
	llm := new(MockCompleter)
	llm.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("503")).Once()

	r := NewResponder(NewBreaker(llm, 1, time.Hour), Options{}, nil)
	for i := 0; i < 3; i++ {
		got := r.Respond(context.Background(), "what does it cost", "")
		assert.Equal(t, SourceKeyword, got.Source)
	}
	llm.AssertNumberOfCalls(t, "Complete", 1)
}
