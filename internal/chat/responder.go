// Package chat answers website chat messages with a fixed ladder of rules,
// optionally delegating free-form questions to a language model.
package chat

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jmehdipour/leadsite/internal/metrics"
)

const MaxMessageLength = 500

// Reply sources, also used as the metrics label.
const (
	SourceValidation = "validation"
	SourceGreeting   = "greeting"
	SourceNudge      = "nudge"
	SourceModel      = "model"
	SourceKeyword    = "keyword"
	SourceDefault    = "default"
	SourceError      = "error"
)

type Reply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Source  string `json:"source"`
}

type request struct {
	message      string
	businessType string
}

// rule answers req when it applies; the first applicable rule wins.
type rule struct {
	name  string
	apply func(ctx context.Context, req request) (Reply, bool)
}

type Options struct {
	BusinessName string
	Timeout      time.Duration // model call budget, default 15s
}

type Responder struct {
	llm   Completer
	opts  Options
	log   *zap.Logger
	rules []rule
}

var greetingRe = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|hiya|howdy|greetings|good\s+(morning|afternoon|evening))\b`)

var (
	yesTokens   = tokenSet("yes", "yeah", "yep", "yup", "sure", "ok", "okay", "y", "absolutely", "of course")
	noTokens    = tokenSet("no", "nope", "nah", "n", "not really", "no thanks", "no thank you")
	maybeTokens = tokenSet("maybe", "perhaps", "possibly", "not sure", "idk", "i don't know", "dunno")
)

// NewResponder builds the ladder. llm may be nil, in which case the model rung
// is skipped.
func NewResponder(llm Completer, opts Options, log *zap.Logger) *Responder {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &Responder{llm: llm, opts: opts, log: log.Named("chat")}
	r.rules = []rule{
		{SourceValidation, r.validate},
		{SourceGreeting, greeting},
		{SourceNudge, nudge},
		{SourceModel, r.model},
		{SourceKeyword, keyword},
		{SourceDefault, fallback},
	}
	return r
}

// ModelConfigured reports whether the model rung is active.
func (r *Responder) ModelConfigured() bool { return r.llm != nil }

// Respond never panics; an internal failure yields a fixed apology.
func (r *Responder) Respond(ctx context.Context, message, businessType string) (reply Reply) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("chat responder panic", zap.Any("panic", p))
			reply = Reply{Message: apologyReply, Source: SourceError}
		}
		metrics.ChatRepliesTotal.WithLabelValues(reply.Source).Inc()
	}()

	req := request{message: strings.TrimSpace(message), businessType: businessType}
	for _, rl := range r.rules {
		if out, ok := rl.apply(ctx, req); ok {
			out.Source = rl.name
			return out
		}
	}
	return Reply{Success: true, Message: defaultReply, Source: SourceDefault}
}

func (r *Responder) validate(_ context.Context, req request) (Reply, bool) {
	switch {
	case req.message == "":
		return Reply{Message: "Please type a message."}, true
	case utf8.RuneCountInString(req.message) > MaxMessageLength:
		return Reply{Message: "Message is too long. Please keep it under 500 characters."}, true
	}
	return Reply{}, false
}

func greeting(_ context.Context, req request) (Reply, bool) {
	if greetingRe.MatchString(req.message) {
		return Reply{Success: true, Message: greetingReply}, true
	}
	return Reply{}, false
}

func nudge(_ context.Context, req request) (Reply, bool) {
	tok := strings.Join(strings.Fields(strings.Trim(normalize(req.message), " ")), " ")
	switch {
	case yesTokens[tok]:
		return Reply{Success: true, Message: yesReply}, true
	case noTokens[tok]:
		return Reply{Success: true, Message: noReply}, true
	case maybeTokens[tok]:
		return Reply{Success: true, Message: maybeReply}, true
	}
	return Reply{}, false
}

func (r *Responder) model(ctx context.Context, req request) (Reply, bool) {
	if r.llm == nil {
		return Reply{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	text, err := r.llm.Complete(ctx, SystemPrompt(r.opts.BusinessName, req.businessType), req.message)
	if err != nil {
		r.log.Warn("model reply failed, using local answers", zap.Error(err))
		return Reply{}, false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, false
	}
	return Reply{Success: true, Message: text}, true
}

func keyword(_ context.Context, req request) (Reply, bool) {
	if b, ok := matchBucket(req.message); ok {
		return Reply{Success: true, Message: b.answer}, true
	}
	return Reply{}, false
}

func fallback(context.Context, request) (Reply, bool) {
	return Reply{Success: true, Message: defaultReply}, true
}

func tokenSet(tokens ...string) map[string]bool {
	m := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		m[strings.Trim(normalize(t), " ")] = true
	}
	return m
}
