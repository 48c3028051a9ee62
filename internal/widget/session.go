package widget

import (
	"context"
	"errors"
	"strings"
	"sync"

	"chat-widget/internal/domain"
	"chat-widget/internal/observability"
)

const (
	DefaultLoadingText = "Thinking..."
	DefaultErrorPrefix = "Error contacting worker: "
	FallbackReply      = "Sorry, I did not get a response."
)

// ErrTurnInFlight is returned by Submit while a previous turn has not resolved.
var ErrTurnInFlight = errors.New("widget: a turn is already in flight")

// Completer sends the outbound turn list to the completion proxy. An empty
// reply means the response carried no extractable text.
type Completer interface {
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

type Status string

const (
	StatusIgnored  Status = "ignored"
	StatusAnswered Status = "answered"
	StatusFailed   Status = "failed"
)

// Outcome describes how one submission resolved. Err is set only for
// StatusFailed and has already been rendered as an error node.
type Outcome struct {
	Status Status
	Reply  string
	Err    error
}

// Session owns the transcript of one page and is its only writer.
type Session struct {
	systemPrompt string
	completer    Completer
	surface      Surface
	loadingText  string
	errorPrefix  string

	mu         sync.Mutex
	transcript []domain.ChatMessage
	inFlight   bool
}

type Option func(*Session)

// WithTranscript restores turns from an earlier request of the same page.
func WithTranscript(turns []domain.ChatMessage) Option {
	return func(s *Session) {
		s.transcript = append([]domain.ChatMessage(nil), turns...)
	}
}

func WithLoadingText(text string) Option {
	return func(s *Session) {
		s.loadingText = text
	}
}

func WithErrorPrefix(prefix string) Option {
	return func(s *Session) {
		s.errorPrefix = prefix
	}
}

func NewSession(systemPrompt string, c Completer, surface Surface, opts ...Option) (*Session, error) {
	if c == nil {
		return nil, errors.New("widget: completer must not be nil")
	}
	if surface == nil {
		return nil, errors.New("widget: surface must not be nil")
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, errors.New("widget: system prompt must not be empty")
	}
	s := &Session{
		systemPrompt: systemPrompt,
		completer:    c,
		surface:      surface,
		loadingText:  DefaultLoadingText,
		errorPrefix:  DefaultErrorPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Greet renders the greeting. The greeting is never part of the transcript.
func (s *Session) Greet(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.surface.Append(Greeting(text))
}

// Submit runs one request/response turn for the raw input text.
func (s *Session) Submit(ctx context.Context, raw string) (Outcome, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Outcome{Status: StatusIgnored}, nil
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return Outcome{}, ErrTurnInFlight
	}
	s.inFlight = true
	s.transcript = append(s.transcript, domain.ChatMessage{Role: domain.RoleUser, Content: text})
	payload := BuildPayload(s.systemPrompt, s.transcript)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
		s.surface.ClearInput()
	}()

	s.surface.Append(newNode(domain.RoleUser, KindMessage, text))
	loading := s.surface.Append(newNode(domain.RoleAssistant, KindLoading, s.loadingText))

	reply, err := s.completer.Complete(ctx, payload)
	s.surface.Remove(loading)
	if err != nil {
		observability.FromContext(ctx).Error("completion proxy request failed", "err", err)
		s.surface.Append(newNode(domain.RoleAssistant, KindError, s.errorPrefix+err.Error()))
		return Outcome{Status: StatusFailed, Err: err}, nil
	}
	if reply == "" {
		reply = FallbackReply
	}

	s.mu.Lock()
	s.transcript = append(s.transcript, domain.ChatMessage{Role: domain.RoleAssistant, Content: reply})
	s.mu.Unlock()
	s.surface.Append(newNode(domain.RoleAssistant, KindMessage, reply))

	return Outcome{Status: StatusAnswered, Reply: reply}, nil
}

// Transcript returns a copy of the turns recorded so far.
func (s *Session) Transcript() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatMessage(nil), s.transcript...)
}

// BuildPayload returns the outbound turn list: the system turn followed by the
// transcript. The transcript slice is never modified.
func BuildPayload(systemPrompt string, transcript []domain.ChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(transcript)+1)
	out = append(out, domain.ChatMessage{Role: domain.RoleSystem, Content: systemPrompt})
	return append(out, transcript...)
}
