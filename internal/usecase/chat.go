package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"chat-widget/internal/domain"
	"chat-widget/internal/observability"
	"chat-widget/internal/repository"
	"chat-widget/internal/widget"
)

const defaultMaxInput = 4000

type ParamGetter interface {
	GetOptional(ctx context.Context, name, def string) (string, error)
}

type TranscriptStore interface {
	Load(ctx context.Context, pageID string) (domain.PageSession, error)
	Save(ctx context.Context, ps domain.PageSession) error
}

// ChatService runs widget turns for stateless requests. Each request rebuilds
// the page's session from the store, submits, and writes the transcript back.
type ChatService struct {
	params      ParamGetter
	completer   widget.Completer
	store       TranscriptStore
	paramPrefix string
	maxInputLen int
	defaults    Prompts

	cacheMu     sync.RWMutex
	cacheLoaded bool
	prompts     Prompts
}

type OpenOutput struct {
	PageID   string
	Greeting []widget.Node
}

type SubmitInput struct {
	PageID string
	Text   string
}

type SubmitOutput struct {
	PageID       string
	Status       widget.Status
	Nodes        []widget.Node
	InputCleared bool
}

// NewChatService builds the service. p may be nil when paramPrefix is empty,
// in which case the built-in prompts are used.
func NewChatService(p ParamGetter, c widget.Completer, s TranscriptStore, paramPrefix string, maxInputLen int) (*ChatService, error) {
	if c == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: transcript store must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if p != nil && paramPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty when a param getter is set")
	}
	if maxInputLen <= 0 {
		maxInputLen = defaultMaxInput
	}
	return &ChatService{
		params:      p,
		completer:   c,
		store:       s,
		paramPrefix: paramPrefix,
		maxInputLen: maxInputLen,
		defaults:    DefaultPrompts(),
	}, nil
}

// Open mints a page id and renders the greeting for a freshly loaded page.
func (s *ChatService) Open(ctx context.Context) (OpenOutput, error) {
	prompts, err := s.ensureConfig(ctx)
	if err != nil {
		return OpenOutput{}, newError(ErrorInternal, "ssm_load_error", err)
	}
	rec := widget.NewRecorder()
	sess, err := widget.NewSession(prompts.System, s.completer, rec)
	if err != nil {
		return OpenOutput{}, newError(ErrorInternal, "session_init_error", err)
	}
	sess.Greet(prompts.Greeting)
	return OpenOutput{PageID: newUUID(), Greeting: rec.Nodes()}, nil
}

func (s *ChatService) Submit(ctx context.Context, in SubmitInput) (SubmitOutput, error) {
	pageID := strings.TrimSpace(in.PageID)
	if pageID == "" {
		pageID = newUUID()
	} else if _, err := uuid.Parse(pageID); err != nil {
		return SubmitOutput{}, newError(ErrorInvalidInput, "invalid_page_id", err)
	}

	if strings.TrimSpace(in.Text) == "" {
		return SubmitOutput{PageID: pageID, Status: widget.StatusIgnored}, nil
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.Text)) > s.maxInputLen {
		return SubmitOutput{}, newError(ErrorInvalidInput, "input_too_long", nil)
	}

	prompts, err := s.ensureConfig(ctx)
	if err != nil {
		return SubmitOutput{}, newError(ErrorInternal, "ssm_load_error", err)
	}

	ps, err := s.store.Load(ctx, pageID)
	if err != nil {
		return SubmitOutput{}, newError(ErrorInternal, "state_load_error", err)
	}

	rec := widget.NewRecorder()
	sess, err := widget.NewSession(prompts.System, s.completer, rec, widget.WithTranscript(ps.Turns))
	if err != nil {
		return SubmitOutput{}, newError(ErrorInternal, "session_init_error", err)
	}

	outcome, err := sess.Submit(ctx, in.Text)
	if err != nil {
		return SubmitOutput{}, newError(ErrorTurnInFlight, "turn_in_flight", err)
	}

	ps.ID = pageID
	ps.Turns = sess.Transcript()
	if err := s.store.Save(ctx, ps); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return SubmitOutput{}, newError(ErrorTurnInFlight, "turn_in_flight", err)
		}
		return SubmitOutput{}, newError(ErrorInternal, "state_write_error", err)
	}

	observability.FromContext(ctx).Info("turn completed",
		"page_id", pageID,
		"status", outcome.Status,
		"turns", len(ps.Turns),
	)

	return SubmitOutput{
		PageID:       pageID,
		Status:       outcome.Status,
		Nodes:        rec.Nodes(),
		InputCleared: rec.InputCleared(),
	}, nil
}

func (s *ChatService) ensureConfig(ctx context.Context) (Prompts, error) {
	if s.params == nil {
		return s.defaults, nil
	}

	s.cacheMu.RLock()
	if s.cacheLoaded {
		p := s.prompts
		s.cacheMu.RUnlock()
		return p, nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return s.prompts, nil
	}

	prompts, err := s.loadSSMParams(ctx)
	if err != nil {
		return Prompts{}, err
	}
	s.prompts = prompts
	s.cacheLoaded = true
	return prompts, nil
}

func (s *ChatService) loadSSMParams(ctx context.Context) (Prompts, error) {
	system, err := s.params.GetOptional(ctx, s.paramPrefix+"/system_prompt", s.defaults.System)
	if err != nil {
		return Prompts{}, fmt.Errorf("usecase: load system prompt: %w", err)
	}
	greeting, err := s.params.GetOptional(ctx, s.paramPrefix+"/greeting", s.defaults.Greeting)
	if err != nil {
		return Prompts{}, fmt.Errorf("usecase: load greeting: %w", err)
	}
	return Prompts{System: system, Greeting: greeting}, nil
}

var newUUID = func() string {
	return uuid.NewString()
}
