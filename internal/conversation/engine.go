// Package conversation drives the rewrite wizard: it looks up the chat's
// session, runs the transition table and performs the resulting effects.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"speaksmart/internal/gemini"
	"speaksmart/internal/prompt"
	"speaksmart/internal/session"
)

// ErrMissingField is returned when a rewrite needs a session field that is not set.
var ErrMissingField = errors.New("session field missing")

var errEmptyRewrite = errors.New("rewrite returned empty text")

// Rewriter is satisfied by *gemini.Client.
type Rewriter interface {
	Rewrite(ctx context.Context, prompt string) (string, error)
}

type Engine struct {
	store      session.Store
	rewriter   Rewriter
	logger     *slog.Logger
	beforeCall func(ctx context.Context, chatID int64)
	healthPort int
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTypingHook registers fn to run right before each rewrite call, e.g. to
// show a typing indicator.
func WithTypingHook(fn func(ctx context.Context, chatID int64)) Option {
	return func(e *Engine) { e.beforeCall = fn }
}

func WithHealthPort(port int) Option {
	return func(e *Engine) { e.healthPort = port }
}

func NewEngine(store session.Store, rewriter Rewriter, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		rewriter: rewriter,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle processes one event for chatID and returns the single reply to send.
// Callers serialize events per chat.
func (e *Engine) Handle(ctx context.Context, chatID int64, ev Event) Reply {
	logger := e.logger.With("chat_id", chatID, "event", ev.Kind.String())

	current, ok, err := e.store.Get(ctx, chatID)
	if err != nil {
		logger.Error("session_load_failed", "error", err.Error())
		return Reply{Text: textInternal, End: true}
	}
	if !ok {
		current = session.Session{State: session.Idle}
	}

	step := Transition(current.State, ev)
	logger.Debug("transition", "from", current.State.String(), "to", step.Next.String())

	next := current
	var out Reply
	for _, eff := range step.Effects {
		switch eff.Action {
		case ActionReset:
			next = session.Session{}
		case ActionSetSource:
			next.SourceText = strings.TrimSpace(ev.Text)
		case ActionSetStyle:
			next.Style = ev.Style
			next.Addressee = ""
		case ActionSetAddressee:
			next.Style = prompt.StyleAuto
			next.Addressee = strings.TrimSpace(ev.Text)
		case ActionReply:
			out = e.noticeReply(eff.Notice)
		case ActionAbort:
			logger.Warn("session_missing_field", "state", current.State.String())
			return e.abort(ctx, logger, chatID)
		case ActionRewrite:
			text, err := e.rewrite(ctx, logger, chatID, next, eff.Mode, ev)
			if errors.Is(err, ErrMissingField) {
				logger.Warn("session_missing_field", "state", current.State.String(), "error", err.Error())
				return e.abort(ctx, logger, chatID)
			}
			if err == nil && strings.TrimSpace(text) == "" {
				err = errEmptyRewrite
			}
			if err != nil {
				return e.rewriteFailed(ctx, logger, chatID, current, err)
			}
			next.LastResponse = text
			out = Reply{Text: text, Menu: MenuPostActions}
		}
	}

	next.State = step.Next
	if err := e.persist(ctx, chatID, next); err != nil {
		logger.Error("session_save_failed", "error", err.Error())
	}
	if out.Text == "" {
		out = e.noticeReply(NoticeUnknown)
	}
	return out
}

func (e *Engine) rewrite(ctx context.Context, logger *slog.Logger, chatID int64, s session.Session, mode Mode, ev Event) (string, error) {
	p, err := buildPrompt(s, mode, ev)
	if err != nil {
		return "", err
	}
	if e.beforeCall != nil {
		e.beforeCall(ctx, chatID)
	}
	logger.Info("rewrite_requested", "mode", mode.String(), "style", string(s.Style))
	return e.rewriter.Rewrite(ctx, p)
}

func buildPrompt(s session.Session, mode Mode, ev Event) (string, error) {
	switch mode {
	case ModeStyle:
		if s.SourceText == "" || !s.Style.Fixed() {
			return "", fmt.Errorf("%w: source text or style", ErrMissingField)
		}
		return prompt.BuildStyle(s.SourceText, s.Style)
	case ModeAuto:
		if s.SourceText == "" || s.Addressee == "" {
			return "", fmt.Errorf("%w: source text or addressee", ErrMissingField)
		}
		return prompt.BuildAutoStyle(s.SourceText, s.Addressee)
	case ModeAdjust:
		if s.LastResponse == "" {
			return "", fmt.Errorf("%w: last response", ErrMissingField)
		}
		return prompt.BuildAdjust(s.LastResponse, ev.Adjustment, s.Style)
	case ModeRegenerate:
		if s.SourceText == "" || s.Style == "" || (s.Style == prompt.StyleAuto && s.Addressee == "") {
			return "", fmt.Errorf("%w: source text or style", ErrMissingField)
		}
		return prompt.BuildRegenerate(s.SourceText, s.Style, s.Addressee)
	default:
		return "", fmt.Errorf("unknown rewrite mode %d", mode)
	}
}

// rewriteFailed reports a failed call. A safety block leaves the session as it
// was before the event so the user can pick another action; anything else ends
// the conversation.
func (e *Engine) rewriteFailed(ctx context.Context, logger *slog.Logger, chatID int64, before session.Session, err error) Reply {
	// Shutdown cancelled the call; the chat keeps its session for the next run.
	if ctx.Err() != nil {
		logger.Info("rewrite_interrupted", "error", err.Error())
		return Reply{Text: textInterrupted}
	}

	kind := gemini.KindOf(err)
	logger.Warn("rewrite_failed", "kind", kind.String(), "error", err.Error())
	msg := gemini.UserMessage(err)

	if kind == gemini.KindBlocked {
		switch before.State {
		case session.AwaitingPostAction:
			return Reply{Text: msg, Menu: MenuPostActions}
		case session.AwaitingStyle:
			return Reply{Text: msg, Menu: MenuStyles}
		}
	}

	if derr := e.store.Delete(ctx, chatID); derr != nil {
		logger.Error("session_delete_failed", "error", derr.Error())
	}
	return Reply{Text: msg, End: true}
}

func (e *Engine) abort(ctx context.Context, logger *slog.Logger, chatID int64) Reply {
	if err := e.store.Delete(ctx, chatID); err != nil {
		logger.Error("session_delete_failed", "error", err.Error())
	}
	return e.noticeReply(NoticeRestart)
}

// persist drops sessions that carry nothing, so idle chats take no space.
func (e *Engine) persist(ctx context.Context, chatID int64, s session.Session) error {
	if s.State == session.Idle && s.SourceText == "" && s.LastResponse == "" {
		return e.store.Delete(ctx, chatID)
	}
	return e.store.Put(ctx, chatID, s)
}
