// Package telegram connects the conversation engine to the Bot API: it polls
// updates, hands them to one worker per chat and renders replies with inline
// menus.
package telegram

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"speaksmart/internal/conversation"
	"speaksmart/internal/worker"
)

// BotAPI is the subset of *tgbotapi.BotAPI the runtime uses.
type BotAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Handler interface {
	Handle(ctx context.Context, chatID int64, ev conversation.Event) conversation.Reply
}

type Options struct {
	PollTimeout   int
	MaxConcurrent int
	// QueueSize bounds the events waiting per chat; more are answered with a
	// busy notice.
	QueueSize int
	// IdleTimeout retires a chat's worker after that long without events.
	IdleTimeout time.Duration
	Logger      *slog.Logger
}

type Runtime struct {
	api           BotAPI
	logger        *slog.Logger
	pollTimeout   int
	maxConcurrent int
	queueSize     int
	idleTimeout   time.Duration
}

const textBusy = "I am still working on your previous messages. Please wait a moment and try again."

type job struct {
	event      conversation.Event
	callbackID string
	// messageID is the message carrying the pressed button.
	messageID int
}

func New(api BotAPI, opts Options) *Runtime {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 16
	}
	return &Runtime{
		api:           api,
		logger:        opts.Logger,
		pollTimeout:   opts.PollTimeout,
		maxConcurrent: opts.MaxConcurrent,
		queueSize:     opts.QueueSize,
		idleTimeout:   opts.IdleTimeout,
	}
}

// Run polls until ctx is done or the update channel closes.
func (r *Runtime) Run(ctx context.Context, h Handler) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = r.pollTimeout
	updateConfig.AllowedUpdates = []string{"message", "callback_query"}

	pool := worker.NewPool(ctx, worker.PoolOptions{
		MaxConcurrent: r.maxConcurrent,
		Buffer:        r.queueSize,
		IdleTimeout:   r.idleTimeout,
	}, func(ctx context.Context, chatID int64, j job) {
		r.process(ctx, h, chatID, j)
	})

	updates := r.api.GetUpdatesChan(updateConfig)
	r.logger.Info("telegram_polling_started", "timeout", r.pollTimeout)
	for {
		select {
		case <-ctx.Done():
			r.api.StopReceivingUpdates()
			r.logger.Info("telegram_polling_stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			chatID, j, ok := r.decode(update)
			if !ok {
				continue
			}
			if err := pool.Submit(chatID, j); err != nil {
				r.logger.Warn("telegram_enqueue_failed", "chat_id", chatID, "event", j.event.Kind.String(), "error", err.Error())
				if errors.Is(err, worker.ErrQueueFull) {
					go r.busy(chatID, j)
				}
			}
		}
	}
}

func (r *Runtime) decode(update tgbotapi.Update) (int64, job, bool) {
	if cq := update.CallbackQuery; cq != nil {
		if cq.Message == nil || cq.Message.Chat == nil {
			r.answer(cq.ID)
			return 0, job{}, false
		}
		ev, ok := parseCallback(cq.Data)
		if !ok {
			r.logger.Warn("telegram_unknown_callback", "chat_id", cq.Message.Chat.ID, "data", cq.Data)
			r.answer(cq.ID)
			return 0, job{}, false
		}
		return cq.Message.Chat.ID, job{event: ev, callbackID: cq.ID, messageID: cq.Message.MessageID}, true
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return 0, job{}, false
	}
	if msg.IsCommand() {
		return msg.Chat.ID, job{event: commandEvent(msg.Command())}, true
	}
	return msg.Chat.ID, job{event: conversation.Event{Kind: conversation.EventText, Text: msg.Text}}, true
}

func (r *Runtime) process(ctx context.Context, h Handler, chatID int64, j job) {
	if j.callbackID != "" {
		r.answer(j.callbackID)
	}
	reply := h.Handle(ctx, chatID, j.event)
	if reply.Text == "" {
		return
	}

	// A finished conversation leaves no live buttons behind.
	if reply.End && j.messageID != 0 {
		r.clearMenu(chatID, j.messageID)
	}

	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if kb, ok := keyboardFor(reply.Menu); ok && !reply.End {
		msg.ReplyMarkup = kb
	}
	if _, err := r.api.Send(msg); err != nil {
		r.logger.Error("telegram_send_failed", "chat_id", chatID, "error", err.Error())
	}
}

func (r *Runtime) busy(chatID int64, j job) {
	if j.callbackID != "" {
		if _, err := r.api.Request(tgbotapi.NewCallback(j.callbackID, textBusy)); err != nil {
			r.logger.Debug("telegram_callback_answer_failed", "error", err.Error())
		}
		return
	}
	if _, err := r.api.Send(tgbotapi.NewMessage(chatID, textBusy)); err != nil {
		r.logger.Error("telegram_send_failed", "chat_id", chatID, "error", err.Error())
	}
}

func (r *Runtime) clearMenu(chatID int64, messageID int) {
	empty := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	if _, err := r.api.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, empty)); err != nil {
		r.logger.Debug("telegram_clear_menu_failed", "chat_id", chatID, "error", err.Error())
	}
}

// Typing shows the typing indicator in chatID. It matches the engine's typing hook.
func (r *Runtime) Typing(_ context.Context, chatID int64) {
	if _, err := r.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		r.logger.Debug("telegram_typing_failed", "chat_id", chatID, "error", err.Error())
	}
}

func (r *Runtime) answer(callbackID string) {
	if _, err := r.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		r.logger.Debug("telegram_callback_answer_failed", "error", err.Error())
	}
}
