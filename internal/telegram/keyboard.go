package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"speaksmart/internal/conversation"
	"speaksmart/internal/prompt"
)

// Callback data is "<kind>:<value>".
const (
	callbackStyle  = "style"
	callbackAdjust = "adjust"
	callbackAction = "action"

	actionRegenerate = "regenerate"
	actionNew        = "new"
	actionCancel     = "cancel"
)

func callbackData(kind, value string) string { return kind + ":" + value }

func styleKeyboard() tgbotapi.InlineKeyboardMarkup {
	button := func(s prompt.Style) tgbotapi.InlineKeyboardButton {
		return tgbotapi.NewInlineKeyboardButtonData(s.Label(), callbackData(callbackStyle, string(s)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button(prompt.StyleBusiness), button(prompt.StyleAcademic)),
		tgbotapi.NewInlineKeyboardRow(button(prompt.StylePersonal), button(prompt.StyleSimplified)),
		tgbotapi.NewInlineKeyboardRow(button(prompt.StyleAuto)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Cancel", callbackData(callbackAction, actionCancel))),
	)
}

func postActionKeyboard() tgbotapi.InlineKeyboardMarkup {
	adjustRow := make([]tgbotapi.InlineKeyboardButton, 0, len(prompt.Adjustments))
	for _, a := range prompt.Adjustments {
		adjustRow = append(adjustRow, tgbotapi.NewInlineKeyboardButtonData(a.Label(), callbackData(callbackAdjust, string(a))))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		adjustRow,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Another version", callbackData(callbackAction, actionRegenerate)),
			tgbotapi.NewInlineKeyboardButtonData("New text", callbackData(callbackAction, actionNew)),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Done", callbackData(callbackAction, actionCancel))),
	)
}

func keyboardFor(m conversation.Menu) (tgbotapi.InlineKeyboardMarkup, bool) {
	switch m {
	case conversation.MenuStyles:
		return styleKeyboard(), true
	case conversation.MenuPostActions:
		return postActionKeyboard(), true
	default:
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
}

// parseCallback decodes a button press. Unknown payloads report false.
func parseCallback(data string) (conversation.Event, bool) {
	kind, value, ok := strings.Cut(strings.TrimSpace(data), ":")
	if !ok {
		return conversation.Event{}, false
	}
	switch kind {
	case callbackStyle:
		s, err := prompt.ParseStyle(value)
		if err != nil {
			return conversation.Event{}, false
		}
		return conversation.Event{Kind: conversation.EventStyle, Style: s}, true
	case callbackAdjust:
		a, err := prompt.ParseAdjustment(value)
		if err != nil {
			return conversation.Event{}, false
		}
		return conversation.Event{Kind: conversation.EventAdjust, Adjustment: a}, true
	case callbackAction:
		switch value {
		case actionRegenerate:
			return conversation.Event{Kind: conversation.EventRegenerate}, true
		case actionNew:
			return conversation.Event{Kind: conversation.EventNew}, true
		case actionCancel:
			return conversation.Event{Kind: conversation.EventCancel}, true
		}
	}
	return conversation.Event{}, false
}

func commandEvent(command string) conversation.Event {
	switch strings.ToLower(command) {
	case "start":
		return conversation.Event{Kind: conversation.EventStart}
	case "new":
		return conversation.Event{Kind: conversation.EventNew}
	case "cancel", "stop":
		return conversation.Event{Kind: conversation.EventCancel}
	case "status":
		return conversation.Event{Kind: conversation.EventStatus}
	default:
		return conversation.Event{Kind: conversation.EventHelp}
	}
}
