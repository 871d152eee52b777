package conversation

import (
	"strings"

	"speaksmart/internal/prompt"
	"speaksmart/internal/session"
)

type EventKind int

const (
	EventStart EventKind = iota + 1
	EventNew
	EventCancel
	EventHelp
	EventStatus
	EventText
	EventStyle
	EventAdjust
	EventRegenerate
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventNew:
		return "new"
	case EventCancel:
		return "cancel"
	case EventHelp:
		return "help"
	case EventStatus:
		return "status"
	case EventText:
		return "text"
	case EventStyle:
		return "style"
	case EventAdjust:
		return "adjust"
	case EventRegenerate:
		return "regenerate"
	default:
		return "unknown"
	}
}

// Event is one inbound chat action, already decoded by the transport.
type Event struct {
	Kind       EventKind
	Text       string
	Style      prompt.Style
	Adjustment prompt.Adjustment
}

type Action int

const (
	// ActionReset clears every session field.
	ActionReset Action = iota + 1
	ActionSetSource
	ActionSetStyle
	// ActionSetAddressee stores the addressee and marks the style as auto.
	ActionSetAddressee
	ActionRewrite
	ActionReply
	// ActionAbort drops the session and tells the user to start over.
	ActionAbort
)

type Mode int

const (
	ModeStyle Mode = iota + 1
	ModeAuto
	ModeAdjust
	ModeRegenerate
)

func (m Mode) String() string {
	switch m {
	case ModeStyle:
		return "style"
	case ModeAuto:
		return "auto"
	case ModeAdjust:
		return "adjust"
	case ModeRegenerate:
		return "regenerate"
	default:
		return "unknown"
	}
}

type Effect struct {
	Action Action
	Mode   Mode
	Notice Notice
}

type Step struct {
	Next    session.State
	Effects []Effect
}

func reply(n Notice) Effect { return Effect{Action: ActionReply, Notice: n} }
func rewrite(m Mode) Effect { return Effect{Action: ActionRewrite, Mode: m} }
func do(a Action) Effect { return Effect{Action: a} }
func stay(s session.State, n Notice) Step {
	return Step{Next: s, Effects: []Effect{reply(n)}}
}

// Transition is the whole state table. It performs no I/O; the engine runs
// the returned effects in order and then moves to Next, unless a rewrite
// fails.
func Transition(state session.State, ev Event) Step {
	switch ev.Kind {
	case EventCancel:
		return Step{Next: session.Idle, Effects: []Effect{do(ActionReset), reply(NoticeCancelled)}}
	case EventStart:
		return Step{Next: session.AwaitingText, Effects: []Effect{do(ActionReset), reply(NoticeGreeting)}}
	case EventNew:
		return Step{Next: session.AwaitingText, Effects: []Effect{do(ActionReset), reply(NoticeAskText)}}
	case EventHelp:
		return stay(state, NoticeHelp)
	case EventStatus:
		return stay(state, NoticeStatus)
	}

	switch state {
	case session.Idle:
		switch ev.Kind {
		case EventText:
			return takeSource(state, ev)
		case EventStyle, EventAdjust, EventRegenerate:
			return Step{Next: session.Idle, Effects: []Effect{do(ActionAbort)}}
		}

	case session.AwaitingText:
		if ev.Kind == EventText {
			return takeSource(state, ev)
		}
		return stay(state, NoticeAskText)

	case session.AwaitingStyle:
		switch ev.Kind {
		case EventStyle:
			if ev.Style == prompt.StyleAuto {
				return stay(session.AwaitingAddressee, NoticeAskAddressee)
			}
			if !ev.Style.Fixed() {
				return stay(state, NoticeChooseStyle)
			}
			return Step{Next: session.AwaitingPostAction, Effects: []Effect{do(ActionSetStyle), rewrite(ModeStyle)}}
		case EventText:
			return stay(state, NoticeChooseStyle)
		}
		return stay(state, NoticeStaleMenu)

	case session.AwaitingAddressee:
		if ev.Kind == EventText {
			if strings.TrimSpace(ev.Text) == "" {
				return stay(state, NoticeEmptyAddressee)
			}
			return Step{Next: session.AwaitingPostAction, Effects: []Effect{do(ActionSetAddressee), rewrite(ModeAuto)}}
		}
		return stay(state, NoticeAskAddressee)

	case session.AwaitingPostAction:
		switch ev.Kind {
		case EventAdjust:
			if !ev.Adjustment.Valid() {
				return stay(state, NoticeUsePostMenu)
			}
			return Step{Next: state, Effects: []Effect{rewrite(ModeAdjust)}}
		case EventRegenerate:
			return Step{Next: state, Effects: []Effect{rewrite(ModeRegenerate)}}
		case EventText:
			return stay(state, NoticeUsePostMenu)
		}
		return stay(state, NoticeStaleMenu)
	}

	return stay(state, NoticeUnknown)
}

func takeSource(state session.State, ev Event) Step {
	if strings.TrimSpace(ev.Text) == "" {
		return stay(state, NoticeEmptyText)
	}
	return Step{
		Next:    session.AwaitingStyle,
		Effects: []Effect{do(ActionReset), do(ActionSetSource), reply(NoticeChooseStyle)},
	}
}
