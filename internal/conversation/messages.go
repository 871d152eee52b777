package conversation

import "fmt"

type Notice int

const (
	NoticeGreeting Notice = iota + 1
	NoticeAskText
	NoticeEmptyText
	NoticeChooseStyle
	NoticeAskAddressee
	NoticeEmptyAddressee
	NoticeUsePostMenu
	NoticeStaleMenu
	NoticeCancelled
	NoticeHelp
	NoticeStatus
	NoticeRestart
	NoticeUnknown
)

type Menu int

const (
	MenuNone Menu = iota
	MenuStyles
	MenuPostActions
)

// Reply is what the transport sends back for one event.
type Reply struct {
	Text string
	Menu Menu
	// End is set when this event terminated the conversation; the transport
	// then drops the menu the user pressed.
	End bool
}

const (
	textGreeting = "Hi! I rewrite your messages so they sound the way you need.\n\n" +
		"Send me the text you want to rewrite."
	textAskText        = "Send me the text you want to rewrite."
	textEmptyText      = "Please send a non-empty message."
	textChooseStyle    = "How should it sound? Choose a style:"
	textAskAddressee   = "Who is the message for? Describe the addressee in a few words (for example, \"my boss\" or \"a new client\")."
	textEmptyAddressee = "Please describe the addressee in a few words."
	textUsePostMenu    = "Use the buttons below to adjust the result, or send /new to rewrite another text."
	textStaleMenu      = "That button belongs to an older message. Please use the latest menu."
	textCancelled      = "Cancelled. Send /new whenever you want to rewrite something."
	textRestart        = "I lost track of our conversation. Please start again with /new."
	textUnknown        = "I did not understand that. Send /help to see what I can do."
	textInternal       = "Something went wrong on our side. Please start again with /new."
	textInterrupted    = "The bot is restarting. Please repeat your last action in a minute."
	textHelp           = "Send me any text and pick a style:\n" +
		"• Business, Academic, Personal or Simplified\n" +
		"• Auto: describe the addressee and I will pick the style\n\n" +
		"After the rewrite you can make it softer, firmer or more formal, or get a new version.\n\n" +
		"/new - rewrite a new text\n/cancel - stop the current rewrite\n/status - bot status"
)

func (e *Engine) noticeReply(n Notice) Reply {
	switch n {
	case NoticeGreeting:
		return Reply{Text: textGreeting}
	case NoticeAskText:
		return Reply{Text: textAskText}
	case NoticeEmptyText:
		return Reply{Text: textEmptyText}
	case NoticeChooseStyle:
		return Reply{Text: textChooseStyle, Menu: MenuStyles}
	case NoticeAskAddressee:
		return Reply{Text: textAskAddressee}
	case NoticeEmptyAddressee:
		return Reply{Text: textEmptyAddressee}
	case NoticeUsePostMenu:
		return Reply{Text: textUsePostMenu, Menu: MenuPostActions}
	case NoticeStaleMenu:
		return Reply{Text: textStaleMenu}
	case NoticeCancelled:
		return Reply{Text: textCancelled, End: true}
	case NoticeHelp:
		return Reply{Text: textHelp}
	case NoticeStatus:
		return Reply{Text: e.statusText()}
	case NoticeRestart:
		return Reply{Text: textRestart, End: true}
	default:
		return Reply{Text: textUnknown}
	}
}

func (e *Engine) statusText() string {
	if e.healthPort > 0 {
		return fmt.Sprintf("The bot is online and ready. Health check server is active (port %d).", e.healthPort)
	}
	return "The bot is online and ready."
}
