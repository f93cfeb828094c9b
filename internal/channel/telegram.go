package channel

import (
	"context"
	"fmt"
	"strings"

	"github.com/brandwacht/warnmelder/internal/domain"
	"github.com/brandwacht/warnmelder/internal/transport"
)

// telegramMaxText is the Bot API limit for one message.
const telegramMaxText = 4096

// Telegram sends notifications as HTML messages via the Bot API.
type Telegram struct {
	transport *transport.Client
	baseURL   string
	token     string
	chatID    string
}

// NewTelegram creates the Telegram channel for one chat.
func NewTelegram(t *transport.Client, token, chatID string) *Telegram {
	return &Telegram{
		transport: t,
		baseURL:   "https://api.telegram.org",
		token:     token,
		chatID:    chatID,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// markupOverhead is the rune count of the fixed title markup, "<b></b>\n".
const markupOverhead = 8

// Send posts the message. Upstream-controlled text is HTML-escaped before
// it reaches the parse_mode=HTML body. Title and body are clamped before
// the markup is assembled, so truncation can neither split an entity nor
// drop the closing tag. The bot token is part of the URL path; transport
// logging strips it together with the rest of the URL internals on failure.
func (t *Telegram) Send(ctx context.Context, n domain.Notification) error {
	title := escapeClamped(n.Title, telegramMaxText-markupOverhead)
	body := escapeClamped(n.Text, telegramMaxText-markupOverhead-len([]rune(title)))
	payload := telegramMessage{
		ChatID:            t.chatID,
		Text:              fmt.Sprintf("<b>%s</b>\n%s", title, body),
		ParseMode:         "HTML",
		DisableWebPreview: true,
	}
	return t.transport.PostJSON(ctx, fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token), nil, payload)
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// escapeClamped escapes raw and clamps the result to at most max runes by
// trimming the raw text, never the escaped form, so the output always ends
// on an entity boundary. Escaping expands a rune to at most five.
func escapeClamped(raw string, max int) string {
	if max < 0 {
		max = 0
	}
	raw = clampRunes(raw, max)
	for {
		esc := escapeHTML(raw)
		over := len([]rune(esc)) - max
		if over <= 0 {
			return esc
		}
		runes := []rune(raw)
		raw = string(runes[:len(runes)-(over+4)/5])
	}
}

type telegramMessage struct {
	ChatID            string `json:"chat_id"`
	Text              string `json:"text"`
	ParseMode         string `json:"parse_mode"`
	DisableWebPreview bool   `json:"disable_web_page_preview"`
}
