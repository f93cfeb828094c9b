package channel

import (
	"context"
	"net/url"

	"github.com/brandwacht/warnmelder/internal/domain"
	"github.com/brandwacht/warnmelder/internal/transport"
)

// Divera API limits for a news entry.
const (
	diveraMaxTitle = 120
	diveraMaxText  = 8000
)

// Divera posts notifications as news entries to a Divera 24/7 unit.
type Divera struct {
	transport *transport.Client
	baseURL   string
	accessKey string
	ric       string
	private   bool
}

// NewDivera creates the Divera channel. ric is the default routing target
// for every notification sent through this channel; private forces every
// news entry to members-only visibility regardless of the notification.
func NewDivera(t *transport.Client, accessKey, ric string, private bool) *Divera {
	return &Divera{
		transport: t,
		baseURL:   "https://app.divera247.com",
		accessKey: accessKey,
		ric:       ric,
		private:   private,
	}
}

func (d *Divera) Name() string { return "divera" }

// Send creates the news entry. Title and text are hard-clamped to the API
// limits; the access key travels as a query parameter and is redacted
// from any transport logging.
func (d *Divera) Send(ctx context.Context, n domain.Notification) error {
	payload := diveraNews{
		Title:   clampRunes(n.Title, diveraMaxTitle),
		Text:    clampRunes(n.Text, diveraMaxText),
		RIC:     d.ric,
		Private: n.Private || d.private,
		Group:   n.Groups,
	}
	query := url.Values{"accesskey": {d.accessKey}}
	return d.transport.PostJSON(ctx, d.baseURL+"/api/news", query, payload)
}

type diveraNews struct {
	Title   string   `json:"title"`
	Text    string   `json:"text"`
	RIC     string   `json:"ric,omitempty"`
	Private bool     `json:"private"`
	Group   []string `json:"group,omitempty"`
}
