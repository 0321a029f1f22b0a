package core

import (
	"context"
	"strconv"

	"github.com/linesmerrill/counsel-relay-api/models"
	"github.com/linesmerrill/counsel-relay-api/relay"
)

// Button payloads understood by Dispatch
const (
	PayloadEnd            = "end"
	PayloadBack           = "back"
	PayloadLanguage       = "language"
	PayloadCategoryPrefix = "category:"
	PayloadLangPrefix     = "lang:"
	PayloadReplyPrefix    = "reply:"
	PayloadFinishPrefix   = "finish:"
)

func (c *Core) languageOf(identity *models.PartyIdentity) string {
	if identity != nil && identity.Language != "" && c.taxonomy.HasLanguage(identity.Language) {
		return identity.Language
	}
	return c.taxonomy.DefaultLanguage()
}

// language returns the locale of any party; counselors and parties never
// seen before get the default
func (c *Core) language(ctx context.Context, partyID string) string {
	identity, err := c.identities.Get(ctx, partyID)
	if err != nil {
		return c.taxonomy.DefaultLanguage()
	}
	return c.languageOf(identity)
}

func (c *Core) text(ctx context.Context, partyID, key string, pairs ...string) string {
	return c.taxonomy.Text(key, c.language(ctx, partyID), pairs...)
}

// handleOf returns the anonymous handle of a user, or "" if unknown
func (c *Core) handleOf(ctx context.Context, userID string) string {
	identity, err := c.identities.Get(ctx, userID)
	if err != nil {
		return ""
	}
	return identity.Handle
}

func (c *Core) categoryMenu(lang string) []models.Button {
	keys := c.taxonomy.CategoryKeys()
	buttons := make([]models.Button, 0, len(keys)+1)
	for _, key := range keys {
		buttons = append(buttons, models.Button{Payload: PayloadCategoryPrefix + key, Label: c.taxonomy.Label(key, lang)})
	}
	return append(buttons, models.Button{Payload: PayloadLanguage, Label: c.taxonomy.Text("button_language", lang)})
}

func (c *Core) chatButtons(lang string) []models.Button {
	return []models.Button{
		{Payload: PayloadEnd, Label: c.taxonomy.Text("button_end", lang)},
		{Payload: PayloadBack, Label: c.taxonomy.Text("button_back", lang)},
	}
}

func (c *Core) languageMenu() []models.Button {
	buttons := make([]models.Button, 0, len(c.taxonomy.Languages))
	for _, l := range c.taxonomy.Languages {
		buttons = append(buttons, models.Button{Payload: PayloadLangPrefix + l.Code, Label: l.Name})
	}
	return buttons
}

func sessionButtons(id int64) []models.Button {
	sid := strconv.FormatInt(id, 10)
	return []models.Button{
		{Payload: PayloadReplyPrefix + sid, Label: "Reply #" + sid},
		{Payload: PayloadFinishPrefix + sid, Label: "Finish #" + sid},
	}
}

// Format renders relayed content for the recipient. Users only ever see the
// neutral counselor label; counselors see the user's handle.
func (c *Core) Format(ctx context.Context, recipientID string, from relay.Attribution, content models.Content) models.Outbound {
	lang := c.language(ctx, recipientID)
	label := from.Handle
	if from.Direction == relay.ToUser {
		label = c.taxonomy.Text("your_counselor", lang)
	}

	var text string
	switch content.Kind {
	case models.KindText:
		text = c.taxonomy.Text("relay_text", lang, "from", label, "text", content.Text)
	case models.KindPhoto, models.KindVoice, models.KindVideo, models.KindDocument:
		text = c.taxonomy.Text("relay_"+string(content.Kind), lang, "from", label)
		if content.Text != "" && content.Kind.AcceptsCaption() {
			text += "\n\n" + content.Text
		}
	}

	out := models.Outbound{Text: text, Kind: content.Kind, MediaRef: content.MediaRef}
	if from.Direction == relay.ToUser {
		out.Buttons = c.chatButtons(lang)
	}
	return out
}
