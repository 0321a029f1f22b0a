package core

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/linesmerrill/counsel-relay-api/conversation"
	"github.com/linesmerrill/counsel-relay-api/models"
)

func (c *Core) handleCounselor(ctx context.Context, ev models.Event, counselor *models.Counselor) error {
	lang := c.language(ctx, counselor.ID)

	switch ev.Kind {
	case models.EventCommand:
		switch ev.Command {
		case "reply":
			id, ok := sessionArg(ev.Args)
			if !ok {
				c.notify(ctx, counselor.ID, models.TextMessage(c.taxonomy.Text("counselor_usage_reply", lang)))
				return nil
			}
			return c.selectReply(ctx, counselor, id, lang)
		case "finish":
			id, ok := sessionArg(ev.Args)
			if !ok {
				c.notify(ctx, counselor.ID, models.TextMessage(c.taxonomy.Text("counselor_usage_finish", lang)))
				return nil
			}
			return c.finishByCounselor(ctx, counselor, id, lang)
		case "end":
			if counselor.ReplyTarget == 0 {
				c.notify(ctx, counselor.ID, models.TextMessage(c.taxonomy.Text("counselor_usage_finish", lang)))
				return nil
			}
			return c.finishByCounselor(ctx, counselor, counselor.ReplyTarget, lang)
		case "cancel":
			if err := c.directory.SetReplyTarget(ctx, counselor.ID, 0); err != nil {
				c.fail(ctx, counselor.ID, lang, err)
				return err
			}
			c.notify(ctx, counselor.ID, models.TextMessage(c.taxonomy.Text("cancelled", lang)))
			return nil
		}
		return c.counselorPanel(ctx, counselor, lang)

	case models.EventButton:
		switch {
		case strings.HasPrefix(ev.Button, PayloadReplyPrefix):
			if id, err := strconv.ParseInt(strings.TrimPrefix(ev.Button, PayloadReplyPrefix), 10, 64); err == nil {
				return c.selectReply(ctx, counselor, id, lang)
			}
		case strings.HasPrefix(ev.Button, PayloadFinishPrefix):
			if id, err := strconv.ParseInt(strings.TrimPrefix(ev.Button, PayloadFinishPrefix), 10, 64); err == nil {
				return c.finishByCounselor(ctx, counselor, id, lang)
			}
		}
		return c.counselorPanel(ctx, counselor, lang)

	case models.EventText, models.EventMedia:
		return c.counselorReply(ctx, ev, counselor, lang)
	}
	return nil
}

func sessionArg(args []string) (int64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// counselorPanel lists the counselor's active sessions
func (c *Core) counselorPanel(ctx context.Context, counselor *models.Counselor, lang string) error {
	active, err := c.sessions.GetActiveForCounselor(ctx, counselor.ID)
	if err != nil {
		c.fail(ctx, counselor.ID, lang, err)
		return err
	}
	if len(active) == 0 {
		c.notify(ctx, counselor.ID, models.TextMessage(c.taxonomy.Text("counselor_panel_empty", lang)))
		return nil
	}

	var b strings.Builder
	b.WriteString(c.taxonomy.Text("counselor_panel_header", lang))
	var buttons []models.Button
	for _, s := range active {
		b.WriteString("\n\n")
		b.WriteString(c.taxonomy.Text("counselor_panel_line", lang,
			"handle", c.handleOf(ctx, s.UserID),
			"category", c.taxonomy.Label(s.Category, lang),
			"session", strconv.FormatInt(s.ID, 10)))
		buttons = append(buttons, sessionButtons(s.ID)...)
	}
	b.WriteString("\n\n")
	b.WriteString(c.taxonomy.Text("counselor_panel_footer", lang))
	c.notify(ctx, counselor.ID, models.TextMessage(b.String(), buttons...))
	return nil
}

// ownedSession loads a session the counselor is assigned to
func (c *Core) ownedSession(ctx context.Context, counselor *models.Counselor, id int64, lang string) (*models.ChatSession, error) {
	s, err := c.sessions.Get(ctx, id)
	if err == nil && s.CounselorID != counselor.ID {
		err = models.ErrNotFound
	}
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.notify(ctx, counselor.ID, models.TextMessage(c.taxonomy.Text("counselor_invalid_session", lang)))
		return nil, err
	case err != nil:
		c.fail(ctx, counselor.ID, lang, err)
		return nil, err
	}
	return s, nil
}

func (c *Core) selectReply(ctx context.Context, counselor *models.Counselor, id int64, lang string) error {
	s, err := c.ownedSession(ctx, counselor, id, lang)
	if err != nil {
		return err
	}
	if !s.IsActive() {
		c.notify(ctx, counselor.ID, models.TextMessage(c.taxonomy.Text("counselor_session_not_active", lang)))
		return models.ErrSessionNotActive
	}
	if err := c.directory.SetReplyTarget(ctx, counselor.ID, s.ID); err != nil {
		c.fail(ctx, counselor.ID, lang, err)
		return err
	}
	c.notify(ctx, counselor.ID, models.TextMessage(c.taxonomy.Text("counselor_replying", lang, "handle", c.handleOf(ctx, s.UserID))))
	return nil
}

func (c *Core) finishByCounselor(ctx context.Context, counselor *models.Counselor, id int64, lang string) error {
	s, err := c.ownedSession(ctx, counselor, id, lang)
	if err != nil {
		return err
	}
	if _, err := c.endSession(ctx, *s, conversation.ByCounselor); err != nil {
		if errors.Is(err, models.ErrAlreadyFinished) {
			c.notify(ctx, counselor.ID, models.TextMessage(c.taxonomy.Text("counselor_session_not_active", lang)))
			return err
		}
		c.fail(ctx, counselor.ID, lang, err)
		return err
	}
	return nil
}

// counselorReply relays content to the user of the counselor's reply target
func (c *Core) counselorReply(ctx context.Context, ev models.Event, counselor *models.Counselor, lang string) error {
	if counselor.ReplyTarget == 0 {
		c.notify(ctx, counselor.ID, models.TextMessage(c.taxonomy.Text("counselor_no_target", lang)))
		return nil
	}
	content, ok := ev.Content()
	if !ok {
		return nil
	}
	s, err := c.ownedSession(ctx, counselor, counselor.ReplyTarget, lang)
	if err != nil {
		return err
	}
	handle := c.handleOf(ctx, s.UserID)

	_, err = c.relay.Forward(ctx, *s, counselor.ID, handle, content)
	switch {
	case err == nil:
		c.notify(ctx, counselor.ID, models.TextMessage(c.taxonomy.Text("counselor_sent", lang, "handle", handle)))
		return nil
	case errors.Is(err, models.ErrDeliveryFailed):
		c.notify(ctx, counselor.ID, models.TextMessage(c.taxonomy.Text("counselor_delivery_failed", lang, "handle", handle)))
		return err
	case errors.Is(err, models.ErrSessionNotActive):
		_ = c.directory.SetReplyTarget(ctx, counselor.ID, 0)
		c.notify(ctx, counselor.ID, models.TextMessage(c.taxonomy.Text("counselor_session_not_active", lang)))
		return err
	}
	c.fail(ctx, counselor.ID, lang, err)
	return err
}
