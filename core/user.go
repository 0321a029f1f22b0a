package core

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/linesmerrill/counsel-relay-api/conversation"
	"github.com/linesmerrill/counsel-relay-api/models"
)

func (c *Core) handleUser(ctx context.Context, ev models.Event) error {
	ident, err := c.identities.Resolve(ctx, ev.PartyID)
	if err != nil {
		c.fail(ctx, ev.PartyID, c.taxonomy.DefaultLanguage(), err)
		return err
	}
	lang := c.languageOf(ident)

	if code, ok := languageRequest(ev); ok {
		return c.changeLanguage(ctx, ident, code)
	}

	active, err := c.activeSession(ctx, ev.PartyID)
	if err != nil {
		c.fail(ctx, ev.PartyID, lang, err)
		return err
	}
	state := conversation.Reconcile(ident.State, active != nil)

	trigger, category, ok := c.classify(ev, state, lang)
	if !ok {
		out := models.TextMessage(c.taxonomy.Text("invalid_selection", lang))
		if state != models.StateInChat {
			out.Buttons = c.categoryMenu(lang)
		}
		c.notify(ctx, ev.PartyID, out)
		c.saveState(ctx, ident, state)
		return nil
	}

	facts := conversation.Facts{HasActiveSession: active != nil}
	d := conversation.Transition(state, trigger, facts)

	var counselorID string
	if d.Has(conversation.EffectAssign) {
		counselorID, err = c.engine.Assign(ctx, category)
		switch {
		case errors.Is(err, models.ErrUnavailable):
			d = conversation.Transition(state, conversation.TriggerUnavailable, facts)
		case err != nil:
			c.fail(ctx, ev.PartyID, lang, err)
			return err
		default:
			d = conversation.Transition(state, conversation.TriggerAssigned, facts)
		}
	}

	if d.Err != nil {
		out := models.TextMessage(c.taxonomy.Text(errorKey(d.Err), lang))
		if d.Has(conversation.EffectShowMenu) {
			out.Buttons = c.categoryMenu(lang)
		}
		c.notify(ctx, ev.PartyID, out)
		c.saveState(ctx, ident, state)
		return d.Err
	}

	var reply *models.Outbound
	setReply := func(key string, pairs ...string) {
		out := models.TextMessage(c.taxonomy.Text(key, lang, pairs...))
		reply = &out
	}

	for _, effect := range d.Effects {
		switch effect {
		case conversation.EffectWelcome:
			setReply("welcome", "handle", ident.Handle)

		case conversation.EffectPromptStart:
			setReply("welcome_back")

		case conversation.EffectRemindInChat:
			setReply("still_in_chat")
			reply.Buttons = c.chatButtons(lang)

		case conversation.EffectShowMenu:
			if reply == nil {
				key := "choose_issue"
				if trigger == conversation.TriggerMessage {
					key = "invalid_selection"
				}
				setReply(key)
			}
			reply.Buttons = c.categoryMenu(lang)

		case conversation.EffectCreateSession:
			session, err := c.sessions.Create(ctx, ev.PartyID, counselorID, category)
			if err != nil {
				c.fail(ctx, ev.PartyID, lang, err)
				c.saveState(ctx, ident, state)
				return err
			}
			active = session
			zap.S().Infow("session created",
				"sessionId", session.ID,
				"handle", ident.Handle,
				"category", category,
				"policy", c.engine.Policy())

		case conversation.EffectNotifyConnected:
			setReply("connected", "category", c.taxonomy.Label(category, lang), "handle", ident.Handle)
			reply.Buttons = c.chatButtons(lang)
			counselorLang := c.language(ctx, counselorID)
			sid := strconv.FormatInt(active.ID, 10)
			notice := models.TextMessage(c.taxonomy.Text("counselor_new_session", counselorLang,
				"handle", ident.Handle,
				"category", c.taxonomy.Label(category, counselorLang),
				"session", sid), sessionButtons(active.ID)...)
			c.notify(ctx, counselorID, notice)

		case conversation.EffectRelay:
			content, _ := ev.Content()
			_, err := c.relay.Forward(ctx, *active, ev.PartyID, ident.Handle, content)
			if err != nil {
				c.fail(ctx, ev.PartyID, lang, err)
				return err
			}

		case conversation.EffectFinishSession:
			if err := c.finishSession(ctx, active); err != nil {
				if errors.Is(err, models.ErrAlreadyFinished) {
					// the counselor or an administrator got there first and
					// already told both sides
					c.saveState(ctx, ident, d.Next)
					return err
				}
				c.fail(ctx, ev.PartyID, lang, err)
				return err
			}

		case conversation.EffectNotifyEnded:
			userNotice, counselorNotice := c.endedNotices(ctx, *active, conversation.ByUser)
			reply = &userNotice
			c.notify(ctx, active.CounselorID, counselorNotice)
		}
	}

	if reply != nil {
		c.notify(ctx, ev.PartyID, *reply)
	}
	c.saveState(ctx, ident, d.Next)
	return nil
}

// classify turns an event into a state machine trigger. ok is false for a
// selection that names no configured category.
func (c *Core) classify(ev models.Event, state models.ConversationState, lang string) (trigger conversation.Trigger, category string, ok bool) {
	switch ev.Kind {
	case models.EventCommand:
		switch ev.Command {
		case "end":
			return conversation.TriggerEnd, "", true
		case "back":
			return conversation.TriggerBack, "", true
		}
		// start and anything unrecognised show where the user stands
		return conversation.TriggerStart, "", true

	case models.EventButton:
		switch {
		case ev.Button == PayloadEnd:
			return conversation.TriggerEnd, "", true
		case ev.Button == PayloadBack:
			return conversation.TriggerBack, "", true
		case strings.HasPrefix(ev.Button, PayloadCategoryPrefix):
			key := strings.TrimPrefix(ev.Button, PayloadCategoryPrefix)
			if !c.taxonomy.HasCategory(key) {
				return 0, "", false
			}
			return conversation.TriggerChooseCategory, key, true
		}
		return 0, "", false

	case models.EventText:
		text := strings.TrimSpace(ev.Text)
		if text == "" {
			return 0, "", false
		}
		if state == models.StateInChat {
			switch text {
			case c.taxonomy.Text("button_end", lang):
				return conversation.TriggerEnd, "", true
			case c.taxonomy.Text("button_back", lang):
				return conversation.TriggerBack, "", true
			}
			return conversation.TriggerMessage, "", true
		}
		// menus may be rendered as reply keyboards that send the label back
		for _, key := range c.taxonomy.CategoryKeys() {
			if text == key || text == c.taxonomy.Label(key, lang) {
				return conversation.TriggerChooseCategory, key, true
			}
		}
		return conversation.TriggerMessage, "", true

	case models.EventMedia:
		if _, ok := ev.Content(); !ok {
			return 0, "", false
		}
		return conversation.TriggerMessage, "", true
	}
	return 0, "", false
}

func languageRequest(ev models.Event) (string, bool) {
	switch ev.Kind {
	case models.EventCommand:
		if ev.Command != "language" {
			return "", false
		}
		if len(ev.Args) > 0 {
			return ev.Args[0], true
		}
		return "", true
	case models.EventButton:
		if ev.Button == PayloadLanguage {
			return "", true
		}
		if strings.HasPrefix(ev.Button, PayloadLangPrefix) {
			return strings.TrimPrefix(ev.Button, PayloadLangPrefix), true
		}
	}
	return "", false
}

func (c *Core) changeLanguage(ctx context.Context, ident *models.PartyIdentity, code string) error {
	if code == "" || !c.taxonomy.HasLanguage(code) {
		c.notify(ctx, ident.RealID, models.TextMessage(c.taxonomy.Text("choose_language", c.languageOf(ident)), c.languageMenu()...))
		return nil
	}
	if err := c.identities.SetLanguage(ctx, ident.RealID, code); err != nil {
		c.fail(ctx, ident.RealID, c.languageOf(ident), err)
		return err
	}
	out := models.TextMessage(c.taxonomy.Text("language_set", code))
	if ident.State == models.StateInChat {
		out.Buttons = c.chatButtons(code)
	} else if ident.State == models.StateSelectingCategory {
		out.Buttons = c.categoryMenu(code)
	}
	c.notify(ctx, ident.RealID, out)
	return nil
}

func (c *Core) activeSession(ctx context.Context, userID string) (*models.ChatSession, error) {
	s, err := c.sessions.GetActiveForUser(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return s, err
}

func (c *Core) saveState(ctx context.Context, ident *models.PartyIdentity, next models.ConversationState) {
	if ident.State == next {
		return
	}
	if err := c.identities.SetState(ctx, ident.RealID, next); err != nil {
		// the session store stays authoritative; Reconcile repairs this on
		// the next event
		zap.S().Warnw("failed to persist conversation state", "handle", ident.Handle, "error", err)
		return
	}
	ident.State = next
}
