package core

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/linesmerrill/counsel-relay-api/conversation"
	"github.com/linesmerrill/counsel-relay-api/models"
)

// finishSession finishes s and drops it as the counselor's reply target.
// Only the caller that wins the finish sees a nil error.
func (c *Core) finishSession(ctx context.Context, s *models.ChatSession) error {
	finished, err := c.sessions.Finish(ctx, s.ID)
	if err != nil {
		return err
	}
	*s = *finished

	counselor, err := c.directory.Get(ctx, s.CounselorID)
	if err == nil && counselor.ReplyTarget == s.ID {
		if err := c.directory.SetReplyTarget(ctx, s.CounselorID, 0); err != nil {
			zap.S().Warnw("failed to clear reply target", "sessionId", s.ID, "error", err)
		}
	}
	zap.S().Infow("session finished", "sessionId", s.ID, "category", s.Category)
	return nil
}

// endedNotices renders what each participant is told when s ends
func (c *Core) endedNotices(ctx context.Context, s models.ChatSession, by conversation.Party) (user, counselor models.Outbound) {
	userLang := c.language(ctx, s.UserID)
	counselorLang := c.language(ctx, s.CounselorID)
	pairs := []string{"session", strconv.FormatInt(s.ID, 10), "handle", c.handleOf(ctx, s.UserID)}

	switch by {
	case conversation.ByCounselor:
		user = models.TextMessage(c.taxonomy.Text("session_ended_by_counselor", userLang))
		counselor = models.TextMessage(c.taxonomy.Text("counselor_finished", counselorLang, pairs...))
	case conversation.ByAdmin:
		user = models.TextMessage(c.taxonomy.Text("session_ended_by_admin", userLang))
		counselor = models.TextMessage(c.taxonomy.Text("counselor_session_ended_by_admin", counselorLang, pairs...))
	default:
		user = models.TextMessage(c.taxonomy.Text("session_ended", userLang))
		counselor = models.TextMessage(c.taxonomy.Text("counselor_session_ended_by_user", counselorLang, pairs...))
	}
	return user, counselor
}

// endSession ends s on behalf of a counselor or an administrator and moves
// the user back to the menu. It returns models.ErrAlreadyFinished without
// notifying anyone when somebody else finished the session first.
func (c *Core) endSession(ctx context.Context, s models.ChatSession, by conversation.Party) (*models.ChatSession, error) {
	d := conversation.Transition(models.StateInChat, conversation.TriggerEnd, conversation.Facts{HasActiveSession: true, EndedBy: by})
	if d.Err != nil {
		return nil, d.Err
	}

	var userNotice, counselorNotice models.Outbound
	for _, effect := range d.Effects {
		switch effect {
		case conversation.EffectFinishSession:
			if err := c.finishSession(ctx, &s); err != nil {
				return nil, err
			}
		case conversation.EffectNotifyEnded:
			userNotice, counselorNotice = c.endedNotices(ctx, s, by)
		case conversation.EffectShowMenu:
			userNotice.Buttons = c.categoryMenu(c.language(ctx, s.UserID))
		}
	}

	if err := c.identities.SetState(ctx, s.UserID, d.Next); err != nil {
		zap.S().Warnw("failed to persist conversation state", "sessionId", s.ID, "error", err)
	}
	c.notify(ctx, s.UserID, userNotice)
	c.notify(ctx, s.CounselorID, counselorNotice)
	return &s, nil
}
