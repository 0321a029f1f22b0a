package core

import (
	"context"
	"encoding/json"

	"github.com/linesmerrill/counsel-relay-api/models"
	"github.com/linesmerrill/counsel-relay-api/sessions"
)

// Export builds the transcript document of the most recently finished
// sessions. A limit of zero or less uses sessions.DefaultExportLimit.
func (c *Core) Export(ctx context.Context, limit int) (*models.SessionExport, error) {
	if limit <= 0 {
		limit = sessions.DefaultExportLimit
	}
	finished, err := c.sessions.ListFinished(ctx, limit)
	if err != nil {
		return nil, err
	}

	doc := &models.SessionExport{
		ExportDate: c.clock.Now().UTC(),
		Sessions:   make([]models.ExportedSession, 0, len(finished)),
	}
	for _, s := range finished {
		msgs, err := c.sessions.ListMessages(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		exported := models.ExportedSession{
			SessionID:       s.ID,
			UserAnonymousID: c.handleOf(ctx, s.UserID),
			UserID:          s.UserID,
			CounselorID:     s.CounselorID,
			Category:        s.Category,
			CreatedAt:       s.CreatedAt,
			FinishedAt:      s.FinishedAt,
			Messages:        make([]models.ExportedMessage, 0, len(msgs)),
		}
		for _, m := range msgs {
			exported.Messages = append(exported.Messages, models.ExportedMessage{
				SenderID: m.SenderID,
				Kind:     m.Kind,
				Content:  m.Text,
				MediaRef: m.MediaRef,
				SentAt:   m.SentAt,
			})
		}
		doc.Sessions = append(doc.Sessions, exported)
	}
	doc.TotalSessions = len(doc.Sessions)
	return doc, nil
}

// ExportJSON is Export encoded as indented JSON
func (c *Core) ExportJSON(ctx context.Context, limit int) ([]byte, error) {
	doc, err := c.Export(ctx, limit)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}
