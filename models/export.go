package models

import "time"

// SessionExport is the export document handed to administrators
type SessionExport struct {
	ExportDate    time.Time         `json:"export_date"`
	TotalSessions int               `json:"total_sessions"`
	Sessions      []ExportedSession `json:"sessions"`
}

// ExportedSession is one finished session with its full transcript
type ExportedSession struct {
	SessionID       int64             `json:"session_id"`
	UserAnonymousID string            `json:"user_anonymous_id"`
	UserID          string            `json:"user_id"`
	CounselorID     string            `json:"counselor_id"`
	Category        string            `json:"category"`
	CreatedAt       time.Time         `json:"created_at"`
	FinishedAt      *time.Time        `json:"finished_at"`
	Messages        []ExportedMessage `json:"messages"`
}

// ExportedMessage is a transcript entry
type ExportedMessage struct {
	SenderID string      `json:"sender_id"`
	Kind     MessageKind `json:"message_type"`
	Content  *string     `json:"content"`
	MediaRef *string     `json:"file_id"`
	SentAt   time.Time   `json:"sent_at"`
}
