package templates

import (
	"fmt"
	"html"
	"strings"

	"github.com/linesmerrill/counsel-relay-api/models"
)

// ExportSubject is the subject line of the scheduled export mail
func ExportSubject(doc *models.SessionExport) string {
	return fmt.Sprintf("Session export %s (%d sessions)", doc.ExportDate.Format("2006-01-02"), doc.TotalSessions)
}

// RenderExportEmail summarises an export document as HTML. The full
// transcripts travel as the JSON attachment.
func RenderExportEmail(doc *models.SessionExport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>%d finished sessions exported at %s UTC.</p>",
		doc.TotalSessions, html.EscapeString(doc.ExportDate.Format("2006-01-02 15:04")))
	if len(doc.Sessions) == 0 {
		return layout(ExportSubject(doc), b.String())
	}

	b.WriteString("<table><tr><th>Session</th><th>User</th><th>Counselor</th><th>Category</th><th>Messages</th><th>Finished</th></tr>")
	for _, s := range doc.Sessions {
		finished := ""
		if s.FinishedAt != nil {
			finished = s.FinishedAt.UTC().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "<tr><td>%d</td><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%s</td></tr>",
			s.SessionID,
			html.EscapeString(s.UserAnonymousID),
			html.EscapeString(s.CounselorID),
			html.EscapeString(s.Category),
			len(s.Messages),
			finished)
	}
	b.WriteString("</table>")
	return layout(ExportSubject(doc), b.String())
}

// RenderExportText is the plain text alternative of RenderExportEmail
func RenderExportText(doc *models.SessionExport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d finished sessions exported at %s UTC.\n", doc.TotalSessions, doc.ExportDate.Format("2006-01-02 15:04"))
	for _, s := range doc.Sessions {
		fmt.Fprintf(&b, "\n#%d %s / %s / %s: %d messages", s.SessionID, s.UserAnonymousID, s.CounselorID, s.Category, len(s.Messages))
	}
	return b.String()
}
