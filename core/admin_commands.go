package core

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/linesmerrill/counsel-relay-api/models"
)

var adminUsage = map[string]string{
	"admin":            "/admin",
	"add_counselor":    "/add_counselor <id> <category,...>",
	"remove_counselor": "/remove_counselor <id>",
	"block":            "/block <id>",
	"unblock":          "/unblock <id>",
	"force_end":        "/force_end <user_id>",
	"sessions":         "/sessions",
	"lookup":           "/lookup <handle>",
	"export":           "/export",
}

func isAdminCommand(command string) bool {
	_, ok := adminUsage[command]
	return ok
}

// minArgs is the number of arguments each admin command needs
var minArgs = map[string]int{
	"add_counselor":    2,
	"remove_counselor": 1,
	"block":            1,
	"unblock":          1,
	"force_end":        1,
	"lookup":           1,
}

func (c *Core) handleAdminCommand(ctx context.Context, ev models.Event) error {
	lang := c.language(ctx, ev.PartyID)
	reply := func(key string, pairs ...string) {
		c.notify(ctx, ev.PartyID, models.TextMessage(c.taxonomy.Text(key, lang, pairs...)))
	}
	if len(ev.Args) < minArgs[ev.Command] {
		reply("admin_usage", "usage", adminUsage[ev.Command])
		return nil
	}

	var err error
	switch ev.Command {
	case "admin":
		var stats *Stats
		if stats, err = c.Stats(ctx); err == nil {
			reply("admin_stats",
				"counselors", strconv.Itoa(stats.Counselors),
				"active", strconv.FormatInt(stats.ActiveSessions, 10),
				"finished", strconv.FormatInt(stats.FinishedSessions, 10),
				"blocked", strconv.FormatInt(stats.BlockedUsers, 10))
		}

	case "add_counselor":
		categories := splitCategories(strings.Join(ev.Args[1:], ","))
		for _, category := range categories {
			if !c.taxonomy.HasCategory(category) {
				reply("admin_unknown_category", "category", category)
				return nil
			}
		}
		var counselor *models.Counselor
		if counselor, err = c.RegisterCounselor(ctx, ev.Args[0], categories); err == nil {
			reply("admin_counselor_added", "id", counselor.ID, "categories", strings.Join(counselor.Categories, ", "))
		}

	case "remove_counselor":
		if err = c.RemoveCounselor(ctx, ev.Args[0]); err == nil {
			reply("admin_done")
		}

	case "block":
		if err = c.Block(ctx, ev.Args[0]); err == nil {
			reply("admin_done")
		}

	case "unblock":
		if err = c.Unblock(ctx, ev.Args[0]); err == nil {
			reply("admin_done")
		}

	case "force_end":
		if _, err = c.ForceFinishForUser(ctx, ev.Args[0]); err == nil {
			reply("admin_done")
		}

	case "sessions":
		var active []SessionSummary
		if active, err = c.ActiveSessions(ctx); err == nil {
			if len(active) == 0 {
				reply("admin_sessions_empty")
				return nil
			}
			lines := make([]string, 0, len(active))
			for _, s := range active {
				lines = append(lines, c.taxonomy.Text("admin_sessions_line", lang,
					"session", strconv.FormatInt(s.SessionID, 10),
					"handle", s.Handle,
					"counselor", s.CounselorID,
					"category", s.Category))
			}
			c.notify(ctx, ev.PartyID, models.TextMessage(strings.Join(lines, "\n")))
		}

	case "lookup":
		var realID string
		if realID, err = c.Lookup(ctx, ev.Args[0]); err == nil {
			reply("admin_lookup", "handle", ev.Args[0], "id", realID)
		}

	case "export":
		var doc *models.SessionExport
		if doc, err = c.Export(ctx, 0); err == nil {
			var raw []byte
			if raw, err = json.MarshalIndent(doc, "", "  "); err == nil {
				reply("admin_export", "count", strconv.Itoa(doc.TotalSessions))
				c.notify(ctx, ev.PartyID, models.TextMessage(string(raw)))
			}
		}
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrAlreadyFinished):
		reply("admin_not_found")
	case errors.Is(err, models.ErrPersistence):
		c.fail(ctx, ev.PartyID, lang, err)
	default:
		reply("admin_error", "error", err.Error())
	}
	return err
}

func splitCategories(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
