package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/paperforge/paperforge/internal/providers"
)

// maybeGenerateTitle fills in a title for an untitled work from the first
// question, off the turn's critical path. Failures only log.
func (p *Planner) maybeGenerateTitle(ctx context.Context, question string) {
	if p.work.Title != "" {
		return
	}
	// the turn may finish before the title call returns
	ctx = context.WithoutCancel(ctx)
	go func() {
		msgs := []providers.Message{
			{Role: "user", Content: titlePrompt(question)},
		}
		assistant, _, err := p.brain.Sync(ctx, msgs, nil)
		if err != nil {
			slog.Warn("title generation failed", "work_id", p.work.ID, "error", err)
			return
		}
		title := strings.TrimSpace(strings.Trim(strings.TrimSpace(assistant.Content), `"“”「」`))
		if title == "" {
			return
		}
		if len([]rune(title)) > 60 {
			title = string([]rune(title)[:60])
		}
		if err := p.st.SetWorkTitle(p.work.ID, title); err != nil {
			slog.Warn("store title failed", "work_id", p.work.ID, "error", err)
			return
		}
		p.work.Title = title
		slog.Info("generated work title", "work_id", p.work.ID, "title", title)
	}()
}
