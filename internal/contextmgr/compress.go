// Package contextmgr bounds conversation length with deterministic
// sliding-window compression. No LLM calls happen here.
package contextmgr

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/paperforge/paperforge/internal/providers"
)

// Retention ratios per strategy.
const (
	RatioLow    = 0.7
	RatioMedium = 0.5
	RatioHigh   = 0.3
)

// summaryPrefix marks the synthetic message produced by compression.
const summaryPrefix = "[上下文摘要] "

// Record describes one compression pass, for telemetry.
type Record struct {
	Strategy     string  `json:"strategy"`
	Ratio        float64 `json:"ratio"`
	Removed      int     `json:"removed"`
	TokensBefore int     `json:"tokens_before"`
	TokensAfter  int     `json:"tokens_after"`
}

// Manager holds the compression thresholds.
type Manager struct {
	MaxTokens   int
	MaxMessages int
}

func New(maxTokens, maxMessages int) *Manager {
	if maxTokens <= 0 {
		maxTokens = 20000
	}
	if maxMessages <= 0 {
		maxMessages = 50
	}
	return &Manager{MaxTokens: maxTokens, MaxMessages: maxMessages}
}

// EstimateConversation sums token estimates over all message contents.
func EstimateConversation(msgs []providers.Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateTokens(m.Content)
	}
	return total
}

// NeedsCompression reports whether msgs exceeds either threshold.
func (m *Manager) NeedsCompression(msgs []providers.Message) bool {
	return EstimateConversation(msgs) > m.MaxTokens || len(msgs) > m.MaxMessages
}

// strategy picks a retention ratio from current token pressure.
func (m *Manager) strategy(tokens int) (string, float64) {
	usage := float64(tokens) / float64(m.MaxTokens)
	switch {
	case usage > 0.8:
		return "high", RatioHigh
	case usage > 0.6:
		return "medium", RatioMedium
	default:
		return "low", RatioLow
	}
}

// Compress returns a bounded conversation: system messages are kept, the
// most recent ceil(N*ratio) non-system messages are kept, and everything
// between collapses into one synthetic system summary message. When no
// threshold is exceeded the input is returned unchanged.
func (m *Manager) Compress(msgs []providers.Message) ([]providers.Message, []Record) {
	if !m.NeedsCompression(msgs) {
		return msgs, nil
	}

	tokensBefore := EstimateConversation(msgs)
	name, ratio := m.strategy(tokensBefore)

	var system []providers.Message
	var rest []providers.Message
	for _, msg := range msgs {
		if msg.Role == "system" && !strings.HasPrefix(msg.Content, summaryPrefix) {
			system = append(system, msg)
		} else {
			rest = append(rest, msg)
		}
	}

	keep := int(math.Ceil(float64(len(rest)) * ratio))
	if keep < 1 {
		keep = 1
	}
	if keep >= len(rest) {
		return msgs, nil
	}
	dropped := rest[:len(rest)-keep]
	kept := rest[len(rest)-keep:]

	summary := providers.Message{
		Role:    "system",
		Content: summaryPrefix + summarize(dropped),
	}

	out := make([]providers.Message, 0, len(system)+1+len(kept))
	out = append(out, system...)
	out = append(out, summary)
	out = append(out, kept...)

	rec := Record{
		Strategy:     name,
		Ratio:        ratio,
		Removed:      len(dropped),
		TokensBefore: tokensBefore,
		TokensAfter:  EstimateConversation(out),
	}
	return out, []Record{rec}
}

// summarize builds the deterministic digest of dropped messages.
func summarize(dropped []providers.Message) string {
	var userText, assistantText strings.Builder
	questions := 0
	for _, m := range dropped {
		switch m.Role {
		case "user":
			userText.WriteString(m.Content)
			userText.WriteString(" ")
			questions++
		case "assistant":
			assistantText.WriteString(m.Content)
			assistantText.WriteString(" ")
		}
	}
	userKeys := topKeywords(userText.String(), 3)
	asstKeys := topKeywords(assistantText.String(), 3)
	return fmt.Sprintf("user asked about %s; assistant covered %s; %d questions total",
		joinOr(userKeys, "(nothing)"), joinOr(asstKeys, "(nothing)"), questions)
}

func joinOr(keys []string, empty string) string {
	if len(keys) == 0 {
		return empty
	}
	return strings.Join(keys, ", ")
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "is": true, "it": true, "for": true, "on": true,
	"with": true, "that": true, "this": true, "be": true, "are": true,
	"as": true, "at": true, "by": true, "i": true, "you": true, "we": true,
	"can": true, "do": true, "not": true, "have": true, "will": true,
	"please": true, "what": true, "how": true, "my": true,
}

// topKeywords returns the n most frequent terms, ties broken lexically.
// Latin words shorter than 3 runes and stopwords are skipped; cjk text is
// sampled as bigrams.
func topKeywords(text string, n int) []string {
	counts := map[string]int{}

	var word []rune
	flushWord := func() {
		if len(word) >= 3 {
			w := strings.ToLower(string(word))
			if !stopwords[w] {
				counts[w]++
			}
		}
		word = word[:0]
	}

	var prevCJK rune
	for _, r := range text {
		switch {
		case isCJK(r):
			flushWord()
			if prevCJK != 0 {
				counts[string([]rune{prevCJK, r})]++
			}
			prevCJK = r
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			prevCJK = 0
			word = append(word, r)
		default:
			prevCJK = 0
			flushWord()
		}
	}
	flushWord()

	type kv struct {
		k string
		v int
	}
	all := make([]kv, 0, len(counts))
	for k, v := range counts {
		all = append(all, kv{k, v})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].v != all[j].v {
			return all[i].v > all[j].v
		}
		return all[i].k < all[j].k
	})
	if len(all) > n {
		all = all[:n]
	}
	keys := make([]string, len(all))
	for i, e := range all {
		keys[i] = e.k
	}
	return keys
}
