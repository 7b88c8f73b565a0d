// Package parser extracts searchable text, titles and [[mentions]] from
// project content files, and counts words.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/lorekeeper/internal/models"
)

var mentionRe = regexp.MustCompile(`\[\[(.*?)\]\]`)

// Result holds the output of parsing a content file.
type Result struct {
	Title    string
	Body     string
	Mentions []string
}

// CountWords counts whitespace-separated tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// Parse extracts the indexable view of a content file of the given category.
// Chapters are raw Markdown; characters and lore entries are JSON documents.
func Parse(c models.Category, data []byte) (*Result, error) {
	switch c {
	case models.Chapters:
		body := string(data)
		return &Result{
			Title:    firstHeading(body),
			Body:     body,
			Mentions: extractMentions(body),
		}, nil

	case models.Characters:
		var ch models.Character
		if err := json.Unmarshal(data, &ch); err != nil {
			return nil, fmt.Errorf("parser: character: %w", err)
		}
		body := joinNonEmpty(ch.Role, ch.Description, ch.Appearance, ch.Personality)
		return &Result{Title: ch.Name, Body: body, Mentions: extractMentions(body)}, nil

	case models.Lore:
		var le models.LoreEntry
		if err := json.Unmarshal(data, &le); err != nil {
			return nil, fmt.Errorf("parser: lore: %w", err)
		}
		body := joinNonEmpty(le.Category, le.Content)
		return &Result{Title: le.Title, Body: body, Mentions: extractMentions(body)}, nil
	}
	return nil, fmt.Errorf("parser: unknown category %q", c)
}

// extractMentions returns deduplicated [[mention]] targets, normalising aliases.
func extractMentions(body string) []string {
	matches := mentionRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		// [[Target|Alias]] -> Target.
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
