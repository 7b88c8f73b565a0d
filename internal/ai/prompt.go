package ai

import (
	"fmt"
	"strings"
)

const (
	AnalysisTemperature = 0.2
	SuggestTemperature  = 0.7

	// maxChapterChars keeps prompts well inside the default model window.
	maxChapterChars = 60_000
)

// SuggestKind selects the writing-assistant prompt.
type SuggestKind string

const (
	SuggestContinuation      SuggestKind = "continuation"
	SuggestCharacterReaction SuggestKind = "character_reaction"
	SuggestQuestion          SuggestKind = "question"
)

// Valid reports whether k is a known kind.
func (k SuggestKind) Valid() bool {
	switch k {
	case SuggestContinuation, SuggestCharacterReaction, SuggestQuestion:
		return true
	}
	return false
}

func languageName(lang string) string {
	switch strings.ToLower(lang) {
	case "en":
		return "English"
	default:
		return "French"
	}
}

// AnalysisSystem is the system prompt for chapter analysis.
func AnalysisSystem(lang string) string {
	return fmt.Sprintf(`You are a continuity editor for a novel. Answer in %s.
Reply with a single JSON object and nothing else:
{"notes":[{"title":"<character, place or plot thread>","description":"<what this chapter establishes>"}],"review":"<short editorial review>"}`,
		languageName(lang))
}

// AnalysisPrompt asks for notes on one chapter given what earlier chapters
// established.
func AnalysisPrompt(chapterTitle, history, text string) string {
	var b strings.Builder
	if history != "" {
		b.WriteString("Facts established by earlier chapters:\n")
		b.WriteString(history)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Chapter %q:\n%s\n", chapterTitle, clipText(text, maxChapterChars))
	b.WriteString("\nList the characters, places and plot threads of this chapter and flag contradictions with earlier facts.")
	return b.String()
}

// SuggestSystem is the system prompt for writing suggestions.
func SuggestSystem(lang string) string {
	return fmt.Sprintf("You are a writing assistant helping an author with their novel. Answer in %s. Stay consistent with the established facts.", languageName(lang))
}

// SuggestPrompt builds the user prompt for kind. extra is the author's own
// request (a character name for reactions, a question for questions).
func SuggestPrompt(kind SuggestKind, history, text, extra string) string {
	var b strings.Builder
	if history != "" {
		b.WriteString("Established facts:\n")
		b.WriteString(history)
		b.WriteString("\n")
	}
	b.WriteString("Current chapter:\n")
	b.WriteString(clipText(text, maxChapterChars))
	b.WriteString("\n\n")
	switch kind {
	case SuggestCharacterReaction:
		fmt.Fprintf(&b, "Describe how %s would react to the last scene, in their voice.", strings.TrimSpace(extra))
	case SuggestQuestion:
		b.WriteString("Answer the author's question: ")
		b.WriteString(strings.TrimSpace(extra))
	default:
		b.WriteString("Propose a short continuation of the chapter (one or two paragraphs).")
		if e := strings.TrimSpace(extra); e != "" {
			b.WriteString(" Direction: ")
			b.WriteString(e)
		}
	}
	return b.String()
}

// clipText keeps the tail of text, where the current scene is.
func clipText(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return text
	}
	cut := len(text) - limit
	for cut < len(text) && !utf8Start(text[cut]) {
		cut++
	}
	return text[cut:]
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }
