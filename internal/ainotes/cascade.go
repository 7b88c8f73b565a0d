package ainotes

import (
	"strings"

	"github.com/starford/lorekeeper/internal/models"
)

// Inputs are the timestamps the staleness predicate looks at. Zero means
// "unknown"; a missing predecessor or predecessor note is simply zero.
type Inputs struct {
	NoteUpdatedAt       int64 // the current chapter's analysis
	ChapterModified     int64 // the current chapter's content
	PrevChapterModified int64
	PrevNoteUpdatedAt   int64
}

// IsOutdated reports whether an analysis made at NoteUpdatedAt predates an
// edit of its chapter, an edit of the preceding chapter, or a newer analysis
// of the preceding chapter.
func IsOutdated(in Inputs) bool {
	return in.ChapterModified > in.NoteUpdatedAt ||
		in.PrevChapterModified > in.NoteUpdatedAt ||
		in.PrevNoteUpdatedAt > in.NoteUpdatedAt
}

// InputsFor collects the Inputs of chapterID from the ordered chapter list.
// ok is false when the chapter is unknown or has no cached analysis.
func InputsFor(chapters []models.RegistryItem, notes models.AINotesRegistry, chapterID string) (Inputs, bool) {
	idx := -1
	for i, ch := range chapters {
		if ch.ID == chapterID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Inputs{}, false
	}
	note, ok := notes[chapterID]
	if !ok {
		return Inputs{}, false
	}

	in := Inputs{
		NoteUpdatedAt:   note.UpdatedAt,
		ChapterModified: chapters[idx].LastModified,
	}
	if idx > 0 {
		prev := chapters[idx-1]
		in.PrevChapterModified = prev.LastModified
		in.PrevNoteUpdatedAt = notes[prev.ID].UpdatedAt
	}
	return in, true
}

// Outdated is IsOutdated over registry state; chapters without an analysis
// are never outdated.
func Outdated(chapters []models.RegistryItem, notes models.AINotesRegistry, chapterID string) bool {
	in, ok := InputsFor(chapters, notes, chapterID)
	return ok && IsOutdated(in)
}

// BuildContext renders what earlier chapters established: every chapter
// before chapterID contributes its notes, grouped by title in first-seen
// order, descriptions concatenated in manuscript order. It returns "" when
// nothing precedes the chapter or no earlier chapter was analyzed.
func BuildContext(chapters []models.RegistryItem, notes models.AINotesRegistry, chapterID string) string {
	var order []string
	byTitle := map[string][]string{}

	for _, ch := range chapters {
		if ch.ID == chapterID {
			break
		}
		for _, n := range notes[ch.ID].Notes {
			title := strings.TrimSpace(n.Title)
			desc := strings.TrimSpace(n.Description)
			if title == "" {
				continue
			}
			if _, seen := byTitle[title]; !seen {
				order = append(order, title)
			}
			if desc != "" {
				byTitle[title] = append(byTitle[title], desc)
			} else if byTitle[title] == nil {
				byTitle[title] = []string{}
			}
		}
	}

	var b strings.Builder
	for _, title := range order {
		b.WriteString("- ")
		b.WriteString(title)
		if descs := byTitle[title]; len(descs) > 0 {
			b.WriteString(": ")
			b.WriteString(strings.Join(descs, " "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
