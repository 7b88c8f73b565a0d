package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/lorekeeper/internal/models"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare", `{"a":1}`, `{"a":1}`, true},
		{"fenced", "Here you go:\n```json\n{\"a\":{\"b\":2}}\n```\nThanks", `{"a":{"b":2}}`, true},
		{"braces in strings", `x {"t":"a } b","u":"\"{"} y {"z":1}`, `{"t":"a } b","u":"\"{"}`, true},
		{"unbalanced prefix", `{ oops {"a":1}`, `{"a":1}`, true},
		{"truncated", `{"a":[1,2`, "", false},
		{"none", "no json here", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractJSON(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestJSONObjectsListsTopLevelBlocks(t *testing.T) {
	got := jsonObjects(`a {b} c {"x":{"y":1}} {oops`)
	assert.Equal(t, []string{"{b}", `{"x":{"y":1}}`}, got)
}

func TestParseAnalysis(t *testing.T) {
	reply := "```json\n" + `{"notes":[{"title":" Elara ","description":"wakes up"},{"title":"Valdor","description":""}],"review":"tight pacing"}` + "\n```"

	got, err := ParseAnalysis(reply)
	require.NoError(t, err)
	assert.Equal(t, Analysis{
		Notes:  []models.AINote{{Title: "Elara", Description: "wakes up"}, {Title: "Valdor"}},
		Review: "tight pacing",
	}, got)
}

func TestParseAnalysisSkipsProseBraces(t *testing.T) {
	reply := "Voici l'analyse {résumé}:\n```json\n" + `{"notes":[{"title":"Elara","description":"wakes up"}]}` + "\n```"

	got, err := ParseAnalysis(reply)
	require.NoError(t, err)
	assert.Equal(t, []models.AINote{{Title: "Elara", Description: "wakes up"}}, got.Notes)
}

func TestParseAnalysisEmptyNotesIsValid(t *testing.T) {
	got, err := ParseAnalysis(`{"notes":[]}`)
	require.NoError(t, err)
	assert.NotNil(t, got.Notes)
	assert.Empty(t, got.Notes)
}

func TestParseAnalysisRejects(t *testing.T) {
	for _, in := range []string{
		"sorry, I cannot help",
		`{"review":"no notes"}`,
		`{"notes":"nope"}`,
		`{"notes":[{"title":"","description":"x"}]}`,
	} {
		_, err := ParseAnalysis(in)
		assert.Equal(t, KindMalformed, KindOf(err), in)
	}
}

func TestSuggestPrompt(t *testing.T) {
	p := SuggestPrompt(SuggestCharacterReaction, "- Elara: brave\n", "The door opened.", "Elara")
	assert.Contains(t, p, "Established facts:\n- Elara: brave")
	assert.Contains(t, p, "how Elara would react")
	assert.True(t, SuggestQuestion.Valid())
	assert.False(t, SuggestKind("poem").Valid())
}

func TestClipTextKeepsTail(t *testing.T) {
	text := strings.Repeat("é", 10) + "end"
	got := clipText(text, 6)
	assert.True(t, strings.HasSuffix(got, "end"))
	assert.LessOrEqual(t, len(got), 6)
	assert.Equal(t, "éend", got)
}
