package ainotes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/lorekeeper/internal/models"
	"github.com/starford/lorekeeper/internal/testutil"
)

func newStore(t *testing.T) (*Store, *testutil.RecordingFS) {
	t.Helper()
	_, fs := testutil.TestProject(t)
	rec := testutil.NewRecordingFS(fs)
	s := New(rec, testutil.Logger())
	_, err := s.Load()
	require.NoError(t, err)
	return s, rec
}

func TestLoadUpgradesLegacyShape(t *testing.T) {
	_, fs := testutil.TestProject(t)
	require.NoError(t, fs.WriteFile(FileName, []byte(`{
		"1_old": [{"title":"Elara","description":"wakes up"}],
		"2_new": {"notes":[{"title":"Valdor","description":"a city"}],"review":"tight","updatedAt":99},
		"3_bad": "nonsense"
	}`)))

	s := New(fs, testutil.Logger())
	reg, err := s.Load()
	require.NoError(t, err)

	assert.Equal(t, models.AINoteData{
		Notes: []models.AINote{{Title: "Elara", Description: "wakes up"}},
	}, reg["1_old"])
	assert.Equal(t, models.AINoteData{
		Notes:     []models.AINote{{Title: "Valdor", Description: "a city"}},
		Review:    "tight",
		UpdatedAt: 99,
	}, reg["2_new"])
	_, ok := reg["3_bad"]
	assert.False(t, ok)
}

func TestLoadCorruptStartsEmpty(t *testing.T) {
	_, fs := testutil.TestProject(t)
	require.NoError(t, fs.WriteFile(FileName, []byte("{{")))

	s := New(fs, testutil.Logger())
	reg, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, reg)

	data, err := fs.ReadFile(FileName)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestPutReplacesWholeEntry(t *testing.T) {
	s, rec := newStore(t)

	require.NoError(t, s.Put("1_a", models.AINoteData{
		Notes:     []models.AINote{{Title: "x", Description: "y"}},
		Review:    "first",
		UpdatedAt: 10,
	}))
	require.NoError(t, s.Put("1_a", models.AINoteData{
		Notes:     []models.AINote{{Title: "z", Description: "w"}},
		UpdatedAt: 20,
	}))

	got, ok := s.Get("1_a")
	require.True(t, ok)
	assert.Equal(t, models.AINoteData{Notes: []models.AINote{{Title: "z", Description: "w"}}, UpdatedAt: 20}, got)

	data, err := rec.ReadFile(FileName)
	require.NoError(t, err)
	var persisted models.AINotesRegistry
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, got, persisted["1_a"])
}

func TestPutWriteFailureKeepsPrevious(t *testing.T) {
	s, rec := newStore(t)
	prev := models.AINoteData{Notes: []models.AINote{{Title: "keep"}}, UpdatedAt: 1}
	require.NoError(t, s.Put("1_a", prev))
	rec.FailWrites(FileName)

	require.Error(t, s.Put("1_a", models.AINoteData{UpdatedAt: 2}))
	got, _ := s.Get("1_a")
	assert.Equal(t, prev, got)
}

func TestRenameMigratesEntry(t *testing.T) {
	s, _ := newStore(t)
	entry := models.AINoteData{
		Notes:     []models.AINote{{Title: "Elara", Description: "wakes up"}},
		Review:    "solid",
		UpdatedAt: 5,
	}
	require.NoError(t, s.Put("1_old", entry))

	require.NoError(t, s.Rename("1_old", "2_new"))

	_, ok := s.Get("1_old")
	assert.False(t, ok)
	got, ok := s.Get("2_new")
	require.True(t, ok)
	assert.Equal(t, entry, got)

	// Missing source is a no-op.
	require.NoError(t, s.Rename("nope", "other"))
	assert.Len(t, s.All(), 1)
}
