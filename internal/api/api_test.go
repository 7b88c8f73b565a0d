package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/lorekeeper/internal/ai"
	"github.com/starford/lorekeeper/internal/models"
	"github.com/starford/lorekeeper/internal/session"
	"github.com/starford/lorekeeper/internal/testutil"
)

// testEnv opens a session on a temp project and returns its router.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*session.Session, http.Handler) {
	t.Helper()
	sess, router, _ := testEnvFull(t, authToken != "", authToken, nil)
	return sess, router
}

// testEnvFull also wires a provider served by aiHandler, when non-nil.
func testEnvFull(t *testing.T, authEnabled bool, authToken string, aiHandler http.HandlerFunc) (*session.Session, http.Handler, string) {
	t.Helper()

	root := t.TempDir()
	deps := session.Deps{
		Logger:        testutil.Logger(),
		AutosaveDelay: time.Hour,
		CursorDelay:   10 * time.Millisecond,
	}
	if aiHandler != nil {
		srv := httptest.NewServer(aiHandler)
		t.Cleanup(srv.Close)
		deps.AI = ai.New(ai.WithBaseURL(srv.URL), ai.WithTimeout(2*time.Second))
	}

	sess, err := session.OpenDir(context.Background(), root, deps)
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	t.Cleanup(func() { sess.Close() })

	router := NewRouter(sess, authEnabled, authToken, nil)
	return sess, router, root
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createItem(t *testing.T, router http.Handler, c models.Category, title string) models.RegistryItem {
	t.Helper()
	w := do(t, router, http.MethodPost, "/items/"+string(c), map[string]string{"title": title})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var item models.RegistryItem
	if err := json.Unmarshal(w.Body.Bytes(), &item); err != nil {
		t.Fatal(err)
	}
	return item
}

func TestCreateAndGetProject(t *testing.T) {
	_, router := testEnv(t, "")

	item := createItem(t, router, models.Chapters, "Le Réveil")
	if !strings.HasSuffix(item.ID, "_le-reveil") {
		t.Errorf("id = %q, want *_le-reveil", item.ID)
	}
	if item.Title != "Le Réveil" {
		t.Errorf("title = %q", item.Title)
	}

	w := do(t, router, http.MethodGet, "/project", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("project status = %d", w.Code)
	}
	var resp ProjectResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Registry.Chapters) != 1 {
		t.Fatalf("chapters = %d, want 1", len(resp.Registry.Chapters))
	}
	if resp.Selection.ID != item.ID {
		t.Errorf("selection = %q, want new item selected", resp.Selection.ID)
	}
	if resp.Editor == nil || resp.Editor.Target.ID != item.ID {
		t.Errorf("editor = %+v, want open on new item", resp.Editor)
	}
	if resp.AIAvailable {
		t.Error("AI should be unavailable without a provider")
	}
}

func TestCreateItem_Validation(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodPost, "/items/chapters", map[string]string{"title": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("empty title = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/items/scenes", map[string]string{"title": "x"}); w.Code != http.StatusBadRequest {
		t.Errorf("unknown category = %d, want 400", w.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/items/lore", strings.NewReader("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad JSON = %d, want 400", w.Code)
	}
}

func TestContentRoundTrip(t *testing.T) {
	_, router, root := testEnvFull(t, false, "", nil)
	item := createItem(t, router, models.Chapters, "Un")

	w := do(t, router, http.MethodPut, "/items/chapters/"+item.ID+"/content", ContentRequest{Content: "Il pleut sur la ville."})
	if w.Code != http.StatusAccepted {
		t.Fatalf("put status = %d, body = %s", w.Code, w.Body.String())
	}

	// The live value is served before it reaches the disk.
	w = do(t, router, http.MethodGet, "/items/chapters/"+item.ID+"/content", nil)
	var got ContentResponse
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Content != "Il pleut sur la ville." {
		t.Errorf("content = %q", got.Content)
	}

	if w := do(t, router, http.MethodPost, "/editor/flush", nil); w.Code != http.StatusOK {
		t.Fatalf("flush status = %d", w.Code)
	}
	data, err := os.ReadFile(filepath.Join(root, "chapters", item.ID+".md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Il pleut sur la ville." {
		t.Errorf("file = %q", data)
	}

	w = do(t, router, http.MethodGet, "/stats", nil)
	var sum struct {
		Today int `json:"today"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &sum)
	if sum.Today != 5 {
		t.Errorf("today = %d, want 5", sum.Today)
	}
}

func TestPutContent_NotOpen(t *testing.T) {
	_, router := testEnv(t, "")
	first := createItem(t, router, models.Chapters, "Un")
	createItem(t, router, models.Chapters, "Deux")

	w := do(t, router, http.MethodPut, "/items/chapters/"+first.ID+"/content", ContentRequest{Content: "x"})
	if w.Code != http.StatusConflict {
		t.Errorf("edit closed item = %d, want 409", w.Code)
	}
}

func TestPutContent_InvalidJSONDocument(t *testing.T) {
	_, router := testEnv(t, "")
	item := createItem(t, router, models.Characters, "Alice")

	w := do(t, router, http.MethodPut, "/items/characters/"+item.ID+"/content", ContentRequest{Content: "{not json"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid character = %d, want 400", w.Code)
	}
}

func TestRenameItem(t *testing.T) {
	_, router := testEnv(t, "")
	item := createItem(t, router, models.Lore, "Magie")

	w := do(t, router, http.MethodPatch, "/items/lore/"+item.ID, RenameItemRequest{Title: "Magie noire"})
	if w.Code != http.StatusOK {
		t.Fatalf("rename status = %d, body = %s", w.Code, w.Body.String())
	}
	var renamed models.RegistryItem
	_ = json.Unmarshal(w.Body.Bytes(), &renamed)
	if !strings.HasSuffix(renamed.ID, "_magie-noire") {
		t.Errorf("renamed id = %q", renamed.ID)
	}

	if w := do(t, router, http.MethodGet, "/items/lore/"+item.ID+"/content", nil); w.Code != http.StatusNotFound {
		t.Errorf("old id = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodPatch, "/items/lore/ghost", RenameItemRequest{Title: "x"}); w.Code != http.StatusNotFound {
		t.Errorf("rename missing = %d, want 404", w.Code)
	}
}

func TestReorderItem(t *testing.T) {
	_, router := testEnv(t, "")
	a := createItem(t, router, models.Chapters, "A")
	b := createItem(t, router, models.Chapters, "B")

	w := do(t, router, http.MethodPost, "/items/chapters/reorder", ReorderRequest{From: 1, To: 0})
	if w.Code != http.StatusOK {
		t.Fatalf("reorder status = %d, body = %s", w.Code, w.Body.String())
	}
	var reg models.Registry
	_ = json.Unmarshal(w.Body.Bytes(), &reg)
	if reg.Chapters[0].ID != b.ID || reg.Chapters[1].ID != a.ID {
		t.Errorf("order = %v", reg.Chapters)
	}

	if w := do(t, router, http.MethodPost, "/items/chapters/reorder", ReorderRequest{From: 0, To: 5}); w.Code != http.StatusBadRequest {
		t.Errorf("out of range = %d, want 400", w.Code)
	}
}

func TestSelect(t *testing.T) {
	_, router := testEnv(t, "")
	item := createItem(t, router, models.Chapters, "Un")

	w := do(t, router, http.MethodPost, "/select", SelectRequest{View: models.ViewStatistics})
	if w.Code != http.StatusOK {
		t.Fatalf("select status = %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/editor", nil); w.Code != http.StatusNotFound {
		t.Errorf("editor after leaving = %d, want 404", w.Code)
	}

	w = do(t, router, http.MethodPost, "/select", SelectRequest{View: models.ViewChapters, ID: item.ID})
	var sel session.Selection
	_ = json.Unmarshal(w.Body.Bytes(), &sel)
	if sel.ID != item.ID {
		t.Errorf("selection = %+v", sel)
	}

	if w := do(t, router, http.MethodPost, "/select", SelectRequest{View: "timeline"}); w.Code != http.StatusBadRequest {
		t.Errorf("unknown view = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/select", SelectRequest{View: models.ViewChapters, ID: "ghost"}); w.Code != http.StatusNotFound {
		t.Errorf("unknown item = %d, want 404", w.Code)
	}
}

func TestSettingsAndGoal(t *testing.T) {
	_, router := testEnv(t, "")

	lang := "en"
	w := do(t, router, http.MethodPatch, "/settings", models.SettingsPatch{Language: &lang})
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d", w.Code)
	}
	w = do(t, router, http.MethodGet, "/settings", nil)
	var st models.ProjectSettings
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st.Language != "en" {
		t.Errorf("language = %q", st.Language)
	}

	if w := do(t, router, http.MethodPut, "/stats/goal", GoalRequest{DailyGoal: 800}); w.Code != http.StatusOK {
		t.Errorf("goal status = %d", w.Code)
	}
	if w := do(t, router, http.MethodPut, "/stats/goal", GoalRequest{DailyGoal: -1}); w.Code != http.StatusBadRequest {
		t.Errorf("negative goal = %d, want 400", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	createItem(t, router, models.Characters, "Alice Martin")

	w := do(t, router, http.MethodGet, "/search?q=alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Title != "Alice Martin" {
		t.Errorf("results = %+v", resp.Results)
	}

	w = do(t, router, http.MethodGet, "/search?q=zzz", nil)
	if !strings.Contains(w.Body.String(), `"results":[]`) {
		t.Errorf("empty search body = %s", w.Body.String())
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestAppearances_NoIndex(t *testing.T) {
	_, router := testEnv(t, "")
	item := createItem(t, router, models.Characters, "Alice")

	w := do(t, router, http.MethodGet, "/items/characters/"+item.ID+"/appearances", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("appearances status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"chapters":[]`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

// AI error mapping tests.

func enableAI(t *testing.T, router http.Handler) {
	t.Helper()
	key := "sk-test"
	if w := do(t, router, http.MethodPatch, "/settings", models.SettingsPatch{MistralAPIKey: &key}); w.Code != http.StatusOK {
		t.Fatalf("set key = %d", w.Code)
	}
}

func TestAnalyze_Unavailable(t *testing.T) {
	_, router := testEnv(t, "")
	item := createItem(t, router, models.Chapters, "Un")

	w := do(t, router, http.MethodPost, "/ainotes/"+item.ID+"/analyze", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("analyze without AI = %d, want 503", w.Code)
	}
	var body errResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Kind != string(ai.KindUnavailable) {
		t.Errorf("kind = %q", body.Kind)
	}
}

func TestAnalyze_ProviderErrors(t *testing.T) {
	tests := []struct {
		status int
		want   int
		kind   ai.Kind
	}{
		{http.StatusUnauthorized, http.StatusUnauthorized, ai.KindUnauthorized},
		{http.StatusPaymentRequired, http.StatusPaymentRequired, ai.KindInsufficientBalance},
		{http.StatusTooManyRequests, http.StatusTooManyRequests, ai.KindRateLimited},
		{http.StatusInternalServerError, http.StatusBadGateway, ai.KindProvider},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			_, router, _ := testEnvFull(t, false, "", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			enableAI(t, router)
			item := createItem(t, router, models.Chapters, "Un")
			do(t, router, http.MethodPut, "/items/chapters/"+item.ID+"/content", ContentRequest{Content: "Texte."})

			w := do(t, router, http.MethodPost, "/ainotes/"+item.ID+"/analyze", nil)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			var body errResponse
			_ = json.Unmarshal(w.Body.Bytes(), &body)
			if body.Kind != string(tt.kind) {
				t.Errorf("kind = %q, want %q", body.Kind, tt.kind)
			}
		})
	}
}

func TestAnalyzeAndGetNote(t *testing.T) {
	reply := `{"choices":[{"message":{"content":"Voici: {\"notes\":[{\"title\":\"Alice\",\"description\":\"Fille du meunier\"}],\"review\":\"Bon rythme.\"}"}}]}`
	_, router, _ := testEnvFull(t, false, "", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply)
	})
	enableAI(t, router)
	item := createItem(t, router, models.Chapters, "Un")
	do(t, router, http.MethodPut, "/items/chapters/"+item.ID+"/content", ContentRequest{Content: "Alice attend."})

	w := do(t, router, http.MethodPost, "/ainotes/"+item.ID+"/analyze", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("analyze status = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/ainotes/"+item.ID, nil)
	var view session.NoteView
	_ = json.Unmarshal(w.Body.Bytes(), &view)
	if view.Note == nil || len(view.Note.Notes) != 1 || view.Note.Notes[0].Title != "Alice" {
		t.Fatalf("note = %+v", view.Note)
	}
	if view.Outdated {
		t.Error("fresh analysis reported outdated")
	}
}

func TestSuggest_Validation(t *testing.T) {
	_, router := testEnv(t, "")
	item := createItem(t, router, models.Chapters, "Un")

	w := do(t, router, http.MethodPost, "/suggest", session.SuggestRequest{ChapterID: item.ID, Kind: ai.SuggestQuestion})
	if w.Code != http.StatusBadRequest {
		t.Errorf("question without prompt = %d, want 400", w.Code)
	}
}

func TestTestConnection(t *testing.T) {
	_, router, _ := testEnvFull(t, false, "", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"data":[]}`)
	})
	enableAI(t, router)

	if w := do(t, router, http.MethodPost, "/settings/test-connection", nil); w.Code != http.StatusOK {
		t.Errorf("test connection = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	body, _ := json.Marshal(map[string]string{"title": "Auth"})
	req := httptest.NewRequest(http.MethodPost, "/items/chapters", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/project", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/project", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/project", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, true, "secret")

	// No token → 401.
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	router := testEnvWithSSE(t, false, "")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

// testEnvWithSSE creates a router with a stub SSE handler to test auth on /events.
func testEnvWithSSE(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()

	sess, err := session.OpenDir(context.Background(), t.TempDir(), session.Deps{Logger: testutil.Logger()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sess.Close() })

	// Writes headers and blocks until the request context is done.
	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})

	return NewRouter(sess, authEnabled, token, sseHandler)
}
