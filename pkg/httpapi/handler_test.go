package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/imagegen"
	"github.com/shouni/go-storyboard-kit/pkg/narrative"
	"github.com/shouni/go-storyboard-kit/pkg/session"
	"github.com/shouni/go-storyboard-kit/pkg/storyboard"
)

type stubExtractor struct{}

func (stubExtractor) ExtractCast(_ context.Context, _ string, _ domain.Style) ([]domain.Character, error) {
	return []domain.Character{{Name: "Alice", Description: "A curious girl"}}, nil
}

func (stubExtractor) ExtractScenes(_ context.Context, _ string, _ []domain.Character, _ domain.Style) ([]domain.Scene, error) {
	return []domain.Scene{{
		SceneNumber: 1,
		SceneTitle:  "Opening",
		Shots:       []domain.Shot{{ShotNumber: 1, ShotDescription: "Alice at dawn", CharactersInShot: []string{"Alice"}}},
	}}, nil
}

type stubDecider struct{}

func (stubDecider) DecideShotEdit(_ context.Context, _ narrative.DecisionInput) (*narrative.ShotDecision, error) {
	return &narrative.ShotDecision{Action: narrative.ActionGenerate}, nil
}

type stubSynth struct{}

func (stubSynth) result() *imagegen.Result {
	return &imagegen.Result{ImageURL: "https://images.example/x.png", Seed: 7, RawStructuredPrompt: "{}"}
}

func (s stubSynth) GenerateCharacter(_ context.Context, _ string, _ domain.Style) (*imagegen.Result, error) {
	return s.result(), nil
}

func (s stubSynth) GenerateShot(_ context.Context, _ string, _ domain.Style, _ []string) (*imagegen.Result, error) {
	return s.result(), nil
}

func (s stubSynth) RefineShot(_ context.Context, _, _ string, _ int64, _ []string) (*imagegen.Result, error) {
	return s.result(), nil
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	svc, err := storyboard.NewService(storyboard.ServiceArgs{
		Store:       session.NewMemoryStore(time.Hour, time.Hour),
		Extractor:   stubExtractor{},
		Decider:     stubDecider{},
		Synthesizer: stubSynth{},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewHandler(svc, HealthInfo{Environment: "test", BriaConfigured: true, LLMConfigured: true})
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler(t *testing.T) {
	t.Run("healthはフラグ付きで応答する", func(t *testing.T) {
		h := newTestHandler(t)
		rec := doJSON(t, h.Router(), http.MethodGet, "/health", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if body["status"] != "ok" || body["environment"] != "test" || body["bria_configured"] != true {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("scriptはセッションを作って201を返す", func(t *testing.T) {
		h := newTestHandler(t)
		rec := doJSON(t, h.Router(), http.MethodPost, "/script", `{"script": "Once upon a time", "style": "anime"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
		}
		var body struct {
			SessionID  string             `json:"session_id"`
			Style      string             `json:"style"`
			Characters []domain.Character `json:"characters"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if body.SessionID == "" || body.Style != "anime" || len(body.Characters) != 1 {
			t.Errorf("body = %+v", body)
		}

		// 作成したセッションはそのまま照会できます。
		rec = doJSON(t, h.Router(), http.MethodGet, "/sessions/"+body.SessionID, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("GET status = %d", rec.Code)
		}
	})

	t.Run("空の台本は400とdetail封筒", func(t *testing.T) {
		h := newTestHandler(t)
		rec := doJSON(t, h.Router(), http.MethodPost, "/script", `{"script": "   "}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if body["detail"] == "" {
			t.Errorf("detail がありません: %s", rec.Body)
		}
	})

	t.Run("未知のスタイルは400", func(t *testing.T) {
		h := newTestHandler(t)
		rec := doJSON(t, h.Router(), http.MethodPost, "/script", `{"script": "text", "style": "cubism"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("存在しないセッションは404", func(t *testing.T) {
		h := newTestHandler(t)
		rec := doJSON(t, h.Router(), http.MethodPost, "/characters/generate", `{"session_id": "deadbeef"}`)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
		}
	})

	t.Run("壊れたボディは400", func(t *testing.T) {
		h := newTestHandler(t)
		rec := doJSON(t, h.Router(), http.MethodPost, "/shots/edit", `{not json`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("一連の生成フローが通る", func(t *testing.T) {
		h := newTestHandler(t)
		rec := doJSON(t, h.Router(), http.MethodPost, "/script", `{"script": "Alice walks"}`)
		var created struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}

		rec = doJSON(t, h.Router(), http.MethodPost, "/characters/generate", `{"session_id": "`+created.SessionID+`"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("characters status = %d body = %s", rec.Code, rec.Body)
		}
		rec = doJSON(t, h.Router(), http.MethodPost, "/shots/generate", `{"session_id": "`+created.SessionID+`"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("shots status = %d body = %s", rec.Code, rec.Body)
		}

		rec = doJSON(t, h.Router(), http.MethodGet, "/sessions/"+created.SessionID, "")
		var sess struct {
			Shots []domain.ShotAsset `json:"shots"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(sess.Shots) != 1 || sess.Shots[0].ImageURL == "" {
			t.Errorf("shots = %+v", sess.Shots)
		}
	})
}
