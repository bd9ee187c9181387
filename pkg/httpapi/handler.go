// Package httpapi は storyboard.Service を REST として公開する薄い層です。
// ここではリクエストの形の検証とエラー種別からステータスコードへの変換だけを
// 行い、判断はすべてサービス層に委ねます。
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shouni/go-storyboard-kit/pkg/domain"
	"github.com/shouni/go-storyboard-kit/pkg/storyboard"
)

// HealthInfo は /health が返す稼働情報です。フラグは起動時の設定から確定します。
type HealthInfo struct {
	Environment    string `json:"environment"`
	BriaConfigured bool   `json:"bria_configured"`
	LLMConfigured  bool   `json:"llm_configured"`
}

// Handler は全ルートの実装です。
type Handler struct {
	svc    *storyboard.Service
	health HealthInfo
}

// NewHandler は Handler を生成します。
func NewHandler(svc *storyboard.Service, health HealthInfo) *Handler {
	return &Handler{svc: svc, health: health}
}

// Router は全ルートを束ねたルーターを返します。CORS などの
// ミドルウェアは呼び出し側で重ねます。
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.healthcheck).Methods(http.MethodGet)
	r.HandleFunc("/script", h.ingestScript).Methods(http.MethodPost)
	r.HandleFunc("/characters/generate", h.generateCharacters).Methods(http.MethodPost)
	r.HandleFunc("/characters/update", h.updateCharacter).Methods(http.MethodPost)
	r.HandleFunc("/shots/generate", h.generateShots).Methods(http.MethodPost)
	r.HandleFunc("/shots/refine", h.refineShot).Methods(http.MethodPost)
	r.HandleFunc("/shots/edit", h.editShot).Methods(http.MethodPost)
	r.HandleFunc("/shots/update", h.updateShot).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{session_id}", h.getSession).Methods(http.MethodGet)
	return r
}

func (h *Handler) healthcheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"environment":     h.health.Environment,
		"bria_configured": h.health.BriaConfigured,
		"llm_configured":  h.health.LLMConfigured,
	})
}

type scriptIngestionRequest struct {
	Script string `json:"script"`
	Style  string `json:"style"`
}

type scriptIngestionResponse struct {
	SessionID  string             `json:"session_id"`
	Style      domain.Style       `json:"style"`
	Script     string             `json:"script"`
	Characters []domain.Character `json:"characters"`
	Scenes     []domain.Scene     `json:"scenes"`
}

func (h *Handler) ingestScript(w http.ResponseWriter, r *http.Request) {
	var req scriptIngestionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	style, err := domain.ParseStyle(req.Style)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.svc.Ingest(r.Context(), req.Script, style)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, scriptIngestionResponse{
		SessionID:  sess.ID,
		Style:      sess.Style,
		Script:     sess.Script,
		Characters: sess.Characters,
		Scenes:     sess.Scenes,
	})
}

type characterGenerationRequest struct {
	SessionID      string   `json:"session_id"`
	CharacterNames []string `json:"character_names"`
}

func (h *Handler) generateCharacters(w http.ResponseWriter, r *http.Request) {
	var req characterGenerationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	assets, err := h.svc.GenerateCharacters(r.Context(), req.SessionID, req.CharacterNames)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": req.SessionID,
		"characters": assets,
	})
}

type characterUpdateRequest struct {
	SessionID   string `json:"session_id"`
	Name        string `json:"name"`
	Description string `json:"character_description"`
}

func (h *Handler) updateCharacter(w http.ResponseWriter, r *http.Request) {
	var req characterUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	characters, err := h.svc.UpdateCharacter(req.SessionID, req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": req.SessionID,
		"characters": characters,
	})
}

type shotGenerationRequest struct {
	SessionID    string `json:"session_id"`
	SceneNumbers []int  `json:"scene_numbers"`
	// SceneNumber と ShotNumber の両方が正なら単一ショット生成です。
	SceneNumber int `json:"scene_number"`
	ShotNumber  int `json:"shot_number"`
}

func (h *Handler) generateShots(w http.ResponseWriter, r *http.Request) {
	var req shotGenerationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.SceneNumber > 0 && req.ShotNumber > 0 {
		asset, err := h.svc.GenerateShot(r.Context(), req.SessionID, req.SceneNumber, req.ShotNumber)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"session_id": req.SessionID,
			"shots":      []domain.ShotAsset{*asset},
		})
		return
	}

	assets, err := h.svc.GenerateShots(r.Context(), req.SessionID, req.SceneNumbers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": req.SessionID,
		"shots":      assets,
	})
}

type shotRefineRequest struct {
	SessionID          string `json:"session_id"`
	SceneNumber        int    `json:"scene_number"`
	ShotNumber         int    `json:"shot_number"`
	EditPrompt         string `json:"edit_prompt"`
	UseReferenceImages bool   `json:"use_reference_images"`
}

func (h *Handler) refineShot(w http.ResponseWriter, r *http.Request) {
	var req shotRefineRequest
	if !decodeBody(w, r, &req) {
		return
	}

	asset, err := h.svc.RefineShot(r.Context(), req.SessionID, req.SceneNumber, req.ShotNumber, req.EditPrompt, req.UseReferenceImages)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": req.SessionID,
		"shot":       asset,
	})
}

type shotEditRequest struct {
	SessionID   string `json:"session_id"`
	SceneNumber int    `json:"scene_number"`
	ShotNumber  int    `json:"shot_number"`
	UserRequest string `json:"user_request"`
}

func (h *Handler) editShot(w http.ResponseWriter, r *http.Request) {
	var req shotEditRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.svc.EditShot(r.Context(), req.SessionID, req.SceneNumber, req.ShotNumber, req.UserRequest)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": req.SessionID,
		"decision":   res.Action,
		"shot":       res.Shot,
	})
}

type shotUpdateRequest struct {
	SessionID       string `json:"session_id"`
	SceneNumber     int    `json:"scene_number"`
	ShotNumber      int    `json:"shot_number"`
	ShotDescription string `json:"shot_description"`
	InsertBefore    bool   `json:"insert_before"`
}

func (h *Handler) updateShot(w http.ResponseWriter, r *http.Request) {
	var req shotUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.svc.UpdateShot(req.SessionID, req.SceneNumber, req.ShotNumber, req.ShotDescription, req.InsertBefore)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": req.SessionID,
		"scenes":     res.Scenes,
		"shots":      res.ShotAssets,
	})
}

type sessionResponse struct {
	SessionID       string                           `json:"session_id"`
	Style           domain.Style                     `json:"style"`
	Script          string                           `json:"script"`
	Characters      []domain.Character               `json:"characters"`
	Scenes          []domain.Scene                   `json:"scenes"`
	CharacterAssets map[string]domain.CharacterAsset `json:"character_assets"`
	Shots           []domain.ShotAsset               `json:"shots"`
}

// getSession はセッションの現在状態を返します。バッチが途中で失敗した後、
// どこまで生成済みかをクライアントが確かめるための口です。
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.GetSession(mux.Vars(r)["session_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:       sess.ID,
		Style:           sess.Style,
		Script:          sess.Script,
		Characters:      sess.Characters,
		Scenes:          sess.Scenes,
		CharacterAssets: sess.CharacterAssets,
		Shots:           sess.ShotAssetList(),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeDetail(w, http.StatusBadRequest, "リクエストボディを解釈できません")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("レスポンスの書き込みに失敗しました", "error", err)
	}
}
