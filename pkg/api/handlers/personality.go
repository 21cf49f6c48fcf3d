package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/personacore/personacore/pkg/api/middleware"
	"github.com/personacore/personacore/pkg/api/response"
	"github.com/personacore/personacore/pkg/learning"
	"github.com/personacore/personacore/pkg/personality"
)

// maxBodyBytes bounds request bodies to keep a misbehaving client from
// exhausting memory.
const maxBodyBytes = 1 << 20

// ActionObserver receives actions whose engagement should be tracked.
type ActionObserver interface {
	Observe(actionID, content string)
}

// PersonalityHandler handles the personality system endpoints.
type PersonalityHandler struct {
	system  *personality.System
	tracker ActionObserver
}

// NewPersonalityHandler creates a new personality handler. The tracker is
// optional; without one, actions are recorded but never revisited for
// engagement metrics.
func NewPersonalityHandler(system *personality.System, tracker ActionObserver) *PersonalityHandler {
	return &PersonalityHandler{
		system:  system,
		tracker: tracker,
	}
}

// ProcessContentRequest is the request body for content processing.
type ProcessContentRequest struct {
	Items []personality.ContentItem `json:"items"`
}

// ProcessContent handles POST /api/v1/content. Each item updates the
// emotional state and is stored as an observed interaction.
func (h *PersonalityHandler) ProcessContent(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req ProcessContentRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, err.Error(), requestID)
		return
	}
	if len(req.Items) == 0 {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "items must not be empty", requestID)
		return
	}

	result, err := h.system.ProcessContent(r.Context(), req.Items)
	if err != nil {
		response.HandleError(w, err, requestID)
		return
	}

	response.JSON(w, http.StatusOK, result)
}

// RecordActionRequest is the request body for recording an agent action.
type RecordActionRequest struct {
	// ID identifies the action on the host platform so engagement
	// metrics can be fetched for it later.
	ID string `json:"id"`

	// Action is the action type, e.g. "post" or "reply".
	Action string `json:"action"`

	// Content is the text the agent produced.
	Content string `json:"content"`
}

// RecordActionResponse reports the recorded action.
type RecordActionResponse struct {
	Recorded bool `json:"recorded"`
	Tracked  bool `json:"tracked"`
}

// RecordAction handles POST /api/v1/actions. The action is stored as a
// self interaction and, when an ID is supplied, queued for engagement
// tracking.
func (h *PersonalityHandler) RecordAction(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req RecordActionRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, err.Error(), requestID)
		return
	}
	if req.Action == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "action is required", requestID)
		return
	}

	if _, err := h.system.RecordAction(r.Context(), req.Action, req.Content, nil); err != nil {
		response.HandleError(w, err, requestID)
		return
	}

	tracked := false
	if h.tracker != nil && req.ID != "" {
		h.tracker.Observe(req.ID, req.Content)
		tracked = true
	}

	response.JSON(w, http.StatusAccepted, RecordActionResponse{
		Recorded: true,
		Tracked:  tracked,
	})
}

// RecordEngagementRequest is the request body for reporting engagement.
type RecordEngagementRequest struct {
	Action  string                     `json:"action"`
	Content string                     `json:"content"`
	Metrics learning.EngagementMetrics `json:"metrics"`
}

// RecordEngagementResponse reports the computed engagement score.
type RecordEngagementResponse struct {
	Score float64 `json:"score"`
}

// RecordEngagement handles POST /api/v1/engagement. The host reports
// settled platform metrics for a past action and gets back the
// engagement score that was learned from them.
func (h *PersonalityHandler) RecordEngagement(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req RecordEngagementRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, err.Error(), requestID)
		return
	}

	action := req.Action
	if action == "" {
		action = "engagement"
	}

	score, err := h.system.RecordAction(r.Context(), action, req.Content, &req.Metrics)
	if err != nil {
		response.HandleError(w, err, requestID)
		return
	}

	response.JSON(w, http.StatusOK, RecordEngagementResponse{Score: score})
}

// GetContext handles GET /api/v1/context. Query parameters "content" and
// "user" describe the current exchange so related memories rank higher.
func (h *PersonalityHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	content := r.URL.Query().Get("content")
	user := r.URL.Query().Get("user")

	ctx := h.system.DecisionContext(content, user)
	response.JSON(w, http.StatusOK, ctx)
}

// GetEmotion handles GET /api/v1/emotion.
func (h *PersonalityHandler) GetEmotion(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.system.Emotion())
}

// SaveStateResponse reports the outcome of a state save.
type SaveStateResponse struct {
	Saved    bool   `json:"saved"`
	Degraded bool   `json:"degraded"`
	Error    string `json:"error,omitempty"`
}

// SaveState handles POST /api/v1/save. It flushes memory to the durable
// store and writes the personality document.
func (h *PersonalityHandler) SaveState(w http.ResponseWriter, r *http.Request) {
	report := h.system.SaveState(r.Context())

	resp := SaveStateResponse{
		Saved:    report.Success(),
		Degraded: report.MemoryDegraded,
	}
	status := http.StatusOK
	switch {
	case report.PersonalityErr != nil:
		resp.Error = report.PersonalityErr.Error()
		status = http.StatusInternalServerError
	case report.MemoryErr != nil:
		resp.Error = report.MemoryErr.Error()
		status = http.StatusInternalServerError
	}

	response.JSON(w, status, resp)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
