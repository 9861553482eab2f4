package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/taskmaster-ai/taskmaster/internal/auth"
	"github.com/taskmaster-ai/taskmaster/internal/core"
	"github.com/taskmaster-ai/taskmaster/internal/store"
	"github.com/taskmaster-ai/taskmaster/internal/tasks"
)

const defaultSearchK = core.NumRelevantChunks

type contextKey string

const subjectKey contextKey = "subject"

// Subject returns the authenticated user name stored by JWTAuthMiddleware.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey).(string)
	return s
}

// Credentials is the single account allowed to log in.
type Credentials struct {
	User     string
	Password string
}

type APIHandler struct {
	tasks     *core.TaskService
	breakdown *core.BreakdownService
	issuer    *auth.Issuer
	admin     Credentials
	logger    *zap.Logger
}

func NewAPIHandler(ts *core.TaskService, bs *core.BreakdownService, issuer *auth.Issuer, admin Credentials, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{tasks: ts, breakdown: bs, issuer: issuer, admin: admin, logger: logger}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		subject, err := h.issuer.Validate(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	if err := auth.CheckCredentials(req.UserID, req.Password, h.admin.User, h.admin.Password); err != nil {
		h.logger.Info("failed login", zap.String("user", req.UserID))
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.issuer.Generate(req.UserID)
	if err != nil {
		h.logger.Error("failed to generate token", zap.String("user", req.UserID), zap.Error(err))
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type ExtractRequest struct {
	SourceName string `json:"source_name"`
	Content    string `json:"content"`
}

func (h *APIHandler) ExtractHandler(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.SourceName == "" {
		req.SourceName = "pasted_text"
	}

	res, err := h.tasks.ExtractAndSave(r.Context(), req.SourceName, req.Content)
	if err != nil {
		h.fail(w, "Failed to extract tasks", err)
		return
	}
	status := http.StatusOK
	if res.Status == core.StatusSaved {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

type IngestRequest struct {
	SourceName string          `json:"source_name"`
	Content    string          `json:"content"`
	Tasks      json.RawMessage `json:"tasks"`
	SkipIndex  bool            `json:"skip_index"`
}

type IngestResponse struct {
	*core.ExtractResult
	Rejected []tasks.FieldError `json:"rejected,omitempty"`
}

// IngestHandler stores tasks that were produced outside the model, such as
// imports from another tracker. They go through the same validation.
func (h *APIHandler) IngestHandler(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.SourceName == "" || len(req.Tasks) == 0 {
		http.Error(w, "source_name and tasks are required", http.StatusBadRequest)
		return
	}

	tl, rejected, err := tasks.Validate(req.Tasks)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	content := req.Content
	if content == "" {
		content = string(req.Tasks)
	}

	res, err := h.tasks.SaveTasks(r.Context(), req.SourceName, content, tl, req.SkipIndex)
	if err != nil {
		h.fail(w, "Failed to save tasks", err)
		return
	}
	status := http.StatusOK
	if res.Status == core.StatusSaved {
		status = http.StatusCreated
	}
	writeJSON(w, status, IngestResponse{ExtractResult: res, Rejected: rejected})
}

func (h *APIHandler) ListTasksHandler(w http.ResponseWriter, r *http.Request) {
	items, err := h.tasks.ListTasks(r.Context())
	if err != nil {
		h.fail(w, "Failed to list tasks", err)
		return
	}
	if items == nil {
		items = []store.ActionItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *APIHandler) GetTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	item, err := h.tasks.GetTask(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to get task", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *APIHandler) ListSourcesHandler(w http.ResponseWriter, r *http.Request) {
	docs, err := h.tasks.ListSources(r.Context())
	if err != nil {
		h.fail(w, "Failed to list sources", err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *APIHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.tasks.Stats(r.Context())
	if err != nil {
		h.fail(w, "Failed to count tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type UpdateTaskRequest struct {
	Description *string `json:"task_description"`
	Project     *string `json:"project"`
	DueDate     *string `json:"due_date"`
	Status      *string `json:"status"`
	DependsOnID *int64  `json:"depends_on_id"`
}

func (h *APIHandler) UpdateTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	upd := store.TaskUpdate{
		Description: req.Description,
		Project:     req.Project,
		DueDate:     req.DueDate,
		DependsOnID: req.DependsOnID,
	}
	if req.Status != nil {
		st, known := tasks.ParseStatus(*req.Status)
		if !known {
			http.Error(w, "Unknown status: "+*req.Status, http.StatusBadRequest)
			return
		}
		upd.Status = &st
	}
	if upd.Empty() {
		http.Error(w, "Nothing to update", http.StatusBadRequest)
		return
	}

	item, err := h.tasks.UpdateTask(r.Context(), id, upd)
	if err != nil {
		h.fail(w, "Failed to update task", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *APIHandler) DeleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	if err := h.tasks.DeleteTask(r.Context(), id); err != nil {
		h.fail(w, "Failed to delete task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) PrioritizeHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := h.tasks.Prioritize(r.Context())
	if err != nil {
		h.fail(w, "Failed to prioritize tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

type BreakdownRequest struct {
	Goal       string `json:"goal"`
	UseContext bool   `json:"use_context"`
}

func (h *APIHandler) BreakdownHandler(w http.ResponseWriter, r *http.Request) {
	var req BreakdownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	res, err := h.breakdown.Breakdown(r.Context(), req.Goal, req.UseContext)
	if err != nil {
		h.fail(w, "Failed to break down goal", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type SaveBreakdownRequest struct {
	Goal  string          `json:"goal"`
	Tasks json.RawMessage `json:"tasks"`
}

// SaveBreakdownHandler stores reviewed sub-tasks. The client may have edited
// them, so they are validated again like any other import.
func (h *APIHandler) SaveBreakdownHandler(w http.ResponseWriter, r *http.Request) {
	var req SaveBreakdownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Tasks) == 0 {
		http.Error(w, "tasks are required", http.StatusBadRequest)
		return
	}
	tl, rejected, err := tasks.Validate(req.Tasks)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.breakdown.SaveBreakdown(r.Context(), req.Goal, tl)
	if err != nil {
		h.fail(w, "Failed to save breakdown", err)
		return
	}
	status := http.StatusOK
	if res.Outcome == core.OutcomeSuccess {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"outcome":  res.Outcome,
		"source":   res.Source,
		"items":    res.Items,
		"rejected": rejected,
	})
}

type AddContextRequest struct {
	SourceName string `json:"source_name"`
	Content    string `json:"content"`
}

func (h *APIHandler) AddContextHandler(w http.ResponseWriter, r *http.Request) {
	var req AddContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	id, err := h.breakdown.AddContext(r.Context(), req.SourceName, req.Content)
	if err != nil {
		h.fail(w, "Failed to add context", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"vector_id": id, "size": h.breakdown.ContextSize()})
}

func (h *APIHandler) SearchContextHandler(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		http.Error(w, "Query parameter q is required", http.StatusBadRequest)
		return
	}
	k := defaultSearchK
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "k must be a positive integer", http.StatusBadRequest)
			return
		}
		k = n
	}
	writeJSON(w, http.StatusOK, map[string][]string{"results": h.breakdown.SearchContext(r.Context(), q, k)})
}

func (h *APIHandler) ResetContextHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.breakdown.ResetContext(); err != nil {
		h.fail(w, "Failed to reset context", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "taskID"), 10, 64)
	if err != nil || id < 1 {
		http.Error(w, "Invalid task id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// fail maps service errors onto status codes. Anything not recognised is
// an upstream (model or storage) failure.
func (h *APIHandler) fail(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Task not found", http.StatusNotFound)
	case errors.Is(err, core.ErrEmptyContent),
		errors.Is(err, store.ErrEmptyDescription),
		errors.Is(err, tasks.ErrInvalidStatus),
		errors.Is(err, tasks.ErrInvalidTask):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, core.ErrIndexUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled):
		h.logger.Info(msg, zap.Error(err))
		http.Error(w, "Request cancelled", http.StatusServiceUnavailable)
	default:
		h.logger.Error(msg, zap.Error(err))
		http.Error(w, msg, http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
