// Package handlers exposes the read-only HTTP surface: health plus task and
// template listings. Task mutation flows through the chat platform, not
// through HTTP.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"taskbot/internal/logger"
	"taskbot/internal/service"
)

const defaultListLimit = 50

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type TaskHandler struct {
	tasks     *service.TaskService
	templates *service.TemplateService
	health    HealthChecker
}

func NewTaskHandler(tasks *service.TaskService, templates *service.TemplateService, health HealthChecker) *TaskHandler {
	return &TaskHandler{
		tasks:     tasks,
		templates: templates,
		health:    health,
	}
}

func (h *TaskHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/tasks", h.GetActiveTasks)
	r.Get("/tasks/overdue", h.GetOverdueTasks)
	r.Get("/tasks/{publicID}", h.GetTaskByPublicID)
	r.Get("/templates", h.GetTemplates)
	r.Get("/health", h.HealthCheck)
	return r
}

func (h *TaskHandler) GetActiveTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.ListActive(r.Context(), queryLimit(r))
	if err != nil {
		logger.Error("HTTP: service error", err, zap.String("operation", "list_active"))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	responseWithJSON(w, http.StatusOK, fromTaskList(tasks))
}

func (h *TaskHandler) GetOverdueTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.ListOverdue(r.Context(), queryLimit(r))
	if err != nil {
		logger.Error("HTTP: service error", err, zap.String("operation", "list_overdue"))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	responseWithJSON(w, http.StatusOK, fromTaskList(tasks))
}

func (h *TaskHandler) GetTaskByPublicID(w http.ResponseWriter, r *http.Request) {
	publicID := chi.URLParam(r, "publicID")
	if publicID == "" {
		responseWithError(w, http.StatusBadRequest, "public id must be set")
		return
	}

	task, err := h.tasks.GetByPublicID(r.Context(), publicID)
	if err != nil {
		status := businessStatus(err)
		if status == http.StatusInternalServerError {
			logger.Error("HTTP: service error", err, zap.String("operation", "get_task"))
		}
		responseWithError(w, status, err.Error())
		return
	}
	responseWithJSON(w, http.StatusOK, fromTask(task, time.Now()))
}

func (h *TaskHandler) GetTemplates(w http.ResponseWriter, r *http.Request) {
	creatorID, err := strconv.ParseInt(r.URL.Query().Get("creator_id"), 10, 64)
	if err != nil {
		responseWithError(w, http.StatusBadRequest, "creator_id must be an integer")
		return
	}

	templates, err := h.templates.List(r.Context(), creatorID)
	if err != nil {
		logger.Error("HTTP: service error", err, zap.String("operation", "list_templates"))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	responseWithJSON(w, http.StatusOK, fromTemplateList(templates))
}

func (h *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.health.HealthCheck(r.Context()); err != nil {
		responseWithError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	responseWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return limit
}
