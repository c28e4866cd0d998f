package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/talentscore/internal/logger"
	"github.com/timmy/talentscore/internal/repository"
	"github.com/timmy/talentscore/internal/service"
	"github.com/timmy/talentscore/internal/storage"
)

// AdminHandler exposes operator recovery for stuck jobs and audit lookups.
type AdminHandler struct {
	sweeper *service.RecoverySweeper
	store   repository.ScoringJobStore
	archive *storage.AuditArchive
	logger  *logger.Logger
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - sweeper: recovery sweeper instance.
//   - store: job store, used to locate audit records.
//   - archive: audit archive, nil when object storage is disabled.
//   - log: logger instance.
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(sweeper *service.RecoverySweeper, store repository.ScoringJobStore, archive *storage.AuditArchive, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		sweeper: sweeper,
		store:   store,
		archive: archive,
		logger:  log,
	}
}

// log returns a logger from Gin context if available, otherwise returns the default logger
func (h *AdminHandler) log(c *gin.Context) *logger.Logger {
	if l := logger.FromContext(c.Request.Context()); l != nil {
		return l
	}
	return h.logger
}

// ListStale handles GET /api/v1/admin/stale.
func (h *AdminHandler) ListStale(c *gin.Context) {
	jobs, err := h.sweeper.ListStale(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	views := make([]JobView, 0, len(jobs))
	for i := range jobs {
		views = append(views, NewJobView(&jobs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"total": len(views), "results": views})
}

// Sweep handles POST /api/v1/admin/sweep.
func (h *AdminHandler) Sweep(c *gin.Context) {
	report, err := h.sweeper.Sweep(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	h.log(c).WithFields(logger.Fields{
		"stale":        len(report.Stale),
		"redispatched": len(report.Redispatched),
	}).Info("Manual recovery sweep completed")
	c.JSON(http.StatusOK, report)
}

// Recover handles POST /api/v1/admin/scoring-jobs/:id/recover.
func (h *AdminHandler) Recover(c *gin.Context) {
	id := c.Param("id")
	job, err := h.sweeper.Recover(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	h.log(c).WithField(logger.FieldJobID, id).Warn("Job recovered by operator")
	c.JSON(http.StatusOK, NewJobView(job))
}

// GetAudit handles GET /api/v1/admin/scoring-jobs/:id/audit.
func (h *AdminHandler) GetAudit(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "audit archive is not configured"})
		return
	}
	ctx := c.Request.Context()
	job, err := h.store.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	if job.ArchiveKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "job has no audit record"})
		return
	}
	record, err := h.archive.Read(ctx, job.ArchiveKey)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"key":    job.ArchiveKey,
		"url":    h.archive.URL(job.ArchiveKey),
		"record": record,
	})
}
