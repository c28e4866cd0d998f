package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/talentscore/internal/domain"
	"github.com/timmy/talentscore/internal/logger"
	"github.com/timmy/talentscore/internal/service"
)

// ScoringJobHandler serves the scoring job endpoints.
type ScoringJobHandler struct {
	scoringService *service.ScoringService
}

// NewScoringJobHandler creates a new scoring job handler.
// Parameters:
//   - scoringService: scoring service instance.
// Returns:
//   - *ScoringJobHandler: initialized handler.
func NewScoringJobHandler(scoringService *service.ScoringService) *ScoringJobHandler {
	return &ScoringJobHandler{scoringService: scoringService}
}

// CreateJobRequest is the body of POST /scoring-jobs. Prompt is accepted as
// an alias of RawPromptText.
type CreateJobRequest struct {
	ProfileID     string `json:"profile_id"`
	TemplateID    string `json:"template_id"`
	RawPromptText string `json:"raw_prompt_text"`
	Prompt        string `json:"prompt"`
}

// JobAccepted is returned by create and retry.
type JobAccepted struct {
	JobID  string           `json:"job_id"`
	Status domain.JobStatus `json:"status"`
}

// PromptSourceView shows which prompt form a job uses.
type PromptSourceView struct {
	Kind          domain.PromptSourceKind `json:"kind"`
	TemplateID    string                  `json:"template_id,omitempty"`
	RawPromptText string                  `json:"raw_prompt_text,omitempty"`
}

// JobView is the API representation of a scoring job. Attempts counts the
// model calls of the latest execution, so rate-limit and timeout retries
// inside one execution show up there. RetryCount only counts explicit
// retries of a failed job.
type JobView struct {
	ID           string                `json:"id"`
	ProfileID    string                `json:"profile_id"`
	Status       domain.JobStatus      `json:"status"`
	PromptSource PromptSourceView      `json:"prompt_source"`
	Result       *domain.ScoringResult `json:"result,omitempty"`
	Error        *domain.JobError      `json:"error,omitempty"`
	RetryCount   int                   `json:"retry_count"`
	Attempts     int                   `json:"attempts"`
	TokensUsed   int                   `json:"tokens_used"`
	Model        string                `json:"model,omitempty"`
	ArchiveKey   string                `json:"archive_key,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
}

// ListJobsResponse is the body of GET /scoring-jobs.
type ListJobsResponse struct {
	Total   int64     `json:"total"`
	Limit   int       `json:"limit"`
	Offset  int       `json:"offset"`
	Results []JobView `json:"results"`
}

// NewJobView converts a job for output. Result and error are only shown for
// the status they belong to.
func NewJobView(job *domain.ScoringJob) JobView {
	view := JobView{
		ID:          job.ID,
		ProfileID:   job.ProfileID,
		Status:      job.Status,
		RetryCount:  job.RetryCount,
		Attempts:    job.Attempts,
		TokensUsed:  job.TokensUsed,
		Model:       job.Model,
		ArchiveKey:  job.ArchiveKey,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		CompletedAt: job.CompletedAt,
	}
	view.PromptSource.Kind = job.PromptSource.Kind
	if job.PromptSource.Kind == domain.PromptSourceTemplate {
		view.PromptSource.TemplateID = job.PromptSource.Ref
	} else {
		view.PromptSource.RawPromptText = job.PromptSource.Ref
	}
	switch job.Status {
	case domain.JobStatusCompleted:
		view.Result = job.Result
	case domain.JobStatusFailed:
		view.Error = job.Error
	}
	return view
}

// CreateJob handles POST /api/v1/scoring-jobs.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *ScoringJobHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	raw := req.RawPromptText
	if strings.TrimSpace(raw) == "" {
		raw = req.Prompt
	}

	job, err := h.scoringService.CreateJob(c.Request.Context(), service.CreateJobRequest{
		ProfileID:  req.ProfileID,
		TemplateID: req.TemplateID,
		Prompt:     raw,
	})
	if err != nil {
		extra := gin.H{}
		if job != nil {
			extra["job_id"] = job.ID
			extra["status"] = job.Status
		}
		respondError(c, err, extra)
		return
	}

	c.JSON(http.StatusCreated, JobAccepted{JobID: job.ID, Status: job.Status})
}

// GetJob handles GET /api/v1/scoring-jobs/:id.
func (h *ScoringJobHandler) GetJob(c *gin.Context) {
	job, err := h.scoringService.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, NewJobView(job))
}

// RetryJob handles POST /api/v1/scoring-jobs/:id/retry.
func (h *ScoringJobHandler) RetryJob(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	job, err := h.scoringService.RetryJob(ctx, id)
	if err != nil {
		logger.CtxWarn(ctx, "Retry rejected: job_id=%s, error=%v", id, err)
		extra := gin.H{}
		if job != nil {
			extra["job_id"] = job.ID
			extra["status"] = job.Status
		}
		respondError(c, err, extra)
		return
	}

	c.JSON(http.StatusOK, JobAccepted{JobID: job.ID, Status: job.Status})
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &domain.ValidationError{Field: name, Message: "must be an integer, got " + strconv.Quote(raw)}
	}
	return n, nil
}

// ListJobs handles GET /api/v1/scoring-jobs.
func (h *ScoringJobHandler) ListJobs(c *gin.Context) {
	limit, err := queryInt(c, "limit", domain.DefaultListLimit)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	filter := domain.ListFilter{
		ProfileID: c.Query("profile_id"),
		Status:    domain.JobStatus(c.Query("status")),
		Limit:     limit,
		Offset:    offset,
	}.Normalize()

	jobs, total, err := h.scoringService.ListJobs(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, nil)
		return
	}

	resp := ListJobsResponse{
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		Results: make([]JobView, 0, len(jobs)),
	}
	for i := range jobs {
		resp.Results = append(resp.Results, NewJobView(&jobs[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// DispatcherStats reports worker pool counters.
type DispatcherStats interface {
	Stats() service.DispatcherStats
}

// StatsHandler serves GET /api/v1/stats.
type StatsHandler struct {
	scoringService *service.ScoringService
	dispatcher     DispatcherStats
}

func NewStatsHandler(scoringService *service.ScoringService, dispatcher DispatcherStats) *StatsHandler {
	return &StatsHandler{scoringService: scoringService, dispatcher: dispatcher}
}

// GetStats returns job counts by status and dispatcher counters.
func (h *StatsHandler) GetStats(c *gin.Context) {
	counts, err := h.scoringService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	jobs := gin.H{}
	for _, status := range []domain.JobStatus{domain.JobStatusPending, domain.JobStatusProcessing, domain.JobStatusCompleted, domain.JobStatusFailed} {
		jobs[string(status)] = counts[status]
	}

	body := gin.H{"jobs": jobs}
	if h.dispatcher != nil {
		body["dispatcher"] = h.dispatcher.Stats()
	}
	c.JSON(http.StatusOK, body)
}
