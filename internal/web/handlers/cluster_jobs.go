package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/face-cluster/internal/cluster"
	"github.com/kozaktomas/face-cluster/internal/constants"
)

const (
	errMissingJobID = "missing job ID"
	errJobNotFound  = "job not found"
)

// ClusterJobHandler runs clustering requests in the background and streams their progress.
type ClusterJobHandler struct {
	*ClusterHandler
	jobManager *JobManager
}

// NewClusterJobHandler creates a job handler sharing request parsing with ch.
func NewClusterJobHandler(ch *ClusterHandler, jm *JobManager) *ClusterJobHandler {
	return &ClusterJobHandler{ClusterHandler: ch, jobManager: jm}
}

// Start handles POST /api/v1/cluster/jobs. It accepts the same body as Cluster.
func (h *ClusterJobHandler) Start(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.readBatch(w, r)
	if !ok {
		return
	}

	// The job outlives the request, so it gets its own deadline.
	timeout := h.config.Server.RequestTimeout
	if timeout <= 0 {
		timeout = constants.DefaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	job := h.jobManager.CreateJob(uuid.New().String(), batch, cancel)

	go h.runClusterJob(ctx, job)

	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id":       job.ID,
		"status":       string(JobStatusPending),
		"total_images": job.TotalImages,
	})
}

// List returns all retained jobs, newest first.
func (h *ClusterJobHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobManager.ListJobs()
	slices.SortFunc(jobs, func(a, b *ClusterJob) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	respondJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

// lookupJob reads the jobId URL parameter and writes 400/404 when it does not resolve.
func (h *ClusterJobHandler) lookupJob(w http.ResponseWriter, r *http.Request) *ClusterJob {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, errMissingJobID)
		return nil
	}
	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, errJobNotFound)
		return nil
	}
	return job
}

// Status returns the state of a clustering job, including the result once completed.
func (h *ClusterJobHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.lookupJob(w, r)
	if job == nil {
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events streams job events via SSE
func (h *ClusterJobHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobManager.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job.(*ClusterJob).Snapshot()
		},
	)
}

// Cancel cancels a clustering job
func (h *ClusterJobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.lookupJob(w, r)
	if job == nil {
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": job.Cancel()})
}

func (h *ClusterJobHandler) runClusterJob(ctx context.Context, job *ClusterJob) {
	defer job.cancel()

	job.mu.Lock()
	batch := job.batch
	if job.Status == JobStatusPending {
		job.Status = JobStatusRunning
	}
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "started", Message: "Clustering job started"})

	log := slog.With("job_id", job.ID)
	report, err := h.identifier.Identify(ctx, batch.inputs, batch.params, job.imageDone)
	if err != nil {
		h.failClusterJob(job, log, err)
		return
	}

	resp := buildClusterResponse(report, batch.images)
	if job.finish(JobStatusCompleted, func(j *ClusterJob) {
		j.Progress = 100
		j.Result = &resp
	}) {
		job.SendEvent(JobEvent{Type: "completed", Data: resp})
	}
}

func (h *ClusterJobHandler) failClusterJob(job *ClusterJob, log *slog.Logger, err error) {
	if errors.Is(err, context.Canceled) {
		// Cancel already moved the job to its terminal state.
		job.mu.Lock()
		job.batch = nil
		job.mu.Unlock()
		log.Info("clustering job cancelled")
		return
	}

	message, kind := err.Error(), cluster.KindOf(err).String()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		message = "clustering timed out"
	case cluster.KindOf(err) == cluster.KindInputEmpty:
		message = inputEmptyMessage(err)
	}
	log.Warn("clustering job failed", "kind", kind, "error", err)

	if job.finish(JobStatusFailed, func(j *ClusterJob) {
		j.Error = message
		j.ErrorKind = kind
	}) {
		job.SendEvent(JobEvent{Type: "job_error", Message: message, Data: map[string]string{"kind": kind}})
	}
}
