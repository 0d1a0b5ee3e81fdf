package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/face-cluster/internal/constants"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ClusterJob is a clustering request running in the background.
type ClusterJob struct {
	EventBroadcaster

	ID              string           `json:"id"`
	Status          JobStatus        `json:"status"`
	Progress        int              `json:"progress"`
	TotalImages     int              `json:"total_images"`
	ProcessedImages int              `json:"processed_images"`
	Error           string           `json:"error,omitempty"`
	ErrorKind       string           `json:"error_kind,omitempty"`
	StartedAt       time.Time        `json:"started_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	Result          *ClusterResponse `json:"result,omitempty"`

	batch *clusterBatch
}

// GetStatus returns the current job status (implements SSEJob).
func (j *ClusterJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Snapshot returns a copy of the job's public fields that is safe to encode.
func (j *ClusterJob) Snapshot() *ClusterJob {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return &ClusterJob{
		ID:              j.ID,
		Status:          j.Status,
		Progress:        j.Progress,
		TotalImages:     j.TotalImages,
		ProcessedImages: j.ProcessedImages,
		Error:           j.Error,
		ErrorKind:       j.ErrorKind,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
		Result:          j.Result,
	}
}

// Cancel cancels the job unless it already finished.
func (j *ClusterJob) Cancel() bool {
	j.mu.Lock()
	if isJobTerminal(j.Status) {
		j.mu.Unlock()
		return false
	}
	now := time.Now()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
	j.mu.Unlock()

	j.EventBroadcaster.Cancel()
	return true
}

// imageDone records one finished image and reports the new count.
func (j *ClusterJob) imageDone() {
	j.mu.Lock()
	j.ProcessedImages++
	processed, total := j.ProcessedImages, j.TotalImages
	j.Progress = processed * 100 / max(total, 1)
	j.mu.Unlock()

	j.SendEvent(JobEvent{
		Type: "progress",
		Data: map[string]int{"processed_images": processed, "total_images": total},
	})
}

// finish moves the job to a terminal state. A job cancelled meanwhile stays cancelled.
func (j *ClusterJob) finish(status JobStatus, update func(*ClusterJob)) bool {
	now := time.Now()
	j.mu.Lock()
	defer j.mu.Unlock()
	if isJobTerminal(j.Status) {
		return false
	}
	j.Status = status
	j.CompletedAt = &now
	j.batch = nil
	update(j)
	return true
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners without blocking.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager keeps clustering jobs in memory. Finished jobs are dropped once they are
// older than the retention period.
type JobManager struct {
	jobs      map[string]*ClusterJob
	retention time.Duration
	mu        sync.RWMutex
}

// NewJobManager creates a new job manager. retention <= 0 uses constants.JobRetention.
func NewJobManager(retention time.Duration) *JobManager {
	if retention <= 0 {
		retention = constants.JobRetention
	}
	return &JobManager{
		jobs:      make(map[string]*ClusterJob),
		retention: retention,
	}
}

// CreateJob registers a pending job for batch.
func (m *JobManager) CreateJob(id string, batch *clusterBatch, cancel context.CancelFunc) *ClusterJob {
	job := &ClusterJob{
		ID:          id,
		Status:      JobStatusPending,
		TotalImages: len(batch.inputs),
		StartedAt:   time.Now(),
		batch:       batch,
	}
	job.cancel = cancel

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked(job.StartedAt)
	m.jobs[id] = job
	return job
}

func (m *JobManager) pruneLocked(now time.Time) {
	for id, job := range m.jobs {
		job.mu.RLock()
		expired := job.CompletedAt != nil && now.Sub(*job.CompletedAt) > m.retention
		job.mu.RUnlock()
		if expired {
			delete(m.jobs, id)
		}
	}
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *ClusterJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}

// CancelAll cancels every unfinished job and returns how many were cancelled.
func (m *JobManager) CancelAll() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, job := range m.jobs {
		if job.Cancel() {
			n++
		}
	}
	return n
}

// ListJobs returns snapshots of all jobs.
func (m *JobManager) ListJobs() []*ClusterJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*ClusterJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job.Snapshot())
	}
	return jobs
}
