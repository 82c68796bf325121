// Package stats exposes a read-only HTTP introspection surface over a job
// store: state counts, queue depths, and individual job lookup.
package stats

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jdziat/durajobs/pkg/core"
)

// Handler creates an http.Handler serving the introspection API.
//
// Usage:
//
//	mux.Handle("/stats/", http.StripPrefix("/stats", stats.Handler(storage)))
func Handler(storage core.Storage) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		counts, err := storage.CountByState(req.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, counts)
	})

	r.Get("/queues", func(w http.ResponseWriter, req *http.Request) {
		counts, err := storage.CountByQueue(req.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, counts)
	})

	r.Get("/jobs/{id}", func(w http.ResponseWriter, req *http.Request) {
		job, err := storage.GetJob(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if job == nil {
			writeError(w, http.StatusNotFound, core.ErrJobNotFound)
			return
		}
		writeJSON(w, http.StatusOK, jobView(job))
	})

	return r
}

// JobView is the JSON shape returned for a single job.
type JobView struct {
	ID          string             `json:"id"`
	Kind        string             `json:"kind"`
	Queue       string             `json:"queue"`
	Priority    int                `json:"priority"`
	State       core.JobState      `json:"state"`
	Attempt     int                `json:"attempt"`
	MaxAttempts int                `json:"max_attempts"`
	Errors      core.AttemptErrors `json:"errors,omitempty"`
	ScheduledAt string             `json:"scheduled_at"`
	AttemptedBy string             `json:"attempted_by,omitempty"`
	CreatedAt   string             `json:"created_at"`
}

func jobView(job *core.Job) JobView {
	return JobView{
		ID:          job.ID,
		Kind:        job.Kind,
		Queue:       job.Queue,
		Priority:    job.Priority,
		State:       job.State,
		Attempt:     job.Attempt,
		MaxAttempts: job.MaxAttempts,
		Errors:      job.Errors,
		ScheduledAt: job.ScheduledAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		AttemptedBy: job.AttemptedBy,
		CreatedAt:   job.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort on a response body
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
