// Package httpapi exposes the control plane's REST surface (job submit,
// status, and result), routed with gorilla/mux, plus a /healthz liveness
// probe.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/crawlctl/crawlctl/internal/apperr"
	"github.com/crawlctl/crawlctl/internal/jid"
	"github.com/crawlctl/crawlctl/internal/job"
	"github.com/crawlctl/crawlctl/internal/logging"
)

// NewRouter builds the full HTTP surface over svc.
func NewRouter(svc *jid.Service) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/jobs", handleSubmit(svc)).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/jobs/{jobId}/status", handleStatus(svc)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/jobs/{jobId}/result", handleResult(svc)).Methods(http.MethodGet)
	return r
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type submitRequestBody struct {
	Urls      []string `json:"urls"`
	UserID    string   `json:"userId,omitempty"`
	Priority  string   `json:"priority,omitempty"`
	UserAgent string   `json:"userAgent,omitempty"`
}

type submitResponseBody struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

func handleSubmit(svc *jid.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body submitRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, apperr.InvalidInput("malformed request body", err.Error()))
			return
		}

		j, err := svc.Submit(r.Context(), jid.SubmitRequest{
			Urls:      body.Urls,
			UserID:    body.UserID,
			Priority:  job.ParsePriority(body.Priority),
			UserAgent: body.UserAgent,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, submitResponseBody{
			JobID:  j.ID,
			Status: j.Status.Wire(),
		})
	}
}

type timestamps struct {
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// statusResponseBody always carries the liveMessage key; it is null
// whenever there is no live view to report.
type statusResponseBody struct {
	JobID         string     `json:"jobId"`
	Status        string     `json:"status"`
	LiveMessage   *string    `json:"liveMessage"`
	UrlsSubmitted int        `json:"urlsSubmitted"`
	UrlsSucceeded int        `json:"urlsSucceeded"`
	UrlsFailed    int        `json:"urlsFailed"`
	Timestamps    timestamps `json:"timestamps"`
}

func handleStatus(svc *jid.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := mux.Vars(r)["jobId"]

		live, persisted, err := svc.Status(r.Context(), jobID)
		if err != nil {
			writeError(w, err)
			return
		}

		if live != nil {
			writeJSON(w, http.StatusOK, statusResponseBody{
				JobID:         jobID,
				Status:        live.Status.Wire(),
				LiveMessage:   &live.Message,
				UrlsSubmitted: live.UrlsSubmitted,
				UrlsSucceeded: live.UrlsSucceeded,
				UrlsFailed:    live.UrlsFailed,
			})
			return
		}

		writeJSON(w, http.StatusOK, statusResponseBody{
			JobID:         persisted.ID,
			Status:        persisted.Status.Wire(),
			UrlsSubmitted: persisted.UrlsSubmitted,
			UrlsSucceeded: persisted.UrlsSucceeded,
			UrlsFailed:    persisted.UrlsFailed,
			Timestamps: timestamps{
				CreatedAt:   persisted.CreatedAt,
				StartedAt:   persisted.StartedAt,
				CompletedAt: persisted.CompletedAt,
			},
		})
	}
}

func handleResult(svc *jid.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := mux.Vars(r)["jobId"]

		j, err := svc.Result(r.Context(), jobID)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(j.ResultArtifact))
	}
}

// errorResponseBody is the {status, message, details} envelope every
// non-2xx response carries.
type errorResponseBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.Internal("unexpected internal error", err)
	}
	status := appErr.Kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logging.Get().Error("request failed", "kind", appErr.Kind.String(), "error", appErr.Error())
	}
	writeJSON(w, status, errorResponseBody{
		Status:  status,
		Message: appErr.Message,
		Details: appErr.Details,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Get().Error("failed to encode response body", "error", err)
	}
}
