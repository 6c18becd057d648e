package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"dwg-boq-service/internal/domain"
	"dwg-boq-service/internal/domain/model"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type jobResponse struct {
	JobID     string           `json:"job_id"`
	Status    string           `json:"status"`
	Filename  string           `json:"filename"`
	Retries   int              `json:"retries"`
	Error     string           `json:"error,omitempty"`
	Result    *model.JobResult `json:"result,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func newJobResponse(job *model.Job) jobResponse {
	resp := jobResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		Filename:  job.Filename,
		Retries:   job.Retries,
		Error:     job.LastError,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if job.Status == model.JobStatusDone {
		resp.Result = &model.JobResult{
			OutputPath:  "/api/v1/jobs/" + job.ID + "/result",
			ItemsParsed: job.ItemsParsed,
			UniqueItems: job.UniqueItems,
			Exceptions:  job.Exceptions,
		}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: code})
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			Status string `json:"status"`
		}{Status: "ok"})
	}
}

// uploadHandler accepts a multipart drawing upload and returns 202 with
// the queued job.
func uploadHandler(jobs JobService, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "upload_too_large")
				return
			}
			writeError(w, http.StatusBadRequest, "missing_file")
			return
		}
		defer file.Close()

		job, err := jobs.Submit(ctx, header.Filename, file)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrUnsupportedFormat):
				writeError(w, http.StatusUnsupportedMediaType, "unsupported_format")
			case errors.Is(err, domain.ErrQueueUnavailable):
				writeError(w, http.StatusServiceUnavailable, "queue_unavailable")
			case errors.Is(err, domain.ErrInvalidArgument):
				writeError(w, http.StatusBadRequest, "invalid_upload")
			default:
				writeError(w, http.StatusInternalServerError, "submission_failed")
			}
			return
		}

		writeJSON(w, http.StatusAccepted, newJobResponse(job))
	}
}

func statusHandler(jobs JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		job, err := jobs.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, "job_not_found")
				return
			}
			writeError(w, http.StatusInternalServerError, "status_lookup_failed")
			return
		}
		writeJSON(w, http.StatusOK, newJobResponse(job))
	}
}

// resultHandler streams the generated workbook. The download name carries
// the job id so repeated exports do not collide on the client side.
func resultHandler(jobs JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		path, name, err := jobs.Result(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				writeError(w, http.StatusNotFound, "job_not_found")
			case errors.Is(err, domain.ErrOutputNotReady):
				writeError(w, http.StatusNotFound, "result_not_ready")
			default:
				writeError(w, http.StatusInternalServerError, "result_lookup_failed")
			}
			return
		}

		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		http.ServeFile(w, r, path)
	}
}

// listHandler returns a paginated job list for the admin API.
// It accepts 'offset' and 'limit' query parameters.
func listHandler(jobs JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		if offset < 0 {
			offset = 0
		}

		list, err := jobs.List(r.Context(), offset, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list_failed")
			return
		}

		data := make([]jobResponse, 0, len(list))
		for _, job := range list {
			data = append(data, newJobResponse(job))
		}
		writeJSON(w, http.StatusOK, struct {
			Data   []jobResponse `json:"data"`
			Limit  int           `json:"limit"`
			Offset int           `json:"offset"`
		}{Data: data, Limit: limit, Offset: offset})
	}
}

func statsHandler(stats StatsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		byStatus, depth, err := stats.Totals(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "stats_failed")
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Jobs       map[string]int `json:"jobs_by_status"`
			QueueDepth int64          `json:"queue_depth"`
		}{Jobs: byStatus, QueueDepth: depth})
	}
}

func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			APIKey string `json:"api_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body")
			return
		}
		if s.apiKey == "" || subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(s.apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		token, err := s.auth.Mint(w)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "session_mint_failed")
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Token string `json:"token"`
		}{Token: token})
	}
}

func (s *Server) logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.auth.Clear(w)
		w.WriteHeader(http.StatusNoContent)
	}
}
