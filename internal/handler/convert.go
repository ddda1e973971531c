package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/form"
	"github.com/webitel/wlog"

	"github.com/webitel/video_converter/infra/httpsrv"
	"github.com/webitel/video_converter/internal/model"
	"github.com/webitel/video_converter/internal/service"
)

type SchedulerService interface {
	Submit(src, dst string, params *model.ConvertParams) (*model.Job, error)
	GetJob(id string) (*model.Job, error)
	ListJobs(status string) ([]*model.Job, error)
	Cancel(id string) error
	Health() (*service.Health, error)
}

// Converter exposes the scheduler to the gateway over HTTP JSON.
// Authentication happens upstream; this surface is internal.
type Converter struct {
	log     *wlog.Logger
	svc     SchedulerService
	decoder *form.Decoder
}

type convertRequest struct {
	SourcePath      string `json:"source_path"`
	DestinationPath string `json:"destination_path"`
	// pointer keeps an explicit quality 0 apart from an omitted field
	Quality      *int   `json:"quality"`
	Resolution   string `json:"resolution"`
	VideoBitrate int    `json:"video_bitrate"`
	AudioBitrate int    `json:"audio_bitrate"`
}

type listRequest struct {
	Status string `form:"status"`
}

func NewConverter(svc SchedulerService, s *httpsrv.Server, l *wlog.Logger) *Converter {
	h := &Converter{
		svc:     svc,
		log:     l,
		decoder: form.NewDecoder(),
	}

	s.HandleFunc("POST /convert", h.convert)
	s.HandleFunc("GET /job/{id}", h.getJob)
	s.HandleFunc("GET /jobs", h.listJobs)
	s.HandleFunc("POST /cancel/{id}", h.cancel)
	s.HandleFunc("GET /health", h.health)

	return h
}

func (h *Converter) convert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, model.NewValidationError("body", "malformed json"))

		return
	}

	j, err := h.svc.Submit(req.SourcePath, req.DestinationPath, &model.ConvertParams{
		Quality:      req.Quality,
		Resolution:   req.Resolution,
		VideoBitrate: req.VideoBitrate,
		AudioBitrate: req.AudioBitrate,
	})
	if err != nil {
		h.writeError(w, err)

		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{"id": j.ID})
}

func (h *Converter) getJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.svc.GetJob(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)

		return
	}

	h.writeJSON(w, http.StatusOK, j)
}

func (h *Converter) listJobs(w http.ResponseWriter, r *http.Request) {
	var req listRequest

	if err := h.decoder.Decode(&req, r.URL.Query()); err != nil {
		h.writeError(w, model.NewValidationError("query", "malformed query"))

		return
	}

	jobs, err := h.svc.ListJobs(req.Status)
	if err != nil {
		h.writeError(w, err)

		return
	}

	if jobs == nil {
		jobs = []*model.Job{}
	}

	h.writeJSON(w, http.StatusOK, jobs)
}

func (h *Converter) cancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.svc.Cancel(id); err != nil {
		h.writeError(w, err)

		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Converter) health(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Health()
	if err != nil {
		h.writeError(w, err)

		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":         st.Status,
		"running":        st.Running,
		"pending":        st.Pending,
		"completed":      st.Completed,
		"failed":         st.Failed,
		"cancelled":      st.Cancelled,
		"cpu_percent":    st.Resources.CPUPercent,
		"memory_percent": st.Resources.MemoryPercent,
		"disk_free_gb":   float64(st.Resources.DiskFree) / (1 << 30),
	})
}

func (h *Converter) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error(err.Error(), wlog.Err(err))
	}
}

func (h *Converter) writeError(w http.ResponseWriter, err error) {
	var (
		valErr   *model.ValidationError
		nfErr    *model.NotFoundError
		stateErr *model.InvalidStateError
	)

	code := http.StatusInternalServerError

	switch {
	case errors.As(err, &valErr):
		code = http.StatusBadRequest
	case errors.As(err, &nfErr):
		code = http.StatusNotFound
	case errors.As(err, &stateErr):
		code = http.StatusConflict
	default:
		h.log.Error(err.Error(), wlog.Err(err))
	}

	h.writeJSON(w, code, map[string]string{"error": err.Error()})
}
