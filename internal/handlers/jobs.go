package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/db"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/inventory"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/service"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/workflow"
)

// JobService is the job API the handlers drive.
type JobService interface {
	CreateJob(ctx context.Context, actor models.Actor, in workflow.JobInput) (*models.Job, error)
	Lookup(ctx context.Context, plate string) (service.LookupResult, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context, filter db.JobFilter) ([]models.Job, error)
	UpdateDetails(ctx context.Context, actor models.Actor, id string, in workflow.DetailsInput) (*models.Job, error)
	Transition(ctx context.Context, actor models.Actor, id, stage string) (*models.Job, error)
	ActivateRework(ctx context.Context, actor models.Actor, id, reason, mechanic string) (*models.Job, error)
	ClearRework(ctx context.Context, actor models.Actor, id string) (*models.Job, error)
	AddMechanicLog(ctx context.Context, actor models.Actor, id string, in workflow.MechanicLogInput) (*models.Job, error)
	SaveEstimate(ctx context.Context, actor models.Actor, id string, in workflow.EstimateInput, finalize bool) (*models.Job, error)
	CloseCosts(ctx context.Context, actor models.Actor, id string, req service.CloseRequest) (*models.Job, error)
	Reopen(ctx context.Context, actor models.Actor, id string) (*models.Job, error)
	ConfirmParts(ctx context.Context, actor models.Actor, id string, lines []workflow.PartConfirmation) (*models.Job, error)
	MoveParts(ctx context.Context, actor models.Actor, id string, action workflow.PartAction) (*models.Job, error)
	CancelParts(ctx context.Context, actor models.Actor, id string) (*models.Job, error)
	AssignMaterials(ctx context.Context, actor models.Actor, id string, lines []inventory.MaterialLine) (service.MaterialsResult, error)
	AddFollowUp(ctx context.Context, actor models.Actor, id string, in workflow.FollowUpInput) (*models.Job, error)
	RecordSurvey(ctx context.Context, actor models.Actor, id string, in workflow.SurveyInput) (*models.Job, error)
	CompleteSATask(ctx context.Context, actor models.Actor, id, task string) (*models.Job, error)
	UploadPhoto(ctx context.Context, actor models.Actor, id string, up service.PhotoUpload) (*models.Job, error)
	DeletePhoto(ctx context.Context, actor models.Actor, id, photoID string) (*models.Job, error)
	DownloadPhoto(ctx context.Context, fileID string, w io.Writer) (int64, error)
}

// JobHandler serves /api/jobs.
type JobHandler struct {
	jobs JobService
}

func NewJobHandler(jobs JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// jobResult writes the outcome of a job mutation.
func jobResult(w http.ResponseWriter, r *http.Request, status int, job *models.Job, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, job)
}

func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := q.Get("status")
	switch status {
	case "", db.JobsOpen, db.JobsClosed, db.JobsAll:
	default:
		writeError(w, r, errs.Validation("status must be open, closed or all"))
		return
	}
	jobs, err := h.jobs.ListJobs(r.Context(), db.JobFilter{
		Status:  status,
		Insurer: q.Get("insurer"),
		Stage:   q.Get("stage"),
		SA:      q.Get("sa"),
		Search:  q.Get("q"),
		Limit:   int64(limit),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in workflow.JobInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := h.jobs.CreateJob(r.Context(), a, in)
	jobResult(w, r, http.StatusCreated, job, err)
}

// Lookup prefills intake from the vehicle's last visit.
func (h *JobHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	res, err := h.jobs.Lookup(r.Context(), r.URL.Query().Get("policeNumber"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(r.Context(), r.PathValue("id"))
	jobResult(w, r, http.StatusOK, job, err)
}

func (h *JobHandler) Update(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in workflow.DetailsInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := h.jobs.UpdateDetails(r.Context(), a, r.PathValue("id"), in)
	jobResult(w, r, http.StatusOK, job, err)
}

type transitionRequest struct {
	Stage string `json:"stage" validate:"required"`
}

func (h *JobHandler) Transition(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := h.jobs.Transition(r.Context(), a, r.PathValue("id"), req.Stage)
	jobResult(w, r, http.StatusOK, job, err)
}

type reworkRequest struct {
	Reason   string `json:"reason" validate:"required"`
	Mechanic string `json:"mechanic" validate:"required"`
}

func (h *JobHandler) ActivateRework(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req reworkRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := h.jobs.ActivateRework(r.Context(), a, r.PathValue("id"), req.Reason, req.Mechanic)
	jobResult(w, r, http.StatusOK, job, err)
}

func (h *JobHandler) ClearRework(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	job, err := h.jobs.ClearRework(r.Context(), a, r.PathValue("id"))
	jobResult(w, r, http.StatusOK, job, err)
}

func (h *JobHandler) AddMechanicLog(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in workflow.MechanicLogInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := h.jobs.AddMechanicLog(r.Context(), a, r.PathValue("id"), in)
	jobResult(w, r, http.StatusCreated, job, err)
}

type estimateRequest struct {
	workflow.EstimateInput
	Finalize bool `json:"finalize"`
}

// SaveEstimate stores a draft or, with finalize, confirms the WO.
func (h *JobHandler) SaveEstimate(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req estimateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := h.jobs.SaveEstimate(r.Context(), a, r.PathValue("id"), req.EstimateInput, req.Finalize)
	jobResult(w, r, http.StatusOK, job, err)
}

func (h *JobHandler) CloseCosts(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req service.CloseRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := h.jobs.CloseCosts(r.Context(), a, r.PathValue("id"), req)
	jobResult(w, r, http.StatusOK, job, err)
}

func (h *JobHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	job, err := h.jobs.Reopen(r.Context(), a, r.PathValue("id"))
	jobResult(w, r, http.StatusOK, job, err)
}

type confirmPartsRequest struct {
	Lines []workflow.PartConfirmation `json:"lines" validate:"required,min=1,dive"`
}

func (h *JobHandler) ConfirmParts(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req confirmPartsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := h.jobs.ConfirmParts(r.Context(), a, r.PathValue("id"), req.Lines)
	jobResult(w, r, http.StatusOK, job, err)
}

type arrivedRequest struct {
	Partial bool `json:"partial"`
}

// PartsArrived marks all or part of the order as arrived.
func (h *JobHandler) PartsArrived(w http.ResponseWriter, r *http.Request) {
	var req arrivedRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	action := workflow.PartArrivedAll
	if req.Partial {
		action = workflow.PartArrivedPartial
	}
	h.moveParts(w, r, action)
}

func (h *JobHandler) PartsIndent(w http.ResponseWriter, r *http.Request) {
	h.moveParts(w, r, workflow.PartIndent)
}

func (h *JobHandler) PartsOnOrder(w http.ResponseWriter, r *http.Request) {
	h.moveParts(w, r, workflow.PartBackToOnOrder)
}

func (h *JobHandler) moveParts(w http.ResponseWriter, r *http.Request, action workflow.PartAction) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	job, err := h.jobs.MoveParts(r.Context(), a, r.PathValue("id"), action)
	jobResult(w, r, http.StatusOK, job, err)
}

func (h *JobHandler) CancelParts(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	job, err := h.jobs.CancelParts(r.Context(), a, r.PathValue("id"))
	jobResult(w, r, http.StatusOK, job, err)
}

type materialsRequest struct {
	Lines []inventory.MaterialLine `json:"lines" validate:"required,min=1,dive"`
}

func (h *JobHandler) AssignMaterials(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req materialsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.jobs.AssignMaterials(r.Context(), a, r.PathValue("id"), req.Lines)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *JobHandler) AddFollowUp(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in workflow.FollowUpInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := h.jobs.AddFollowUp(r.Context(), a, r.PathValue("id"), in)
	jobResult(w, r, http.StatusCreated, job, err)
}

func (h *JobHandler) RecordSurvey(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in workflow.SurveyInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := h.jobs.RecordSurvey(r.Context(), a, r.PathValue("id"), in)
	jobResult(w, r, http.StatusOK, job, err)
}

func (h *JobHandler) CompleteSATask(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	job, err := h.jobs.CompleteSATask(r.Context(), a, r.PathValue("id"), r.PathValue("task"))
	jobResult(w, r, http.StatusOK, job, err)
}

// UploadPhoto takes a multipart form with a "photo" file, a "category" and
// an optional "keterangan".
func (h *JobHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxPhotoBytes+(1<<20))
	if err := r.ParseMultipartForm(service.MaxPhotoBytes); err != nil {
		writeError(w, r, errs.Validation("expected a multipart form with a photo"))
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		writeError(w, r, errs.Validation("photo file is required"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, service.MaxPhotoBytes+1))
	if err != nil {
		writeError(w, r, errs.Validation("failed to read photo"))
		return
	}
	job, err := h.jobs.UploadPhoto(r.Context(), a, r.PathValue("id"), service.PhotoUpload{
		Category:   strings.TrimSpace(r.FormValue("category")),
		Filename:   header.Filename,
		Keterangan: r.FormValue("keterangan"),
		Data:       data,
	})
	jobResult(w, r, http.StatusCreated, job, err)
}

func (h *JobHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	job, err := h.jobs.DeletePhoto(r.Context(), a, r.PathValue("id"), r.PathValue("photoId"))
	jobResult(w, r, http.StatusOK, job, err)
}

// ServePhoto streams a stored photo.
func (h *JobHandler) ServePhoto(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := h.jobs.DownloadPhoto(r.Context(), r.PathValue("fileId"), &buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(buf.Bytes()))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
