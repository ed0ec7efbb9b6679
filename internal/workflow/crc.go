package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// Follow-up categories of the CRC board and the job flag each one completes.
const (
	FollowUpBooking        = "booking"
	FollowUpReadyToCollect = "readyToCollect"
	FollowUpPartReady      = "partReady"
	FollowUpOutpatient     = "outpatient"
	FollowUpAfterService   = "afterService"
)

var followUpFlags = map[string]string{
	FollowUpBooking:        "bookingConfirmed",
	FollowUpReadyToCollect: "collectionNotified",
	FollowUpPartReady:      "partReadyNotified",
	FollowUpOutpatient:     "outpatientFollowUpSent",
}

// FollowUpInput is a logged customer contact.
type FollowUpInput struct {
	Type    string `json:"type" validate:"required"`
	Message string `json:"message"`
	// Template is the title of a settings message template rendered into
	// Message when Message is empty.
	Template string `json:"template"`
	// Done also completes the board task of Type.
	Done bool `json:"done"`
}

// RenderTemplate fills a customer message template with the job's details.
// {tanggal_booking} uses tanggalMasuk.
func RenderTemplate(t models.MessageTemplate, j *models.Job) string {
	return strings.NewReplacer(
		"{nama_pelanggan}", j.CustomerName,
		"{model_mobil}", j.CarModel,
		"{no_polisi}", j.PoliceNumber,
		"{tanggal_booking}", j.TanggalMasuk,
		"{no_wo}", j.WONumber,
	).Replace(t.Message)
}

// FindTemplate looks a template up by title.
func FindTemplate(cfg models.Settings, title string) (models.MessageTemplate, bool) {
	for _, t := range cfg.WhatsAppTemplates {
		if t.Title == title {
			return t, true
		}
	}
	return models.MessageTemplate{}, false
}

// AddFollowUp appends a follow-up log entry and, when requested, marks the
// matching CRC task as done.
func AddFollowUp(job *models.Job, in FollowUpInput, actor models.Actor, now time.Time) (*models.Job, *models.Patch, error) {
	if err := authorize(actor, models.PermLogFollowUp); err != nil {
		return nil, nil, err
	}
	kind := strings.TrimSpace(in.Type)
	if kind == "" {
		return nil, nil, errs.Validation("follow-up type is required")
	}
	msg := in.Message
	if msg == "" && in.Done {
		msg = fmt.Sprintf("Tugas %q ditandai selesai.", kind)
	}

	updated := cloneJob(job)
	p := models.NewPatch()
	entry := models.FollowUpEntry{Type: kind, Message: msg, Timestamp: now, SentBy: actor.Name()}
	updated.FollowUpHistory = append(updated.FollowUpHistory, entry)
	p.PushField("followUpHistory", entry)

	if in.Done {
		field, ok := followUpFlags[kind]
		if !ok {
			return nil, nil, errs.Validation("follow-up type %q has no task to complete", kind)
		}
		switch kind {
		case FollowUpBooking:
			updated.BookingConfirmed = true
		case FollowUpReadyToCollect:
			updated.CollectionNotified = true
		case FollowUpPartReady:
			updated.PartReadyNotified = true
		case FollowUpOutpatient:
			updated.OutpatientFollowUpSent = true
		}
		p.SetField(field, true)
	}
	return updated, p, nil
}

// SurveyInput is the after-service satisfaction survey.
type SurveyInput struct {
	Score   int                   `json:"score" validate:"min=1,max=5"`
	Results []models.SurveyAnswer `json:"results"`
}

// RecordSurvey stores the survey and its score on the job.
func RecordSurvey(job *models.Job, in SurveyInput, actor models.Actor, now time.Time) (*models.Job, *models.Patch, error) {
	if err := authorize(actor, models.PermRecordSurvey); err != nil {
		return nil, nil, err
	}
	if in.Score < 1 || in.Score > 5 {
		return nil, nil, errs.Validation("survey score must be between 1 and 5")
	}
	data := &models.SurveyData{
		SurveyTaker: actor.Name(),
		Timestamp:   now,
		Score:       in.Score,
		Results:     append([]models.SurveyAnswer(nil), in.Results...),
	}
	updated := cloneJob(job)
	updated.SurveyCompleted = true
	updated.SurveyScore = in.Score
	updated.SurveyData = data
	p := models.NewPatch().
		SetField("surveyCompleted", true).
		SetField("surveyScore", in.Score).
		SetField("surveyData", data)
	return updated, p, nil
}

// CompleteSATask marks one Service Advisor task as done.
func CompleteSATask(job *models.Job, task string, actor models.Actor) (*models.Job, *models.Patch, error) {
	if err := authorize(actor, models.PermEditJob); err != nil {
		return nil, nil, err
	}
	if err := requireOpen(job); err != nil {
		return nil, nil, err
	}
	updated := cloneJob(job)
	var field string
	switch task {
	case "spkAppeal":
		updated.SATasks.SpkAppealDone, field = true, "saTasks.spkAppealDone"
	case "supplement":
		updated.SATasks.SupplementDone, field = true, "saTasks.supplementDone"
	case "estimation":
		updated.SATasks.EstimationDone, field = true, "saTasks.estimationDone"
	case "customerApproval":
		updated.SATasks.CustomerApprovalDone, field = true, "saTasks.customerApprovalDone"
	default:
		return nil, nil, errs.Validation("unknown SA task %q", task)
	}
	return updated, models.NewPatch().SetField(field, true), nil
}

// AddPhoto records metadata for a stored photo under category.
func AddPhoto(job *models.Job, category string, photo models.Photo, actor models.Actor) (*models.Job, *models.Patch, error) {
	if err := authorize(actor, models.PermUploadPhoto); err != nil {
		return nil, nil, err
	}
	category = strings.TrimSpace(category)
	if category == "" || strings.ContainsAny(category, ".$") {
		return nil, nil, errs.Validation("invalid photo category %q", category)
	}
	updated := cloneJob(job)
	if updated.Photos == nil {
		updated.Photos = map[string][]models.Photo{}
	}
	updated.Photos[category] = append(updated.Photos[category], photo)
	return updated, models.NewPatch().PushField("photos."+category, photo), nil
}

// RemovePhoto drops the metadata of photo id from every category. It returns
// the removed photo so the caller can delete the blob.
func RemovePhoto(job *models.Job, photoID string, actor models.Actor) (*models.Job, *models.Patch, models.Photo, error) {
	if err := authorize(actor, models.PermUploadPhoto); err != nil {
		return nil, nil, models.Photo{}, err
	}
	updated := cloneJob(job)
	p := models.NewPatch()
	var removed models.Photo
	found := false
	for category, photos := range updated.Photos {
		kept := photos[:0]
		for _, ph := range photos {
			if ph.ID == photoID {
				removed, found = ph, true
				p.PullField("photos."+category, map[string]interface{}{"id": photoID})
				continue
			}
			kept = append(kept, ph)
		}
		updated.Photos[category] = kept
	}
	if !found {
		return nil, nil, models.Photo{}, errs.NotFound("photo %s not found on this job", photoID)
	}
	return updated, p, removed, nil
}
