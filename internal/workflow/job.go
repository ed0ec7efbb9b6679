// Package workflow holds the job lifecycle rules: stage transitions, rework,
// estimate application, the parts sub-workflow and cost close-out.
//
// Every mutation is a pure function of the loaded job that returns the updated
// job together with the models.Patch that persists exactly that change in one
// atomic write. Nothing here talks to the database.
package workflow

import (
	"strings"
	"time"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

func cloneJob(j *models.Job) *models.Job {
	c := *j
	c.History = append([]models.HistoryEntry(nil), j.History...)
	c.FollowUpHistory = append([]models.FollowUpEntry(nil), j.FollowUpHistory...)
	c.LogPekerjaan = append([]models.MechanicLog(nil), j.LogPekerjaan...)
	if j.Photos != nil {
		c.Photos = make(map[string][]models.Photo, len(j.Photos))
		for k, v := range j.Photos {
			c.Photos[k] = append([]models.Photo(nil), v...)
		}
	}
	if j.EstimateData != nil {
		ed := *j.EstimateData
		ed.JasaItems = append([]models.JasaItem(nil), j.EstimateData.JasaItems...)
		ed.PartItems = append([]models.PartItem(nil), j.EstimateData.PartItems...)
		c.EstimateData = &ed
	}
	if j.ClosedAt != nil {
		t := *j.ClosedAt
		c.ClosedAt = &t
	}
	if j.SurveyData != nil {
		sd := *j.SurveyData
		sd.Results = append([]models.SurveyAnswer(nil), j.SurveyData.Results...)
		c.SurveyData = &sd
	}
	return &c
}

func requireOpen(j *models.Job) error {
	if j.IsClosed {
		return errs.Precondition("WO %s is closed; reopen it first", displayID(j))
	}
	return nil
}

func authorize(actor models.Actor, action string) error {
	if !actor.Can(action) {
		return errs.Forbidden("role %q is not allowed to %s", actor.Role, strings.ReplaceAll(action, "_", " "))
	}
	return nil
}

func displayID(j *models.Job) string {
	if j.WONumber != "" {
		return j.WONumber
	}
	return j.PoliceNumber
}

func validDate(field, value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.Parse(models.DateLayout, value); err != nil {
		return errs.Validation("%s must be a date in YYYY-MM-DD format", field)
	}
	return nil
}
