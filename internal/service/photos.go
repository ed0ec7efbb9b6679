package service

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/db"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/workflow"
)

// MaxPhotoBytes bounds one uploaded photo.
const MaxPhotoBytes = 10 << 20

// PhotoUpload is one photo sent for a job.
type PhotoUpload struct {
	Category   string
	Filename   string
	Keterangan string
	Data       []byte
}

// PhotoURL is the API path a stored photo is served from.
func PhotoURL(fileID string) string {
	return "/api/photos/" + fileID
}

// UploadPhoto stores the blob first, then records its metadata on the job. If
// the job write fails the blob is removed again.
func (s *JobService) UploadPhoto(ctx context.Context, actor models.Actor, id string, up PhotoUpload) (*models.Job, error) {
	if !actor.Can(models.PermUploadPhoto) {
		return nil, errs.Forbidden("role %q is not allowed to upload photos", actor.Role)
	}
	if len(up.Data) == 0 {
		return nil, errs.Validation("photo is empty")
	}
	if len(up.Data) > MaxPhotoBytes {
		return nil, errs.Validation("photo is larger than %d MB", MaxPhotoBytes>>20)
	}
	if _, err := s.GetJob(ctx, id); err != nil {
		return nil, err
	}

	fileID, err := s.photos.Upload(ctx, up.Filename, up.Data, db.PhotoMeta{
		JobID:       id,
		Category:    up.Category,
		ContentType: http.DetectContentType(up.Data),
		UploadedBy:  actor.Name(),
	})
	if err != nil {
		s.logger.WithError(err).WithField("job_id", id).Error("photo upload failed")
		return nil, errs.Wrap(errs.KindInternal, err, "upload photo")
	}

	job, err := s.mutate(ctx, actor, "add_photo", id, func(job *models.Job, _ models.Settings, now time.Time) (*models.Job, *models.Patch, error) {
		return workflow.AddPhoto(job, up.Category, models.Photo{
			ID:         fileID,
			URL:        PhotoURL(fileID),
			Size:       int64(len(up.Data)),
			Keterangan: up.Keterangan,
			UploadedAt: now,
			UploadedBy: actor.Name(),
		}, actor)
	})
	if err != nil {
		if derr := s.photos.Delete(ctx, fileID); derr != nil {
			s.logger.WithError(derr).WithField("file_id", fileID).Warn("orphaned photo blob")
		}
		return nil, err
	}
	return job, nil
}

// DeletePhoto removes the metadata and then the blob.
func (s *JobService) DeletePhoto(ctx context.Context, actor models.Actor, id, photoID string) (*models.Job, error) {
	var removed models.Photo
	job, err := s.mutate(ctx, actor, "remove_photo", id, func(job *models.Job, _ models.Settings, _ time.Time) (*models.Job, *models.Patch, error) {
		updated, p, ph, err := workflow.RemovePhoto(job, photoID, actor)
		removed = ph
		return updated, p, err
	})
	if err != nil {
		return nil, err
	}
	if err := s.photos.Delete(ctx, removed.ID); err != nil {
		s.logger.WithError(err).WithField("file_id", removed.ID).Warn("photo metadata removed but blob delete failed")
	}
	return job, nil
}

// DownloadPhoto streams a stored photo into w.
func (s *JobService) DownloadPhoto(ctx context.Context, fileID string, w io.Writer) (int64, error) {
	n, err := s.photos.Download(ctx, fileID, w)
	if err != nil {
		return n, storeErr(err, "photo", fileID)
	}
	return n, nil
}
