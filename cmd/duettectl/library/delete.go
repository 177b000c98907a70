package library

import (
	"context"
	"errors"
	"fmt"

	"github.com/duette-app/duette/common/clients"
	"github.com/duette-app/duette/common/objectkey"
)

// Step names one call of the delete workflow
type Step string

const (
	StepMetadata  Step = "metadata"
	StepVideo     Step = "video_object"
	StepThumbnail Step = "thumbnail_object"
)

// StepStatus is the outcome of one step
type StepStatus string

const (
	StatusPending   StepStatus = "pending"
	StatusSucceeded StepStatus = "succeeded"
	StatusFailed    StepStatus = "failed"
	StatusSkipped   StepStatus = "skipped"
)

// StepResult records one step of a delete
type StepResult struct {
	Step   Step
	Target string // video id or object key
	Status StepStatus
	Err    error
}

// DeleteReport tracks a video delete across its three calls
type DeleteReport struct {
	VideoID   string
	Search    string
	Steps     []StepResult
	Refreshed bool
}

func newDeleteReport(videoID, search string) *DeleteReport {
	return &DeleteReport{
		VideoID: videoID,
		Search:  search,
		Steps: []StepResult{
			{Step: StepMetadata, Target: videoID, Status: StatusPending},
			{Step: StepVideo, Target: objectkey.Video(videoID), Status: StatusPending},
			{Step: StepThumbnail, Target: objectkey.Thumbnail(videoID), Status: StatusPending},
		},
	}
}

// Complete reports whether every step succeeded
func (r *DeleteReport) Complete() bool {
	for _, s := range r.Steps {
		if s.Status != StatusSucceeded {
			return false
		}
	}
	return true
}

// Failed returns the steps that did not succeed
func (r *DeleteReport) Failed() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Status != StatusSucceeded {
			out = append(out, s)
		}
	}
	return out
}

// Err joins the step errors, nil when complete
func (r *DeleteReport) Err() error {
	var errs []error
	for _, s := range r.Steps {
		switch s.Status {
		case StatusFailed:
			errs = append(errs, fmt.Errorf("%s %s: %w", s.Step, s.Target, s.Err))
		case StatusSkipped, StatusPending:
			errs = append(errs, fmt.Errorf("%s %s: %s", s.Step, s.Target, s.Status))
		}
	}
	return errors.Join(errs...)
}

// DeleteVideo deletes the metadata, then the video object, then the
// thumbnail object. A failed metadata delete skips the object steps. Once
// metadata is gone both object deletes are attempted, and a missing object
// counts as deleted. The list is refetched with search only when every step
// succeeded. The report is returned even on error so ResumeDelete can retry.
func (l *Library) DeleteVideo(ctx context.Context, id, search string) (*DeleteReport, error) {
	if err := objectkey.Validate(id); err != nil {
		return nil, fmt.Errorf("delete video: %w", err)
	}
	report := newDeleteReport(id, search)
	return report, l.runDelete(ctx, report)
}

// ResumeDelete re-runs the steps of report that did not succeed
func (l *Library) ResumeDelete(ctx context.Context, report *DeleteReport) (*DeleteReport, error) {
	for i := range report.Steps {
		if report.Steps[i].Status != StatusSucceeded {
			report.Steps[i].Status = StatusPending
			report.Steps[i].Err = nil
		}
	}
	report.Refreshed = false
	return report, l.runDelete(ctx, report)
}

func (l *Library) runDelete(ctx context.Context, report *DeleteReport) error {
	log := l.log.WithVideoID(report.VideoID)

	for i := range report.Steps {
		step := &report.Steps[i]
		if step.Status != StatusPending {
			continue
		}

		if step.Step != StepMetadata && report.Steps[0].Status != StatusSucceeded {
			step.Status = StatusSkipped
			continue
		}

		err := l.runStep(ctx, step)
		if err != nil && clients.IsNotFound(err) {
			// already gone
			err = nil
		}
		if err != nil {
			step.Status = StatusFailed
			step.Err = err
			log.Warn("delete step failed", "step", step.Step, "target", step.Target, "error", err)
			continue
		}
		step.Status = StatusSucceeded
	}

	if !report.Complete() {
		return fmt.Errorf("delete video %s incomplete: %w", report.VideoID, report.Err())
	}

	log.Info("video deleted")
	if err := l.FetchVideos(ctx, report.Search); err != nil {
		return err
	}
	report.Refreshed = true
	return nil
}

func (l *Library) runStep(ctx context.Context, step *StepResult) error {
	switch step.Step {
	case StepMetadata:
		return l.catalog.DeleteVideo(ctx, step.Target)
	default:
		return l.objects.Delete(ctx, step.Target)
	}
}
