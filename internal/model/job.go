package model

import (
	"encoding/json"
	"path/filepath"
	"time"
)

const ServiceName = "video_converter"

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobRunning, JobCompleted, JobFailed, JobCancelled:
		return true
	}

	return false
}

// Terminal reports whether the status has no outgoing transitions.
// A failed job with retry budget left is re-queued by the scheduler,
// so failed is terminal only once the budget is exhausted.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

const (
	QualityMin     = 0
	QualityMax     = 51
	QualityDefault = 23

	ResolutionDefault   = "720x480"
	VideoBitrateDefault = 1000
	AudioBitrateDefault = 96
)

var allowedResolutions = map[string]struct{}{
	"426x240":   {},
	"640x360":   {},
	"720x480":   {},
	"1280x720":  {},
	"1920x1080": {},
}

// ConvertParams are the transcoding options captured at submission.
// Immutable for the lifetime of the job. Quality is a pointer so an
// explicit 0 (lossless CRF) is distinguishable from an absent value.
type ConvertParams struct {
	Quality      *int   `json:"quality" form:"quality"`
	Resolution   string `json:"resolution" form:"resolution"`
	VideoBitrate int    `json:"video_bitrate" form:"video_bitrate"`
	AudioBitrate int    `json:"audio_bitrate" form:"audio_bitrate"`
}

func (p *ConvertParams) JSON() []byte {
	js, _ := json.Marshal(p)
	return js
}

// ApplyDefaults fills unset values with the service defaults.
func (p *ConvertParams) ApplyDefaults() {
	if p.Quality == nil {
		q := QualityDefault
		p.Quality = &q
	}

	if p.Resolution == "" {
		p.Resolution = ResolutionDefault
	}

	if p.VideoBitrate == 0 {
		p.VideoBitrate = VideoBitrateDefault
	}

	if p.AudioBitrate == 0 {
		p.AudioBitrate = AudioBitrateDefault
	}
}

func (p *ConvertParams) Validate() error {
	if p.Quality != nil && (*p.Quality < QualityMin || *p.Quality > QualityMax) {
		return NewValidationError("quality", "must be between 0 and 51")
	}

	if _, ok := allowedResolutions[p.Resolution]; !ok {
		return NewValidationError("resolution", "unsupported resolution")
	}

	if p.VideoBitrate < 0 || p.AudioBitrate < 0 {
		return NewValidationError("bitrate", "must not be negative")
	}

	return nil
}

// Job is one requested unit of conversion work and its tracked lifecycle.
type Job struct {
	ID              string         `json:"id" db:"id"`
	SourcePath      string         `json:"source_path" db:"source_path"`
	DestinationPath string         `json:"destination_path" db:"destination_path"`
	Params          *ConvertParams `json:"params" db:"params"`
	Status          JobStatus      `json:"status" db:"status"`
	Progress        int            `json:"progress" db:"progress"`
	Retry           int            `json:"retry_count" db:"retry"`
	Error           *string        `json:"error_message,omitempty" db:"error"`
	CancelRequested bool           `json:"-" db:"cancel_requested"`
	NextAttemptAt   time.Time      `json:"-" db:"next_attempt_at"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

func NewJob(src, dst string, params *ConvertParams) (*Job, error) {
	if err := validatePath("source_path", src); err != nil {
		return nil, err
	}

	if err := validatePath("destination_path", dst); err != nil {
		return nil, err
	}

	if params == nil {
		params = &ConvertParams{}
	}

	params.ApplyDefaults()

	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &Job{
		ID:              NewID(),
		SourcePath:      src,
		DestinationPath: dst,
		Params:          params,
		Status:          JobPending,
	}, nil
}

func validatePath(field, p string) error {
	if p == "" {
		return NewValidationError(field, "is required")
	}

	if !filepath.IsAbs(p) {
		return NewValidationError(field, "must be an absolute path")
	}

	return nil
}
