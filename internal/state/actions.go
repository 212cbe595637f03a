package state

import (
	"time"

	"github.com/jbousquie/leontine/internal/domain"
)

// Action is one event flowing through the dispatch loop. The set is sealed:
// only types in this package can be dispatched, which keeps Update total.
type Action interface {
	isAction()
	// Kind is a stable name for logs and event history.
	Kind() string
}

// APIURLLoaded carries a persisted API URL read at startup.
type APIURLLoaded struct{ URL string }

// APIURLInputChanged carries the URL field as the user types.
type APIURLInputChanged struct{ URL string }

// APIURLSaveClicked is the save-url user intent.
type APIURLSaveClicked struct{}

// APIURLSaveSucceeded confirms the URL was persisted.
type APIURLSaveSucceeded struct{}

// APIURLValidationReset clears the transient save confirmation.
type APIURLValidationReset struct{}

// APIStatusCheckStarted marks the beginning of one availability probe.
type APIStatusCheckStarted struct{}

// APIStatusUpdated carries the outcome of one availability probe.
type APIStatusUpdated struct {
	Status  domain.APIAvailability
	Message string
}

// FileSelected carries a fresh user file pick.
type FileSelected struct {
	Name string
	Path string
}

// TranscribeClicked is the submit user intent.
type TranscribeClicked struct{}

// JobSubmitSucceeded carries the server-assigned job id.
type JobSubmitSucceeded struct{ JobID string }

// JobSubmitFailed carries the submission error message.
type JobSubmitFailed struct{ Err string }

// JobStatusUpdated carries one non-terminal poll result. CheckedAt is
// passed in so the reducer stays deterministic.
type JobStatusUpdated struct {
	Info      domain.JobStatusInfo
	CheckedAt time.Time
}

// JobPollTransientError signals a poll failure that will be retried on the
// next tick; it updates the visible message without leaving POLLING.
type JobPollTransientError struct {
	Err       string
	CheckedAt time.Time
}

// JobCompleted terminates the job successfully. ResultURL is computed by
// the orchestrator from the configured base URL and job id.
type JobCompleted struct {
	ResultURL   string
	CompletedAt time.Time
}

// JobFailed terminates the job with a permanent error.
type JobFailed struct{ Err string }

// JobRecovered resumes a job restored from the ledger after a restart.
type JobRecovered struct {
	JobID    string
	Filename string
}

// DownloadSucceeded acknowledges a completed download; the interface
// recycles to idle keeping the API configuration.
type DownloadSucceeded struct{}

// InterfaceReset is the explicit reset intent.
type InterfaceReset struct{}

func (APIURLLoaded) isAction()          {}
func (APIURLInputChanged) isAction()    {}
func (APIURLSaveClicked) isAction()     {}
func (APIURLSaveSucceeded) isAction()   {}
func (APIURLValidationReset) isAction() {}
func (APIStatusCheckStarted) isAction() {}
func (APIStatusUpdated) isAction()      {}
func (FileSelected) isAction()          {}
func (TranscribeClicked) isAction()     {}
func (JobSubmitSucceeded) isAction()    {}
func (JobSubmitFailed) isAction()       {}
func (JobStatusUpdated) isAction()      {}
func (JobPollTransientError) isAction() {}
func (JobCompleted) isAction()          {}
func (JobFailed) isAction()             {}
func (JobRecovered) isAction()          {}
func (DownloadSucceeded) isAction()     {}
func (InterfaceReset) isAction()        {}

func (APIURLLoaded) Kind() string          { return "API_URL_LOADED" }
func (APIURLInputChanged) Kind() string    { return "API_URL_INPUT_CHANGED" }
func (APIURLSaveClicked) Kind() string     { return "API_URL_SAVE_CLICKED" }
func (APIURLSaveSucceeded) Kind() string   { return "API_URL_SAVE_SUCCESS" }
func (APIURLValidationReset) Kind() string { return "API_URL_VALIDATION_RESET" }
func (APIStatusCheckStarted) Kind() string { return "API_STATUS_CHECK_STARTED" }
func (APIStatusUpdated) Kind() string      { return "API_STATUS_UPDATED" }
func (FileSelected) Kind() string          { return "FILE_SELECTED" }
func (TranscribeClicked) Kind() string     { return "TRANSCRIBE_CLICKED" }
func (JobSubmitSucceeded) Kind() string    { return "JOB_SUBMIT_SUCCESS" }
func (JobSubmitFailed) Kind() string       { return "JOB_SUBMIT_FAILED" }
func (JobStatusUpdated) Kind() string      { return "JOB_STATUS_UPDATED" }
func (JobPollTransientError) Kind() string { return "JOB_POLL_TRANSIENT_ERROR" }
func (JobCompleted) Kind() string          { return "JOB_COMPLETED" }
func (JobFailed) Kind() string             { return "JOB_FAILED" }
func (JobRecovered) Kind() string          { return "JOB_RECOVERED" }
func (DownloadSucceeded) Kind() string     { return "DOWNLOAD_SUCCESS" }
func (InterfaceReset) Kind() string        { return "RESET_INTERFACE" }
