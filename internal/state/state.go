package state

import (
	"fmt"

	"github.com/jbousquie/leontine/internal/domain"
)

// User-facing messages composed by the reducer.
const (
	InitialMessage   = "Select a file to start transcription"
	readyMessage     = "Ready to transcribe. Click the button to start."
	completedMessage = "Transcription complete and ready for download."
	checkingMessage  = "Checking API status..."
	savingMessage    = "Saving..."
	savedMessage     = "API URL saved successfully!"
)

// State is the single source of truth for the application.
type State struct {
	API  domain.APIConfig     `json:"api"`
	File domain.FileSelection `json:"file"`
	Job  domain.Job           `json:"job"`
}

// Initial returns the state the application boots with.
func Initial() State {
	return State{
		API: domain.APIConfig{Status: domain.APIUnknown},
		Job: domain.Job{
			Status:  domain.JobStatusIdle,
			Message: InitialMessage,
		},
	}
}

// Update maps (state, action) to the next state. It is pure and total:
// it never errors and unrecognized actions return the state unchanged.
// Each case rewrites exactly one sub-tree plus the coordinated sibling
// resets called out below.
func Update(s State, action Action) State {
	switch a := action.(type) {
	case APIURLLoaded:
		s.API.URL = a.URL
		s.API.ValidationMessage = ""
	case APIURLInputChanged:
		s.API.URL = a.URL
		s.API.ValidationMessage = ""
	case APIURLSaveClicked:
		s.API.ValidationMessage = savingMessage
	case APIURLSaveSucceeded:
		s.API.ValidationMessage = savedMessage
	case APIURLValidationReset:
		s.API.ValidationMessage = ""
	case APIStatusCheckStarted:
		s.API.Status = domain.APIChecking
		s.API.StatusMessage = checkingMessage
	case APIStatusUpdated:
		s.API.Status = a.Status
		s.API.StatusMessage = a.Message

	case FileSelected:
		s.File = domain.FileSelection{Name: a.Name, Path: a.Path}
		s.Job = Initial().Job
		s.Job.Message = readyMessage
	case TranscribeClicked:
		s.Job.Status = domain.JobStatusSubmitting
		s.Job.Filename = s.File.Name
		s.Job.Message = fmt.Sprintf("Submitting %q for transcription...", s.File.Name)
	case JobSubmitSucceeded:
		s.Job.ID = a.JobID
		s.Job.Status = domain.JobStatusPolling
		s.Job.Message = fmt.Sprintf("Job submitted successfully.\nID: %s\nPolling for status...", a.JobID)
	case JobSubmitFailed:
		s.Job = Initial().Job
		s.Job.Status = domain.JobStatusFailed
		s.Job.Message = "Submission Failed: " + a.Err
		s.File = domain.FileSelection{}
	case JobStatusUpdated:
		status := a.Info.Status
		if status == "" {
			status = "Unknown"
		}
		msg := fmt.Sprintf("Job: %q\nStatus: %s\nLast checked: %s",
			s.Job.Filename, status, a.CheckedAt.Format("15:04:05"))
		if a.Info.QueuePosition != nil {
			msg += fmt.Sprintf("\nQueue position: %d", *a.Info.QueuePosition)
		}
		s.Job.RemoteStatus = status
		s.Job.QueuePosition = a.Info.QueuePosition
		s.Job.LastUpdated = a.CheckedAt
		s.Job.Message = msg
	case JobPollTransientError:
		s.Job.Message = fmt.Sprintf("Job: %q\nStatus check failed, will retry: %s\nLast attempt: %s",
			s.Job.Filename, a.Err, a.CheckedAt.Format("15:04:05"))
	case JobCompleted:
		s.Job.Status = domain.JobStatusCompleted
		s.Job.RemoteStatus = domain.RemoteStatusCompleted
		s.Job.ResultURL = a.ResultURL
		s.Job.LastUpdated = a.CompletedAt
		s.Job.Message = completedMessage
	case JobFailed:
		s.Job = Initial().Job
		s.Job.Status = domain.JobStatusFailed
		s.Job.Message = "Job Failed: " + a.Err
		s.File = domain.FileSelection{}
	case JobRecovered:
		s.Job.ID = a.JobID
		s.Job.Filename = a.Filename
		s.Job.Status = domain.JobStatusPolling
		s.Job.Message = fmt.Sprintf("Recovered pending job %q.\nResuming status checks...", a.Filename)

	case DownloadSucceeded, InterfaceReset:
		api := s.API
		s = Initial()
		s.API = api
	}

	return s
}
