package domain

import "time"

// JobStatus is the client-side lifecycle state of the single tracked job.
type JobStatus string

const (
	JobStatusIdle       JobStatus = "IDLE"
	JobStatusSubmitting JobStatus = "SUBMITTING"
	JobStatusPolling    JobStatus = "POLLING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Remote status strings the service reports for a job. Anything else is
// treated as an intermediate state and polling continues.
const (
	RemoteStatusQueued     = "Queued"
	RemoteStatusProcessing = "Processing"
	RemoteStatusCompleted  = "Completed"
	RemoteStatusFailed     = "Failed"
)

// APIAvailability is the last known reachability of the remote service.
type APIAvailability string

const (
	APIUnknown     APIAvailability = "UNKNOWN"
	APIChecking    APIAvailability = "CHECKING"
	APIAvailable   APIAvailability = "AVAILABLE"
	APIUnavailable APIAvailability = "UNAVAILABLE"
)

// APIConfig holds the configured endpoint and its last probed availability.
type APIConfig struct {
	URL               string          `json:"url"`
	Status            APIAvailability `json:"status"`
	StatusMessage     string          `json:"statusMessage"`
	ValidationMessage string          `json:"validationMessage"`
}

// FileSelection is the user's current pick. Path is the desktop equivalent
// of the in-memory file handle; it is never persisted.
type FileSelection struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Job tracks the single outstanding transcription job.
type Job struct {
	ID            string    `json:"id"`
	Status        JobStatus `json:"status"`
	RemoteStatus  string    `json:"remoteStatus,omitempty"`
	QueuePosition *int      `json:"queuePosition,omitempty"`
	Filename      string    `json:"filename,omitempty"`
	ResultURL     string    `json:"resultUrl,omitempty"`
	Message       string    `json:"message"`
	LastUpdated   time.Time `json:"lastUpdated,omitempty"`
}

// AvailabilityInfo is the parsed result of a successful availability probe.
type AvailabilityInfo struct {
	QueuedJobs     int  `json:"queuedJobs"`
	ProcessingJobs int  `json:"processingJobs"`
	HasQueueState  bool `json:"hasQueueState"`
}

// JobStatusInfo is one normalized poll result. Status is always a flat
// string regardless of the shape the server sent; Detail carries the raw
// failure payload, already rendered as text, when the server provided one.
type JobStatusInfo struct {
	Status        string `json:"status"`
	QueuePosition *int   `json:"queuePosition,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

// Settings contains persisted user configuration.
type Settings struct {
	APIURL                     string `json:"apiUrl"`
	APIToken                   string `json:"apiToken,omitempty"`
	ClientID                   string `json:"clientId,omitempty"`
	StatusCheckIntervalSeconds int    `json:"statusCheckIntervalSeconds"`
	APICheckIntervalSeconds    int    `json:"apiCheckIntervalSeconds"`
}

// StatusCheckInterval returns the job poll period.
func (s Settings) StatusCheckInterval() time.Duration {
	return time.Duration(s.StatusCheckIntervalSeconds) * time.Second
}

// APICheckInterval returns the availability probe period.
func (s Settings) APICheckInterval() time.Duration {
	return time.Duration(s.APICheckIntervalSeconds) * time.Second
}
