package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/jbousquie/leontine/internal/domain"
	"github.com/jbousquie/leontine/internal/gateway"
	"github.com/jbousquie/leontine/internal/jobs"
	"github.com/jbousquie/leontine/internal/ledger"
	"github.com/jbousquie/leontine/internal/state"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// Dispatch advances the state store through the pure transition function,
// then routes the side effects the (action, new state) pair calls for.
// State mutation is synchronous and serialized by the store; effects run
// asynchronously and feed their outcomes back in as further actions.
func (a *App) Dispatch(action state.Action) {
	if action == nil {
		return
	}

	next := a.states.Apply(action)
	slog.Debug("dispatch", "action", action.Kind(), "jobStatus", next.Job.Status)

	a.handleEffects(action, next)
	a.publishState(action, next)
}

// handleEffects is the impure half of the dispatch loop.
func (a *App) handleEffects(action state.Action, next state.State) {
	switch action.(type) {
	case state.APIURLLoaded, state.APIURLSaveSucceeded:
		a.startAvailabilityPolling(next.API.URL)

	case state.APIURLSaveClicked:
		if strings.TrimSpace(next.API.URL) == "" {
			return
		}
		a.persistAPIURL(next.API.URL)
		a.Dispatch(state.APIURLSaveSucceeded{})
		a.after(saveConfirmationFlash, func() {
			a.Dispatch(state.APIURLValidationReset{})
		})

	case state.TranscribeClicked:
		baseURL := next.API.URL
		name := next.Job.Filename
		path := next.File.Path
		a.runEffect(func() { a.submitJob(baseURL, name, path) })

	case state.JobSubmitSucceeded, state.JobRecovered:
		a.saveLedger(next)
		a.startJobPolling(next.API.URL, next.Job.ID)

	case state.JobStatusUpdated:
		a.saveLedger(next)

	case state.JobCompleted, state.JobFailed:
		a.stopJobPolling()
		a.clearLedger()

	case state.InterfaceReset:
		a.stopJobPolling()
		a.clearLedger()
	}
}

// publishState records the transition in the event history and pushes the
// new state to the UI runtime.
func (a *App) publishState(action state.Action, next state.State) {
	event := jobs.Event{
		Type:      jobs.EventTypeAction,
		Action:    action.Kind(),
		JobID:     next.Job.ID,
		Status:    next.Job.Status,
		APIStatus: next.API.Status,
		Message:   next.Job.Message,
	}
	if next.Job.Status == domain.JobStatusFailed {
		event.Type = jobs.EventTypeError
	}
	a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "state:changed", next)
	}
}

// persistAPIURL stores the confirmed URL in settings.
func (a *App) persistAPIURL(url string) {
	a.mu.Lock()
	a.Settings.APIURL = url
	settings := a.Settings
	a.mu.Unlock()

	if err := a.Store.Save(settings); err != nil {
		slog.Error("persist api url", "error", err)
	}
}

// submitJob uploads the file and reports the outcome as an action.
func (a *App) submitJob(baseURL, name, path string) {
	f, err := os.Open(path)
	if err != nil {
		a.Dispatch(state.JobSubmitFailed{Err: fmt.Sprintf("cannot read %q: %v", name, err)})
		return
	}
	defer f.Close()

	jobID, err := a.api().Submit(context.Background(), baseURL, name, f)
	if err != nil {
		a.Dispatch(state.JobSubmitFailed{Err: err.Error()})
		return
	}

	slog.Info("job submitted", "jobID", jobID, "filename", name)
	a.Dispatch(state.JobSubmitSucceeded{JobID: jobID})
}

// startAvailabilityPolling supersedes any live availability poller and,
// when a URL is configured, starts a fresh one. The generation counter
// keeps a superseded in-flight probe from applying its result.
func (a *App) startAvailabilityPolling(baseURL string) {
	url := strings.TrimSpace(baseURL)

	a.mu.Lock()
	a.apiGen++
	gen := a.apiGen
	if a.apiPoll != nil {
		a.apiPoll.Stop()
		a.apiPoll = nil
	}
	interval := a.Settings.APICheckInterval()
	if url != "" {
		a.apiPoll = a.newPoller(interval, func() { a.checkAvailability(gen, url) })
	}
	a.mu.Unlock()
}

// stopAvailabilityPolling halts the availability poller.
func (a *App) stopAvailabilityPolling() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.apiGen++
	if a.apiPoll != nil {
		a.apiPoll.Stop()
		a.apiPoll = nil
	}
}

// checkAvailability is one availability tick.
func (a *App) checkAvailability(gen int, baseURL string) {
	a.Dispatch(state.APIStatusCheckStarted{})

	info, err := a.api().CheckAvailability(context.Background(), baseURL)
	if !a.isCurrentAPIGen(gen) {
		return
	}
	if err != nil {
		a.Dispatch(state.APIStatusUpdated{
			Status:  domain.APIUnavailable,
			Message: err.Error(),
		})
		return
	}

	queued := "N/A"
	if info.HasQueueState {
		queued = strconv.Itoa(info.QueuedJobs)
	}
	a.Dispatch(state.APIStatusUpdated{
		Status:  domain.APIAvailable,
		Message: "API is accessible. Queue: " + queued,
	})
}

// startJobPolling supersedes any live job poller and starts polling the
// given job, beginning with an immediate check.
func (a *App) startJobPolling(baseURL, jobID string) {
	url := strings.TrimSpace(baseURL)

	a.mu.Lock()
	if a.jobPoll != nil {
		a.jobPoll.Stop()
		a.jobPoll = nil
	}
	a.activeJobID = jobID
	interval := a.Settings.StatusCheckInterval()
	if url != "" && jobID != "" {
		a.jobPoll = a.newPoller(interval, func() { a.pollJob(url, jobID) })
	}
	a.mu.Unlock()
}

// stopJobPolling halts the job poller and forgets the active job.
func (a *App) stopJobPolling() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.jobPoll != nil {
		a.jobPoll.Stop()
		a.jobPoll = nil
	}
	a.activeJobID = ""
}

// pollJob is one job-status tick. Transient failures only refresh the
// message and leave the poller running; everything else terminates the
// job. A response for a job that is no longer active is dropped.
func (a *App) pollJob(baseURL, jobID string) {
	info, err := a.api().PollStatus(context.Background(), baseURL, jobID)
	if !a.isActiveJob(jobID) {
		slog.Debug("dropping stale poll response", "jobID", jobID)
		return
	}

	switch {
	case err != nil && gateway.IsTransient(err):
		a.Dispatch(state.JobPollTransientError{Err: err.Error(), CheckedAt: a.now()})
	case err != nil:
		a.Dispatch(state.JobFailed{Err: err.Error()})
	case info.Status == domain.RemoteStatusCompleted:
		a.Dispatch(state.JobCompleted{
			ResultURL:   gateway.ResultURL(baseURL, jobID),
			CompletedAt: a.now(),
		})
	case info.Status == domain.RemoteStatusFailed:
		reason := info.Detail
		if reason == "" {
			reason = "No reason provided."
		}
		a.Dispatch(state.JobFailed{Err: "Job failed on server. Reason: " + reason})
	default:
		a.Dispatch(state.JobStatusUpdated{Info: info, CheckedAt: a.now()})
	}
}

// isActiveJob reports whether jobID is still the job being tracked.
func (a *App) isActiveJob(jobID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeJobID == jobID
}

// isCurrentAPIGen reports whether an availability result belongs to the
// poller generation that is still live.
func (a *App) isCurrentAPIGen(gen int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.apiGen == gen
}

// saveLedger mirrors the job to durable storage.
func (a *App) saveLedger(next state.State) {
	snap := ledger.Snapshot{
		JobID:       next.Job.ID,
		Filename:    next.Job.Filename,
		LastStatus:  next.Job.RemoteStatus,
		LastUpdated: next.Job.LastUpdated,
	}
	if err := a.Ledger.Save(snap); err != nil {
		slog.Error("save job ledger", "jobID", snap.JobID, "error", err)
	}
}

// clearLedger drops the durable snapshot.
func (a *App) clearLedger() {
	if err := a.Ledger.Clear(); err != nil {
		slog.Error("clear job ledger", "error", err)
	}
}
