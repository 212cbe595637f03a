package bootstrap

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/jbousquie/leontine/internal/domain"
	"github.com/jbousquie/leontine/internal/gateway"
	"github.com/jbousquie/leontine/internal/jobs"
	"github.com/jbousquie/leontine/internal/ledger"
	"github.com/jbousquie/leontine/internal/state"
)

type fakeAPI struct {
	checkAvailability func(ctx context.Context, baseURL string) (domain.AvailabilityInfo, error)
	submit            func(ctx context.Context, baseURL, filename string, payload io.Reader) (string, error)
	pollStatus        func(ctx context.Context, baseURL, jobID string) (domain.JobStatusInfo, error)
	downloadResult    func(ctx context.Context, resultURL string) ([]byte, error)
	cancel            func(ctx context.Context, baseURL, jobID string) error
}

func (f *fakeAPI) CheckAvailability(ctx context.Context, baseURL string) (domain.AvailabilityInfo, error) {
	if f.checkAvailability == nil {
		return domain.AvailabilityInfo{}, nil
	}
	return f.checkAvailability(ctx, baseURL)
}

func (f *fakeAPI) Submit(ctx context.Context, baseURL, filename string, payload io.Reader) (string, error) {
	if f.submit == nil {
		return "", errors.New("no submit stub")
	}
	return f.submit(ctx, baseURL, filename, payload)
}

func (f *fakeAPI) PollStatus(ctx context.Context, baseURL, jobID string) (domain.JobStatusInfo, error) {
	if f.pollStatus == nil {
		return domain.JobStatusInfo{}, errors.New("no poll stub")
	}
	return f.pollStatus(ctx, baseURL, jobID)
}

func (f *fakeAPI) DownloadResult(ctx context.Context, resultURL string) ([]byte, error) {
	if f.downloadResult == nil {
		return nil, errors.New("no download stub")
	}
	return f.downloadResult(ctx, resultURL)
}

func (f *fakeAPI) Cancel(ctx context.Context, baseURL, jobID string) error {
	if f.cancel == nil {
		return nil
	}
	return f.cancel(ctx, baseURL, jobID)
}

type memLedger struct {
	snap    ledger.Snapshot
	pending bool
	saves   int
	clears  int
}

func (m *memLedger) Save(snap ledger.Snapshot) error {
	m.snap = snap
	m.pending = snap.JobID != ""
	m.saves++
	return nil
}

func (m *memLedger) Clear() error {
	m.snap = ledger.Snapshot{}
	m.pending = false
	m.clears++
	return nil
}

func (m *memLedger) LoadPending() (ledger.Snapshot, bool, error) {
	return m.snap, m.pending, nil
}

type memConfig struct {
	saved []domain.Settings
}

func (m *memConfig) Load() (domain.Settings, error) {
	if len(m.saved) == 0 {
		return domain.Settings{}, nil
	}
	return m.saved[len(m.saved)-1], nil
}

func (m *memConfig) Save(settings domain.Settings) error {
	m.saved = append(m.saved, settings)
	return nil
}

type fakePoller struct {
	stopped bool
}

func (p *fakePoller) Stop() { p.stopped = true }

type pollerEntry struct {
	interval time.Duration
	tick     func()
	handle   *fakePoller
}

// harness wires an App with synchronous effects and manual poller ticks.
// The poller factory only records the tick; tests fire it after dispatch
// returns, matching the real poller which never ticks inside the factory.
type harness struct {
	t       *testing.T
	app     *App
	api     *fakeAPI
	ledger  *memLedger
	config  *memConfig
	pollers []*pollerEntry
	afters  []func()
}

var testClock = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

func newHarness(t *testing.T, api *fakeAPI) *harness {
	t.Helper()

	h := &harness{
		t:      t,
		api:    api,
		ledger: &memLedger{},
		config: &memConfig{},
	}
	h.app = &App{
		Settings: domain.Settings{
			StatusCheckIntervalSeconds: 20,
			APICheckIntervalSeconds:    30,
		},
		Store:       h.config,
		Ledger:      h.ledger,
		gw:          api,
		states:      state.NewStore(),
		events:      jobs.NewEventBus(100),
		transcripts: expirable.NewLRU[string, []byte](4, nil, time.Minute),
		newPoller: func(interval time.Duration, tick func()) pollHandle {
			entry := &pollerEntry{interval: interval, tick: tick, handle: &fakePoller{}}
			h.pollers = append(h.pollers, entry)
			return entry.handle
		},
		after:     func(d time.Duration, fn func()) { h.afters = append(h.afters, fn) },
		runEffect: func(fn func()) { fn() },
		now:       func() time.Time { return testClock },
	}
	return h
}

func (h *harness) livePollers(interval time.Duration) []*pollerEntry {
	var live []*pollerEntry
	for _, entry := range h.pollers {
		if entry.interval == interval && !entry.handle.stopped {
			live = append(live, entry)
		}
	}
	return live
}

func (h *harness) jobPoller() *pollerEntry {
	h.t.Helper()
	live := h.livePollers(20 * time.Second)
	if len(live) != 1 {
		h.t.Fatalf("live job pollers = %d, want 1", len(live))
	}
	return live[0]
}

func (h *harness) apiPoller() *pollerEntry {
	h.t.Helper()
	live := h.livePollers(30 * time.Second)
	if len(live) != 1 {
		h.t.Fatalf("live availability pollers = %d, want 1", len(live))
	}
	return live[0]
}

func (h *harness) tempAudioFile() (name, path string) {
	h.t.Helper()
	path = filepath.Join(h.t.TempDir(), "meeting.mp3")
	if err := os.WriteFile(path, []byte("riff"), 0o644); err != nil {
		h.t.Fatal(err)
	}
	return "meeting.mp3", path
}

func TestSaveAPIURLPersistsAndFlashesConfirmation(t *testing.T) {
	h := newHarness(t, &fakeAPI{})

	h.app.SaveAPIURL("  http://api.example.com  ")

	if got := h.config.saved; len(got) != 1 || got[0].APIURL != "http://api.example.com" {
		t.Fatalf("saved settings = %+v, want one save with trimmed URL", got)
	}
	cur := h.app.CurrentState()
	if cur.API.ValidationMessage != "API URL saved successfully!" {
		t.Fatalf("validation message = %q", cur.API.ValidationMessage)
	}

	if len(h.afters) != 1 {
		t.Fatalf("scheduled callbacks = %d, want 1", len(h.afters))
	}
	h.afters[0]()
	if msg := h.app.CurrentState().API.ValidationMessage; msg != "" {
		t.Fatalf("validation message after flash = %q, want empty", msg)
	}
}

func TestSaveAPIURLWithEmptyURLPersistsNothing(t *testing.T) {
	h := newHarness(t, &fakeAPI{})

	h.app.SaveAPIURL("   ")

	if len(h.config.saved) != 0 {
		t.Fatalf("saved settings = %d, want 0", len(h.config.saved))
	}
	if len(h.pollers) != 0 {
		t.Fatalf("pollers started = %d, want 0", len(h.pollers))
	}
}

func TestAvailabilityPollingReportsQueueDepth(t *testing.T) {
	api := &fakeAPI{
		checkAvailability: func(ctx context.Context, baseURL string) (domain.AvailabilityInfo, error) {
			return domain.AvailabilityInfo{QueuedJobs: 3, ProcessingJobs: 1, HasQueueState: true}, nil
		},
	}
	h := newHarness(t, api)

	h.app.Dispatch(state.APIURLLoaded{URL: "http://api.example.com"})
	h.apiPoller().tick()

	cur := h.app.CurrentState()
	if cur.API.Status != domain.APIAvailable {
		t.Fatalf("api status = %s, want AVAILABLE", cur.API.Status)
	}
	if cur.API.StatusMessage != "API is accessible. Queue: 3" {
		t.Fatalf("status message = %q", cur.API.StatusMessage)
	}
}

func TestAvailabilityPollingWithoutQueueState(t *testing.T) {
	api := &fakeAPI{
		checkAvailability: func(ctx context.Context, baseURL string) (domain.AvailabilityInfo, error) {
			return domain.AvailabilityInfo{}, nil
		},
	}
	h := newHarness(t, api)

	h.app.Dispatch(state.APIURLLoaded{URL: "http://api.example.com"})
	h.apiPoller().tick()

	if msg := h.app.CurrentState().API.StatusMessage; msg != "API is accessible. Queue: N/A" {
		t.Fatalf("status message = %q", msg)
	}
}

func TestAvailabilityProbeFailureMarksUnavailable(t *testing.T) {
	api := &fakeAPI{
		checkAvailability: func(ctx context.Context, baseURL string) (domain.AvailabilityInfo, error) {
			return domain.AvailabilityInfo{}, errors.New("API is not accessible: connection refused")
		},
	}
	h := newHarness(t, api)

	h.app.Dispatch(state.APIURLLoaded{URL: "http://api.example.com"})
	h.apiPoller().tick()

	cur := h.app.CurrentState()
	if cur.API.Status != domain.APIUnavailable {
		t.Fatalf("api status = %s, want UNAVAILABLE", cur.API.Status)
	}
	if !strings.Contains(cur.API.StatusMessage, "not accessible") {
		t.Fatalf("status message = %q", cur.API.StatusMessage)
	}
}

func TestSavingNewURLSupersedesAvailabilityPoller(t *testing.T) {
	h := newHarness(t, &fakeAPI{})

	h.app.Dispatch(state.APIURLLoaded{URL: "http://one.example.com"})
	first := h.apiPoller()
	h.app.SaveAPIURL("http://two.example.com")

	if !first.handle.stopped {
		t.Fatal("first availability poller not stopped")
	}
	h.apiPoller()
}

func TestStaleAvailabilityResultIsDropped(t *testing.T) {
	api := &fakeAPI{
		checkAvailability: func(ctx context.Context, baseURL string) (domain.AvailabilityInfo, error) {
			return domain.AvailabilityInfo{HasQueueState: true, QueuedJobs: 9}, nil
		},
	}
	h := newHarness(t, api)

	h.app.Dispatch(state.APIURLLoaded{URL: "http://one.example.com"})
	stale := h.apiPoller().tick
	h.app.Dispatch(state.APIURLLoaded{URL: "http://two.example.com"})

	stale()
	if status := h.app.CurrentState().API.Status; status == domain.APIAvailable {
		t.Fatal("superseded probe result was applied")
	}
}

func TestTranscriptionLifecycle(t *testing.T) {
	var submitted string
	qp := 2
	polls := 0
	api := &fakeAPI{
		submit: func(ctx context.Context, baseURL, filename string, payload io.Reader) (string, error) {
			submitted = filename
			return "job-42", nil
		},
		pollStatus: func(ctx context.Context, baseURL, jobID string) (domain.JobStatusInfo, error) {
			polls++
			if polls == 1 {
				return domain.JobStatusInfo{Status: domain.RemoteStatusQueued, QueuePosition: &qp}, nil
			}
			return domain.JobStatusInfo{Status: domain.RemoteStatusCompleted}, nil
		},
	}
	h := newHarness(t, api)

	h.app.Dispatch(state.APIURLLoaded{URL: "http://api.example.com"})
	name, path := h.tempAudioFile()
	h.app.SelectFile(name, path)
	if err := h.app.StartTranscription(); err != nil {
		t.Fatal(err)
	}

	if submitted != "meeting.mp3" {
		t.Fatalf("submitted filename = %q", submitted)
	}
	cur := h.app.CurrentState()
	if cur.Job.Status != domain.JobStatusPolling || cur.Job.ID != "job-42" {
		t.Fatalf("job after submit = %+v", cur.Job)
	}
	if h.ledger.snap.JobID != "job-42" {
		t.Fatalf("ledger snapshot = %+v", h.ledger.snap)
	}

	poller := h.jobPoller()
	poller.tick()
	cur = h.app.CurrentState()
	if cur.Job.RemoteStatus != domain.RemoteStatusQueued {
		t.Fatalf("remote status = %q, want Queued", cur.Job.RemoteStatus)
	}
	if !strings.Contains(cur.Job.Message, "Queue position: 2") {
		t.Fatalf("message = %q", cur.Job.Message)
	}
	if h.ledger.snap.LastStatus != domain.RemoteStatusQueued {
		t.Fatalf("ledger status = %q", h.ledger.snap.LastStatus)
	}

	poller.tick()
	cur = h.app.CurrentState()
	if cur.Job.Status != domain.JobStatusCompleted {
		t.Fatalf("job status = %s, want COMPLETED", cur.Job.Status)
	}
	want := gateway.ResultURL("http://api.example.com", "job-42")
	if cur.Job.ResultURL != want {
		t.Fatalf("result url = %q, want %q", cur.Job.ResultURL, want)
	}
	if !poller.handle.stopped {
		t.Fatal("job poller not stopped after completion")
	}
	if h.ledger.clears == 0 {
		t.Fatal("ledger not cleared after completion")
	}
}

func TestStartTranscriptionGuards(t *testing.T) {
	h := newHarness(t, &fakeAPI{})
	if err := h.app.StartTranscription(); !errors.Is(err, ErrNoFileSelected) {
		t.Fatalf("err = %v, want ErrNoFileSelected", err)
	}

	name, path := h.tempAudioFile()
	h.app.SelectFile(name, path)
	if err := h.app.StartTranscription(); !errors.Is(err, ErrNoAPIURL) {
		t.Fatalf("err = %v, want ErrNoAPIURL", err)
	}

	h.app.Dispatch(state.APIURLLoaded{URL: "http://api.example.com"})
	h.app.Dispatch(state.JobSubmitSucceeded{JobID: "job-1"})
	if err := h.app.StartTranscription(); !errors.Is(err, ErrJobAlreadyActive) {
		t.Fatalf("err = %v, want ErrJobAlreadyActive", err)
	}
}

func TestSubmitFailureResetsFileAndJob(t *testing.T) {
	api := &fakeAPI{
		submit: func(ctx context.Context, baseURL, filename string, payload io.Reader) (string, error) {
			return "", &gateway.RequestFailedError{StatusCode: 413, Message: "payload too large"}
		},
	}
	h := newHarness(t, api)

	h.app.Dispatch(state.APIURLLoaded{URL: "http://api.example.com"})
	name, path := h.tempAudioFile()
	h.app.SelectFile(name, path)
	if err := h.app.StartTranscription(); err != nil {
		t.Fatal(err)
	}

	cur := h.app.CurrentState()
	if cur.Job.Status != domain.JobStatusFailed {
		t.Fatalf("job status = %s, want FAILED", cur.Job.Status)
	}
	if cur.Job.Message != "Submission Failed: payload too large" {
		t.Fatalf("message = %q", cur.Job.Message)
	}
	if cur.File.Name != "" {
		t.Fatalf("file selection not cleared: %+v", cur.File)
	}
	if len(h.livePollers(20*time.Second)) != 0 {
		t.Fatal("job poller started for a failed submission")
	}
}

func TestTransientPollErrorKeepsPolling(t *testing.T) {
	api := &fakeAPI{
		pollStatus: func(ctx context.Context, baseURL, jobID string) (domain.JobStatusInfo, error) {
			return domain.JobStatusInfo{}, &gateway.ServerUnavailableError{StatusCode: 503}
		},
	}
	h := newHarness(t, api)

	h.app.Dispatch(state.APIURLLoaded{URL: "http://api.example.com"})
	h.app.Dispatch(state.FileSelected{Name: "talk.wav", Path: "/tmp/talk.wav"})
	h.app.Dispatch(state.JobSubmitSucceeded{JobID: "job-7"})

	poller := h.jobPoller()
	poller.tick()

	cur := h.app.CurrentState()
	if cur.Job.Status != domain.JobStatusPolling {
		t.Fatalf("job status = %s, want POLLING", cur.Job.Status)
	}
	if !strings.Contains(cur.Job.Message, "will retry") {
		t.Fatalf("message = %q", cur.Job.Message)
	}
	if poller.handle.stopped {
		t.Fatal("job poller stopped on a transient error")
	}
}

func TestNotFoundPollErrorFailsJob(t *testing.T) {
	api := &fakeAPI{
		pollStatus: func(ctx context.Context, baseURL, jobID string) (domain.JobStatusInfo, error) {
			return domain.JobStatusInfo{}, &gateway.NotFoundError{JobID: jobID}
		},
	}
	h := newHarness(t, api)

	h.app.Dispatch(state.APIURLLoaded{URL: "http://api.example.com"})
	h.app.Dispatch(state.JobSubmitSucceeded{JobID: "job-7"})

	poller := h.jobPoller()
	poller.tick()

	cur := h.app.CurrentState()
	if cur.Job.Status != domain.JobStatusFailed {
		t.Fatalf("job status = %s, want FAILED", cur.Job.Status)
	}
	if cur.Job.Message != "Job Failed: Job not found" {
		t.Fatalf("message = %q", cur.Job.Message)
	}
	if !poller.handle.stopped {
		t.Fatal("job poller not stopped")
	}
	if h.ledger.clears == 0 {
		t.Fatal("ledger not cleared")
	}
}

func TestRemoteFailureDefaultsReason(t *testing.T) {
	api := &fakeAPI{
		pollStatus: func(ctx context.Context, baseURL, jobID string) (domain.JobStatusInfo, error) {
			return domain.JobStatusInfo{Status: domain.RemoteStatusFailed}, nil
		},
	}
	h := newHarness(t, api)

	h.app.Dispatch(state.APIURLLoaded{URL: "http://api.example.com"})
	h.app.Dispatch(state.JobSubmitSucceeded{JobID: "job-7"})
	h.jobPoller().tick()

	want := "Job Failed: Job failed on server. Reason: No reason provided."
	if msg := h.app.CurrentState().Job.Message; msg != want {
		t.Fatalf("message = %q, want %q", msg, want)
	}
}

func TestStalePollResponseIsDropped(t *testing.T) {
	api := &fakeAPI{
		pollStatus: func(ctx context.Context, baseURL, jobID string) (domain.JobStatusInfo, error) {
			return domain.JobStatusInfo{Status: domain.RemoteStatusProcessing}, nil
		},
	}
	h := newHarness(t, api)

	h.app.Dispatch(state.APIURLLoaded{URL: "http://api.example.com"})
	h.app.Dispatch(state.JobSubmitSucceeded{JobID: "job-7"})
	stale := h.jobPoller().tick

	h.app.ResetInterface()
	stale()

	cur := h.app.CurrentState()
	if cur.Job.Status != domain.JobStatusIdle {
		t.Fatalf("job status = %s, want IDLE", cur.Job.Status)
	}
	if cur.Job.Message != state.InitialMessage {
		t.Fatalf("message = %q, stale poll result was applied", cur.Job.Message)
	}
}

func TestRecoveryResumesPolling(t *testing.T) {
	h := newHarness(t, &fakeAPI{})
	h.app.Settings.APIURL = "http://api.example.com"
	h.ledger.Save(ledger.Snapshot{JobID: "job-old", Filename: "lecture.ogg"})

	h.app.bootstrap()

	cur := h.app.CurrentState()
	if cur.Job.Status != domain.JobStatusPolling || cur.Job.ID != "job-old" {
		t.Fatalf("job after recovery = %+v", cur.Job)
	}
	if !strings.Contains(cur.Job.Message, `"lecture.ogg"`) {
		t.Fatalf("message = %q", cur.Job.Message)
	}
	h.jobPoller()
}

func TestNoRecoveryWithoutPendingJob(t *testing.T) {
	h := newHarness(t, &fakeAPI{})
	h.app.Settings.APIURL = "http://api.example.com"

	h.app.bootstrap()

	if status := h.app.CurrentState().Job.Status; status != domain.JobStatusIdle {
		t.Fatalf("job status = %s, want IDLE", status)
	}
	if len(h.livePollers(20*time.Second)) != 0 {
		t.Fatal("job poller started with no pending job")
	}
}

func TestDownloadTranscriptCachesAndRecycles(t *testing.T) {
	downloads := 0
	api := &fakeAPI{
		downloadResult: func(ctx context.Context, resultURL string) ([]byte, error) {
			downloads++
			return []byte("transcript text"), nil
		},
	}
	h := newHarness(t, api)

	h.app.Dispatch(state.APIURLLoaded{URL: "http://api.example.com"})
	h.app.Dispatch(state.JobRecovered{JobID: "job-9", Filename: "talk.wav"})
	h.app.Dispatch(state.JobCompleted{
		ResultURL:   gateway.ResultURL("http://api.example.com", "job-9"),
		CompletedAt: testClock,
	})

	// User cancels the save dialog: nothing written, job stays completed.
	h.app.pickSavePath = func(defaultName string) (string, error) { return "", nil }
	path, err := h.app.DownloadTranscript()
	if err != nil || path != "" {
		t.Fatalf("cancelled download = (%q, %v)", path, err)
	}
	if h.app.CurrentState().Job.Status != domain.JobStatusCompleted {
		t.Fatal("cancelled download recycled the interface")
	}

	target := filepath.Join(t.TempDir(), "talk.txt")
	h.app.pickSavePath = func(defaultName string) (string, error) {
		if defaultName != "talk.txt" {
			t.Fatalf("default filename = %q, want talk.txt", defaultName)
		}
		return target, nil
	}
	path, err = h.app.DownloadTranscript()
	if err != nil {
		t.Fatal(err)
	}
	if path != target {
		t.Fatalf("saved path = %q, want %q", path, target)
	}
	if downloads != 1 {
		t.Fatalf("result fetched %d times, want 1", downloads)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "transcript text" {
		t.Fatalf("written transcript = %q", data)
	}
	if status := h.app.CurrentState().Job.Status; status != domain.JobStatusIdle {
		t.Fatalf("job status after download = %s, want IDLE", status)
	}
}

func TestDownloadTranscriptRequiresCompletedJob(t *testing.T) {
	h := newHarness(t, &fakeAPI{})
	if _, err := h.app.DownloadTranscript(); !errors.Is(err, ErrNoResult) {
		t.Fatalf("err = %v, want ErrNoResult", err)
	}
}

func TestCancelJobRecyclesEvenWhenServerCancelFails(t *testing.T) {
	api := &fakeAPI{
		cancel: func(ctx context.Context, baseURL, jobID string) error {
			return errors.New("cancel unsupported")
		},
	}
	h := newHarness(t, api)

	h.app.Dispatch(state.APIURLLoaded{URL: "http://api.example.com"})
	h.app.Dispatch(state.JobSubmitSucceeded{JobID: "job-3"})
	poller := h.jobPoller()

	if err := h.app.CancelJob(); err == nil {
		t.Fatal("expected server cancel error to be reported")
	}
	if status := h.app.CurrentState().Job.Status; status != domain.JobStatusIdle {
		t.Fatalf("job status = %s, want IDLE", status)
	}
	if !poller.handle.stopped {
		t.Fatal("job poller not stopped")
	}
	if h.ledger.pending {
		t.Fatal("ledger still holds a pending job")
	}
}
