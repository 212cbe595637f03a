package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"github.com/jbousquie/leontine/internal/config"
	"github.com/jbousquie/leontine/internal/diagnostics"
	"github.com/jbousquie/leontine/internal/domain"
	"github.com/jbousquie/leontine/internal/gateway"
	"github.com/jbousquie/leontine/internal/jobs"
	"github.com/jbousquie/leontine/internal/ledger"
	"github.com/jbousquie/leontine/internal/state"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// ErrNoAPIURL blocks submission while no endpoint is configured.
var ErrNoAPIURL = errors.New("no API URL configured")

// ErrNoFileSelected blocks submission without a picked file.
var ErrNoFileSelected = errors.New("no file selected")

// ErrJobAlreadyActive is returned when starting a second job.
var ErrJobAlreadyActive = errors.New("a job is already active")

// ErrNoResult is returned when a download is requested before completion.
var ErrNoResult = errors.New("no completed transcript to download")

// How long the "saved" confirmation stays visible.
const saveConfirmationFlash = 3 * time.Second

// Downloaded transcripts are kept briefly so a repeat download does not
// refetch.
const (
	transcriptCacheSize = 8
	transcriptCacheTTL  = 15 * time.Minute
)

var audioDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Audio files",
		Pattern:     "*.mp3;*.wav;*.m4a;*.flac;*.aac;*.ogg;*.opus;*.webm",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// apiClient is the slice of the gateway the orchestrator drives.
type apiClient interface {
	CheckAvailability(ctx context.Context, baseURL string) (domain.AvailabilityInfo, error)
	Submit(ctx context.Context, baseURL, filename string, payload io.Reader) (string, error)
	PollStatus(ctx context.Context, baseURL, jobID string) (domain.JobStatusInfo, error)
	DownloadResult(ctx context.Context, resultURL string) ([]byte, error)
	Cancel(ctx context.Context, baseURL, jobID string) error
}

// App is the effect orchestrator: it dispatches actions into the state
// store, decides which side effects each (action, state) pair triggers,
// and owns the two recurring pollers. It is the only impure layer; state
// transitions themselves live in the state package.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Ledger      ledger.Store
	Diagnostics domain.DiagnosticReport

	gw          apiClient
	checker     *diagnostics.Checker
	assets      fs.FS
	dataDir     string
	states      *state.Store
	events      *jobs.EventBus
	transcripts *expirable.LRU[string, []byte]

	// Injection points; tests replace these with deterministic doubles.
	newPoller    func(interval time.Duration, tick func()) pollHandle
	after        func(d time.Duration, fn func())
	runEffect    func(fn func())
	now          func() time.Time
	pickSavePath func(defaultName string) (string, error)
	pickOpenPath func() (string, error)

	mu          sync.Mutex
	runtimeCtx  context.Context
	apiPoll     pollHandle
	jobPoll     pollHandle
	activeJobID string
	apiGen      int
}

// New builds the application with persisted settings and a recovered
// pending job, if one exists.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded
// frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	dataDir := config.AppDir()
	store := config.NewJSONStore(filepath.Join(dataDir, "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if config.EnsureClientID(&settings) {
		if err := store.Save(settings); err != nil {
			return nil, fmt.Errorf("persist client id: %w", err)
		}
	}

	a := &App{
		Settings: settings,
		Store:    store,
		Ledger:   ledger.NewJSONStore(filepath.Join(dataDir, "pending.json")),
		gw: gateway.NewClient(gateway.ClientConfig{
			BearerToken: settings.APIToken,
			ClientID:    settings.ClientID,
		}),
		assets:      assets,
		dataDir:     dataDir,
		states:      state.NewStore(),
		events:      jobs.NewEventBus(1000),
		transcripts: expirable.NewLRU[string, []byte](transcriptCacheSize, nil, transcriptCacheTTL),
		newPoller:   startTickerPoller,
		after:       func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
		runEffect:   func(fn func()) { go fn() },
		now:         time.Now,
	}
	a.checker = diagnostics.NewChecker(func(ctx context.Context, baseURL string) (domain.AvailabilityInfo, error) {
		return a.api().CheckAvailability(ctx, baseURL)
	})
	a.pickSavePath = a.saveDialog
	a.pickOpenPath = a.openDialog

	a.bootstrap()
	a.runEffect(func() { a.RefreshDiagnostics() })
	return a, nil
}

// bootstrap seeds the state from persisted settings and the job ledger.
// Recovery polls immediately instead of waiting for the first tick.
func (a *App) bootstrap() {
	url := strings.TrimSpace(a.Settings.APIURL)
	if url != "" {
		a.Dispatch(state.APIURLLoaded{URL: url})
	}

	snap, ok, err := a.Ledger.LoadPending()
	if err != nil {
		slog.Warn("read job ledger", "error", err)
		return
	}
	if ok && url != "" {
		slog.Info("recovering pending job", "jobID", snap.JobID, "filename", snap.Filename)
		a.Dispatch(state.JobRecovered{JobID: snap.JobID, Filename: snap.Filename})
	}
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Leontine",
		Width:       900,
		Height:      680,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.stopJobPolling()
			a.stopAvailabilityPolling()
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores the Wails runtime context for push events and dialogs.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// CurrentState returns a snapshot of the application state.
func (a *App) CurrentState() state.State {
	return a.states.Current()
}

// Events returns all events with sequence greater than sinceSeq.
func (a *App) Events(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// RefreshDiagnostics reruns endpoint and storage checks.
func (a *App) RefreshDiagnostics() domain.DiagnosticReport {
	settings := a.settings()
	report := a.checker.Run(context.Background(), settings, a.dataDir)

	a.mu.Lock()
	a.Diagnostics = report
	a.mu.Unlock()
	return report
}

// GetSettings returns the current persisted settings.
func (a *App) GetSettings() domain.Settings {
	return a.settings()
}

// SaveSettings persists settings, rebuilds the gateway client for the new
// token, restarts availability polling, and refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	settings.APIURL = strings.TrimSpace(settings.APIURL)
	defaults := config.DefaultSettings()
	if settings.StatusCheckIntervalSeconds <= 0 {
		settings.StatusCheckIntervalSeconds = defaults.StatusCheckIntervalSeconds
	}
	if settings.APICheckIntervalSeconds <= 0 {
		settings.APICheckIntervalSeconds = defaults.APICheckIntervalSeconds
	}
	config.EnsureClientID(&settings)

	if err := a.Store.Save(settings); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.gw = gateway.NewClient(gateway.ClientConfig{
		BearerToken: settings.APIToken,
		ClientID:    settings.ClientID,
	})
	a.mu.Unlock()

	a.Dispatch(state.APIURLInputChanged{URL: settings.APIURL})
	a.Dispatch(state.APIURLSaveClicked{})
	a.runEffect(func() { a.RefreshDiagnostics() })
	return settings, nil
}

// SaveAPIURL is the save-url user intent from the UI.
func (a *App) SaveAPIURL(url string) {
	a.Dispatch(state.APIURLInputChanged{URL: strings.TrimSpace(url)})
	a.Dispatch(state.APIURLSaveClicked{})
}

// SetAPIURL mirrors the URL input field as the user types.
func (a *App) SetAPIURL(url string) {
	a.Dispatch(state.APIURLInputChanged{URL: url})
}

// PickAudioFile opens a native file dialog and applies the selection.
func (a *App) PickAudioFile() (state.State, error) {
	path, err := a.pickOpenPath()
	if err != nil {
		return a.states.Current(), err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return a.states.Current(), nil
	}

	a.SelectFile(filepath.Base(path), path)
	return a.states.Current(), nil
}

// SelectFile applies a file pick coming from the UI (drag-and-drop or
// dialog).
func (a *App) SelectFile(name, path string) {
	a.Dispatch(state.FileSelected{Name: name, Path: path})
}

// StartTranscription submits the selected file. One submission can be in
// flight at a time.
func (a *App) StartTranscription() error {
	cur := a.states.Current()
	if cur.Job.Status != domain.JobStatusIdle {
		return ErrJobAlreadyActive
	}
	if cur.File.Name == "" || cur.File.Path == "" {
		return ErrNoFileSelected
	}
	if strings.TrimSpace(cur.API.URL) == "" {
		return ErrNoAPIURL
	}

	a.Dispatch(state.TranscribeClicked{})
	return nil
}

// DownloadTranscript fetches the finished transcript, writes it next to
// the name the user chose, and recycles the interface. The empty return
// path means the user cancelled the save dialog.
func (a *App) DownloadTranscript() (string, error) {
	cur := a.states.Current()
	if cur.Job.Status != domain.JobStatusCompleted || cur.Job.ResultURL == "" {
		return "", ErrNoResult
	}

	data, ok := a.transcripts.Get(cur.Job.ID)
	if !ok {
		fetched, err := a.api().DownloadResult(context.Background(), cur.Job.ResultURL)
		if err != nil {
			a.Dispatch(state.JobFailed{Err: "Download failed: " + err.Error()})
			return "", err
		}
		data = fetched
		a.transcripts.Add(cur.Job.ID, data)
	}

	target, err := a.pickSavePath(transcriptFileName(cur.Job.Filename))
	if err != nil {
		return "", err
	}
	if target == "" {
		return "", nil
	}

	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}

	a.events.Publish(jobs.Event{
		Type:       jobs.EventTypeResult,
		JobID:      cur.Job.ID,
		Status:     domain.JobStatusCompleted,
		Message:    "Transcript saved",
		ResultPath: target,
	})
	a.Dispatch(state.DownloadSucceeded{})
	return target, nil
}

// CancelJob abandons the job being polled. Local state is recycled even
// when the server-side cancel fails.
func (a *App) CancelJob() error {
	cur := a.states.Current()
	if cur.Job.Status != domain.JobStatusPolling || cur.Job.ID == "" {
		return ErrJobAlreadyActive
	}

	err := a.api().Cancel(context.Background(), cur.API.URL, cur.Job.ID)
	if err != nil {
		slog.Warn("cancel job on server", "jobID", cur.Job.ID, "error", err)
	}
	a.Dispatch(state.InterfaceReset{})
	return err
}

// ResetInterface is the explicit reset intent.
func (a *App) ResetInterface() {
	a.Dispatch(state.InterfaceReset{})
}

// api returns the current gateway client; SaveSettings may swap it.
func (a *App) api() apiClient {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gw
}

// settings returns a snapshot of the current settings.
func (a *App) settings() domain.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Settings
}

// saveDialog asks the user where to put the transcript.
func (a *App) saveDialog(defaultName string) (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	return wailsruntime.SaveFileDialog(ctx, wailsruntime.SaveDialogOptions{
		Title:           "Save transcript",
		DefaultFilename: defaultName,
	})
}

// openDialog asks the user for an audio file.
func (a *App) openDialog() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	return wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select audio file",
		Filters: audioDialogFilter,
	})
}

// runtimeContext returns the current Wails runtime context for dialogs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// transcriptFileName derives the download name from the submitted file.
func transcriptFileName(submitted string) string {
	base := strings.TrimSuffix(submitted, filepath.Ext(submitted))
	if base == "" {
		base = "transcript"
	}
	return base + ".txt"
}
