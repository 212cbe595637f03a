package diagnostics

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jbousquie/leontine/internal/domain"
)

// probeTimeout bounds the reachability check so the settings panel never
// hangs on a dead endpoint.
const probeTimeout = 10 * time.Second

// Prober issues one availability exchange against the service.
type Prober func(ctx context.Context, baseURL string) (domain.AvailabilityInfo, error)

// Checker validates the configured endpoint and required local paths.
type Checker struct {
	probe      Prober
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker probing through the given function and
// using real OS dependencies.
func NewChecker(probe Prober) *Checker {
	return &Checker{
		probe:      probe,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all checks and returns a combined report.
func (c *Checker) Run(ctx context.Context, settings domain.Settings, dataDir string) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkAPIURL(settings.APIURL),
		c.checkReachability(ctx, settings.APIURL),
		c.checkDataDir(dataDir),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkAPIURL validates the configured endpoint is a usable http(s) URL.
func (c *Checker) checkAPIURL(rawURL string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "api_url",
		Name: "API URL",
	}

	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "API URL is empty."
		item.Hint = "Enter the transcription service URL and save it before submitting a file."
		return item
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("API URL is not a valid http(s) URL: %s", trimmed)
		item.Hint = "Use a full URL such as https://whisper.example.com."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Configured endpoint: %s", trimmed)
	return item
}

// checkReachability probes the service status endpoint once.
func (c *Checker) checkReachability(ctx context.Context, rawURL string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "api_reachability",
		Name: "Service reachability",
	}

	if strings.TrimSpace(rawURL) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "No endpoint configured to probe."
		item.Hint = "Save an API URL first."
		return item
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	info, err := c.probe(ctx, rawURL)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = err.Error()
		item.Hint = "Check the URL, your network connection, and that the service is running."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	if info.HasQueueState {
		item.Message = fmt.Sprintf("Service is reachable. Queue: %d queued, %d processing.",
			info.QueuedJobs, info.ProcessingJobs)
	} else {
		item.Message = "Service is reachable."
	}
	return item
}

// checkDataDir validates the settings/ledger directory is writable.
func (c *Checker) checkDataDir(dataDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "data_dir",
		Name: "Data directory",
	}

	if err := c.mkdirAll(dataDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create data directory: %s", dataDir)
		item.Hint = "Job recovery needs a writable directory; adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(dataDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Data directory is not writable: %s", dataDir)
		item.Hint = "Settings and pending jobs cannot be saved there; choose a writable location."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dataDir)
	return item
}

// NewCheckerForTests creates a checker with injectable dependencies.
func NewCheckerForTests(
	probe Prober,
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		probe:      probe,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}
