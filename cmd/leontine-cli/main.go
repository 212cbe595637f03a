// Command leontine-cli drives a transcription end to end without the
// desktop shell: submit a file, poll until the job finishes, write the
// transcript next to the input. An interrupted run can be resumed with
// --resume, which picks up the pending job recorded in the ledger.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/jbousquie/leontine/internal/config"
	"github.com/jbousquie/leontine/internal/domain"
	"github.com/jbousquie/leontine/internal/gateway"
	"github.com/jbousquie/leontine/internal/ledger"
	"github.com/jbousquie/leontine/internal/logging"
)

type options struct {
	URL      string `short:"u" long:"url" description:"Transcription API base URL (defaults to the saved setting)"`
	Token    string `long:"token" description:"Bearer token sent with every request"`
	Interval int    `long:"interval" description:"Status poll interval in seconds" default:"20"`
	Output   string `short:"o" long:"output" description:"Transcript output path (default: <input>.txt)"`
	Resume   bool   `long:"resume" description:"Resume the pending job from a previous run instead of submitting"`
	LogLevel string `long:"log-level" description:"Log level: debug, info, warn, error" default:"info"`

	Args struct {
		File string `positional-arg-name:"FILE" description:"Audio file to transcribe"`
	} `positional-args:"yes"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	logging.Init(logging.Config{Level: opts.LogLevel, Format: "text"})

	if err := run(opts); err != nil {
		slog.Error("transcription failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dataDir := config.AppDir()
	store := config.NewJSONStore(filepath.Join(dataDir, "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if config.EnsureClientID(&settings) {
		if err := store.Save(settings); err != nil {
			return fmt.Errorf("persist client id: %w", err)
		}
	}

	baseURL := strings.TrimSpace(opts.URL)
	if baseURL == "" {
		baseURL = strings.TrimSpace(settings.APIURL)
	}
	if baseURL == "" {
		return fmt.Errorf("no API URL: pass --url or save one with the desktop app")
	}
	token := opts.Token
	if token == "" {
		token = settings.APIToken
	}

	client := gateway.NewClient(gateway.ClientConfig{
		BearerToken: token,
		ClientID:    settings.ClientID,
	})
	pending := ledger.NewJSONStore(filepath.Join(dataDir, "pending.json"))

	jobID, filename, err := resolveJob(ctx, client, pending, baseURL, opts)
	if err != nil {
		return err
	}

	interval := time.Duration(opts.Interval) * time.Second
	if interval <= 0 {
		interval = settings.StatusCheckInterval()
	}

	if err := waitForCompletion(ctx, client, pending, baseURL, jobID, filename, interval); err != nil {
		return err
	}

	output := opts.Output
	if output == "" {
		output = strings.TrimSuffix(filename, filepath.Ext(filename)) + ".txt"
	}
	data, err := client.DownloadResult(ctx, gateway.ResultURL(baseURL, jobID))
	if err != nil {
		return fmt.Errorf("download transcript: %w", err)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	if err := pending.Clear(); err != nil {
		slog.Warn("clear job ledger", "error", err)
	}

	fmt.Println(output)
	return nil
}

// resolveJob either resumes the ledgered job or submits the given file.
func resolveJob(ctx context.Context, client *gateway.Client, pending ledger.Store, baseURL string, opts options) (jobID, filename string, err error) {
	if opts.Resume {
		snap, ok, err := pending.LoadPending()
		if err != nil {
			return "", "", fmt.Errorf("read job ledger: %w", err)
		}
		if !ok {
			return "", "", fmt.Errorf("no pending job to resume")
		}
		slog.Info("resuming pending job", "jobID", snap.JobID, "filename", snap.Filename)
		return snap.JobID, snap.Filename, nil
	}

	path := opts.Args.File
	if path == "" {
		return "", "", fmt.Errorf("no input file: pass FILE or use --resume")
	}
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	filename = filepath.Base(path)
	jobID, err = client.Submit(ctx, baseURL, filename, f)
	if err != nil {
		return "", "", fmt.Errorf("submit %q: %w", filename, err)
	}

	slog.Info("job submitted", "jobID", jobID, "filename", filename)
	if err := pending.Save(ledger.Snapshot{JobID: jobID, Filename: filename, LastUpdated: time.Now()}); err != nil {
		slog.Warn("save job ledger", "error", err)
	}
	return jobID, filename, nil
}

// waitForCompletion polls until the job reaches a terminal status.
// Transient errors keep the loop running; everything else ends it.
func waitForCompletion(ctx context.Context, client *gateway.Client, pending ledger.Store, baseURL, jobID, filename string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		info, err := client.PollStatus(ctx, baseURL, jobID)
		switch {
		case err != nil && gateway.IsTransient(err):
			slog.Warn("status check failed, will retry", "jobID", jobID, "error", err)
		case err != nil:
			return err
		case info.Status == domain.RemoteStatusCompleted:
			return nil
		case info.Status == domain.RemoteStatusFailed:
			reason := info.Detail
			if reason == "" {
				reason = "No reason provided."
			}
			return fmt.Errorf("job failed on server: %s", reason)
		default:
			attrs := []any{"jobID", jobID, "status", info.Status}
			if info.QueuePosition != nil {
				attrs = append(attrs, "queuePosition", *info.QueuePosition)
			}
			slog.Info("job status", attrs...)
			if err := pending.Save(ledger.Snapshot{
				JobID:       jobID,
				Filename:    filename,
				LastStatus:  info.Status,
				LastUpdated: time.Now(),
			}); err != nil {
				slog.Warn("save job ledger", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
