package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/courseforge/uploadtracker/internal/config"
	"github.com/courseforge/uploadtracker/internal/logger"
	"github.com/courseforge/uploadtracker/internal/metrics"
	"github.com/courseforge/uploadtracker/internal/platform"
	"github.com/courseforge/uploadtracker/internal/state"
	"github.com/courseforge/uploadtracker/internal/tracker"
)

const usage = `uploadctl - track curriculum uploads on the platform

Usage:
  uploadctl submit -file <path> [-objectives <text>] [-content-types <json>]
  uploadctl submit -text <path> -title <title> [-objectives <text>]
  uploadctl submit -topic <topic> [-objectives <text>]
  uploadctl watch
  uploadctl history
  uploadctl show <upload-id>
  uploadctl resume <upload-id>
  uploadctl cancel [-y] <upload-id>
  uploadctl reset
`

func main() {
	cfg := config.Load()
	logger.SetDefault(logger.New(os.Stderr, logger.ParseLevel(cfg.LogLevel), "uploadctl"))

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(ctx, cfg)
	defer app.close()

	var err error
	switch os.Args[1] {
	case "submit":
		err = app.submit(ctx, os.Args[2:])
	case "watch":
		err = app.watchPersisted(ctx)
	case "history":
		err = app.history(ctx)
	case "show":
		err = app.show(ctx, os.Args[2:])
	case "resume":
		err = app.resume(ctx, os.Args[2:])
	case "cancel":
		err = app.cancel(ctx, os.Args[2:])
	case "reset":
		app.svc.Reset(ctx)
		fmt.Println("tracking state cleared")
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	cfg       *config.Config
	svc       *tracker.Service
	resumedID string
}

func newApp(ctx context.Context, cfg *config.Config) *app {
	store := state.Open(ctx, state.Options{
		Path:     cfg.StatePath,
		RedisURL: cfg.RedisURL,
	})
	client := platform.NewClient(cfg.PlatformURL, cfg.APIToken, cfg.RequestTimeout)

	svc := tracker.NewService(client, store, consoleNotifier{}, tracker.Config{
		PollInterval:    cfg.PollInterval,
		HistoryInterval: cfg.HistoryInterval,
		HistoryLimit:    cfg.HistoryLimit,
	})
	resumed := svc.Start(ctx)

	return &app{cfg: cfg, svc: svc, resumedID: resumed}
}

func (a *app) close() {
	if err := a.svc.Close(); err != nil {
		logger.Warn(context.Background(), "shutdown incomplete", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (a *app) submit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	filePath := fs.String("file", "", "curriculum file to upload (.imscc, .zip, .pdf, .docx, .doc)")
	textPath := fs.String("text", "", "plain-text file whose contents become the material")
	title := fs.String("title", "", "title for pasted-text material")
	topic := fs.String("topic", "", "topic to generate material from")
	objectives := fs.String("objectives", "", "learning objectives")
	contentTypes := fs.String("content-types", "", "JSON map of archive entry names to content types")
	detach := fs.Bool("detach", false, "exit after submission instead of watching")
	showStats := fs.Bool("stats", false, "print request metrics on exit")
	fs.Parse(args)

	var (
		uploadID string
		err      error
	)
	switch {
	case *filePath != "":
		uploadID, err = a.submitFile(ctx, *filePath, *objectives, *contentTypes)
	case *textPath != "":
		uploadID, err = a.submitText(ctx, *textPath, *title, *objectives)
	case *topic != "":
		uploadID, err = a.svc.SubmitTopic(ctx, *topic, *objectives)
	default:
		return fmt.Errorf("one of -file, -text or -topic is required")
	}
	if err != nil {
		return err
	}

	fmt.Printf("upload started: %s\n", uploadID)
	if *detach {
		return nil
	}

	err = a.watch(ctx)
	if *showStats {
		fmt.Println(metrics.Default().Snapshot())
	}
	return err
}

func (a *app) submitFile(ctx context.Context, path, objectives, contentTypesJSON string) (string, error) {
	var contentTypes map[string]string
	if contentTypesJSON != "" {
		if err := json.Unmarshal([]byte(contentTypesJSON), &contentTypes); err != nil {
			return "", fmt.Errorf("invalid -content-types: %w", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	return a.svc.SubmitFile(ctx, filepath.Base(path), info.Size(), f, objectives, contentTypes)
}

func (a *app) submitText(ctx context.Context, path, title, objectives string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return a.svc.SubmitText(ctx, title, string(data), objectives)
}

// watchPersisted re-attaches to the upload persisted by a previous run
func (a *app) watchPersisted(ctx context.Context) error {
	if a.resumedID == "" {
		fmt.Println("no upload in progress")
		return nil
	}
	fmt.Printf("watching upload %s\n", a.resumedID)
	return a.watch(ctx)
}

// watch renders focused-upload updates until the job settles or the
// user interrupts.
func (a *app) watch(ctx context.Context) error {
	updates, unsubscribe := a.svc.Subscribe()
	defer unsubscribe()

	// The first poll fires immediately, so the job may have settled
	// before this subscription existed
	if job, ok := a.svc.LastJob(); ok && job.PollingDone() {
		renderUpdate(tracker.Update{Job: job, DisplayProgress: job.Progress})
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			fmt.Println("detached; tracking state is preserved, run `uploadctl watch` to re-attach")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			renderUpdate(upd)
			if upd.Job.PollingDone() {
				return nil
			}
		}
	}
}

func renderUpdate(upd tracker.Update) {
	job := upd.Job
	line := fmt.Sprintf("\r[%-20s] %3d%% %s", progressBar(upd.DisplayProgress, 20), upd.DisplayProgress, job.Status)
	if job.CurrentStage != "" {
		line += " " + job.CurrentStage
		if job.CurrentItem != "" {
			line += ": " + job.CurrentItem
		}
	}
	fmt.Print(line)
	if job.PollingDone() {
		fmt.Println()
	}
}

func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100
	return strings.Repeat("=", filled) + strings.Repeat(" ", width-filled)
}

func (a *app) history(ctx context.Context) error {
	if err := a.svc.History().Refresh(ctx); err != nil {
		return err
	}

	entries := a.svc.History().Snapshot()
	if len(entries) == 0 {
		fmt.Println("no uploads yet")
		return nil
	}

	fmt.Printf("%-38s %-16s %9s  %s\n", "UPLOAD", "STATUS", "PROGRESS", "DETAIL")
	for _, job := range entries {
		fmt.Printf("%-38s %-16s %8d%%  %s\n", job.ID, job.Status, job.Progress, historyDetail(job))
	}
	return nil
}

func historyDetail(job tracker.Job) string {
	switch {
	case job.Succeeded() && job.CreatedCourseID != "":
		return "course " + job.CreatedCourseID
	case job.Resumable():
		return fmt.Sprintf("resumable from stage %d", job.ResumeFromStage)
	case job.ErrorMessage != "":
		return job.ErrorMessage
	case job.CurrentStage != "":
		return job.CurrentStage
	}
	return ""
}

func (a *app) show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: uploadctl show <upload-id>")
	}

	job, err := a.svc.Detail(ctx, args[0])
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func (a *app) resume(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: uploadctl resume <upload-id>")
	}

	if err := a.svc.Resume(ctx, args[0]); err != nil {
		return err
	}
	return a.watch(ctx)
}

func (a *app) cancel(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	yes := fs.Bool("y", false, "skip the confirmation prompt")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: uploadctl cancel [-y] <upload-id>")
	}
	uploadID := fs.Arg(0)

	if !*yes && !confirm(fmt.Sprintf("cancel upload %s? [y/N] ", uploadID)) {
		fmt.Println("aborted")
		return nil
	}

	return a.svc.Cancel(ctx, uploadID)
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// consoleNotifier prints notifications to stdout, where the progress
// line also lives.
type consoleNotifier struct{}

func (consoleNotifier) Notify(_ context.Context, n tracker.Notification) {
	switch n.Kind {
	case tracker.NotifySuccess:
		if n.CreatedCourseID != "" {
			fmt.Printf("\n%s (course %s)\n", n.Message, n.CreatedCourseID)
			return
		}
		fmt.Printf("\n%s\n", n.Message)
	case tracker.NotifyFailure:
		fmt.Printf("\n%s\n", n.Message)
		if n.CanResume {
			fmt.Printf("run `uploadctl resume %s` to retry from stage %d\n", n.UploadID, n.ResumeFromStage)
		}
	default:
		fmt.Printf("\n%s\n", n.Message)
	}
}
