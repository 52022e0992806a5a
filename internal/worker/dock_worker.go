package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"

	"github.com/proteindock/api/internal/client"
	"github.com/proteindock/api/internal/config"
	"github.com/proteindock/api/internal/engine"
	"github.com/proteindock/api/internal/fasc"
	"github.com/proteindock/api/internal/model"
	"github.com/proteindock/api/internal/registry"
	"github.com/proteindock/api/internal/service"
)

// EventSink receives job events for delivery to subscribers. Publish must
// never block the worker.
type EventSink interface {
	Publish(project string, ev model.Event)
}

// DockWorker executes one docking run per task: spawn the engine, stream
// progress, and close the run with exactly one terminal event. ProcessTask
// always returns nil; run failures are reported on the event stream and in
// the job snapshot, never retried by the queue.
type DockWorker struct {
	cfg       *config.Config
	store     service.JobStore
	registry  *registry.Registry
	sink      EventSink
	artifacts client.ArtifactClient // nil disables uploads
	layout    engine.Layout
}

func NewDockWorker(cfg *config.Config, store service.JobStore, reg *registry.Registry, sink EventSink, artifacts client.ArtifactClient) *DockWorker {
	return &DockWorker{
		cfg:       cfg,
		store:     store,
		registry:  reg,
		sink:      sink,
		artifacts: artifacts,
		layout:    engine.NewLayout(cfg.WorkDir),
	}
}

func (w *DockWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p model.DockTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		log.Printf("worker: malformed task payload: %v", err)
		return nil
	}
	defer w.registry.Release(p.Project)

	job, err := w.store.GetJob(ctx, p.Project)
	if err != nil || job == nil || job.ID != p.JobID {
		job = &model.Job{
			ID:        p.JobID,
			Project:   p.Project,
			Status:    model.JobStatusLaunching,
			NStruct:   p.NStruct,
			CreatedAt: time.Now(),
		}
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The cancel endpoint reaches the run through the registry. A cancel
	// that raced ahead of this attach is reported back and honoured without
	// ever launching the engine.
	var userCancelled atomic.Bool
	if w.registry.Attach(p.Project, func() {
		userCancelled.Store(true)
		cancel()
	}) {
		log.Printf("worker: job %s cancelled before launch", p.JobID)
		w.sink.Publish(p.Project, model.NewCancelledEvent(0, p.NStruct, nil))
		w.finishJob(job, model.JobStatusCancelled, 0, nil)
		return nil
	}

	now := time.Now()
	job.Status = model.JobStatusRunning
	job.StartedAt = &now
	if err := w.store.SaveJob(ctx, job); err != nil {
		log.Printf("worker: failed to persist running snapshot: %v", err)
	}
	w.sink.Publish(p.Project, model.NewStartEvent(p.NStruct, "docking started"))

	projectDir := w.layout.ProjectDir(p.Project)
	scoreFile := w.layout.ScoreFile(p.Project)
	// A stale table from an earlier run would inflate the completed count.
	_ = os.Remove(scoreFile)

	cmd := engine.Command{
		Bin:          w.cfg.Engine.Bin,
		OptionsFile:  w.cfg.Engine.OptionsFile,
		ProtocolFile: w.cfg.Engine.ProtocolXML,
		ComplexPath:  filepath.Base(w.layout.ComplexPath(p.Project)),
		ScoreFile:    filepath.Base(scoreFile),
		OutSuffix:    w.layout.OutSuffix(p.Project),
		NStruct:      p.NStruct,
	}

	sup, err := engine.Start(cmd.Bin, cmd.Args(), projectDir)
	if err != nil {
		log.Printf("worker: job %s spawn failed: %v", p.JobID, err)
		msg := "failed to start docking engine"
		w.sink.Publish(p.Project, model.NewErrorEvent(msg))
		w.finishJob(job, model.JobStatusFailed, 0, &msg)
		return nil
	}

	logPath := w.layout.LogPath(p.Project)
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Printf("worker: cannot create run log %s: %v", logPath, err)
		logFile = nil
	}

	var logw io.Writer
	if logFile != nil {
		logw = logFile
	}

	mon := engine.NewMonitor(scoreFile, p.NStruct, w.cfg.Monitor.PollInterval, w.cfg.Monitor.StartupGrace)
	monDone := make(chan struct{})
	go func() {
		defer close(monDone)
		mon.Run(jobCtx, sup.Stdout(), logw)
	}()

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for ev := range mon.Events() {
			w.sink.Publish(p.Project, ev)
			if pe, ok := ev.(model.ProgressEvent); ok {
				job.Current = pe.Current
				job.Percent = pe.Percent
				if err := w.store.SaveJob(ctx, job); err != nil {
					log.Printf("worker: failed to persist progress: %v", err)
				}
			}
		}
	}()

	interrupted := false
	select {
	case <-sup.Done():
	case <-jobCtx.Done():
		interrupted = true
		sup.Terminate(w.cfg.Engine.CancelGrace)
	}

	// Process is dead: its stdout reaches EOF, the monitor takes a last poll
	// of the table and closes its stream, then the pump drains.
	<-monDone
	<-pumpDone
	if logFile != nil {
		logFile.Close()
	}

	current := mon.Current()

	// Exactly one terminal event per run leaves this switch.
	switch {
	case interrupted && userCancelled.Load():
		log.Printf("worker: job %s cancelled at %d/%d", p.JobID, current, p.NStruct)
		w.sink.Publish(p.Project, model.NewCancelledEvent(current, p.NStruct, mon.Records()))
		w.finishJob(job, model.JobStatusCancelled, current, nil)

	case interrupted:
		msg := "docking run exceeded the configured time limit"
		log.Printf("worker: job %s timed out at %d/%d", p.JobID, current, p.NStruct)
		w.sink.Publish(p.Project, model.NewErrorEvent(msg))
		w.finishJob(job, model.JobStatusFailed, current, &msg)

	default:
		code, werr := sup.Result()
		if werr != nil || code != 0 {
			msg := fmt.Sprintf("docking engine exited with code %d", code)
			if tail := logTail(logPath, 2048); tail != "" {
				msg = msg + "\n" + tail
			}
			log.Printf("worker: job %s failed: exit code %d", p.JobID, code)
			w.sink.Publish(p.Project, model.NewErrorEvent(msg))
			w.finishJob(job, model.JobStatusFailed, current, &msg)
			return nil
		}

		rs, skipped, err := fasc.Results(scoreFile, w.layout.PDBGlob(p.Project))
		if err != nil {
			log.Printf("worker: job %s score table unreadable: %v", p.JobID, err)
			rs = model.ResultSet{AllModels: []model.ScoreRecord{}}
		}
		if skipped > 0 {
			log.Printf("worker: job %s skipped %d malformed score rows", p.JobID, skipped)
		}
		if rs.Best == nil {
			log.Printf("worker: job %s completed with no scorable output", p.JobID)
		}

		w.sink.Publish(p.Project, model.NewCompleteEvent(rs))
		w.finishJob(job, model.JobStatusComplete, current, nil)
		w.uploadArtifacts(p.Project, scoreFile, rs)
	}

	return nil
}

// finishJob persists the terminal snapshot. Store failures are logged: the
// terminal event already went out and must not be duplicated.
func (w *DockWorker) finishJob(job *model.Job, status model.JobStatus, current int, errMsg *string) {
	now := time.Now()
	job.Status = status
	job.Current = current
	job.Percent = model.ProgressPercent(current, job.NStruct)
	job.CompletedAt = &now
	job.Error = errMsg

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.store.SaveJob(ctx, job); err != nil {
		log.Printf("worker: failed to persist terminal snapshot for job %s: %v", job.ID, err)
	}
}

// uploadArtifacts pushes the score table and the best model to object
// storage. Best effort: the run already completed.
func (w *DockWorker) uploadArtifacts(project, scoreFile string, rs model.ResultSet) {
	if w.artifacts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	uri, err := w.artifacts.UploadFile(ctx, project+"/"+filepath.Base(scoreFile), scoreFile, "")
	if err != nil {
		log.Printf("worker: score table upload failed for project %s: %v", project, err)
	} else {
		log.Printf("worker: score table uploaded to %s", uri)
	}

	if rs.Best == nil || rs.Best.PDBPath == "" {
		return
	}
	uri, err = w.artifacts.UploadFile(ctx, project+"/"+filepath.Base(rs.Best.PDBPath), rs.Best.PDBPath, "")
	if err != nil {
		log.Printf("worker: best model upload failed for project %s: %v", project, err)
	} else {
		log.Printf("worker: best model uploaded to %s", uri)
	}
}

// logTail returns the last maxBytes of the run log, trimmed to whole lines.
func logTail(path string, maxBytes int64) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ""
	}
	offset := int64(0)
	if info.Size() > maxBytes {
		offset = info.Size() - maxBytes
	}
	buf := make([]byte, info.Size()-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return ""
	}
	tail := strings.TrimSpace(string(buf))
	if offset > 0 {
		if i := strings.IndexByte(tail, '\n'); i >= 0 {
			tail = tail[i+1:]
		}
	}
	return tail
}
