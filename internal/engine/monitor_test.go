package engine

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/proteindock/api/internal/model"
)

const scoreHeader = "SCORE:     total_score description\n"

func appendRows(t *testing.T, path string, upto int) {
	t.Helper()
	content := scoreHeader
	for i := 1; i <= upto; i++ {
		content += "SCORE:        -310.5 complex_input_p1_000" + string(rune('0'+i)) + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// collect drains the monitor's stream into a slice until it closes.
func collect(mon *Monitor) <-chan []model.Event {
	out := make(chan []model.Event, 1)
	go func() {
		var events []model.Event
		for ev := range mon.Events() {
			events = append(events, ev)
		}
		out <- events
	}()
	return out
}

func progressValues(events []model.Event) []model.ProgressEvent {
	var out []model.ProgressEvent
	for _, ev := range events {
		if pe, ok := ev.(model.ProgressEvent); ok {
			out = append(out, pe)
		}
	}
	return out
}

func TestMonitor_ProgressFromTable(t *testing.T) {
	fascPath := filepath.Join(t.TempDir(), "score_p1.fasc")
	mon := NewMonitor(fascPath, 5, 10*time.Millisecond, time.Minute)

	stdoutR, stdoutW := io.Pipe()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		mon.Run(context.Background(), stdoutR, nil)
	}()
	collected := collect(mon)

	time.Sleep(50 * time.Millisecond)
	appendRows(t, fascPath, 2)
	time.Sleep(50 * time.Millisecond)
	appendRows(t, fascPath, 5)
	time.Sleep(50 * time.Millisecond)
	stdoutW.Close()
	<-runDone

	events := <-collected
	progress := progressValues(events)
	if len(progress) == 0 {
		t.Fatal("no progress events")
	}

	if progress[0].Current != 0 || progress[0].Percent != 0 {
		t.Errorf("expected zero baseline first, got %+v", progress[0])
	}
	for i := 1; i < len(progress); i++ {
		if progress[i].Current <= progress[i-1].Current {
			t.Errorf("progress not strictly increasing: %+v -> %+v", progress[i-1], progress[i])
		}
	}

	seen := map[int]int{}
	for _, pe := range progress {
		seen[pe.Current] = pe.Percent
	}
	if pct, ok := seen[2]; !ok || pct != 40 {
		t.Errorf("expected progress 2/5 at 40%%, got %v (present=%v)", pct, ok)
	}
	if pct, ok := seen[5]; !ok || pct != 100 {
		t.Errorf("expected progress 5/5 at 100%%, got %v (present=%v)", pct, ok)
	}
	if mon.Current() != 5 {
		t.Errorf("expected final count 5, got %d", mon.Current())
	}
}

func TestMonitor_FinalPollAfterExit(t *testing.T) {
	// Rows written just before process exit must be picked up even if no
	// poll tick happens in between.
	fascPath := filepath.Join(t.TempDir(), "score_p1.fasc")
	mon := NewMonitor(fascPath, 3, time.Hour, time.Minute)

	stdoutR, stdoutW := io.Pipe()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		mon.Run(context.Background(), stdoutR, nil)
	}()
	collected := collect(mon)

	appendRows(t, fascPath, 3)
	stdoutW.Close()
	<-runDone

	events := <-collected
	progress := progressValues(events)
	last := progress[len(progress)-1]
	if last.Current != 3 || last.Percent != 100 {
		t.Errorf("expected final progress 3/3, got %+v", last)
	}
}

func TestMonitor_ScoreLinesFromStdout(t *testing.T) {
	fascPath := filepath.Join(t.TempDir(), "score_p1.fasc")
	mon := NewMonitor(fascPath, 2, time.Hour, time.Minute)

	stdoutR, stdoutW := io.Pipe()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		mon.Run(context.Background(), stdoutR, nil)
	}()
	collected := collect(mon)

	go func() {
		io.WriteString(stdoutW, "core.init: engine chatter\n")
		io.WriteString(stdoutW, "SCORE:        -312.5 complex_input_p1_0001\n")
		io.WriteString(stdoutW, "SCORE:        -305.0 complex_input_p1_0002\n")
		stdoutW.Close()
	}()
	<-runDone

	events := <-collected
	var scores []model.ScoreEvent
	for _, ev := range events {
		if se, ok := ev.(model.ScoreEvent); ok {
			scores = append(scores, se)
		}
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 score events, got %d", len(scores))
	}
	if scores[0].Score != -312.5 || scores[0].Desc != "complex_input_p1_0001" {
		t.Errorf("unexpected first score event: %+v", scores[0])
	}
	if recs := mon.Records(); len(recs) != 2 {
		t.Errorf("expected 2 retained records, got %d", len(recs))
	}
}

func TestMonitor_TeesOutputToLog(t *testing.T) {
	fascPath := filepath.Join(t.TempDir(), "score_p1.fasc")
	logPath := filepath.Join(t.TempDir(), "run.log")
	logFile, err := os.Create(logPath)
	if err != nil {
		t.Fatal(err)
	}

	mon := NewMonitor(fascPath, 1, time.Hour, time.Minute)
	stdoutR, stdoutW := io.Pipe()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		mon.Run(context.Background(), stdoutR, logFile)
	}()
	go func() {
		for range mon.Events() {
		}
	}()

	io.WriteString(stdoutW, "protocols.docking: setup complete\n")
	stdoutW.Close()
	<-runDone
	logFile.Close()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "protocols.docking: setup complete\n" {
		t.Errorf("unexpected log contents: %q", data)
	}
}

func TestMonitor_CapsAtTotal(t *testing.T) {
	fascPath := filepath.Join(t.TempDir(), "score_p1.fasc")
	appendRows(t, fascPath, 7)

	mon := NewMonitor(fascPath, 5, time.Hour, time.Minute)
	stdoutR, stdoutW := io.Pipe()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		mon.Run(context.Background(), stdoutR, nil)
	}()
	collected := collect(mon)

	stdoutW.Close()
	<-runDone

	for _, pe := range progressValues(<-collected) {
		if pe.Current > 5 || pe.Percent > 100 {
			t.Errorf("progress exceeds total: %+v", pe)
		}
	}
	if mon.Current() != 5 {
		t.Errorf("expected count capped at 5, got %d", mon.Current())
	}
}

func TestMonitor_ZeroTotal(t *testing.T) {
	fascPath := filepath.Join(t.TempDir(), "score_p1.fasc")
	mon := NewMonitor(fascPath, 0, time.Hour, time.Minute)

	stdoutR, stdoutW := io.Pipe()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		mon.Run(context.Background(), stdoutR, nil)
	}()
	collected := collect(mon)

	stdoutW.Close()
	<-runDone

	for _, pe := range progressValues(<-collected) {
		if pe.Percent != 0 {
			t.Errorf("zero total must report 0 percent, got %+v", pe)
		}
	}
}

func TestMonitor_StopsOnCancel(t *testing.T) {
	fascPath := filepath.Join(t.TempDir(), "score_p1.fasc")
	mon := NewMonitor(fascPath, 5, 10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	stdoutR, stdoutW := io.Pipe()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		mon.Run(ctx, stdoutR, nil)
	}()
	go func() {
		for range mon.Events() {
		}
	}()

	cancel()
	// The stream only drains once the process side is torn down.
	stdoutW.Close()

	select {
	case <-runDone:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop after cancel")
	}
}
