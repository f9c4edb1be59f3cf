package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"jsjudge/internal/judge/model"
	"jsjudge/internal/judge/repository"
	"jsjudge/internal/judge/sandbox"
	"jsjudge/internal/judge/sandbox/result"
	appErr "jsjudge/pkg/errors"
)

type fakeExecutor struct {
	reporter sandbox.StatusReporter
	block    chan struct{}
	err      error
}

func (f *fakeExecutor) Execute(ctx context.Context, sub sandbox.Submission) (result.SubmissionVerdict, error) {
	if f.reporter != nil {
		f.reporter.ReportStatus(ctx, sandbox.StatusUpdate{SubmissionID: sub.ID, Status: sandbox.StatusRunning, TotalTests: len(sub.TestCases), DoneTests: 1})
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return result.SubmissionVerdict{}, appErr.Wrap(ctx.Err(), appErr.GetCode(ctx.Err()))
		}
	}
	if f.err != nil {
		return result.SubmissionVerdict{}, f.err
	}
	results := make([]result.TestCaseResult, len(sub.TestCases))
	for i := range results {
		results[i] = result.TestCaseResult{Passed: true, Verdict: result.VerdictAC, Logs: []string{}}
	}
	return result.Aggregate(sub.ID, results), nil
}

func newService(t *testing.T, exec *fakeExecutor, maxInFlight int) *Service {
	t.Helper()
	repo, err := repository.NewStatusRepository(time.Minute, 100)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	svc, err := NewService(Config{
		Executor:    exec,
		StatusRepo:  repo,
		MaxInFlight: maxInFlight,
		SlotWait:    50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	exec.reporter = svc
	return svc
}

func request(n int) model.ExecutionRequest {
	return model.ExecutionRequest{
		Code:      "function f(x) { return x; }",
		Language:  sandbox.LanguageJavaScript,
		TestCases: make([]sandbox.TestCase, n),
	}
}

func waitForStatus(t *testing.T, svc *Service, id string, want sandbox.Status) model.ExecutionStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		status, err := svc.Status(context.Background(), id)
		if err == nil && status.Status == want {
			return status
		}
		if time.Now().After(deadline) {
			t.Fatalf("status of %s never became %s (last %+v, err %v)", id, want, status, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunStoresVerdict(t *testing.T) {
	svc := newService(t, &fakeExecutor{}, 1)
	verdict, err := svc.Run(context.Background(), request(3))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !verdict.Passed || verdict.Summary.Total != 3 {
		t.Fatalf("verdict = %+v", verdict)
	}
	status := waitForStatus(t, svc, verdict.SubmissionID, sandbox.StatusFinished)
	if status.Verdict == nil || status.Progress.DoneTests != 3 || status.Timestamps.FinishedAt == 0 {
		t.Fatalf("status = %+v", status)
	}
	if svc.Running() != 0 {
		t.Fatalf("running = %d", svc.Running())
	}
}

func TestSubmitRunsInBackground(t *testing.T) {
	exec := &fakeExecutor{block: make(chan struct{})}
	svc := newService(t, exec, 2)
	req := request(2)
	req.SubmissionID = "sub-1"
	id, err := svc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id != "sub-1" {
		t.Fatalf("id = %q", id)
	}
	running := waitForStatus(t, svc, id, sandbox.StatusRunning)
	if running.Progress.TotalTests != 2 {
		t.Fatalf("progress = %+v", running.Progress)
	}
	if _, err := svc.Submit(context.Background(), req); !appErr.Is(err, appErr.InvalidSubmission) {
		t.Fatalf("duplicate id: got %v", err)
	}
	close(exec.block)
	waitForStatus(t, svc, id, sandbox.StatusFinished)
	if err := svc.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestConcurrentSubmitsShareOneID(t *testing.T) {
	exec := &fakeExecutor{block: make(chan struct{})}
	svc := newService(t, exec, 8)
	req := request(1)
	req.SubmissionID = "same"

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(context.Background(), req)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	accepted := 0
	for err := range errs {
		switch {
		case err == nil:
			accepted++
		case !appErr.Is(err, appErr.InvalidSubmission):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if accepted != 1 {
		t.Fatalf("accepted = %d, want 1", accepted)
	}
	if svc.Running() != 1 {
		t.Fatalf("running = %d, want 1", svc.Running())
	}
	if err := svc.Cancel(context.Background(), "same"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	waitForStatus(t, svc, "same", sandbox.StatusFailed)
	if err := svc.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if svc.Running() != 0 {
		t.Fatalf("running = %d after finish", svc.Running())
	}
}

func TestCancelStopsSubmission(t *testing.T) {
	svc := newService(t, &fakeExecutor{block: make(chan struct{})}, 1)
	id, err := svc.Submit(context.Background(), request(1))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Cancel(context.Background(), id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	status := waitForStatus(t, svc, id, sandbox.StatusFailed)
	if status.ErrorCode != int(appErr.Canceled) {
		t.Fatalf("error code = %d", status.ErrorCode)
	}
	if status.Verdict != nil {
		t.Fatalf("failed submission must not carry a verdict")
	}
	if err := svc.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if err := svc.Cancel(context.Background(), id); !appErr.Is(err, appErr.SubmissionNotFound) {
		t.Fatalf("cancel finished: got %v", err)
	}
}

func TestSubmitRejectsWhenFull(t *testing.T) {
	exec := &fakeExecutor{block: make(chan struct{})}
	svc := newService(t, exec, 1)
	if _, err := svc.Submit(context.Background(), request(1)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err := svc.Submit(context.Background(), request(1))
	if !appErr.Is(err, appErr.TooManyRequests) {
		t.Fatalf("second submit: got %v", err)
	}
	close(exec.block)
	if err := svc.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestRunRecordsFailure(t *testing.T) {
	svc := newService(t, &fakeExecutor{err: appErr.ResourceExhaustedError("no isolate")}, 1)
	req := request(1)
	req.SubmissionID = "broken"
	_, err := svc.Run(context.Background(), req)
	if !appErr.Is(err, appErr.ResourceExhausted) {
		t.Fatalf("run: got %v", err)
	}
	status, err := svc.Status(context.Background(), "broken")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != sandbox.StatusFailed || status.ErrorCode != int(appErr.ResourceExhausted) || status.ErrorMessage != "no isolate" {
		t.Fatalf("status = %+v", status)
	}
}

func TestReportStatusIgnoresTerminalUpdates(t *testing.T) {
	svc := newService(t, &fakeExecutor{}, 1)
	ctx := context.Background()
	if err := svc.persistStatus(ctx, model.ExecutionStatus{SubmissionID: "s", Status: sandbox.StatusRunning}); err != nil {
		t.Fatalf("save: %v", err)
	}
	svc.ReportStatus(ctx, sandbox.StatusUpdate{SubmissionID: "s", Status: sandbox.StatusRunning, TotalTests: 4, DoneTests: 3})
	svc.ReportStatus(ctx, sandbox.StatusUpdate{SubmissionID: "s", Status: sandbox.StatusRunning, TotalTests: 4, DoneTests: 2})
	svc.ReportStatus(ctx, sandbox.StatusUpdate{SubmissionID: "s", Status: sandbox.StatusFailed, TotalTests: 4})
	status, err := svc.Status(ctx, "s")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != sandbox.StatusRunning || status.Progress.DoneTests != 3 || status.Progress.TotalTests != 4 {
		t.Fatalf("status = %+v", status)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ExecutionStatus
}

func (p *recordingPublisher) PublishFinalStatus(ctx context.Context, status model.ExecutionStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, status)
	return nil
}

func TestTerminalStatusesArePublished(t *testing.T) {
	repo, err := repository.NewStatusRepository(time.Minute, 100)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	pub := &recordingPublisher{}
	exec := &fakeExecutor{}
	svc, err := NewService(Config{Executor: exec, StatusRepo: repo, Publisher: pub})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	exec.reporter = svc

	if _, err := svc.Run(context.Background(), request(2)); err != nil {
		t.Fatalf("run: %v", err)
	}
	exec.err = appErr.New(appErr.JudgeSystemError)
	if _, err := svc.Run(context.Background(), request(1)); err == nil {
		t.Fatalf("expected failure")
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.events) != 2 {
		t.Fatalf("events = %d, want 2", len(pub.events))
	}
	if pub.events[0].Status != sandbox.StatusFinished || pub.events[0].Verdict == nil {
		t.Fatalf("first event = %+v", pub.events[0])
	}
	if pub.events[1].Status != sandbox.StatusFailed || pub.events[1].ErrorCode != int(appErr.JudgeSystemError) {
		t.Fatalf("second event = %+v", pub.events[1])
	}
}
