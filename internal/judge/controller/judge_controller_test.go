package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"jsjudge/internal/judge/model"
	"jsjudge/internal/judge/sandbox"
	"jsjudge/internal/judge/sandbox/result"
	appErr "jsjudge/pkg/errors"

	"github.com/gin-gonic/gin"
)

type fakeService struct {
	lastReq  model.ExecutionRequest
	verdict  result.SubmissionVerdict
	runErr   error
	statuses map[string]model.ExecutionStatus
	running  map[string]bool
}

func (f *fakeService) Run(ctx context.Context, req model.ExecutionRequest) (result.SubmissionVerdict, error) {
	f.lastReq = req
	return f.verdict, f.runErr
}

func (f *fakeService) Submit(ctx context.Context, req model.ExecutionRequest) (string, error) {
	f.lastReq = req
	if f.runErr != nil {
		return "", f.runErr
	}
	return "queued-1", nil
}

func (f *fakeService) Cancel(ctx context.Context, submissionID string) error {
	if !f.running[submissionID] {
		return appErr.New(appErr.SubmissionNotFound)
	}
	return nil
}

func (f *fakeService) Status(ctx context.Context, submissionID string) (model.ExecutionStatus, error) {
	status, ok := f.statuses[submissionID]
	if !ok {
		return model.ExecutionStatus{}, appErr.New(appErr.SubmissionNotFound)
	}
	return status, nil
}

func (f *fakeService) Running() int { return len(f.running) }

type fakePool struct{ live int64 }

func (p fakePool) Live() int64 { return p.live }

type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
}

func newRouter(svc JudgeService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewJudgeController(svc, fakePool{live: 2}).Register(router)
	return router
}

func do(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, env
}

const executeBody = `{"code":"function f(x){return x;}","language":"javascript","testCases":[{"input":"[1]","expectedOutput":"1"}],"timeLimitMillis":500}`

func TestExecuteReturnsVerdict(t *testing.T) {
	svc := &fakeService{verdict: result.SubmissionVerdict{SubmissionID: "s", Passed: true, Results: []result.TestCaseResult{}}}
	rec, env := do(t, newRouter(svc), http.MethodPost, "/api/v1/judge/executions", executeBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var verdict result.SubmissionVerdict
	if err := json.Unmarshal(env.Data, &verdict); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if !verdict.Passed {
		t.Fatalf("verdict = %+v", verdict)
	}
	if len(svc.lastReq.TestCases) != 1 || svc.lastReq.TestCases[0].ExpectedOutput != "1" || svc.lastReq.TimeLimitMillis != 500 {
		t.Fatalf("request = %+v", svc.lastReq)
	}
}

func TestExecuteAsync(t *testing.T) {
	rec, env := do(t, newRouter(&fakeService{}), http.MethodPost, "/api/v1/judge/executions?async=true", executeBody)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(string(env.Data), `"queued-1"`) {
		t.Fatalf("data = %s", env.Data)
	}
}

func TestExecuteErrors(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   appErr.ErrorCode
	}{
		{"bad_json", "{", nil, http.StatusBadRequest, appErr.InvalidParams},
		{"invalid_submission", executeBody, appErr.InvalidSubmissionError("code is required"), http.StatusBadRequest, appErr.InvalidSubmission},
		{"language", executeBody, appErr.New(appErr.LanguageNotSupported), http.StatusBadRequest, appErr.LanguageNotSupported},
		{"capacity", executeBody, appErr.ResourceExhaustedError(""), http.StatusTooManyRequests, appErr.ResourceExhausted},
		{"system", executeBody, appErr.New(appErr.JudgeSystemError), http.StatusInternalServerError, appErr.JudgeSystemError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := do(t, newRouter(&fakeService{runErr: tc.err}), http.MethodPost, "/api/v1/judge/executions", tc.body)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if env.Code != int(tc.wantCode) {
				t.Fatalf("code = %d, want %d", env.Code, tc.wantCode)
			}
		})
	}
}

func TestGetStatus(t *testing.T) {
	svc := &fakeService{statuses: map[string]model.ExecutionStatus{
		"s1": {SubmissionID: "s1", Status: sandbox.StatusRunning, Progress: model.Progress{TotalTests: 3, DoneTests: 1}},
	}}
	router := newRouter(svc)

	rec, env := do(t, router, http.MethodGet, "/api/v1/judge/executions/s1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var status model.ExecutionStatus
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Status != sandbox.StatusRunning || status.Progress.DoneTests != 1 {
		t.Fatalf("status = %+v", status)
	}

	rec, _ = do(t, router, http.MethodGet, "/api/v1/judge/executions/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d", rec.Code)
	}
}

func TestCancel(t *testing.T) {
	router := newRouter(&fakeService{running: map[string]bool{"s1": true}})
	if rec, _ := do(t, router, http.MethodDelete, "/api/v1/judge/executions/s1", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("cancel running = %d", rec.Code)
	}
	if rec, _ := do(t, router, http.MethodDelete, "/api/v1/judge/executions/other", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("cancel unknown = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec, env := do(t, newRouter(&fakeService{running: map[string]bool{"a": true}}), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var health healthResponse
	if err := json.Unmarshal(env.Data, &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.LiveIsolates != 2 || health.Running != 1 || health.Status != "ok" {
		t.Fatalf("health = %+v", health)
	}
}
