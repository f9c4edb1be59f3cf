package command

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestBuildRunRequest(t *testing.T) {
	dir := t.TempDir()
	code := writeFile(t, dir, "sol.js", "function twoSum(nums, target) { return [0, 1]; }")
	tests := writeFile(t, dir, "tests.json", `[{"input": [[2, 7, 11], 9], "expectedOutput": [0, 1]}, {"input": {"a": 1}, "expectedOutput": "x"}]`)

	params := Params{}
	params.Set("code", code)
	params.Set("tests", tests)
	params.Set("time", "1500")
	params.Set("fail_fast", "true")
	params.Set("async", "true")

	req, err := BuildRequest(Registry()["judge run"], params)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if req.Method != "POST" || req.Path != "/api/v1/judge/executions?async=true" {
		t.Fatalf("request = %s %s", req.Method, req.Path)
	}
	var payload executionPayload
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.Language != "javascript" || payload.TimeLimitMillis != 1500 || !payload.FailFast || payload.OrderInsensitive {
		t.Fatalf("payload = %+v", payload)
	}
	want := []TestCase{
		{Input: "[[2,7,11],9]", ExpectedOutput: "[0,1]"},
		{Input: `{"a":1}`, ExpectedOutput: `"x"`},
	}
	if len(payload.TestCases) != len(want) {
		t.Fatalf("test cases = %+v", payload.TestCases)
	}
	for i := range want {
		if payload.TestCases[i] != want[i] {
			t.Fatalf("test case %d = %+v, want %+v", i, payload.TestCases[i], want[i])
		}
	}
}

func TestBuildRequestErrors(t *testing.T) {
	dir := t.TempDir()
	code := writeFile(t, dir, "sol.js", "function f() {}")
	empty := writeFile(t, dir, "empty.json", `[]`)
	partial := writeFile(t, dir, "partial.json", `[{"input": 1}]`)

	cases := []struct {
		name    string
		command string
		params  map[string]string
		wantErr string
	}{
		{"missing_id", "judge status", nil, "missing path parameter"},
		{"empty_tests", "judge run", map[string]string{"code_file": code, "tests_file": empty}, "is empty"},
		{"partial_test", "judge run", map[string]string{"code_file": code, "tests_file": partial}, "needs input and expectedOutput"},
		{"bad_limit", "judge run", map[string]string{"code_file": code, "tests_file": writeFile(t, dir, "ok.json", `[{"input":1,"expectedOutput":1}]`), "time_limit_ms": "soon"}, "invalid time_limit_ms"},
		{"missing_code", "judge run", map[string]string{"code_file": filepath.Join(dir, "nope.js")}, "read file failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := Params{}
			for k, v := range tc.params {
				params.Set(k, v)
			}
			_, err := BuildRequest(Registry()[tc.command], params)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want %q", err, tc.wantErr)
			}
		})
	}
}

func TestBuildStatusAndCancel(t *testing.T) {
	params := Params{}
	params.Set("id", "abc")
	req, err := BuildRequest(Registry()["judge cancel"], params)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if req.Method != "DELETE" || req.Path != "/api/v1/judge/executions/abc" || req.Body != nil {
		t.Fatalf("request = %+v", req)
	}
	req, err = BuildRequest(Registry()["system health"], Params{})
	if err != nil || req.Path != "/healthz" {
		t.Fatalf("health request = %+v, %v", req, err)
	}
}
