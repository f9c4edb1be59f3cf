package command

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service:      "judge",
			Action:       "run",
			Method:       "POST",
			PathTemplate: "/api/v1/judge/executions",
			Fields: []Field{
				{Name: "code_file", Aliases: []string{"code", "file"}, Prompt: "code_file", Type: FieldFile, Required: true},
				{Name: "tests_file", Aliases: []string{"tests"}, Prompt: "tests_file (JSON array)", Type: FieldFile, Required: true},
				{Name: "entry", Prompt: "entry", Type: FieldString, Required: false},
				{Name: "time_limit_ms", Aliases: []string{"time"}, Prompt: "time_limit_ms", Type: FieldInt64, Required: false},
				{Name: "memory_limit_bytes", Aliases: []string{"memory"}, Prompt: "memory_limit_bytes", Type: FieldInt64, Required: false},
				{Name: "fail_fast", Prompt: "fail_fast", Type: FieldBool, Required: false},
				{Name: "order_insensitive", Prompt: "order_insensitive", Type: FieldBool, Required: false},
				{Name: "async", Prompt: "async", Type: FieldBool, Required: false},
				{Name: "submission_id", Prompt: "submission_id", Type: FieldString, Required: false},
			},
		},
		{
			Service:      "judge",
			Action:       "status",
			Method:       "GET",
			PathTemplate: "/api/v1/judge/executions/:id",
			Fields: []Field{
				{Name: "id", Prompt: "submission_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "judge",
			Action:       "cancel",
			Method:       "DELETE",
			PathTemplate: "/api/v1/judge/executions/:id",
			Fields: []Field{
				{Name: "id", Prompt: "submission_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "system",
			Action:       "health",
			Method:       "GET",
			PathTemplate: "/healthz",
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		key := fmt.Sprintf("%s %s", cmd.Service, cmd.Action)
		result[key] = cmd
	}
	return result
}

// BuildRequest creates HTTP request spec based on command.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)
	path, err := buildPath(cmd.PathTemplate, params)
	if err != nil {
		return RequestSpec{}, err
	}

	var body []byte
	if cmd.Method != "GET" && cmd.Method != "DELETE" {
		payload, err := buildPayload(cmd, params)
		if err != nil {
			return RequestSpec{}, err
		}
		if payload != nil {
			body, err = json.Marshal(payload)
			if err != nil {
				return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
			}
		}
		if cmd.Service == "judge" && cmd.Action == "run" && params.Get("async") != "" {
			async, err := ParseBool(params.Get("async"))
			if err != nil {
				return RequestSpec{}, fmt.Errorf("invalid async: %w", err)
			}
			if async {
				path += "?async=true"
			}
		}
	}

	return RequestSpec{
		Method:  cmd.Method,
		Path:    path,
		Headers: map[string]string{},
		Body:    body,
	}, nil
}

func buildPath(template string, params Params) (string, error) {
	path := template
	for _, key := range []string{"id"} {
		placeholder := ":" + key
		if strings.Contains(path, placeholder) {
			value := params.Get(key)
			if value == "" {
				return "", fmt.Errorf("missing path parameter: %s", key)
			}
			path = strings.ReplaceAll(path, placeholder, value)
		}
	}
	return path, nil
}

type executionPayload struct {
	SubmissionID     string     `json:"submissionId,omitempty"`
	Code             string     `json:"code"`
	Language         string     `json:"language"`
	EntryPoint       string     `json:"entryPoint,omitempty"`
	TestCases        []TestCase `json:"testCases"`
	TimeLimitMillis  int64      `json:"timeLimitMillis,omitempty"`
	MemoryLimitBytes int64      `json:"memoryLimitBytes,omitempty"`
	FailFast         bool       `json:"failFast,omitempty"`
	OrderInsensitive bool       `json:"orderInsensitive,omitempty"`
}

func buildPayload(cmd Command, params Params) (interface{}, error) {
	if cmd.Service != "judge" || cmd.Action != "run" {
		return nil, nil
	}
	code, err := ReadFile(params.Get("code_file"))
	if err != nil {
		return nil, err
	}
	tests, err := ReadTestCases(params.Get("tests_file"))
	if err != nil {
		return nil, err
	}
	payload := executionPayload{
		SubmissionID: params.Get("submission_id"),
		Code:         code,
		Language:     "javascript",
		EntryPoint:   params.Get("entry"),
		TestCases:    tests,
	}
	if raw := params.Get("time_limit_ms"); raw != "" {
		if payload.TimeLimitMillis, err = ParseInt64(raw); err != nil {
			return nil, fmt.Errorf("invalid time_limit_ms: %w", err)
		}
	}
	if raw := params.Get("memory_limit_bytes"); raw != "" {
		if payload.MemoryLimitBytes, err = ParseInt64(raw); err != nil {
			return nil, fmt.Errorf("invalid memory_limit_bytes: %w", err)
		}
	}
	if raw := params.Get("fail_fast"); raw != "" {
		if payload.FailFast, err = ParseBool(raw); err != nil {
			return nil, fmt.Errorf("invalid fail_fast: %w", err)
		}
	}
	if raw := params.Get("order_insensitive"); raw != "" {
		if payload.OrderInsensitive, err = ParseBool(raw); err != nil {
			return nil, fmt.Errorf("invalid order_insensitive: %w", err)
		}
	}
	return payload, nil
}
