package harness_test

import (
	"errors"
	"strings"
	"testing"

	"jsjudge/internal/judge/sandbox/harness"
	"jsjudge/internal/judge/sandbox/jsvm"
	"jsjudge/internal/judge/sandbox/spec"
	appErr "jsjudge/pkg/errors"
)

func newCompiler(t *testing.T, maxSource int) *harness.Compiler {
	t.Helper()
	c, err := harness.NewCompiler(harness.Config{MaxSourceLength: maxSource})
	if err != nil {
		t.Fatalf("new compiler: %v", err)
	}
	return c
}

func run(t *testing.T, h harness.Harness) spec.RunResponse {
	t.Helper()
	return jsvm.Execute(spec.RunRequest{Script: h.Script, Input: h.Input})
}

func TestCompileIsDeterministic(t *testing.T) {
	c := newCompiler(t, 0)
	code := "function add(a, b) { return a + b; }"
	first, err := c.Compile(code, "", "[1,2]")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	other := newCompiler(t, 0)
	second, err := other.Compile(code, "", "[1,2]")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if first.Script != second.Script || first.Digest != second.Digest {
		t.Fatalf("same inputs produced different harnesses")
	}
	third, err := c.Compile(code, "", "[3,4]")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if third.Script != first.Script {
		t.Fatalf("input must not be embedded in the script")
	}
	if third.Digest == first.Digest {
		t.Fatalf("digest should cover the input")
	}
}

func TestEntryDiscovery(t *testing.T) {
	cases := []struct {
		name       string
		code       string
		entry      string
		wantEntry  string
		wantParams []string
	}{
		{"declaration", "function twoSum(nums, target) {}", "", "twoSum", []string{"nums", "target"}},
		{"first_wins", "function helper(x) {}\nfunction main(y) {}", "", "helper", []string{"x"}},
		{"explicit", "function helper(x) {}\nfunction main(y) {}", "main", "main", []string{"y"}},
		{"arrow", "const solve = (a, b) => a * b;", "", "solve", []string{"a", "b"}},
		{"function_expression", "var solve = function (s) { return s; };", "", "solve", []string{"s"}},
		{"destructured", "function f({a}, b) {}", "", "f", []string{"", "b"}},
		{"undeclared_explicit", "globalThis.g = function () {};", "g", "g", nil},
	}
	c := newCompiler(t, 0)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := c.CompileProgram(tc.code, tc.entry)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			if p.EntryPoint != tc.wantEntry {
				t.Fatalf("entry = %q, want %q", p.EntryPoint, tc.wantEntry)
			}
			if strings.Join(p.Params, ",") != strings.Join(tc.wantParams, ",") {
				t.Fatalf("params = %v, want %v", p.Params, tc.wantParams)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	c := newCompiler(t, 32)

	_, err := c.Compile(strings.Repeat("x", 33), "", "1")
	if !appErr.Is(err, appErr.CompilationError) {
		t.Fatalf("oversized source: got %v", err)
	}

	_, err = c.Compile("function (", "", "1")
	var syntaxErr *harness.SyntaxError
	if !errors.As(err, &syntaxErr) || !strings.HasPrefix(syntaxErr.Message, "SyntaxError") {
		t.Fatalf("syntax error: got %v", err)
	}

	_, err = c.Compile("var x = 1;", "", "1")
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("no entry: got %v", err)
	}

	_, err = c.Compile("function f() {}", "not valid", "1")
	if !appErr.Is(err, appErr.InvalidSubmission) {
		t.Fatalf("bad entry name: got %v", err)
	}
}

func TestHarnessArgumentBinding(t *testing.T) {
	cases := []struct {
		name  string
		code  string
		input string
		want  string
	}{
		{"positional", "function add(a, b) { return a + b; }", "[2, 3]", "5"},
		{"by_name", "function sub(a, b) { return a - b; }", `{"b": 1, "a": 10}`, "9"},
		{"single_object", "function keys(o) { return Object.keys(o).sort(); }", `{"x": 1, "y": 2}`, `["x","y"]`},
		{"single_scalar", "function twice(n) { return n * 2; }", "21", "42"},
		{"string_value", "function greet(s) { return 'hi ' + s; }", `"bob"`, `"hi bob"`},
		{"null_return", "function nothing() { return null; }", "[]", "null"},
		{"arrow", "const mul = (a, b) => a * b;", "[6, 7]", "42"},
	}
	c := newCompiler(t, 0)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := c.Compile(tc.code, "", tc.input)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			resp := run(t, h)
			if resp.Fault != spec.FaultNone {
				t.Fatalf("fault = %q: %s", resp.Fault, resp.Message)
			}
			if resp.ReturnValue == nil || *resp.ReturnValue != tc.want {
				t.Fatalf("return = %v, want %s", resp.ReturnValue, tc.want)
			}
		})
	}
}

func TestHarnessFaults(t *testing.T) {
	cases := []struct {
		name       string
		code       string
		entry      string
		input      string
		wantFault  string
		wantPrefix string
	}{
		{"undefined_return", "function f() {}", "", "[]", spec.FaultTypeMismatch, "return value of type undefined"},
		{"function_return", "function f() { return function () {}; }", "", "[]", spec.FaultTypeMismatch, "return value of type function"},
		{"cyclic_return", "function f() { var o = {}; o.o = o; return o; }", "", "[]", spec.FaultTypeMismatch, "return value cannot be serialized"},
		{"throws", "function f() { throw new RangeError('nope'); }", "", "[]", spec.FaultRuntimeError, "RangeError: nope"},
		{"bad_input", "function f(x) { return x; }", "", "{not json", spec.FaultRuntimeError, "invalid test input"},
		{"not_callable", "var g = 3; function f() {}", "g", "[]", spec.FaultRuntimeError, "ReferenceError: g is not a function"},
	}
	c := newCompiler(t, 0)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := c.Compile(tc.code, tc.entry, tc.input)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			resp := run(t, h)
			if resp.Fault != tc.wantFault {
				t.Fatalf("fault = %q (%s), want %q", resp.Fault, resp.Message, tc.wantFault)
			}
			if !strings.HasPrefix(resp.Message, tc.wantPrefix) {
				t.Fatalf("message = %q, want prefix %q", resp.Message, tc.wantPrefix)
			}
		})
	}
}

func TestHarnessConsoleCapture(t *testing.T) {
	code := `function f(n) {
	console.log("n is", n, {k: [1]});
	console.warn("careful");
	console.error(new Error("bad"));
	return n;
}`
	c := newCompiler(t, 0)
	h, err := c.Compile(code, "", "[7]")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	resp := run(t, h)
	want := []string{`n is 7 {"k":[1]}`, "[warn] careful", "[error] Error: bad"}
	if strings.Join(resp.Logs, "|") != strings.Join(want, "|") {
		t.Fatalf("logs = %q, want %q", resp.Logs, want)
	}
}

func TestHarnessHidesHostBindings(t *testing.T) {
	code := `function f() { return [typeof __capture, typeof __input]; }`
	c := newCompiler(t, 0)
	h, err := c.Compile(code, "", "[]")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	resp := run(t, h)
	if resp.ReturnValue == nil || *resp.ReturnValue != `["undefined","undefined"]` {
		t.Fatalf("host bindings leaked: %v (%s)", resp.ReturnValue, resp.Message)
	}
}

func TestUserCodeCannotReachHarnessLocals(t *testing.T) {
	cases := []struct {
		name string
		code string
		want string
	}{
		{
			"reassign_stringify",
			"function twoSum() { stringify = function () { return '[0,1]'; }; return 'wrong'; }",
			`"wrong"`,
		},
		{
			"reassign_bind",
			"function f(a) { bind = function () { return [99]; }; return a; }",
			"1",
		},
		{
			"locals_invisible",
			"function f() { return [typeof capture, typeof rawInput, typeof params, typeof entry, typeof bind, typeof stringify, typeof sink]; }",
			`["undefined","undefined","undefined","undefined","undefined","undefined","undefined"]`,
		},
	}
	c := newCompiler(t, 0)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := c.Compile(tc.code, "", "[1]")
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			resp := run(t, h)
			if resp.ReturnValue == nil || *resp.ReturnValue != tc.want {
				t.Fatalf("return = %v (%s), want %s", resp.ReturnValue, resp.Message, tc.want)
			}
		})
	}
}

func TestHarnessIgnoresUndefinedReturnForgery(t *testing.T) {
	code := "function f() { stringify = function () { return 'null'; }; return undefined; }"
	c := newCompiler(t, 0)
	h, err := c.Compile(code, "", "[]")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	resp := run(t, h)
	if resp.Fault != spec.FaultTypeMismatch {
		t.Fatalf("fault = %q (%v), want type mismatch", resp.Fault, resp.ReturnValue)
	}
}

func TestHarnessSurvivesBuiltinTampering(t *testing.T) {
	code := `JSON.stringify = function () { return "hijacked"; };
function f(a) { return a; }`
	c := newCompiler(t, 0)
	h, err := c.Compile(code, "", "[[1,2]]")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	resp := run(t, h)
	if resp.ReturnValue == nil || *resp.ReturnValue != "[1,2]" {
		t.Fatalf("return = %v (%s)", resp.ReturnValue, resp.Message)
	}
}
