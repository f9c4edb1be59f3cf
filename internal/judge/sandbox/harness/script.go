package harness

import (
	"encoding/json"
	"strings"
)

// The harness is one function and the user code another, passed side by side
// to a top-level call. User code therefore closes over nothing but its console
// parameter and the globals. The harness snapshots every builtin it relies on
// and removes the two host bindings from the global object before it loads
// the user code.
const prelude = `(function (harness, load) {
return harness(__capture, __input, load);
})(function (capture, rawInput, load) {
var stringify = JSON.stringify, parse = JSON.parse, isArray = Array.isArray;
var objectKeys = Object.keys, freeze = Object.freeze, toText = String, ErrorCtor = Error;
delete globalThis.__capture;
delete globalThis.__input;
function render(value) {
	switch (typeof value) {
	case "string":
		return value;
	case "function":
		return "[Function: " + (value.name || "anonymous") + "]";
	case "object":
		if (value === null) {
			return "null";
		}
		if (value instanceof ErrorCtor) {
			return toText(value);
		}
		try {
			var text = stringify(value);
			return typeof text === "string" ? text : toText(value);
		} catch (e) {
			return toText(value);
		}
	default:
		return toText(value);
	}
}
function emit(level) {
	return function () {
		var line = "";
		for (var i = 0; i < arguments.length; i++) {
			line += (i > 0 ? " " : "") + render(arguments[i]);
		}
		capture(level, line);
	};
}
function contains(names, name) {
	for (var i = 0; i < names.length; i++) {
		if (names[i] === name) {
			return true;
		}
	}
	return false;
}
function bind(value, names) {
	if (isArray(value)) {
		return value;
	}
	if (value !== null && typeof value === "object" && names.length > 0) {
		var keys = objectKeys(value);
		var named = keys.length > 0;
		for (var i = 0; i < keys.length; i++) {
			if (!contains(names, keys[i])) {
				named = false;
				break;
			}
		}
		if (named) {
			var args = new Array(names.length);
			for (var j = 0; j < names.length; j++) {
				args[j] = value[names[j]];
			}
			return args;
		}
	}
	return [value];
}
var sink = freeze({
	log: emit("log"),
	info: emit("info"),
	debug: emit("debug"),
	warn: emit("warn"),
	error: emit("error")
});
`

const callSection = `var entry = load(sink);
var parsed;
try {
	parsed = parse(rawInput);
} catch (e) {
	return {ok: false, kind: "runtime_error", message: "invalid test input: " + e.message};
}
if (typeof entry !== "function") {
	return {ok: false, kind: "runtime_error", message: "ReferenceError: " + entryName + " is not a function"};
}
var returned = entry.apply(undefined, bind(parsed, params));
var serialized;
try {
	serialized = stringify(returned);
} catch (e) {
	return {ok: false, kind: "type_mismatch", message: "return value cannot be serialized: " + toText(e && e.message)};
}
if (typeof serialized !== "string") {
	return {ok: false, kind: "type_mismatch", message: "return value of type " + typeof returned + " cannot be serialized"};
}
return {ok: true, value: serialized};
}, function (console) {
`

// render produces the full harness script. User code is evaluated inside its
// own function with console bound to the capture sink; its declarations stay
// local to that function and it cannot name any harness local.
func render(code string, entry entryCandidate) (string, error) {
	params := entry.params
	if params == nil {
		params = []string{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	nameJSON, err := json.Marshal(entry.name)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(prelude) + len(callSection) + len(code) + 256)
	b.WriteString(prelude)
	b.WriteString("var params = ")
	b.Write(paramsJSON)
	b.WriteString(";\nvar entryName = ")
	b.Write(nameJSON)
	b.WriteString(";\n")
	b.WriteString(callSection)
	b.WriteString(code)
	b.WriteString("\n;\nreturn typeof ")
	b.WriteString(entry.name)
	b.WriteString(` === "function" ? `)
	b.WriteString(entry.name)
	b.WriteString(" : undefined;\n});\n")
	return b.String(), nil
}
