// Package harness turns user code plus one test input into a self-contained
// script that the sandbox helper can run without reaching outside itself.
package harness

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	appErr "jsjudge/pkg/errors"

	"github.com/zeromicro/go-zero/core/collection"
)

const (
	DefaultMaxSourceLength = 64 << 10
	defaultCacheSize       = 256
	defaultCacheTTL        = 10 * time.Minute
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Config controls the compiler guards and its in-memory program cache.
type Config struct {
	MaxSourceLength int
	CacheSize       int
	CacheTTL        time.Duration
}

// Program is the input-independent part of a harness.
type Program struct {
	Script     string
	EntryPoint string
	Params     []string
}

// Harness binds a Program to one test input. Input crosses into the isolate
// as a string copy; it is never spliced into Script.
type Harness struct {
	Program
	Input  string
	Digest string
}

// SyntaxError means the user code cannot be run at all. It is the
// submission's fault and is reported as a runtime error, not propagated.
type SyntaxError struct {
	Message string
}

func (e *SyntaxError) Error() string {
	return e.Message
}

// Compiler builds harnesses. It is safe for concurrent use.
type Compiler struct {
	maxSourceLength int
	cache           *collection.Cache
}

// NewCompiler creates a compiler with defaults applied.
func NewCompiler(cfg Config) (*Compiler, error) {
	if cfg.MaxSourceLength <= 0 {
		cfg.MaxSourceLength = DefaultMaxSourceLength
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	cache, err := collection.NewCache(cfg.CacheTTL, collection.WithLimit(cfg.CacheSize), collection.WithName("harness"))
	if err != nil {
		return nil, fmt.Errorf("create harness cache: %w", err)
	}
	return &Compiler{maxSourceLength: cfg.MaxSourceLength, cache: cache}, nil
}

// MaxSourceLength returns the configured source-size guard.
func (c *Compiler) MaxSourceLength() int {
	return c.maxSourceLength
}

// Compile builds the harness for one (code, input) pair. The same pair always
// yields the same script text and digest.
func (c *Compiler) Compile(code, entryPoint, input string) (Harness, error) {
	program, err := c.CompileProgram(code, entryPoint)
	if err != nil {
		return Harness{}, err
	}
	return Harness{
		Program: program,
		Input:   input,
		Digest:  digest(program.Script, input),
	}, nil
}

// CompileProgram resolves the entry point and renders the script for code.
// Results are memoised per (entryPoint, code) digest.
func (c *Compiler) CompileProgram(code, entryPoint string) (Program, error) {
	if len(code) > c.maxSourceLength {
		return Program{}, appErr.Newf(appErr.CompilationError, "source is %d bytes, limit is %d", len(code), c.maxSourceLength).
			WithDetail("length", len(code))
	}
	if entryPoint != "" && !identifierPattern.MatchString(entryPoint) {
		return Program{}, appErr.Newf(appErr.InvalidSubmission, "entry point %q is not a valid identifier", entryPoint)
	}
	key := digest(entryPoint, code)
	value, err := c.cache.Take(key, func() (any, error) {
		return buildProgram(code, entryPoint)
	})
	if err != nil {
		return Program{}, err
	}
	program, ok := value.(Program)
	if !ok {
		return Program{}, appErr.New(appErr.CompilationError).WithMessage("harness cache holds an unexpected value")
	}
	return program, nil
}

func buildProgram(code, entryPoint string) (Program, error) {
	entries, err := discoverEntries(code)
	if err != nil {
		return Program{}, err
	}
	entry, err := pickEntry(entries, entryPoint)
	if err != nil {
		return Program{}, err
	}
	script, err := render(code, entry)
	if err != nil {
		return Program{}, appErr.Wrapf(err, appErr.CompilationError, "render harness")
	}
	return Program{Script: script, EntryPoint: entry.name, Params: entry.params}, nil
}

func pickEntry(entries []entryCandidate, entryPoint string) (entryCandidate, error) {
	if entryPoint != "" {
		for _, e := range entries {
			if e.name == entryPoint {
				return e, nil
			}
		}
		// Defined some other way; the script checks it is callable at run time.
		return entryCandidate{name: entryPoint}, nil
	}
	if len(entries) == 0 {
		return entryCandidate{}, &SyntaxError{Message: "no top-level function found to call"}
	}
	return entries[0], nil
}

func digest(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
