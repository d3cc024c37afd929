package maqui

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// This file is the front end's driver: lex, parse and verify one or more
// source files, independent of any backend. A prior revision of this
// package shelled out to clang after code generation; that invocation is
// gone now that code generation lives in the separate codegen package, but
// the Target metadata and the errgroup-driven fan-out that used to
// parallelize linking survive, repurposed to drive independent
// verification of independent compilation units concurrently.

// Arch, Vendor and OS are carried through Compile purely as metadata for a
// downstream backend; this package never inspects them.
type Arch string
type Vendor string
type OS string

const (
	X86_64 Arch = "x86_64"

	Unknown Vendor = "unknown"

	Windows OS = "windows64"
	Linux   OS = "linux"
	Darwin  OS = "darwin"
)

// Target identifies the triple a backend would eventually lower verified IR
// for. Code generation is out of scope for this package, so Compiler never
// acts on it beyond passing it along in a Result.
type Target struct {
	Arch   Arch
	Vendor Vendor
	OS     OS
}

func (t Target) String() string {
	return fmt.Sprintf("%s-%s-%s", t.Arch, t.Vendor, t.OS)
}

// Config collects the options a CLI driver exposes.
type Config struct {
	Target  Target
	Verbose bool
}

// Compiler runs the lex/parse/verify pipeline against Config, logging
// through Logger. A Compiler is safe to reuse across concurrent Compile
// calls: each call builds its own VerifyContext.
type Compiler struct {
	config Config
	logger zerolog.Logger
}

// NewCompiler builds a Compiler against config, deriving its base logger
// from the configured verbosity.
func NewCompiler(config Config) *Compiler {
	level := zerolog.InfoLevel
	if config.Verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	return &Compiler{config: config, logger: logger}
}

// Result is the outcome of verifying a single compilation unit.
type Result struct {
	Filename string
	Module   *Module
	Err      error
}

// Compile lexes, parses and verifies each named file against its own
// builtins module, in parallel via errgroup - one independent VerifyContext
// and builtins module per file, since concurrent verification runs must
// never share mutable state. A failing file is reported on its Result and
// does not stop the others.
func (c *Compiler) Compile(ctx context.Context, filenames []string) ([]Result, error) {
	results := make([]Result, len(filenames))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, filename := range filenames {
		i, filename := i, filename
		group.Go(func() error {
			results[i] = c.compileOne(groupCtx, Builtins(), filename)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// compileOne runs a single file through the pipeline. Failures are reported
// on the Result, not returned as a group error, so one bad file doesn't
// cancel the sibling units being checked alongside it.
func (c *Compiler) compileOne(ctx context.Context, builtins *Module, filename string) Result {
	logger := c.logger.With().Str("file", filename).Logger()

	f, err := os.Open(filename)
	if err != nil {
		return Result{Filename: filename, Err: err}
	}
	defer f.Close()

	logger.Debug().Msg("parsing")
	module, err := ParseSource(f, filename)
	if err != nil {
		logger.Debug().Err(err).Msg("parse failed")
		return Result{Filename: filename, Err: err}
	}

	logger.Debug().Msg("verifying")
	if err := Verify(module, builtins, logger); err != nil {
		logger.Debug().Err(err).Msg("verification failed")
		return Result{Filename: filename, Module: module, Err: err}
	}

	return Result{Filename: filename, Module: module}
}
