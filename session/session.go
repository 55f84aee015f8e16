// Package session holds the resources of one compilation in a single
// owning value: the diagnostic engine, symbol table, and IR module for
// one compile. It runs the phase pipeline (symbols, inference, IR
// generation, optimization, codegen, link) and releases every owned
// resource, most concretely its temporary directory of emitted back-end
// source, on every exit path: success, failure, or cancellation.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/wudi/phpaot/ast"
	"github.com/wudi/phpaot/codegen"
	"github.com/wudi/phpaot/diag"
	"github.com/wudi/phpaot/ir"
	"github.com/wudi/phpaot/irgen"
	"github.com/wudi/phpaot/linker"
	"github.com/wudi/phpaot/optimize"
	"github.com/wudi/phpaot/symtab"
	"github.com/wudi/phpaot/target"
	"github.com/wudi/phpaot/typeinfer"
)

// Options configures a single Compile invocation.
type Options struct {
	Target       *target.Target // nil selects the host triple implicitly
	OptLevel     optimize.OptLevel
	Strip        bool
	StaticLink   bool
	OutputPath   string // "" derives the path from the source stem
	EmitIR       bool   // also populate Result.IR with the textual listing
	SkipLink     bool   // stop after codegen; used by tests
}

// Result is everything observable about one completed (or aborted)
// compilation.
type Result struct {
	Diagnostics  *diag.Engine
	Module       *ir.Module
	Stats        optimize.Stats
	IR           string // populated only when Options.EmitIR is set
	BackendFile  string
	OutputPath   string
	LinkerResult *linker.Result
}

// Session owns the resources of one compilation: its diagnostic engine,
// the session's temp directory for emitted back-end source, and (while a
// Compile call is in flight) the symbol table and IR module under
// construction. Close releases all of it; it is always safe to call more
// than once.
type Session struct {
	diags   *diag.Engine
	tempDir string
	closed  bool
}

// New creates a session whose diagnostics are stamped with sourceFile and
// whose temp directory is named with a random suffix, avoiding collisions
// between concurrent sessions sharing the system temp root.
func New(sourceFile string) (*Session, error) {
	dir, err := os.MkdirTemp("", "phpaot-"+uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("creating session temp dir: %w", err)
	}
	glog.V(1).Infof("session: temp dir %s", dir)
	return &Session{
		diags:   diag.NewEngine(sourceFile),
		tempDir: dir,
	}, nil
}

// Diagnostics returns the session's diagnostic engine.
func (s *Session) Diagnostics() *diag.Engine { return s.diags }

// Close removes the session's temporary directory. Safe to call multiple
// times and via defer on every exit path.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	glog.V(1).Infof("session: removing temp dir %s", s.tempDir)
	return os.RemoveAll(s.tempDir)
}

// Compile runs the full C4->C5->C7->C8->C9->C10 pipeline over tree, gating
// each phase on the previous one's HasErrors(). It always returns a
// non-nil *Result (with whatever diagnostics were collected before the
// first failing gate), and a non-nil error only when a phase failed the
// gate or the back end could not be invoked.
func (s *Session) Compile(ctx context.Context, tree *ast.Tree, moduleName, sourceFile string, opts Options) (*Result, error) {
	res := &Result{Diagnostics: s.diags}

	glog.V(1).Info("session: phase symtab+typeinfer")
	tab := symtab.NewTable()
	inferred := typeinfer.Infer(tree, tab, s.diags)
	if s.diags.HasErrors() {
		return res, fmt.Errorf("type inference reported errors")
	}

	glog.V(1).Info("session: phase irgen")
	module := irgen.Generate(tree, inferred, tab, s.diags, moduleName, sourceFile)
	res.Module = module
	if s.diags.HasErrors() {
		return res, fmt.Errorf("IR generation reported errors")
	}
	if err := ir.Validate(module); err != nil {
		return res, err
	}

	glog.V(1).Infof("session: phase optimize at %s", opts.OptLevel)
	optimizer := optimize.New(opts.OptLevel)
	stats := optimizer.Run(module)
	res.Stats = stats
	if err := ir.Validate(module); err != nil {
		return res, fmt.Errorf("internal IR invariant after optimization: %w", err)
	}
	if !ir.NoUnknownTypes(module) {
		return res, fmt.Errorf("internal IR invariant after optimization: instruction with unknown type")
	}

	if opts.EmitIR {
		res.IR = ir.Print(module)
	}

	tgt := target.Native()
	if opts.Target != nil {
		tgt = *opts.Target
	}

	glog.V(1).Info("session: phase codegen")
	source := codegen.Emit(module, tgt, opts.OptLevel)
	backendFile := filepath.Join(s.tempDir, codegen.FileName(module))
	if err := os.WriteFile(backendFile, []byte(source), 0o644); err != nil {
		return res, fmt.Errorf("writing emitted source: %w", err)
	}
	res.BackendFile = backendFile

	if opts.SkipLink {
		return res, nil
	}

	glog.V(1).Info("session: phase link")
	driver := linker.FromConfig(&tgt, opts.OptLevel, opts.Strip, opts.StaticLink)
	outputPath := driver.GenerateOutputPath(sourceFile, opts.OutputPath)
	res.OutputPath = outputPath

	linkResult, err := driver.Invoke(ctx, backendFile, outputPath)
	res.LinkerResult = linkResult
	if err != nil {
		return res, err
	}

	return res, nil
}
