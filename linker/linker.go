// Package linker assembles and invokes the external zig build-exe command
// line that turns emitted back-end source into a native executable. The
// invocation is a bounded, cancellable blocking subprocess call with
// stdout/stderr captured and the exit code extracted via *exec.ExitError.
package linker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/golang/glog"
	"github.com/wudi/phpaot/optimize"
	"github.com/wudi/phpaot/target"
)

// DefaultTimeout bounds the back-end invocation's wall-clock time when the
// caller supplies no explicit timeout.
const DefaultTimeout = 300 * time.Second

// Config holds the parameters that shape a single zig build-exe
// invocation, built by FromConfig.
type Config struct {
	Target       *target.Target
	OptLevel     optimize.OptLevel
	Strip        bool
	StaticLink   bool
	OutputStem   string
	Timeout      time.Duration
}

// Driver builds and invokes the back-end linker command line.
type Driver struct {
	cfg Config
}

// FromConfig constructs a Driver from the given target (nil selects the
// host triple implicitly, by omitting -target), optimization level, and
// strip/static-link flags.
func FromConfig(tgt *target.Target, optLevel optimize.OptLevel, strip, staticLink bool) *Driver {
	return &Driver{cfg: Config{
		Target:     tgt,
		OptLevel:   optLevel,
		Strip:      strip,
		StaticLink: staticLink,
		Timeout:    DefaultTimeout,
	}}
}

// ExecutableExtension returns the output executable's file extension for
// this driver's target. With no target set it returns the empty string;
// the host platform is not consulted.
func (d *Driver) ExecutableExtension() string {
	if d.cfg.Target == nil {
		return ""
	}
	return d.cfg.Target.ExecutableExtension()
}

// GenerateOutputPath derives the output executable path from sourcePath
// with its extension replaced by this driver's executable extension (the
// directory part is kept). A non-empty override is returned verbatim, with
// no extension added.
func (d *Driver) GenerateOutputPath(sourcePath, override string) string {
	if override != "" {
		return override
	}
	stem := sourcePath
	ext := filepath.Ext(stem)
	stem = stem[:len(stem)-len(ext)]
	return stem + d.ExecutableExtension()
}

// BuildCommand assembles the zig build-exe argv for compiling sourcePath
// into outputStem (already carrying its extension).
func (d *Driver) BuildCommand(sourcePath, outputStem string) []string {
	argv := []string{"zig", "build-exe", sourcePath}

	if d.cfg.Target != nil {
		argv = append(argv, "-target", d.cfg.Target.ToTriple())
	}
	argv = append(argv, d.cfg.OptLevel.ZigFlag())
	if d.cfg.Strip {
		argv = append(argv, "-fstrip")
	}
	argv = append(argv, fmt.Sprintf("-femit-bin=%s", outputStem))

	return argv
}

// Result is the outcome of one Invoke call.
type Result struct {
	ExitCode int
	Stderr   string
	Stdout   string
}

// BackendInvocationFailed wraps a non-zero zig exit status, carrying its
// captured stderr verbatim.
type BackendInvocationFailed struct {
	ExitCode int
	Stderr   string
}

func (e *BackendInvocationFailed) Error() string {
	return fmt.Sprintf("backend invocation failed with exit code %d: %s", e.ExitCode, e.Stderr)
}

// Invoke runs the assembled command line with a bounded timeout, capturing
// and returning stdout/stderr. The timeout is forwarded as a context
// cancellation to the child process; ctx's own cancellation (caller-driven
// abort) is honored identically. A non-zero exit is reported as
// *BackendInvocationFailed with stderr mirrored verbatim, never swallowed.
func (d *Driver) Invoke(ctx context.Context, sourcePath, outputStem string) (*Result, error) {
	timeout := d.cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := d.BuildCommand(sourcePath, outputStem)
	glog.V(1).Infof("linker: invoking %v", argv)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctx.Err() == context.DeadlineExceeded {
		glog.Warningf("linker: zig build-exe timed out after %s", timeout)
		return result, fmt.Errorf("backend invocation exceeded timeout of %s", timeout)
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		glog.Errorf("linker: zig build-exe failed: %s", stderr.String())
		return result, &BackendInvocationFailed{ExitCode: result.ExitCode, Stderr: result.Stderr}
	}
	if err != nil {
		return result, err
	}

	return result, nil
}
