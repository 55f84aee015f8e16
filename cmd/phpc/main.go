// Command phpc wires the compiler pipeline end to end. It carries no PHP
// front-end, so it drives session.Compile against a small built-in demo
// AST standing in for a parsed program.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
	"github.com/wudi/phpaot/ast"
	"github.com/wudi/phpaot/config"
	"github.com/wudi/phpaot/optimize"
	"github.com/wudi/phpaot/session"
	"github.com/wudi/phpaot/target"
	"github.com/wudi/phpaot/version"
)

// Exit codes.
const (
	exitOK             = 0
	exitCompilationErr = 1
	exitInvalidArgs    = 2
	exitBackendFailure = 3
)

func main() {
	app := &cli.Command{
		Name:  "phpc",
		Usage: "PHP ahead-of-time compiler demo driver",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "target",
				Usage: "target triple, e.g. x86_64-linux-gnu (default: host triple)",
			},
			&cli.StringFlag{
				Name:  "O",
				Usage: "optimization level: debug|release-safe|release-fast|release-small (default: release-safe)",
			},
			&cli.StringFlag{
				Name:    "o",
				Aliases: []string{"output"},
				Usage:   "output executable path override",
			},
			&cli.BoolFlag{
				Name:  "strip",
				Usage: "omit debug symbols from the output executable",
			},
			&cli.BoolFlag{
				Name:  "list-targets",
				Usage: "list supported target triples and exit",
			},
			&cli.BoolFlag{
				Name:  "emit-ir",
				Usage: "print the textual IR listing of the optimized module",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to .phpaot.yaml",
				Value: ".phpaot.yaml",
			},
			&cli.StringFlag{
				Name:  "version",
				Usage: "show version",
				Action: func(ctx context.Context, cmd *cli.Command, s string) error {
					fmt.Println(version.String())
					return nil
				},
			},
		},
		Action: run,
	}

	os.Exit(runApp(app))
}

func runApp(app *cli.Command) int {
	if err := app.Run(context.Background(), os.Args); err != nil {
		if ec, ok := err.(exitCoder); ok {
			return ec.ExitCode()
		}
		fmt.Fprintln(os.Stderr, err)
		return exitInvalidArgs
	}
	return exitOK
}

type exitCoder interface {
	ExitCode() int
}

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) ExitCode() int { return e.code }
func (e *cliError) Unwrap() error { return e.err }

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("list-targets") {
		fmt.Println("Supported target platforms:")
		for _, t := range target.SupportedTriples() {
			fmt.Printf("  --target=%s\n", t)
		}
		return nil
	}

	fileDefaults, _ := config.Load(cmd.String("config"))
	targetStr, optStr, strip := config.Merge(
		fileDefaults,
		cmd.String("target"), cmd.String("O"),
		cmd.Bool("strip"), cmd.IsSet("strip"),
	)
	if optStr == "" {
		optStr = "release-safe"
	}

	var tgt *target.Target
	if targetStr != "" {
		parsed, err := target.FromString(targetStr)
		if err != nil {
			return &cliError{exitInvalidArgs, err}
		}
		tgt = &parsed
	}

	optLevel, err := optimize.ParseOptLevel(optStr)
	if err != nil {
		return &cliError{exitInvalidArgs, err}
	}

	sourceFile := "demo.php"
	tree := demoProgram()

	s, err := session.New(sourceFile)
	if err != nil {
		return &cliError{exitInvalidArgs, err}
	}
	defer s.Close()

	res, compileErr := s.Compile(ctx, tree, moduleNameFor(sourceFile), sourceFile, session.Options{
		Target:     tgt,
		OptLevel:   optLevel,
		Strip:      strip,
		OutputPath: cmd.String("o"),
		EmitIR:     cmd.Bool("emit-ir"),
	})

	colorize := isatty.IsTerminal(os.Stderr.Fd())
	res.Diagnostics.Format(os.Stderr, colorize)

	if cmd.Bool("emit-ir") && res.IR != "" {
		fmt.Println(res.IR)
	}

	if compileErr != nil {
		if res.Diagnostics.HasErrors() {
			return &cliError{exitCompilationErr, compileErr}
		}
		return &cliError{exitBackendFailure, compileErr}
	}

	fmt.Printf("compiled %s -> %s\n", sourceFile, res.OutputPath)
	return nil
}

func moduleNameFor(sourceFile string) string {
	base := filepath.Base(sourceFile)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}

// demoProgram builds a small stand-in AST for "function greet(){ echo
// \"Hello\"; } greet();" since no PHP front-end is wired in to parse real
// source.
func demoProgram() *ast.Tree {
	b := ast.NewBuilder()
	greet := b.FuncDecl("greet", nil, b.Block(b.Echo(b.StringLit("Hello"))))
	call := b.ExprStmt(b.Call("greet"))
	return b.Program(greet, call)
}
