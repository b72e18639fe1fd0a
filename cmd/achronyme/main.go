// Command achronyme drives the compiler and VM from the command line:
// run/eval execute a program, check only compiles it, disassemble prints
// its bytecode, inspect runs it under a profiler, and repl is a line at a
// time interactive shell.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	_ "github.com/achronyme/achronyme-core-sub001/builtins"
	"github.com/achronyme/achronyme-core-sub001/bytecode"
	"github.com/achronyme/achronyme-core-sub001/compiler"
	"github.com/achronyme/achronyme-core-sub001/frontend"
	"github.com/achronyme/achronyme-core-sub001/values"
	"github.com/achronyme/achronyme-core-sub001/version"
	"github.com/achronyme/achronyme-core-sub001/vm"
)

func main() {
	app := &cli.Command{
		Name:  "achronyme",
		Usage: "compiler and VM for the Achronyme scripting language",
		Commands: []*cli.Command{
			runCommand,
			evalCommand,
			checkCommand,
			disassembleCommand,
			inspectCommand,
			replCommand,
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "version",
				Aliases: []string{"v"},
				Usage:   "print the build version and exit",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("version") {
				fmt.Println(version.Version())
				return nil
			}
			fmt.Println("usage: achronyme <run|eval|check|disassemble|inspect|repl> ...")
			return nil
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "achronyme: %v\n", err)
		os.Exit(1)
	}
}

// compileFile parses and compiles filename into a Module, using the file's
// base name (without extension) as the module name.
func compileFile(filename string) (*bytecode.Module, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return compileSource(name, string(src))
}

func compileSource(name, src string) (*bytecode.Module, error) {
	stmts, err := frontend.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	module, err := compiler.CompileModule(name, stmts)
	if err != nil {
		return nil, fmt.Errorf("compile error: %w", err)
	}
	return module, nil
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "compile and execute a .ach file",
	ArgsUsage: "<file>",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		filename := cmd.Args().First()
		if filename == "" {
			return fmt.Errorf("run requires a file argument")
		}
		module, err := compileFile(filename)
		if err != nil {
			return err
		}
		return execModule(module)
	},
}

var evalCommand = &cli.Command{
	Name:      "eval",
	Usage:     "compile and execute an inline code string",
	ArgsUsage: "<code>",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		code := cmd.Args().First()
		if code == "" {
			return fmt.Errorf("eval requires a code argument")
		}
		module, err := compileSource("eval", code)
		if err != nil {
			return err
		}
		return execModule(module)
	},
}

var checkCommand = &cli.Command{
	Name:      "check",
	Usage:     "parse and compile a .ach file without executing it",
	ArgsUsage: "<file>",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		filename := cmd.Args().First()
		if filename == "" {
			return fmt.Errorf("check requires a file argument")
		}
		if _, err := compileFile(filename); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

var disassembleCommand = &cli.Command{
	Name:      "disassemble",
	Usage:     "print a .ach file's compiled bytecode",
	ArgsUsage: "<file>",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		filename := cmd.Args().First()
		if filename == "" {
			return fmt.Errorf("disassemble requires a file argument")
		}
		module, err := compileFile(filename)
		if err != nil {
			return err
		}
		fmt.Print(bytecode.Disassemble(module.Main))
		return nil
	},
}

func execModule(module *bytecode.Module) error {
	machine := vm.New(nil)
	result, err := machine.Execute(module)
	if err != nil {
		return err
	}
	if result != nil && result.Type != values.TypeNull {
		fmt.Println(values.Display(result))
	}
	return nil
}
