package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"

	"github.com/achronyme/achronyme-core-sub001/values"
	"github.com/achronyme/achronyme-core-sub001/vm"
)

var replCommand = &cli.Command{
	Name:  "repl",
	Usage: "start an interactive line-at-a-time shell",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		return runREPL()
	},
}

// runREPL compiles each brace-balanced input (one or more lines) as its
// own fresh module and runs it on one VM kept for the whole session:
// variables declared in one input do not persist to the next, the same
// one-shot-per-input tradeoff the teacher's own bufio-based shell makes,
// traded here for readline's history and line editing.
func runREPL() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "achronyme> ",
		HistoryFile:     historyFilePath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	machine := vm.New(nil)
	var buffer strings.Builder

	for {
		prompt := "achronyme> "
		if buffer.Len() > 0 {
			prompt = "........> "
		}
		rl.SetPrompt(prompt)

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			buffer.Reset()
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(line)
		if buffer.Len() == 0 && (trimmed == "exit" || trimmed == "quit") {
			return nil
		}
		if buffer.Len() == 0 && trimmed == "" {
			continue
		}

		buffer.WriteString(line)
		buffer.WriteString("\n")

		if !braceBalanced(buffer.String()) {
			continue
		}

		source := buffer.String()
		buffer.Reset()

		module, err := compileSource("repl", source)
		if err != nil {
			fmt.Println(err)
			continue
		}
		result, err := machine.Execute(module)
		if err != nil {
			fmt.Println(err)
			continue
		}
		if result != nil && result.Type != values.TypeNull {
			fmt.Println(values.Display(result))
		}
	}
}

func braceBalanced(src string) bool {
	depth := 0
	for _, r := range src {
		switch r {
		case '{', '(', '[':
			depth++
		case '}', ')', ']':
			depth--
		}
	}
	return depth <= 0
}

func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return home + "/.achronyme_history"
}
