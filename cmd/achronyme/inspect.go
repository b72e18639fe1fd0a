package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/achronyme/achronyme-core-sub001/bytecode"
	"github.com/achronyme/achronyme-core-sub001/values"
	"github.com/achronyme/achronyme-core-sub001/vm"
)

var inspectCommand = &cli.Command{
	Name:      "inspect",
	Usage:     "execute a .ach file under a profiler and report module statistics",
	ArgsUsage: "<file>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "detailed",
			Usage: "collect breakpoint/watch debug records, not just counts",
		},
		&cli.IntFlag{
			Name:  "top",
			Usage: "number of hot spots to print",
			Value: 10,
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		filename := cmd.Args().First()
		if filename == "" {
			return fmt.Errorf("inspect requires a file argument")
		}
		module, err := compileFile(filename)
		if err != nil {
			return err
		}

		level := vm.DebugLevelBasic
		if cmd.Bool("detailed") {
			level = vm.DebugLevelDetailed
		}
		prof := vm.NewProfiler(level)

		machine := vm.New(nil)
		machine.SetProfiler(prof)

		printModuleStats(module)

		result, execErr := machine.Execute(module)
		fmt.Println()
		fmt.Println(prof.Render())

		for _, hs := range prof.HotSpots(int(cmd.Int("top"))) {
			fmt.Printf("  ip %-6d %s hits\n", hs.IP, humanize.Comma(int64(hs.Count)))
		}
		for _, rec := range prof.DebugRecords() {
			fmt.Println("  " + rec)
		}

		if execErr != nil {
			return execErr
		}
		if result != nil && result.Type != values.TypeNull {
			fmt.Printf("\nresult: %s\n", values.Display(result))
		}
		return nil
	},
}

func printModuleStats(module *bytecode.Module) {
	size := countInstructions(module.Main)
	fmt.Printf("module %q: %s instructions, %s registers, %s constants, %d exports\n",
		module.Name,
		humanize.Comma(int64(size)),
		humanize.Comma(int64(module.Main.EffectiveRegisterCount())),
		humanize.Comma(int64(module.Pool.ConstantLen())),
		len(module.Exports),
	)
}

func countInstructions(proto *bytecode.Prototype) int {
	total := len(proto.Code)
	for _, child := range proto.Functions {
		total += countInstructions(child)
	}
	return total
}
