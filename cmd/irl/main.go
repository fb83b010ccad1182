// SPDX-License-Identifier: Apache-2.0

// Command irl parses an IRL source file, verifies it, runs the
// optimization pipeline, and prints the program graph before and after.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"irl/internal/diagnostics"
	"irl/internal/ir"
	"irl/internal/parser"
	"irl/internal/vm"
)

func main() {
	passesFlag := flag.String("passes", "", "comma-separated pass names to run instead of the default pipeline")
	runFlag := flag.String("run", "", "execute the named function on the vm after optimizing and print its result")
	argsFlag := flag.String("args", "", "comma-separated integer arguments for -run")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: irl [-passes p1,p2,...] [-run @fn -args a,b,c] <file.irl>")
		os.Exit(1)
	}
	path := flag.Arg(0)

	source, err := os.ReadFile(path)
	if err != nil {
		color.Red("failed to read %s: %s", path, err)
		os.Exit(1)
	}

	prog, d := parser.ParseSource(path, string(source))
	if d != nil {
		reportAndExit(path, string(source), d)
	}

	for _, fn := range prog.Functions {
		if d := ir.Verify(fn); d != nil {
			reportAndExit(path, string(source), d)
		}
	}

	fmt.Println(color.New(color.Bold).Sprint("-- before --"))
	fmt.Println(ir.Print(prog.Program))

	cfg := ir.PipelineConfig{}
	if *passesFlag != "" {
		cfg.Passes = resolvePasses(*passesFlag)
	}
	for _, fn := range prog.Functions {
		if d := ir.RunPipeline(fn, cfg); d != nil {
			reportAndExit(path, string(source), d)
		}
	}

	fmt.Println(color.New(color.Bold).Sprint("-- after --"))
	fmt.Println(ir.Print(prog.Program))

	if *runFlag != "" {
		runProgram(prog.Program, *runFlag, *argsFlag)
	}
	color.Green("done")
}

// resolvePasses maps pass names to instances from the default pipeline,
// allowing -passes to select a subset in the default pipeline's order
// rather than an arbitrary mix.
func resolvePasses(list string) []ir.Pass {
	want := make(map[string]bool)
	for _, name := range strings.Split(list, ",") {
		want[strings.TrimSpace(name)] = true
	}
	var out []ir.Pass
	for _, p := range ir.DefaultPipeline() {
		if want[p.Name()] {
			out = append(out, p)
		}
	}
	return out
}

func runProgram(prog *ir.Program, fnName, argsCSV string) {
	name := strings.TrimPrefix(fnName, "@")
	var args []int64
	if argsCSV != "" {
		for _, a := range strings.Split(argsCSV, ",") {
			n, err := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
			if err != nil {
				color.Red("malformed -args value %q: %s", a, err)
				os.Exit(1)
			}
			args = append(args, n)
		}
	}
	res, d := vm.New(prog).Run(name, args)
	if d != nil {
		color.Red("runtime error: %s", d.Error())
		os.Exit(1)
	}
	if res.HasReturn {
		fmt.Printf("return=%d instructions=%d cycles=%d globals=%v\n", res.Return, res.Instructions, res.Cycles, res.Globals)
	} else {
		fmt.Printf("instructions=%d cycles=%d globals=%v\n", res.Instructions, res.Cycles, res.Globals)
	}
}

func reportAndExit(filename, source string, d *diagnostics.Diagnostic) {
	r := diagnostics.NewReporter(filename, source)
	fmt.Print(r.Format(d))
	os.Exit(1)
}
