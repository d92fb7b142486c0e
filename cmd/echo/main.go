// Command echo is the CLI entry point (SPEC_FULL.md §6 "CLI
// concretization"): storage path, JIT toggle, one-shot -eval, and trace
// flags, adapted from MongooseMoo's cmd/barn/main.go flag set. It does not
// parse or dispatch REPL dot-commands — those stay an external collaborator.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"echo/config"
	"echo/eval"
	"echo/runtime"
	"echo/trace"
)

func main() {
	dbPath := flag.String("db", "echo.db", "Storage path")
	jit := flag.Bool("jit", true, "Enable the JIT adjunct")
	noJIT := flag.Bool("no-jit", false, "Disable the JIT adjunct (overrides -jit)")
	evalExpr := flag.String("eval", "", "Evaluate one Echo expression and exit")
	traceEnabled := flag.Bool("trace", false, "Enable execution tracing")
	traceFilter := flag.String("trace-filter", "", "Trace filter pattern (glob, comma-separated, e.g. 'do_*,look_*')")

	flag.Parse()

	cfg := config.Default()
	cfg.StoragePath = *dbPath
	cfg.EnableJIT = *jit && !*noJIT

	if envTrace := os.Getenv("ECHO_TRACE"); envTrace != "" {
		*traceEnabled = true
		if *traceFilter == "" {
			*traceFilter = envTrace
		}
	}
	if *traceEnabled {
		var filters []string
		if *traceFilter != "" {
			filters = strings.Split(*traceFilter, ",")
			for i := range filters {
				filters[i] = strings.TrimSpace(filters[i])
			}
		}
		logger, _ := zap.NewDevelopment()
		trace.Init(true, filters, logger)
		log.Printf("tracing enabled (filters: %v)", filters)
	} else {
		trace.Init(false, nil, nil)
	}

	rt, err := runtime.New(cfg)
	if err != nil {
		log.Fatalf("failed to open storage at %s: %v", cfg.StoragePath, err)
	}
	defer rt.Close()

	rt.SetUICallback(func(evt eval.UIEvent) {
		if evt.Action == "NotifyPlayer" {
			fmt.Println(evt.Data["message"].String())
		}
	})

	if *evalExpr != "" {
		runOneShot(rt, *evalExpr)
		return
	}

	runREPL(rt)
}

func runOneShot(rt *runtime.Runtime, src string) {
	v, err := rt.EvalSource(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(v.String())
}

// runREPL is a bare read-eval-print loop: no dot-commands, no line editing
// beyond what bufio.Scanner gives for free. A richer front end (line
// editing, dot-commands, multi-user I/O) is an external collaborator, not
// this binary's concern.
func runREPL(rt *runtime.Runtime) {
	fmt.Println("echo — bare REPL (no dot-commands; Ctrl-D to exit)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		v, err := rt.EvalSource(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(v.String())
	}
}
