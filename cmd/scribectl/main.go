package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: scribectl <validate|benchmark|batch-validate|generate|trend> [flags]")
		os.Exit(exitInvalidArgs)
	}

	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "validate":
		err = runValidate(args)
	case "benchmark":
		err = runBenchmark(args)
	case "batch-validate":
		err = runBatchValidate(args)
	case "generate":
		err = runGenerate(args)
	case "trend":
		err = runTrend(args)
	default:
		fmt.Fprintf(os.Stderr, "scribectl: unknown command %q\n", cmd)
		os.Exit(exitInvalidArgs)
	}

	if err == nil {
		os.Exit(exitOK)
	}

	var ce *cliError
	if errors.As(err, &ce) {
		fmt.Fprintln(os.Stderr, "scribectl:", ce.msg)
		os.Exit(ce.code)
	}
	fmt.Fprintln(os.Stderr, "scribectl:", err)
	os.Exit(exitIOError)
}
