// Command calclab runs one task request and prints the result as JSON.
//
//	calclab [-pretty] [-log-level level] [request.json]
//
// The request is read from the named file, or from standard input when no
// file is given. On failure the message is printed to standard error and the
// exit status is 1.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/copyleftdev/calclab/internal/config"
	apperrors "github.com/copyleftdev/calclab/internal/errors"
	"github.com/copyleftdev/calclab/internal/logging"
	"github.com/copyleftdev/calclab/internal/task"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("calclab", flag.ContinueOnError)
	fs.SetOutput(stderr)
	pretty := fs.Bool("pretty", false, "indent the JSON output")
	logLevel := fs.String("log-level", "warn", "log level for engine diagnostics on stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(stderr, "usage: calclab [-pretty] [-log-level level] [request.json]")
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "calclab: %v\n", err)
		return 1
	}

	logger, err := logging.NewLogger(&logging.Config{Level: *logLevel, Format: "text", Output: "stderr"})
	if err != nil {
		fmt.Fprintf(stderr, "calclab: %v\n", err)
		return 1
	}
	engineLogger := logging.NewZapLogger(logger)
	defer func() { _ = engineLogger.Sync() }()

	in := stdin
	if fs.NArg() == 1 {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(stderr, "calclab: %v\n", err)
			return 1
		}
		defer f.Close()
		in = f
	}

	var req task.Request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		fmt.Fprintf(stderr, "calclab: %v\n", apperrors.Wrap(err, apperrors.KindValidation, "invalid request"))
		return 1
	}

	res, err := task.NewRunner(cfg.TaskSettings(), engineLogger).Handle(req)
	if err != nil {
		logger.Debug("Task failed", map[string]interface{}{"kind": apperrors.KindOf(err).String()})
		fmt.Fprintf(stderr, "calclab: %s error: %v\n", apperrors.KindOf(err), err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(res); err != nil {
		fmt.Fprintf(stderr, "calclab: %v\n", err)
		return 1
	}
	return 0
}
