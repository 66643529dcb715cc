// Package shell is the interactive front end: it reads command lines, routes
// them through the active lesson when there is one, runs them against the
// simulator and renders the results.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/psantana5/opsim/pkg/lessons"
	"github.com/psantana5/opsim/pkg/logging"
	"github.com/psantana5/opsim/pkg/metrics"
	"github.com/psantana5/opsim/pkg/sim"
	"github.com/psantana5/opsim/pkg/store"
)

// endMarker terminates multi-line input
const endMarker = "END"

// Options configures a Shell
type Options struct {
	In       io.Reader
	Out      io.Writer
	Store    store.Store       // nil disables save and load
	Exporter *metrics.Exporter // nil creates a private one
	Logger   *logrus.Logger
}

// Shell drives one simulator from a line-oriented input stream
type Shell struct {
	sim      *sim.Simulator
	store    store.Store
	exporter *metrics.Exporter
	in       *bufio.Scanner
	out      io.Writer
	logger   *logrus.Entry
}

// New creates a shell bound to s
func New(s *sim.Simulator, opts Options) *Shell {
	exporter := opts.Exporter
	if exporter == nil {
		exporter = metrics.NewExporter()
	}
	sh := &Shell{
		sim:      s,
		store:    opts.Store,
		exporter: exporter,
		in:       bufio.NewScanner(opts.In),
		out:      opts.Out,
		logger:   logging.Component(opts.Logger, "shell"),
	}
	sh.exporter.Observe(s)
	return sh
}

// Run reads commands until exit, end of input or ctx is done
func (sh *Shell) Run(ctx context.Context) error {
	fmt.Fprintln(sh.out, "Welcome to the AI Ops Simulator!")
	fmt.Fprintln(sh.out, "Type `tutorial` to see available tutorials, or `help` for a list of all commands.")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		sh.prompt()
		line, ok := sh.readLine()
		if !ok {
			fmt.Fprintln(sh.out, "\nExiting. Goodbye!")
			return sh.in.Err()
		}
		if !sh.Handle(ctx, line) {
			return nil
		}
	}
}

// Handle processes one input line and reports whether the shell should keep running
func (sh *Shell) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	defer sh.exporter.Observe(sh.sim)

	if sh.sim.Lessons().Active() {
		return sh.handleLesson(ctx, line)
	}

	kind, args := Parse(line)
	keepRunning := sh.execute(ctx, kind, args)
	if keepRunning && kind.Ticks() {
		sh.sim.Tick()
	}
	return keepRunning
}

// handleLesson gates input through the current step before running it
func (sh *Shell) handleLesson(ctx context.Context, line string) bool {
	engine := sh.sim.Lessons()
	step := engine.Current()

	if line == "exit" {
		return sh.execute(ctx, KindExit, nil)
	}
	if strings.EqualFold(line, "docs") && step.DocQuote != "" {
		fmt.Fprintf(sh.out, "Documentation Quote:\n%s\n", step.DocQuote)
		return true
	}
	if !engine.CheckInput(line) {
		if step.IsChoice() {
			fmt.Fprintln(sh.out, "That's not the right answer. Try again.")
		} else {
			fmt.Fprintln(sh.out, "That's not the right command. Try following the instructions carefully.")
		}
		return true
	}

	keepRunning := true
	switch step.Matcher().Kind {
	case lessons.MatchChoice:
		fmt.Fprintln(sh.out, "Correct!")
	case lessons.MatchNone:
	default:
		kind, args := Parse(line)
		keepRunning = sh.execute(ctx, kind, args)
	}

	outcome, err := engine.Advance()
	if err != nil {
		sh.fail(err)
		return keepRunning
	}
	if outcome.Ended {
		if outcome.FinalMessage != "" {
			fmt.Fprintln(sh.out, outcome.FinalMessage)
		}
		fmt.Fprintln(sh.out, "Tutorial complete! Select another tutorial to continue learning.")
	}
	return keepRunning
}

func (sh *Shell) prompt() {
	if step := sh.sim.Lessons().Current(); step != nil {
		fmt.Fprintf(sh.out, "\nTUTORIAL: %s\n", step.Text)
		for _, a := range step.Answers {
			fmt.Fprintf(sh.out, "  %s\n", a)
		}
		if step.DocLink != "" {
			fmt.Fprintf(sh.out, "For more info, see: %s\n", step.DocLink)
		}
		if step.DocQuote != "" {
			fmt.Fprintln(sh.out, "(Type `docs` to see a quote)")
		}
	}
	fmt.Fprint(sh.out, "\nEnter command: ")
}

func (sh *Shell) readLine() (string, bool) {
	if !sh.in.Scan() {
		return "", false
	}
	return sh.in.Text(), true
}

// readBlock collects lines until END or end of input
func (sh *Shell) readBlock() string {
	var lines []string
	for {
		line, ok := sh.readLine()
		if !ok || strings.EqualFold(strings.TrimSpace(line), endMarker) {
			break
		}
		lines = append(lines, line)
	}
	text := strings.Join(lines, "\n")
	if text != "" {
		text += "\n"
	}
	return text
}

func (sh *Shell) fail(err error) {
	sh.logger.WithError(err).Debug("command failed")
	fmt.Fprintf(sh.out, "Error: %v\n", err)
}

func (sh *Shell) println(format string, args ...interface{}) {
	fmt.Fprintf(sh.out, format+"\n", args...)
}
