package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/openmined/cloudsync/internal/sync"
)

var errAnswerFlags = errors.New("only one of --yes, --no and --default may be set")

// answerMode fixes the answer to every confirmation.
type answerMode string

const (
	answerAsk     answerMode = ""
	answerYes     answerMode = "yes"
	answerNo      answerMode = "no"
	answerDefault answerMode = "default"
)

func parseAnswerMode(yes, no, def bool) (answerMode, error) {
	mode, set := answerAsk, 0
	for _, flag := range []struct {
		on   bool
		mode answerMode
	}{{yes, answerYes}, {no, answerNo}, {def, answerDefault}} {
		if flag.on {
			mode = flag.mode
			set++
		}
	}
	if set > 1 {
		return answerAsk, errAnswerFlags
	}
	return mode, nil
}

// consoleUI talks to the user on the terminal the command runs in.
type consoleUI struct {
	in          *bufio.Reader
	out         io.Writer
	mode        answerMode
	interactive bool
}

func newConsoleUI(in io.Reader, out io.Writer, mode answerMode) *consoleUI {
	return &consoleUI{
		in:          bufio.NewReader(in),
		out:         out,
		mode:        mode,
		interactive: isTerminal(in),
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (u *consoleUI) Output(msg string) {
	fmt.Fprintln(u.out, cyan.Render(msg))
}

func (u *consoleUI) Message(msg string) {
	fmt.Fprintln(u.out, msg)
}

// Confirm asks until it gets an answer. A blank line takes the default, q or quit
// aborts the whole run.
func (u *consoleUI) Confirm(question string, defaultAnswer bool) (bool, error) {
	prompt := question + " [y/N/q] "
	if defaultAnswer {
		prompt = question + " [Y/n/q] "
	}

	switch u.mode {
	case answerYes:
		fmt.Fprintln(u.out, prompt+green.Render("yes"))
		return true, nil
	case answerNo:
		fmt.Fprintln(u.out, prompt+red.Render("no"))
		return false, nil
	case answerDefault:
		fmt.Fprintln(u.out, prompt+gray.Render(yesNo(defaultAnswer)))
		return defaultAnswer, nil
	}

	if !u.interactive {
		slog.Debug("stdin is not a terminal, using default answer", "question", question, "answer", defaultAnswer)
		fmt.Fprintln(u.out, prompt+gray.Render(yesNo(defaultAnswer)))
		return defaultAnswer, nil
	}

	for {
		fmt.Fprint(u.out, prompt)
		line, err := u.in.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				return false, sync.ErrAborted
			}
			return false, fmt.Errorf("read answer: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			return defaultAnswer, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		case "q", "quit":
			return false, sync.ErrAborted
		default:
			fmt.Fprintln(u.out, lightGray.Render("Please answer yes, no or quit."))
		}
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

var _ sync.UI = (*consoleUI)(nil)
