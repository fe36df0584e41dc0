package main

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/openmined/cloudsync/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansiRE = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRE.ReplaceAllString(s, "")
}

func interactiveUI(input string) (*consoleUI, *bytes.Buffer) {
	var out bytes.Buffer
	return &consoleUI{
		in:          bufio.NewReader(strings.NewReader(input)),
		out:         &out,
		mode:        answerAsk,
		interactive: true,
	}, &out
}

func TestParseAnswerMode(t *testing.T) {
	tests := []struct {
		name        string
		yes, no, df bool
		want        answerMode
		wantErr     bool
	}{
		{name: "none", want: answerAsk},
		{name: "yes", yes: true, want: answerYes},
		{name: "no", no: true, want: answerNo},
		{name: "default", df: true, want: answerDefault},
		{name: "yes and no", yes: true, no: true, wantErr: true},
		{name: "all", yes: true, no: true, df: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAnswerMode(tt.yes, tt.no, tt.df)
			if tt.wantErr {
				assert.ErrorIs(t, err, errAnswerFlags)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfirmAnswers(t *testing.T) {
	tests := []struct {
		input         string
		defaultAnswer bool
		want          bool
	}{
		{input: "y\n", want: true},
		{input: "YES\n", want: true},
		{input: "n\n", defaultAnswer: true, want: false},
		{input: " no \n", defaultAnswer: true, want: false},
		{input: "\n", defaultAnswer: true, want: true},
		{input: "\n", defaultAnswer: false, want: false},
		// last line without newline
		{input: "y", want: true},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			ui, _ := interactiveUI(tt.input)
			got, err := ui.Confirm("Continue?", tt.defaultAnswer)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfirmQuitAborts(t *testing.T) {
	for _, input := range []string{"q\n", "quit\n", ""} {
		ui, _ := interactiveUI(input)
		_, err := ui.Confirm("Continue?", true)
		assert.ErrorIs(t, err, sync.ErrAborted, "input %q", input)
	}
}

func TestConfirmAsksAgain(t *testing.T) {
	ui, out := interactiveUI("maybe\nsure\ny\n")

	got, err := ui.Confirm("Download 2 files?", false)
	require.NoError(t, err)
	assert.True(t, got)

	text := stripANSI(out.String())
	assert.Equal(t, 3, strings.Count(text, "Download 2 files? [y/N/q] "))
	assert.Equal(t, 2, strings.Count(text, "Please answer yes, no or quit."))
}

func TestConfirmFixedModes(t *testing.T) {
	tests := []struct {
		mode          answerMode
		defaultAnswer bool
		want          bool
		printed       string
	}{
		{mode: answerYes, want: true, printed: "Go? [y/N/q] yes"},
		{mode: answerNo, defaultAnswer: true, want: false, printed: "Go? [Y/n/q] no"},
		{mode: answerDefault, defaultAnswer: true, want: true, printed: "Go? [Y/n/q] yes"},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			var out bytes.Buffer
			// input must not be read
			ui := newConsoleUI(strings.NewReader("q\n"), &out, tt.mode)

			got, err := ui.Confirm("Go?", tt.defaultAnswer)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.printed, strings.TrimSpace(stripANSI(out.String())))
		})
	}
}

func TestConfirmNonInteractiveTakesDefault(t *testing.T) {
	var out bytes.Buffer
	ui := newConsoleUI(strings.NewReader("n\n"), &out, answerAsk)
	assert.False(t, ui.interactive)

	got, err := ui.Confirm("Upload?", true)
	require.NoError(t, err)
	assert.True(t, got)
	assert.Contains(t, stripANSI(out.String()), "Upload? [Y/n/q] yes")
}

func TestOutputAndMessage(t *testing.T) {
	var out bytes.Buffer
	ui := newConsoleUI(strings.NewReader(""), &out, answerAsk)

	ui.Output("Download 1 file")
	ui.Message("- /a.txt")

	assert.Equal(t, "Download 1 file\n- /a.txt\n", stripANSI(out.String()))
}
