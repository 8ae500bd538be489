package tool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "STFLASH_TOOL_HELPER"

// TestMain lets the test binary stand in for the programmer executable when
// re-executed with helperEnv set.
func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "1" {
		os.Exit(fakeProgrammer(os.Args[1:]))
	}
	os.Exit(m.Run())
}

func fakeProgrammer(args []string) int {
	if len(args) == 0 {
		return 1
	}
	switch args[0] {
	case "-l":
		fmt.Println("ST-Link Probe 0 :")
		fmt.Println("   ST-LINK SN  : 0668FF")
		return 0
	case "exit":
		code, _ := strconv.Atoi(args[1])
		fmt.Println("Error: No STM32 target found!")
		return code
	case "sleep":
		time.Sleep(5 * time.Second)
		return 0
	case "stream":
		fmt.Fprintln(os.Stdout, "Memory Programming ...")
		fmt.Fprintln(os.Stderr, "Download in Progress:")
		fmt.Fprintln(os.Stdout, "File download complete")
		return 0
	}
	return 1
}

func helperExec(t *testing.T) *Exec {
	t.Helper()
	t.Setenv(helperEnv, "1")
	return NewExec(os.Args[0])
}

func TestNewExecDefaultsPath(t *testing.T) {
	assert.Equal(t, DefaultPath, NewExec("").Path)
	assert.Equal(t, "/opt/st/bin/prog", NewExec("/opt/st/bin/prog").Path)
}

func TestExecOutput(t *testing.T) {
	e := helperExec(t)
	out, err := e.Output(context.Background(), ListArgs()...)
	require.NoError(t, err)
	assert.Contains(t, string(out), "ST-LINK SN  : 0668FF")
}

func TestExecOutputNonzeroExitKeepsOutput(t *testing.T) {
	e := helperExec(t)
	out, err := e.Output(context.Background(), "exit", "3")
	code, ok := ExitCode(err)
	require.True(t, ok, "expected *ExitError, got %v", err)
	assert.Equal(t, 3, code)
	assert.Contains(t, string(out), "No STM32 target found")
}

func TestExecOutputTimeout(t *testing.T) {
	e := helperExec(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := e.Output(ctx, "sleep")
	assert.True(t, errors.Is(err, ErrTimeout), "err = %v", err)
}

func TestExecOutputCancelled(t *testing.T) {
	e := helperExec(t)
	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(100*time.Millisecond, cancel)
	defer timer.Stop()

	_, err := e.Output(ctx, "sleep")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
	_, isExit := ExitCode(err)
	assert.False(t, isExit, "killed process must not look like an exit status")
}

func TestExecOutputMissingBinary(t *testing.T) {
	e := NewExec("/nonexistent/STM32_Programmer_CLI")
	_, err := e.Output(context.Background(), ListArgs()...)
	require.Error(t, err)
	_, isExit := ExitCode(err)
	assert.False(t, isExit)
}

func TestExecStartMergesStreams(t *testing.T) {
	e := helperExec(t)
	p, err := e.Start("stream")
	require.NoError(t, err)

	data, err := io.ReadAll(p.Output())
	require.NoError(t, err)
	require.NoError(t, p.Wait())

	out := string(data)
	for _, want := range []string{"Memory Programming ...", "Download in Progress:", "File download complete"} {
		assert.True(t, strings.Contains(out, want), "missing %q in %q", want, out)
	}
}

func TestExecStartExitCode(t *testing.T) {
	e := helperExec(t)
	p, err := e.Start("exit", "2")
	require.NoError(t, err)

	_, err = io.Copy(io.Discard, p.Output())
	require.NoError(t, err)
	code, ok := ExitCode(p.Wait())
	require.True(t, ok)
	assert.Equal(t, 2, code)
}

func TestExecStartMissingBinary(t *testing.T) {
	_, err := NewExec("/nonexistent/STM32_Programmer_CLI").Start(ListArgs()...)
	assert.Error(t, err)
}
