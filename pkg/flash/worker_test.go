package flash

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceFlash/pkg/debuglog"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/events"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/probe"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/registry"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/tool"
)

const testSerial = "066DFF495051717867123456"

const programmerOutput = `      -------------------------------------------------------------------
                        STM32CubeProgrammer v2.15.0
      -------------------------------------------------------------------

ST-LINK SN  : 066DFF495051717867123456
Board       : NUCLEO-H7A3ZI-Q
Device ID   : 0x4B0

Memory Programming ...
Opening and parsing file: app.hex
  File          : app.hex
  Size          : 412.50 KB
Erasing memory corresponding to sector 0:
Erasing external memory sectors [0 6]
Download in Progress:
File download complete
Time elapsed during download operation: 00:00:04.512

Verifying ...
Read progress:
Download verified successfully

MCU Reset
Software reset is performed
`

type harness struct {
	sim    *tool.SimTool
	reg    *registry.Registry
	bus    *events.Bus
	hook   *test.Hook
	worker *Worker
}

func newHarness(t *testing.T, res tool.SimResult) *harness {
	t.Helper()
	logger, hook := test.NewNullLogger()
	h := &harness{
		sim:  tool.NewSimTool(func([]string) tool.SimResult { return res }),
		reg:  registry.New(),
		bus:  events.NewBus(),
		hook: hook,
	}
	h.worker = NewWorker(h.sim, h.reg, h.bus, WithLogger(logger))
	return h
}

// flash claims the probe and runs one session to completion.
func (h *harness) flash(t *testing.T) []events.Event {
	t.Helper()
	require.True(t, h.reg.TryAcquire(testSerial))
	h.worker.Flash(probe.Probe{Serial: testSerial, Status: probe.StatusConnected}, "app.hex", "MX25LM51245G.stldr")
	return h.bus.DrainAll()
}

func withoutTime(evs []events.Event) []events.Event {
	var out []events.Event
	for _, e := range evs {
		if e.Kind != events.KindTime {
			out = append(out, e)
		}
	}
	return out
}

func TestFlashSuccess(t *testing.T) {
	h := newHarness(t, tool.SimResult{Output: programmerOutput})
	evs := h.flash(t)

	assert.Equal(t, []events.Event{
		events.Progress(testSerial, "Memory Programming"),
		events.Progress(testSerial, "Erasing Memory"),
		events.Progress(testSerial, "Flashing"),
		events.Progress(testSerial, "Flashing Completed"),
		events.Progress(testSerial, "Verifying"),
		events.Progress(testSerial, "Verified Successfully"),
		events.Completed(testSerial),
	}, withoutTime(evs))
	assert.Equal(t, events.Completed(testSerial), evs[len(evs)-1], "terminal event must be last")
	assert.False(t, h.reg.Contains(testSerial))

	calls := h.sim.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, tool.FlashArgs(testSerial, "app.hex", "MX25LM51245G.stldr"), calls[0])
}

func TestFlashEmitsOneEventPerLine(t *testing.T) {
	h := newHarness(t, tool.SimResult{Output: "Erasing memory corresponding to sector 3\n"})
	evs := withoutTime(h.flash(t))

	assert.Equal(t, []events.Event{
		events.Progress(testSerial, "Erasing Memory"),
		events.Completed(testSerial),
	}, evs)
}

func TestFlashSilentLineIsLoggedOnly(t *testing.T) {
	const line = "Time elapsed during download operation: 1.2s"
	h := newHarness(t, tool.SimResult{Output: line + "\n"})
	evs := withoutTime(h.flash(t))

	assert.Equal(t, []events.Event{events.Completed(testSerial)}, evs)

	var logged *logrus.Entry
	for _, e := range h.hook.AllEntries() {
		if e.Message == line {
			logged = e
		}
	}
	require.NotNil(t, logged, "raw line missing from debug log")
	assert.Equal(t, "3456", logged.Data[debuglog.FieldProbe])
}

func TestFlashBlankLinesAreLogged(t *testing.T) {
	h := newHarness(t, tool.SimResult{Output: "Memory Programming ...\n\n   \nMCU Reset\n"})
	evs := withoutTime(h.flash(t))

	assert.Equal(t, []events.Event{
		events.Progress(testSerial, "Memory Programming"),
		events.Completed(testSerial),
	}, evs)

	blank := 0
	for _, e := range h.hook.AllEntries() {
		if e.Message == "" {
			blank++
			assert.Equal(t, "3456", e.Data[debuglog.FieldProbe])
		}
	}
	assert.Equal(t, 2, blank, "every tool line belongs in the debug log")
}

func TestFlashNonzeroExit(t *testing.T) {
	h := newHarness(t, tool.SimResult{Output: "Error: failed to erase memory\n", ExitCode: 2})
	evs := withoutTime(h.flash(t))

	assert.Equal(t, []events.Event{events.Failed(testSerial, ReasonExit, 2)}, evs)
	assert.False(t, h.reg.Contains(testSerial))
}

func TestFlashSpawnError(t *testing.T) {
	h := newHarness(t, tool.SimResult{Err: errors.New(`exec: "STM32_Programmer_CLI": executable file not found in $PATH`)})
	evs := withoutTime(h.flash(t))

	require.Len(t, evs, 1)
	assert.Equal(t, events.KindFailed, evs[0].Kind)
	assert.Contains(t, evs[0].Reason, "executable file not found")
	assert.Equal(t, events.NoExitCode, evs[0].ExitCode)
	assert.False(t, h.reg.Contains(testSerial))
}

func TestFlashStreamError(t *testing.T) {
	h := newHarness(t, tool.SimResult{
		Output:    "Memory Programming ...\n",
		StreamErr: errors.New("read |0: file already closed"),
	})
	evs := withoutTime(h.flash(t))

	assert.Equal(t, []events.Event{
		events.Progress(testSerial, "Memory Programming"),
		events.Failed(testSerial, "read |0: file already closed", events.NoExitCode),
	}, evs)
	assert.False(t, h.reg.Contains(testSerial))
}

func TestFlashTimeUpdates(t *testing.T) {
	h := newHarness(t, tool.SimResult{Output: "Download in Progress:\n", Duration: 1200 * time.Millisecond})

	start := time.Now()
	evs := h.flash(t)
	took := time.Since(start)

	var times []time.Duration
	for _, e := range evs {
		if e.Kind == events.KindTime {
			require.Equal(t, testSerial, e.Serial)
			times = append(times, e.Elapsed)
		}
	}
	require.NotEmpty(t, times)
	for i := 1; i < len(times); i++ {
		assert.Greater(t, times[i], times[i-1], "time updates must strictly increase")
	}
	perSecond := float64(len(times)) / took.Seconds()
	assert.GreaterOrEqual(t, perSecond, 4.0, "%d updates in %s", len(times), took)

	// Nothing is published once the session has returned.
	time.Sleep(2 * DefaultClockInterval)
	assert.Zero(t, h.bus.Len())
}

func TestClockStopsWhenClaimReleased(t *testing.T) {
	reg := registry.New()
	bus := events.NewBus()
	require.True(t, reg.TryAcquire(testSerial))

	s := newSession(testSerial, "fw", "ld")
	clk := startClock(s, reg, bus, 20*time.Millisecond)
	time.Sleep(70 * time.Millisecond)
	reg.Release(testSerial)

	select {
	case <-clk.Done():
	case <-time.After(time.Second):
		t.Fatalf("clock still running after release")
	}
	bus.DrainAll()
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, bus.Len())

	// Stop after the clock already exited is harmless.
	clk.Stop()
	clk.Stop()
}

func TestWithClockIntervalCapped(t *testing.T) {
	w := NewWorker(tool.NewSimTool(nil), registry.New(), events.NewBus(), WithClockInterval(time.Second))
	assert.Equal(t, MaxClockInterval, w.interval)

	w = NewWorker(tool.NewSimTool(nil), registry.New(), events.NewBus(), WithClockInterval(50*time.Millisecond))
	assert.Equal(t, 50*time.Millisecond, w.interval)
}
