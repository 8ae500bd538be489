package ui

import (
	"bytes"
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceFlash/pkg/events"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/probe"
	"github.com/OpenTraceLab/OpenTraceFlash/pkg/registry"
)

func loadedBoard(t *testing.T, reg *registry.Registry) *Board {
	t.Helper()
	b := NewBoard("app.hex")
	b.Load([]probe.Probe{
		{Serial: "AAAA", Status: probe.StatusConnected, DeviceID: "0x415"},
		{Serial: "BBBB", Status: probe.StatusDisconnected},
		{Serial: "CCCC", Status: probe.StatusFlashing},
	}, reg)
	return b
}

func TestLoad(t *testing.T) {
	b := loadedBoard(t, registry.New())

	a, _ := b.Row("AAAA")
	assert.Equal(t, Row{Serial: "AAAA", DeviceID: "0x415", Status: StatusReady, Time: TimeIdle, Tone: ToneGood, CanFlash: true}, a)

	bb, _ := b.Row("BBBB")
	assert.Equal(t, StatusNotConnected, bb.Status)
	assert.Equal(t, "No target", bb.DeviceID)
	assert.False(t, bb.CanFlash)

	c, _ := b.Row("CCCC")
	assert.Equal(t, StatusFlashing, c.Status)
	assert.Equal(t, TimeStarted, c.Time)
	assert.False(t, c.CanFlash)

	_, ok := b.Row("DDDD")
	assert.False(t, ok)
}

func TestApplySessionLifecycle(t *testing.T) {
	b := loadedBoard(t, registry.New())
	b.MarkLaunched("AAAA")
	b.MarkLaunched("DDDD")

	row, _ := b.Row("AAAA")
	assert.Equal(t, StatusFlashing, row.Status)
	assert.False(t, row.CanFlash)

	n := b.Apply([]events.Event{
		events.TimeUpdate("AAAA", 1234*time.Millisecond),
		events.Progress("AAAA", "Erasing Memory"),
		events.Progress("ZZZZ", "ignored"),
	})
	assert.Equal(t, 2, n)
	row, _ = b.Row("AAAA")
	assert.Equal(t, "Erasing Memory", row.Status)
	assert.Equal(t, "1.2s", row.Time)
	assert.Equal(t, ToneBusy, row.Tone)

	b.Apply([]events.Event{events.Completed("AAAA")})
	row, _ = b.Row("AAAA")
	assert.Equal(t, StatusCompleted, row.Status)
	assert.Equal(t, ToneGood, row.Tone)
	assert.True(t, row.CanFlash)
	assert.True(t, row.Done)
}

func TestApplyFailures(t *testing.T) {
	b := loadedBoard(t, registry.New())
	b.Apply([]events.Event{
		events.Failed("AAAA", "flash failed", 2),
		events.Failed("BBBB", "exec: not found", events.NoExitCode),
	})

	a, _ := b.Row("AAAA")
	assert.Equal(t, "❌ Failed (exit 2)", a.Status)
	assert.Equal(t, ToneBad, a.Tone)
	bb, _ := b.Row("BBBB")
	assert.Equal(t, "❌ Error: exec: not found", bb.Status)

	completed, failed := b.Snapshot().Outcome()
	assert.Equal(t, 0, completed)
	assert.Equal(t, 2, failed)
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, loadedBoard(t, registry.New()).Snapshot().Render(&buf))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "Firmware: app.hex\n"))
	assert.Contains(t, out, "ST-Link Serial")
	assert.Contains(t, out, "0x415")
	assert.Contains(t, out, StatusNotConnected)

	buf.Reset()
	require.NoError(t, NewBoard("").Snapshot().Render(&buf))
	assert.Equal(t, "No ST-Link probes found.\n", buf.String())

	buf.Reset()
	require.NoError(t, RenderChange(&buf, Row{Serial: "AAAA", Status: "Verifying", Time: "3.2s"}))
	assert.Contains(t, buf.String(), "Verifying")
}

func TestPumpDrainsUntilIdle(t *testing.T) {
	reg := registry.New()
	require.True(t, reg.TryAcquire("AAAA"))
	b := loadedBoard(t, reg)
	bus := events.NewBus()

	go func() {
		bus.Publish(events.Progress("AAAA", "Flashing"))
		time.Sleep(30 * time.Millisecond)
		bus.Publish(events.Completed("AAAA"))
		reg.Release("AAAA")
	}()

	var batches atomic.Int32
	err := b.Pump(context.Background(), bus, 10*time.Millisecond, reg.IsEmpty, func([]events.Event) {
		batches.Add(1)
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, batches.Load(), int32(1))

	row, _ := b.Row("AAAA")
	assert.Equal(t, StatusCompleted, row.Status)
	assert.Zero(t, bus.Len())
}

func TestPumpStopsOnCancel(t *testing.T) {
	reg := registry.New()
	require.True(t, reg.TryAcquire("AAAA"))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := NewBoard("").Pump(ctx, events.NewBus(), 5*time.Millisecond, reg.IsEmpty, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestToneString(t *testing.T) {
	assert.Equal(t, "gray", ToneIdle.String())
	assert.Equal(t, "blue", ToneBusy.String())
	assert.Equal(t, "green", ToneGood.String())
	assert.Equal(t, "red", ToneBad.String())
}
