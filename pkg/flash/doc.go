// Package flash runs firmware programming sessions, one per probe.
//
// A session starts once the caller holds the probe's registry claim. The
// worker drives the programmer tool, turns its console output into
// events.Progress updates, publishes the elapsed time while the session is
// active, and ends with exactly one terminal event (Completed or Failed).
// Whatever happens, the claim is released when the worker returns.
//
// Typical use:
//
//	reg := registry.New()
//	bus := events.NewBus()
//	w := flash.NewWorker(tool.NewExec(""), reg, bus, flash.WithLogger(sink))
//	l := flash.NewLauncher(w)
//	if err := l.Launch(p, "app.hex", "MX25LM51245G.stldr"); err != nil {
//	    // flash.ErrBusy, flash.ErrMissingFile
//	}
//	for _, e := range bus.DrainAll() {
//	    // update display
//	}
package flash
