package cmd

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	sim "github.com/inference-sim/os-sim/sim"
)

// driver is the periodic collaborator around a Simulation: it applies reloaded
// knobs between cycles, paces cycles against the wall clock and wraps each one
// in a span.
type driver struct {
	sim     *sim.Simulation
	tracer  *tickTracer
	reloads <-chan *sim.Scenario // nil when not watching
	pace    <-chan time.Time     // nil runs flat out
}

// run steps the simulation until the clock reaches horizon or ctx is done.
func (d *driver) run(ctx context.Context, horizon int64) {
	for d.sim.Clock < horizon {
		d.applyReloads()
		if d.pace != nil {
			select {
			case <-ctx.Done():
				return
			case <-d.pace:
			}
		} else if ctx.Err() != nil {
			return
		}

		span := d.tracer.begin(ctx, d.sim.Clock+1)
		report := d.sim.Step()
		d.tracer.end(span, d.sim, report)
		logrus.Debugf("[cycle %07d] %s", d.sim.Clock, d.sim.QueueLengths())
	}
	if !d.sim.Arena.IntegrityCheck() {
		logrus.Errorf("[cycle %07d] memory partition is inconsistent", d.sim.Clock)
	}
}

// applyReloads drains pending scenario reloads; only the latest one matters
// because each reload carries the complete knob set.
func (d *driver) applyReloads() {
	for {
		select {
		case sc := <-d.reloads:
			sc.ApplyKnobs(d.sim)
			cfg := d.sim.Sched.Config()
			logrus.Infof("[cycle %07d] knobs reloaded: quantum=%d block=%.2f/%d strategy=%s",
				d.sim.Clock, cfg.Quantum, cfg.BlockProbability, cfg.MaxBlockDuration, d.sim.Config.Memory.Strategy)
		default:
			return
		}
	}
}
