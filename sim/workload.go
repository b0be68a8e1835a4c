package sim

// Generator creates random processes at a fixed interval.
type Generator struct {
	cfg   WorkloadConfig
	rng   RandomSource
	limit uint32 // arena capacity; larger processes are skipped
}

// NewGenerator creates a generator drawing from rng. Bounds given in the wrong order
// are swapped and a non-positive interval becomes 1.
func NewGenerator(cfg WorkloadConfig, rng RandomSource, limit uint32) *Generator {
	if cfg.Interval < 1 {
		cfg.Interval = 1
	}
	if cfg.SizeMin > cfg.SizeMax {
		cfg.SizeMin, cfg.SizeMax = cfg.SizeMax, cfg.SizeMin
	}
	if cfg.SizeMin == 0 {
		cfg.SizeMin = 1
		if cfg.SizeMax == 0 {
			cfg.SizeMax = 1
		}
	}
	if cfg.DurationMin > cfg.DurationMax {
		cfg.DurationMin, cfg.DurationMax = cfg.DurationMax, cfg.DurationMin
	}
	if cfg.DurationMin < 1 {
		cfg.DurationMin = 1
		if cfg.DurationMax < 1 {
			cfg.DurationMax = 1
		}
	}
	return &Generator{cfg: cfg, rng: rng, limit: limit}
}

// Due reports whether a process should be generated at clock.
func (g *Generator) Due(clock int64) bool {
	return g.cfg.Auto && clock%g.cfg.Interval == 0
}

var generatedPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Next draws a size, a duration and a priority. ok is false when the drawn size
// exceeds the arena capacity; the draws are consumed either way.
func (g *Generator) Next() (size uint32, duration int, priority Priority, ok bool) {
	size = g.cfg.SizeMin + uint32(g.rng.Intn(int(g.cfg.SizeMax-g.cfg.SizeMin)+1))
	duration = g.cfg.DurationMin + g.rng.Intn(g.cfg.DurationMax-g.cfg.DurationMin+1)
	priority = generatedPriorities[g.rng.Intn(len(generatedPriorities))]
	return size, duration, priority, size <= g.limit
}
