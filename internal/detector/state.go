package detector

// deltaSet holds DTS deltas confirmed legitimate. It only grows.
type deltaSet map[int64]struct{}

func (s deltaSet) has(d int64) bool {
	_, ok := s[d]
	return ok
}

func (s deltaSet) add(d int64) {
	s[d] = struct{}{}
}

// deltaState is the per-scan timestamp memory.
type deltaState struct {
	prevDTS int64
	hasPrev bool

	baseline    int64
	hasBaseline bool

	seen   deltaSet
	frames int
}

func newDeltaState() *deltaState {
	return &deltaState{seen: make(deltaSet)}
}

// observe feeds one positive DTS. It returns the delta to the previous DTS
// and whether that delta is unknown and must be checked against the
// decoder. The first DTS only primes the state and the first delta becomes
// the baseline unconditionally.
func (s *deltaState) observe(dts int64) (int64, bool) {
	if !s.hasPrev {
		s.prevDTS = dts
		s.hasPrev = true
		return 0, false
	}

	delta := dts - s.prevDTS
	s.prevDTS = dts

	if !s.hasBaseline {
		s.baseline = delta
		s.hasBaseline = true
		return delta, false
	}

	if delta == s.baseline || s.seen.has(delta) {
		return delta, false
	}
	return delta, true
}

// trust records a delta that turned out to be legitimate: the old baseline
// joins the known set and the new delta becomes the baseline.
func (s *deltaState) trust(delta int64) {
	s.seen.add(s.baseline)
	s.baseline = delta
}
