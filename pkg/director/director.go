package director

import (
	"sync"
	"time"
)

const audioFailThreshold = 500 * time.Millisecond

// Director composes the intake, scorer, state machine, wide-shot policy,
// and calibration sessions into one atomic per-tick decision (spec.md
// §4.f). All mutable state is guarded by a single mutex — the same
// mutex Tick and every HTTP-triggered mutation (StartCalibration,
// ApplyCalibration's underlying Reload) must acquire, per spec.md §5.
type Director struct {
	mu     sync.Mutex
	logger Logger
	intake AudioIntake
	sink   OutputSink

	opts   Options
	mics   []MicConfig
	scorer *scorer
	sm     *switchStateMachine
	policy *widePolicy

	automix    bool
	lastSound  time.Time
	lastCamera string
	audioFail  bool

	sessions map[string]*calibrationSession
	results  map[string]CalibrationResult
}

// New builds a Director. now seeds last-sound and the state machine's
// initial WIDE entry timestamp.
func New(intake AudioIntake, sink OutputSink, opts Options, logger Logger, now time.Time) (*Director, error) {
	if intake == nil {
		return nil, ErrNoAudioIntake
	}
	if sink == nil {
		return nil, ErrNoOutputSink
	}
	if logger == nil {
		logger = NoOpLogger{}
	}

	d := &Director{
		logger:   logger,
		intake:   intake,
		sink:     sink,
		sessions: make(map[string]*calibrationSession),
		results:  make(map[string]CalibrationResult),
	}
	d.applyOptionsLocked(opts, now)
	return d, nil
}

// applyOptionsLocked rebuilds the scorer/state-machine/policy from opts.
// Caller must hold d.mu. This is the Director's full re-init path (the
// teacher repo's "single-owner state rebuilt under lock" idiom), invoked
// both by New and by Reload.
func (d *Director) applyOptionsLocked(opts Options, now time.Time) {
	d.opts = opts
	d.mics = opts.Mics
	d.scorer = newScorer(opts.Mics)
	d.sm = newSwitchStateMachine(now)
	d.policy = newWidePolicy(opts.Wide)
	d.automix = opts.AutomixEnabled
	d.lastSound = now
	d.lastCamera = ""
	d.audioFail = false
	d.sessions = make(map[string]*calibrationSession)
	d.results = make(map[string]CalibrationResult)
}

// Reload re-reads configuration (the caller owns loading config.Config
// and converting it to Options) and fully re-initializes the director.
// During re-init the director is effectively paused: Reload holds the
// lock for its whole duration, so a concurrent Tick blocks until it
// completes.
func (d *Director) Reload(opts Options, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logger.Info("director: reloading configuration")
	d.applyOptionsLocked(opts, now)
}

// micByID returns the configured mic regardless of its Enabled flag —
// calibration session bookkeeping resolves a mic's input channel this
// way, matching engine/engine.py's unconditional lookup.
func (d *Director) micByID(id string) (MicConfig, bool) {
	for _, m := range d.mics {
		if m.ID == id {
			return m, true
		}
	}
	return MicConfig{}, false
}

// StartCalibration begins a calibration session for mic, forcing the
// director into STOPPED (automix disabled) until it is re-enabled via
// Reload (spec.md §3, §4.f step 5).
func (d *Director) StartCalibration(micID string, now time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.micByID(micID); !ok {
		return ErrUnknownMic
	}

	d.logger.Info("director: starting calibration", "mic", micID)
	d.automix = false
	d.sm.set(StateStopped, now)
	delete(d.results, micID)
	d.sessions[micID] = newCalibrationSession(micID, now, d.opts.CalibrationDur)
	return nil
}

// CalibrationResult returns the stored result for mic, if any.
func (d *Director) CalibrationResult(micID string) (CalibrationResult, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, ok := d.results[micID]
	return res, ok
}

// AuditLog returns the sink's in-memory audit trail.
func (d *Director) AuditLog() []AuditEntry {
	return d.sink.AuditLog()
}

// Tick performs one atomic pass of the director pipeline (spec.md §4.f).
// now is captured once by the caller and used throughout — the single-
// timebase discipline Design Note 9 calls out as a correctness
// requirement.
func (d *Director) Tick(now time.Time) Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	levels, lastAudio := d.intake.Get()

	// Step 2: audio-fail check.
	if now.Sub(lastAudio) > audioFailThreshold {
		if !d.audioFail {
			d.audioFail = true
			d.sm.set(StateWide, now)
			d.lastCamera = "" // mixer is now on WIDE; re-entering ACTIVE must re-cut
			d.policy.noteForcedWide(now)
			d.sink.Wide(ReasonAudioFail)
			d.logger.Warn("director: audio failure detected", "last_audio", lastAudio)
		}
		return Status{State: d.sm.state, AudioFail: true}
	}

	// Step 3: clear the latch now that audio is fresh.
	d.audioFail = false

	// Step 4: drive open calibration sessions.
	for micID, session := range d.sessions {
		mic, ok := d.micByID(micID)
		if !ok {
			// Calibration driver fault: drop this mic's session, others
			// and the tick continue (spec.md §7).
			delete(d.sessions, micID)
			continue
		}
		session.feed(now, levels.Get(mic.InputChannel))
		if session.done(now) {
			d.results[micID] = session.result()
			delete(d.sessions, micID)
		}
	}

	// Step 5: calibration mode — automix disabled, switch untouched.
	if !d.automix {
		return Status{
			Levels:  levels,
			State:   d.sm.state,
			Results: copyResults(d.results),
		}
	}

	// Step 6: score.
	result := d.scorer.evaluate(levels)
	if result.anyActive {
		d.lastSound = now
	}

	// Step 7: wide decision. Always evaluated (its cooldown/interval
	// bookkeeping advances every tick) even though step 8 ignores the
	// outcome while already WIDE — see spec.md §9 and DESIGN.md.
	silence := now.Sub(d.lastSound)
	wide, reason := d.policy.evaluate(now, result.active, silence)

	// Step 8: state transition.
	switch d.sm.state {
	case StateWide:
		if d.sm.duration(now).Seconds() >= d.opts.Wide.MinDurationS && result.dominant != "" {
			d.enterActive(now, result.dominant)
		}
		// Else: stay WIDE. The wide decision is not re-evaluated from
		// WIDE; min-dwell has priority (spec.md §4.f step 8, §9 Open
		// Question).
	default: // ACTIVE or STOPPED
		if wide {
			d.sm.set(StateWide, now)
			d.lastCamera = "" // mixer is now on WIDE; re-entering ACTIVE must re-cut
			d.sink.Wide(reason)
		} else if result.dominant != "" {
			d.enterActive(now, result.dominant)
		}
		// Else: no active mic and no wide trigger — stay put, no
		// emission (spec.md §4.f Edge-case policies).
	}

	return Status{
		Levels:    levels,
		State:     d.sm.state,
		Dominance: result.dominance,
		Results:   copyResults(d.results),
	}
}

// enterActive transitions to ACTIVE and emits a camera cut only when the
// resulting camera differs from the last one actually sent — this is
// what makes an ACTIVE→ACTIVE cut with a different dominant mic still
// emit, while a same-camera re-evaluation (e.g. the same dominant mic
// two ticks running) emits nothing (spec.md §9, Edge-case policies).
func (d *Director) enterActive(now time.Time, micID string) {
	d.sm.set(StateActive, now)
	mic, ok := d.micByID(micID)
	if !ok {
		return
	}
	if mic.Camera != d.lastCamera {
		d.sink.Cam(mic.Camera)
		d.lastCamera = mic.Camera
	}
}

func copyResults(m map[string]CalibrationResult) map[string]CalibrationResult {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]CalibrationResult, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
