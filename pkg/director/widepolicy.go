package director

import "time"

// WideReason names why the wide-shot policy fired.
type WideReason string

const (
	ReasonNone         WideReason = ""
	ReasonAudioFail    WideReason = "audio_fail"
	ReasonMultiSpeaker WideReason = "multi_speaker"
	ReasonSilence      WideReason = "silence"
	ReasonInterval     WideReason = "interval"
)

// widePolicy decides whether external conditions demand a forced wide
// cut and why (spec.md §4.d). Checks run cooldown first, then
// multi_speaker, silence, interval in that fixed order; the first
// matching enabled rule wins.
type widePolicy struct {
	opts             WideOptions
	lastWide         time.Time // zero value = "long ago", never fired
	lastIntervalWide time.Time
}

func newWidePolicy(opts WideOptions) *widePolicy {
	return &widePolicy{opts: opts}
}

// evaluate returns (shouldWide, reason) for the given active mic list and
// silence duration. On a firing rule it updates lastWide (all rules) and,
// for interval, lastIntervalWide too.
func (p *widePolicy) evaluate(now time.Time, active []string, silence time.Duration) (bool, WideReason) {
	if !p.lastWide.IsZero() && now.Sub(p.lastWide).Seconds() < p.opts.CooldownS {
		return false, ReasonNone
	}

	if p.opts.MultiSpeaker.Enabled {
		if len(active) >= p.opts.MultiSpeaker.Count {
			p.lastWide = now
			return true, ReasonMultiSpeaker
		}
	}

	if p.opts.Silence.Enabled {
		if silence.Seconds() >= p.opts.Silence.TimeS {
			p.lastWide = now
			return true, ReasonSilence
		}
	}

	if p.opts.Interval.Enabled {
		if p.lastIntervalWide.IsZero() || now.Sub(p.lastIntervalWide).Seconds() >= p.opts.Interval.EveryS {
			p.lastWide = now
			p.lastIntervalWide = now
			return true, ReasonInterval
		}
	}

	return false, ReasonNone
}

// noteForcedWide records an externally-forced wide (audio_fail) against
// the cooldown clock, matching spec.md §5: "The wide-shot cooldown is
// measured from the most recent forced wide regardless of reason."
func (p *widePolicy) noteForcedWide(now time.Time) {
	p.lastWide = now
}
