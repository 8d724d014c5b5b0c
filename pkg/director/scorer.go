package director

// scorer turns a level snapshot into per-microphone scores, an active
// set, and a dominant pick (spec.md §4.b). It holds no state of its own —
// every call is a pure function of the mic configuration and the
// snapshot.
type scorer struct {
	mics []MicConfig
}

func newScorer(mics []MicConfig) *scorer {
	return &scorer{mics: mics}
}

// scoreResult is the scorer's per-tick output.
type scoreResult struct {
	anyActive bool
	dominant  string // mic id, "" if none
	scores    map[string]float64
	active    []string
	dominance float64
}

// evaluate scores every enabled mic against the snapshot. Ties for the
// highest score are broken by configuration order — the first mic at the
// max score wins, matching spec.md §4.b ("ties broken by configuration
// order, first wins").
func (s *scorer) evaluate(levels LevelSnapshot) scoreResult {
	scores := make(map[string]float64, len(s.mics))
	var active []string

	for _, mic := range s.mics {
		if !mic.Enabled {
			continue
		}

		level := levels.Get(mic.InputChannel)
		if level > mic.ThresholdDB {
			active = append(active, mic.ID)
			scores[mic.ID] = (level - mic.ThresholdDB) * mic.Weight
		} else {
			scores[mic.ID] = 0
		}
	}

	dominant := ""
	dominance := 0.0
	// Iterate in configuration order so equal-score ties resolve to the
	// first-configured mic, not map iteration order.
	for _, mic := range s.mics {
		if !mic.Enabled {
			continue
		}
		sc := scores[mic.ID]
		if sc > dominance {
			dominant = mic.ID
			dominance = sc
		}
	}
	if dominance <= 0 {
		dominant = ""
		dominance = 0
	}

	return scoreResult{
		anyActive: len(active) > 0,
		dominant:  dominant,
		scores:    scores,
		active:    active,
		dominance: dominance,
	}
}
