package player

// State is the transport state of the engine.
type State int

const (
	Idle State = iota
	Paused
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Paused:
		return "paused"
	case Playing:
		return "playing"
	default:
		return "unknown"
	}
}

// RepeatMode decides what happens when a track ends on its own.
type RepeatMode int

const (
	NoRepeat RepeatMode = iota
	Repeat
)

// InputKind names what drives a transition.
type InputKind int

const (
	InputPlay InputKind = iota
	InputPause
	InputNext
	InputPrevious
	InputSeek
	InputEnded
	InputNonEmpty
	InputEmpty
)

// Input is one event fed to Step, with the context the handlers decide on.
type Input struct {
	Kind InputKind
	// Position is the current track position in seconds. Previous rewinds
	// instead of stepping back when it is above Threshold.
	Position  float64
	Threshold float64
	// Seconds is the seek target.
	Seconds float64
	Repeat  RepeatMode
}

// EffectKind names a side effect the engine performs after a transition.
type EffectKind int

const (
	EmitPlaying EffectKind = iota
	EmitPausing
	EmitIdling
	EmitTime
	SyncSource
	SyncPosition
	StartOutput
	HaltOutput
	StartSampler
	StopSampler
	Advance
	SetPosition
)

var effectNames = map[EffectKind]string{
	EmitPlaying:  "emit-playing",
	EmitPausing:  "emit-pausing",
	EmitIdling:   "emit-idling",
	EmitTime:     "emit-time",
	SyncSource:   "sync-source",
	SyncPosition: "sync-position",
	StartOutput:  "start-output",
	HaltOutput:   "halt-output",
	StartSampler: "start-sampler",
	StopSampler:  "stop-sampler",
	Advance:      "advance",
	SetPosition:  "set-position",
}

func (k EffectKind) String() string {
	if name, ok := effectNames[k]; ok {
		return name
	}
	return "unknown"
}

// Effect is a single side effect. Offset applies to Advance, Seconds to SetPosition.
type Effect struct {
	Kind    EffectKind
	Offset  int
	Seconds float64
}

// Step computes the next state and the effects to run, in order. It has no
// side effects. Cleanup lives in the entry effects of the target state, so
// leaving Playing through any path stops the sampler.
func Step(s State, in Input) (State, []Effect) {
	if in.Kind == InputEnded {
		in.Kind = InputNext
		if in.Repeat == Repeat {
			in.Kind = InputPrevious
		}
	}

	switch s {
	case Idle:
		if in.Kind == InputNonEmpty {
			return Paused, enter(Paused)
		}
		return Idle, nil

	case Paused:
		switch in.Kind {
		case InputPlay:
			return Playing, enter(Playing)
		case InputNext:
			return Paused, []Effect{{Kind: Advance, Offset: 1}, {Kind: SyncSource}}
		case InputPrevious:
			return Paused, append(previous(in), Effect{Kind: SyncSource})
		case InputSeek:
			return Paused, seek(in)
		case InputEmpty:
			return Idle, enter(Idle)
		}
		return Paused, nil

	case Playing:
		switch in.Kind {
		case InputPlay, InputPause:
			return Paused, enter(Paused)
		case InputNext:
			return Playing, resume(Effect{Kind: Advance, Offset: 1})
		case InputPrevious:
			return Playing, resume(previous(in)...)
		case InputSeek:
			return Playing, resume(seek(in)...)
		case InputEmpty:
			return Idle, enter(Idle)
		}
		return Playing, nil
	}
	return s, nil
}

func enter(s State) []Effect {
	switch s {
	case Idle:
		return []Effect{{Kind: StopSampler}, {Kind: HaltOutput}, {Kind: EmitIdling}}
	case Paused:
		return []Effect{{Kind: EmitPausing}, {Kind: StopSampler}, {Kind: HaltOutput}, {Kind: SyncSource}}
	case Playing:
		return []Effect{{Kind: EmitPlaying}, {Kind: SyncSource}, {Kind: SyncPosition}, {Kind: StartOutput}, {Kind: StartSampler}}
	}
	return nil
}

// resume wraps effects in a pause and a resume, the way Playing handles
// everything that moves the cursor.
func resume(effects ...Effect) []Effect {
	out := enter(Paused)
	out = append(out, effects...)
	return append(out, enter(Playing)...)
}

func previous(in Input) []Effect {
	if in.Position > in.Threshold {
		return []Effect{{Kind: SetPosition, Seconds: 0}}
	}
	return []Effect{{Kind: Advance, Offset: -1}}
}

func seek(in Input) []Effect {
	return []Effect{{Kind: SetPosition, Seconds: in.Seconds}, {Kind: EmitTime}}
}
