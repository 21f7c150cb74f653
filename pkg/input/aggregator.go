package input

// Aggregator tracks which movement keys are held and reduces them to a
// Direction. It is exact and instantaneous: no smoothing.
//
// Aggregator is not safe for concurrent use; it is owned by the controller
// loop.
type Aggregator struct {
	states   KeyStates
	current  Direction
	onChange func(Direction)
}

// NewAggregator creates an aggregator with every key released.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// OnChange sets the handler invoked when the direction changes.
// It is edge-triggered: repeated identical directions are not reported.
func (a *Aggregator) OnChange(fn func(Direction)) {
	a.onChange = fn
}

// SetKey updates one key from a physical key code and recomputes the
// direction. Unrecognized codes are ignored. Returns the current direction
// and whether it changed.
func (a *Aggregator) SetKey(code string, pressed bool) (Direction, bool) {
	k, ok := ParseKey(code)
	if !ok {
		return a.current, false
	}
	return a.Set(k, pressed)
}

// Set updates one logical key and recomputes the direction.
func (a *Aggregator) Set(k Key, pressed bool) (Direction, bool) {
	if k < 0 || k >= NumKeys {
		return a.current, false
	}
	a.states[k] = pressed
	return a.recompute()
}

// Reset releases every key.
func (a *Aggregator) Reset() (Direction, bool) {
	a.states = KeyStates{}
	return a.recompute()
}

// Direction returns the current direction.
func (a *Aggregator) Direction() Direction {
	return a.current
}

// States returns a copy of the key states.
func (a *Aggregator) States() KeyStates {
	return a.states
}

func (a *Aggregator) recompute() (Direction, bool) {
	next := a.states.Direction()
	if next.Equal(a.current) {
		return a.current, false
	}
	a.current = next
	if a.onChange != nil {
		a.onChange(next)
	}
	return next, true
}
