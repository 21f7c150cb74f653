package input

import jsoniter "github.com/json-iterator/go"

// Key identifies one of the eight logical movement keys.
type Key int

// Logical keys, two per direction (arrow and letter).
const (
	ArrowUp Key = iota
	ArrowDown
	ArrowLeft
	ArrowRight
	KeyW
	KeyA
	KeyS
	KeyD
	NumKeys
)

// keyCodes maps physical key codes (KeyboardEvent.code) to logical keys.
var keyCodes = map[string]Key{
	"ArrowUp":    ArrowUp,
	"ArrowDown":  ArrowDown,
	"ArrowLeft":  ArrowLeft,
	"ArrowRight": ArrowRight,
	"KeyW":       KeyW,
	"KeyA":       KeyA,
	"KeyS":       KeyS,
	"KeyD":       KeyD,
}

var keyNames = [NumKeys]string{
	ArrowUp:    "ArrowUp",
	ArrowDown:  "ArrowDown",
	ArrowLeft:  "ArrowLeft",
	ArrowRight: "ArrowRight",
	KeyW:       "KeyW",
	KeyA:       "KeyA",
	KeyS:       "KeyS",
	KeyD:       "KeyD",
}

// ParseKey resolves a physical key code. Unknown codes return false.
func ParseKey(code string) (Key, bool) {
	k, ok := keyCodes[code]
	return k, ok
}

// String returns the physical key code for k.
func (k Key) String() string {
	if k < 0 || k >= NumKeys {
		return "Unknown"
	}
	return keyNames[k]
}

// KeyStates holds the pressed state of every logical key.
type KeyStates [NumKeys]bool

// Pressed reports whether k is held.
func (s KeyStates) Pressed(k Key) bool {
	if k < 0 || k >= NumKeys {
		return false
	}
	return s[k]
}

// Up reports whether either up key is held. Down, Left and Right follow.
func (s KeyStates) Up() bool    { return s[ArrowUp] || s[KeyW] }
func (s KeyStates) Down() bool  { return s[ArrowDown] || s[KeyS] }
func (s KeyStates) Left() bool  { return s[ArrowLeft] || s[KeyA] }
func (s KeyStates) Right() bool { return s[ArrowRight] || s[KeyD] }

// Map returns the states keyed by physical code (for JSON status).
func (s KeyStates) Map() map[string]bool {
	m := make(map[string]bool, NumKeys)
	for k := Key(0); k < NumKeys; k++ {
		m[k.String()] = s[k]
	}
	return m
}

// MarshalJSON encodes the states as an object keyed by physical code.
func (s KeyStates) MarshalJSON() ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(s.Map())
}

// UnmarshalJSON decodes the object form written by MarshalJSON. Unknown
// codes are ignored.
func (s *KeyStates) UnmarshalJSON(data []byte) error {
	var m map[string]bool
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &m); err != nil {
		return err
	}
	*s = KeyStates{}
	for code, pressed := range m {
		if k, ok := ParseKey(code); ok {
			s[k] = pressed
		}
	}
	return nil
}

// Direction reduces the key states to an integer-valued direction.
// Opposing keys cancel.
func (s KeyStates) Direction() Direction {
	var d Direction
	if s.Right() {
		d.X++
	}
	if s.Left() {
		d.X--
	}
	if s.Up() {
		d.Y++
	}
	if s.Down() {
		d.Y--
	}
	return d
}
