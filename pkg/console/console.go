// Package console is a terminal front end for the controller.
//
// Terminals report key presses and auto-repeats but no releases, so a
// movement key is treated as held until no repeat arrives for the hold
// timeout.
package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/teslashibe/go-posedrive/internal/log"
	"github.com/teslashibe/go-posedrive/pkg/control"
)

// DefaultHoldTimeout is longer than the usual initial auto-repeat delay
// (250-500ms) so a held key is not released before its first repeat.
const DefaultHoldTimeout = 600 * time.Millisecond

// Controller is the part of *control.Controller the console drives.
type Controller interface {
	Key(ctx context.Context, code string, pressed bool) error
	Calibrate(ctx context.Context) error
	ToggleDetection(ctx context.Context) error
	SwitchMode(ctx context.Context, m control.Mode) error
	InitEngine(ctx context.Context) error
	Status() control.Status
}

// terminal key names to physical key codes
var movementKeys = map[string]string{
	"up":    "ArrowUp",
	"down":  "ArrowDown",
	"left":  "ArrowLeft",
	"right": "ArrowRight",
	"w":     "KeyW",
	"a":     "KeyA",
	"s":     "KeyS",
	"d":     "KeyD",
}

// StatusMsg carries a controller snapshot into the model.
type StatusMsg control.Status

// releaseMsg ends a hold unless a repeat arrived since it was scheduled.
type releaseMsg struct {
	code string
	seq  int
}

// resultMsg reports a finished action.
type resultMsg struct {
	action string
	err    error
}

// Model is the bubbletea model.
type Model struct {
	ctx    context.Context
	ctrl   Controller
	sink   *Sink
	hold   time.Duration
	held   map[string]int
	seq    int
	status control.Status

	lastAction string
	lastErr    error
	busy       bool
}

// New creates a console model. sink may be nil, in which case the status is
// only read after actions.
func New(ctx context.Context, ctrl Controller, sink *Sink, hold time.Duration) Model {
	if hold <= 0 {
		hold = DefaultHoldTimeout
	}
	return Model{
		ctx:    ctx,
		ctrl:   ctrl,
		sink:   sink,
		hold:   hold,
		held:   make(map[string]int),
		status: ctrl.Status(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.waitStatus()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case releaseMsg:
		if m.held[msg.code] == msg.seq {
			delete(m.held, msg.code)
			m.key(msg.code, false)
		}

	case StatusMsg:
		m.status = control.Status(msg)
		return m, m.waitStatus()

	case resultMsg:
		m.busy = false
		m.lastAction = msg.action
		m.lastErr = msg.err
		m.status = m.ctrl.Status()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	name := msg.String()
	if code, ok := movementKeys[name]; ok {
		m.seq++
		if _, held := m.held[code]; !held {
			m.key(code, true)
		}
		m.held[code] = m.seq
		return m, m.releaseAfter(code, m.seq)
	}

	switch name {
	case "q", "ctrl+c":
		m.releaseAll()
		return m, tea.Quit
	case "c":
		return m.run("calibrate", m.ctrl.Calibrate)
	case "t":
		return m.run("toggle detection", m.ctrl.ToggleDetection)
	case "i":
		return m.run("init engine", m.ctrl.InitEngine)
	case "m":
		next := control.ModePose
		if m.status.Mode == control.ModePose.String() {
			next = control.ModeKeyboard
		}
		m.releaseAll()
		return m.run("switch to "+next.String(), func(ctx context.Context) error {
			return m.ctrl.SwitchMode(ctx, next)
		})
	}
	return m, nil
}

// key forwards a transition synchronously so presses and releases keep
// their order.
func (m Model) key(code string, pressed bool) {
	if err := m.ctrl.Key(m.ctx, code, pressed); err != nil {
		log.Debug("console key dropped", "code", code, "error", err)
	}
}

func (m Model) releaseAll() {
	for code := range m.held {
		m.key(code, false)
		delete(m.held, code)
	}
}

func (m Model) releaseAfter(code string, seq int) tea.Cmd {
	return tea.Tick(m.hold, func(time.Time) tea.Msg {
		return releaseMsg{code: code, seq: seq}
	})
}

// run executes an action off the update loop.
func (m Model) run(name string, fn func(context.Context) error) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	m.busy = true
	m.lastAction = name + "..."
	m.lastErr = nil
	ctx := m.ctx
	return m, func() tea.Msg {
		return resultMsg{action: name, err: fn(ctx)}
	}
}

func (m Model) waitStatus() tea.Cmd {
	if m.sink == nil {
		return nil
	}
	ch := m.sink.ch
	return func() tea.Msg {
		return StatusMsg(<-ch)
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	st := m.status

	b.WriteString("posedrive\n")
	b.WriteString("=========\n\n")

	fmt.Fprintf(&b, "Mode:        %s\n", st.Mode)
	engine := st.Engine
	if st.Engine == "initializing" {
		engine = fmt.Sprintf("%s (%.0f%%)", st.Engine, st.EngineProgress*100)
	}
	fmt.Fprintf(&b, "Engine:      %s\n", engine)
	if st.EngineError != "" {
		fmt.Fprintf(&b, "Engine err:  %s\n", st.EngineError)
	}
	fmt.Fprintf(&b, "Calibration: %s\n", st.Calibration)
	detecting := "off"
	if st.Detecting {
		detecting = fmt.Sprintf("on (%.0f fps)", st.FPS)
	}
	fmt.Fprintf(&b, "Detection:   %s\n", detecting)
	fmt.Fprintf(&b, "Direction:   %s\n", st.Direction)
	fmt.Fprintf(&b, "Sent:        %d  skipped %d  dropped %d  errors %d\n",
		st.Dispatch.Sent, st.Dispatch.Skipped, st.Dispatch.Dropped, st.Dispatch.Errors)

	if m.lastAction != "" {
		b.WriteString("\n")
		if m.lastErr != nil {
			fmt.Fprintf(&b, "%s: %v\n", m.lastAction, m.lastErr)
		} else {
			fmt.Fprintf(&b, "%s: ok\n", m.lastAction)
		}
	} else if st.LastError != "" {
		fmt.Fprintf(&b, "\nlast error: %s\n", st.LastError)
	}

	b.WriteString("\n(arrows/WASD move, c calibrate, t detection, m mode, i engine, q quit)")
	return b.String()
}

// Status returns the snapshot the model last saw.
func (m Model) Status() control.Status {
	return m.status
}

// Held reports whether a movement key code is currently held.
func (m Model) Held(code string) bool {
	_, ok := m.held[code]
	return ok
}

// Run shows the console until the user quits or ctx is cancelled.
func Run(ctx context.Context, ctrl Controller, sink *Sink, hold time.Duration) error {
	p := tea.NewProgram(New(ctx, ctrl, sink, hold), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
