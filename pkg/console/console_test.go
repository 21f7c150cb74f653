package console

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-posedrive/pkg/control"
)

type event struct {
	code    string
	pressed bool
}

type mockController struct {
	mu      sync.Mutex
	events  []event
	actions []string
	status  control.Status
	err     error
}

func (c *mockController) Key(ctx context.Context, code string, pressed bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event{code, pressed})
	return nil
}

func (c *mockController) act(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = append(c.actions, name)
	return c.err
}

func (c *mockController) Calibrate(ctx context.Context) error       { return c.act("calibrate") }
func (c *mockController) ToggleDetection(ctx context.Context) error { return c.act("toggle") }
func (c *mockController) InitEngine(ctx context.Context) error      { return c.act("init") }

func (c *mockController) SwitchMode(ctx context.Context, m control.Mode) error {
	c.mu.Lock()
	c.status.Mode = m.String()
	c.mu.Unlock()
	return c.act("mode:" + m.String())
}

func (c *mockController) Status() control.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func newModel(c *mockController) Model {
	c.status.Mode = "keyboard"
	return New(context.Background(), c, nil, 50*time.Millisecond)
}

func TestMovementKeyHold(t *testing.T) {
	c := &mockController{}
	m := newModel(c)

	m, first := update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	require.NotNil(t, first)
	assert.True(t, m.Held("ArrowUp"))

	// An auto-repeat does not press again and supersedes the first release.
	m, second := update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, []event{{"ArrowUp", true}}, c.events)

	m, _ = update(t, m, first())
	assert.True(t, m.Held("ArrowUp"), "stale release must be ignored")

	m, _ = update(t, m, second())
	assert.False(t, m.Held("ArrowUp"))
	assert.Equal(t, []event{{"ArrowUp", true}, {"ArrowUp", false}}, c.events)
}

func TestWASD(t *testing.T) {
	c := &mockController{}
	m := newModel(c)

	for _, k := range []string{"w", "a", "s", "d"} {
		m, _ = update(t, m, runes(k))
	}
	assert.Equal(t, []event{
		{"KeyW", true}, {"KeyA", true}, {"KeyS", true}, {"KeyD", true},
	}, c.events)
}

func TestActions(t *testing.T) {
	c := &mockController{}
	m := newModel(c)

	for _, tc := range []struct {
		key    string
		action string
	}{
		{"c", "calibrate"},
		{"t", "toggle"},
		{"i", "init"},
	} {
		var cmd tea.Cmd
		m, cmd = update(t, m, runes(tc.key))
		require.NotNil(t, cmd, tc.key)
		m, _ = update(t, m, cmd())
		assert.Contains(t, m.View(), ": ok")
	}
	assert.Equal(t, []string{"calibrate", "toggle", "init"}, c.actions)
}

func TestActionError(t *testing.T) {
	c := &mockController{err: errors.New("no usable frame")}
	m := newModel(c)

	m, cmd := update(t, m, runes("c"))
	// Busy: a second press is ignored until the first finishes.
	_, again := update(t, m, runes("c"))
	assert.Nil(t, again)

	m, _ = update(t, m, cmd())
	assert.Contains(t, m.View(), "calibrate: no usable frame")
}

func TestSwitchModeReleasesKeys(t *testing.T) {
	c := &mockController{}
	m := newModel(c)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	m, cmd := update(t, m, runes("m"))
	assert.False(t, m.Held("ArrowLeft"))
	assert.Equal(t, []event{{"ArrowLeft", true}, {"ArrowLeft", false}}, c.events)

	m, _ = update(t, m, cmd())
	assert.Equal(t, "pose", m.Status().Mode)
	assert.Equal(t, []string{"mode:pose"}, c.actions)

	// Toggles back.
	m, cmd = update(t, m, runes("m"))
	update(t, m, cmd())
	assert.Equal(t, []string{"mode:pose", "mode:keyboard"}, c.actions)
}

func TestQuit(t *testing.T) {
	c := &mockController{}
	m := newModel(c)

	m, _ = update(t, m, runes("d"))
	_, cmd := update(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, event{"KeyD", false}, c.events[len(c.events)-1])
}

func TestStatusFromSink(t *testing.T) {
	c := &mockController{}
	sink := NewSink()
	m := New(context.Background(), c, sink, 0)

	wait := m.Init()
	require.NotNil(t, wait)

	sink.PublishStatus(control.Status{Mode: "keyboard"})
	sink.PublishStatus(control.Status{Mode: "pose", Engine: "initializing", EngineProgress: 0.5})

	msg := wait()
	m, next := update(t, m, msg)
	assert.NotNil(t, next, "keeps listening")
	assert.Equal(t, "pose", m.Status().Mode, "only the newest snapshot is kept")

	view := m.View()
	assert.Contains(t, view, "initializing (50%)")
	assert.Contains(t, view, "Mode:        pose")
}
