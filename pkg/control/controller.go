// Package control owns the motion pipeline. A single goroutine receives key
// events, pose frames and user actions, and is the only writer of the
// aggregator, calibrator, processor and dispatcher.
package control

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-posedrive/internal/log"
	"github.com/teslashibe/go-posedrive/pkg/engine"
	"github.com/teslashibe/go-posedrive/pkg/input"
	"github.com/teslashibe/go-posedrive/pkg/movement"
	"github.com/teslashibe/go-posedrive/pkg/tracking"
)

// Action errors.
var (
	ErrNoCamera           = errors.New("control: no camera configured")
	ErrNotCalibrated      = errors.New("control: calibrate before starting detection")
	ErrNotPoseMode        = errors.New("control: detection requires pose mode")
	ErrCalibrationTimeout = errors.New("control: no usable frame for calibration")
)

// DefaultCalibrationTimeout bounds how long a calibration waits for a frame.
const DefaultCalibrationTimeout = 5 * time.Second

// FrameLoop produces pose results. *tracking.Loop implements it.
type FrameLoop interface {
	Run(ctx context.Context, out chan<- tracking.PoseResult)
	Sample(ctx context.Context) (tracking.PoseResult, error)
	SetMaxFPS(fps float64)
	MaxFPS() float64
}

// Gate is the engine readiness gate. *engine.Gate implements it.
type Gate interface {
	Request() bool
	Ready() bool
	State() engine.State
	Progress() float64
	LastError() string
	Changed() <-chan struct{}
}

// Options configures a Controller.
type Options struct {
	Tracking           tracking.Config
	Mode               Mode
	CalibrationTimeout time.Duration
}

// KeyEvent is one physical key transition.
type KeyEvent struct {
	Code    string `json:"code"`
	Pressed bool   `json:"pressed"`
}

type actionKind int

const (
	actCalibrate actionKind = iota
	actToggleDetection
	actSwitchMode
	actInitEngine
	actSetTuning
)

type action struct {
	kind   actionKind
	mode   Mode
	tuning Tuning
	reply  chan error
}

type reply struct {
	ch  chan error
	err error
}

type sample struct {
	result tracking.PoseResult
	err    error
}

// Controller routes input to the dispatcher according to the active mode.
type Controller struct {
	opts Options

	gate       Gate
	dispatcher *movement.Dispatcher
	loop       FrameLoop

	keys    chan KeyEvent
	actions chan action
	samples chan sample

	// Owned by the Run goroutine
	aggregator *input.Aggregator
	calibrator *tracking.Calibrator
	processor  *tracking.Processor
	mode       Mode
	detecting  bool
	stopLoop   context.CancelFunc
	poses      chan tracking.PoseResult
	sampling   bool
	calibWait  []chan error
	replies    []reply
	calibTimer <-chan time.Time
	stats      tracking.Stats
	lastErr    string

	sinks  []StatusSink
	status atomic.Pointer[Status]
}

// New creates a controller. loop may be nil when no camera is available;
// pose actions then fail with ErrNoCamera.
func New(opts Options, gate Gate, dispatcher *movement.Dispatcher, loop FrameLoop) *Controller {
	if opts.CalibrationTimeout <= 0 {
		opts.CalibrationTimeout = DefaultCalibrationTimeout
	}
	c := &Controller{
		opts:       opts,
		gate:       gate,
		dispatcher: dispatcher,
		loop:       loop,
		keys:       make(chan KeyEvent, 64),
		actions:    make(chan action, 8),
		samples:    make(chan sample, 1),
		aggregator: input.NewAggregator(),
		calibrator: tracking.NewCalibrator(opts.Tracking.CalibrationMinScore),
		processor:  tracking.NewProcessor(opts.Tracking),
		mode:       opts.Mode,
	}
	st := c.snapshot()
	c.status.Store(&st)
	return c
}

// AddSink registers a status sink. Call before Run.
func (c *Controller) AddSink(s StatusSink) {
	c.sinks = append(c.sinks, s)
}

// Status returns the latest published snapshot. Safe from any goroutine.
func (c *Controller) Status() Status {
	return *c.status.Load()
}

// Key queues a key transition. Every key counts as user interaction for
// the engine gate; only movement keys change the direction.
func (c *Controller) Key(ctx context.Context, code string, pressed bool) error {
	select {
	case c.keys <- KeyEvent{Code: code, Pressed: pressed}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Calibrate captures the next usable frame as the neutral pose. It returns
// once the capture succeeded or failed.
func (c *Controller) Calibrate(ctx context.Context) error {
	return c.do(ctx, action{kind: actCalibrate})
}

// ToggleDetection starts or stops the pose frame loop.
func (c *Controller) ToggleDetection(ctx context.Context) error {
	return c.do(ctx, action{kind: actToggleDetection})
}

// SwitchMode changes the active input source. The character is always
// stopped, even when m is already active.
func (c *Controller) SwitchMode(ctx context.Context, m Mode) error {
	return c.do(ctx, action{kind: actSwitchMode, mode: m})
}

// InitEngine asks the engine to start loading.
func (c *Controller) InitEngine(ctx context.Context) error {
	return c.do(ctx, action{kind: actInitEngine})
}

// SetTuning applies the non-zero fields of t.
func (c *Controller) SetTuning(ctx context.Context, t Tuning) error {
	return c.do(ctx, action{kind: actSetTuning, tuning: t})
}

func (c *Controller) do(ctx context.Context, a action) error {
	a.reply = make(chan error, 1)
	select {
	case c.actions <- a:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-a.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	log.Info("controller started", "mode", c.mode)
	defer c.stopDetection()

	for {
		select {
		case <-ctx.Done():
			log.Info("controller stopped")
			return

		case ev := <-c.keys:
			c.handleKey(ev)

		case res := <-c.poses:
			c.handlePose(res)

		case s := <-c.samples:
			c.sampling = false
			if c.calibrator.State() != tracking.Calibrating {
				break
			}
			if s.err != nil {
				log.Warn("calibration frame failed", "error", s.err)
				c.finishCalibration(s.err)
			} else {
				c.calibrate(ctx, s.result)
			}

		case <-c.calibTimer:
			log.Warn("calibration timed out")
			c.finishCalibration(ErrCalibrationTimeout)

		case a := <-c.actions:
			if err := c.handleAction(ctx, a); err != errPending {
				c.answer(a.reply, err)
			}

		case <-c.gate.Changed():
		}

		// Publish before answering so callers observe their own change.
		c.publish()
		for _, r := range c.replies {
			r.ch <- r.err
		}
		c.replies = c.replies[:0]
	}
}

func (c *Controller) answer(ch chan error, err error) {
	c.replies = append(c.replies, reply{ch: ch, err: err})
}

// errPending marks an action whose reply is sent later.
var errPending = errors.New("pending")

func (c *Controller) handleAction(ctx context.Context, a action) error {
	c.gate.Request()

	switch a.kind {
	case actCalibrate:
		if c.loop == nil {
			return ErrNoCamera
		}
		c.calibWait = append(c.calibWait, a.reply)
		if c.calibrator.State() != tracking.Calibrating {
			c.calibrator.Begin()
			c.calibTimer = time.After(c.opts.CalibrationTimeout)
			log.Info("calibration requested")
		}
		if !c.detecting && !c.sampling {
			c.sample(ctx)
		}
		return errPending

	case actToggleDetection:
		if c.detecting {
			c.stopDetection()
			c.dispatcher.Stop()
			return nil
		}
		if c.loop == nil {
			return ErrNoCamera
		}
		if c.mode != ModePose {
			return ErrNotPoseMode
		}
		if _, ok := c.calibrator.Reference(); !ok {
			return ErrNotCalibrated
		}
		c.startDetection(ctx)
		return nil

	case actSwitchMode:
		c.switchMode(a.mode)
		return nil

	case actInitEngine:
		return nil

	case actSetTuning:
		return c.applyTuning(a.tuning)
	}
	return nil
}

func (c *Controller) handleKey(ev KeyEvent) {
	c.gate.Request()
	if c.mode != ModeKeyboard {
		return
	}
	if dir, changed := c.aggregator.SetKey(ev.Code, ev.Pressed); changed {
		c.dispatcher.Submit(dir)
	}
}

func (c *Controller) handlePose(res tracking.PoseResult) {
	if !c.detecting {
		return
	}
	c.stats.Record(res.At, c.opts.Tracking.StatsWindow)

	if c.calibrator.State() == tracking.Calibrating {
		c.capture(res)
		return
	}

	ref, ok := c.calibrator.Reference()
	if !ok {
		return
	}
	if dir, ok := c.processor.Process(res.Landmarks, ref); ok {
		c.dispatcher.Submit(dir)
	}
}

// calibrate captures res and starts detection in pose mode on success.
func (c *Controller) calibrate(ctx context.Context, res tracking.PoseResult) {
	if c.capture(res) && c.mode == ModePose && !c.detecting {
		c.startDetection(ctx)
	}
}

func (c *Controller) capture(res tracking.PoseResult) bool {
	ref, err := c.calibrator.Capture(res.Landmarks)
	if err != nil {
		log.Warn("calibration failed", "error", err)
		c.finishCalibration(err)
		return false
	}
	c.processor.Calibrated()
	log.Info("calibrated",
		"shoulder_width", ref.ShoulderWidth,
		"nose_x", ref.NosePosition.X,
		"nose_y", ref.NosePosition.Y)
	c.finishCalibration(nil)
	return true
}

// finishCalibration answers every waiting Calibrate call.
func (c *Controller) finishCalibration(err error) {
	if err != nil {
		c.calibrator.Cancel()
		c.lastErr = err.Error()
	} else {
		c.lastErr = ""
	}
	c.calibTimer = nil
	for _, ch := range c.calibWait {
		c.answer(ch, err)
	}
	c.calibWait = nil
}

// sample estimates one frame off the Run goroutine.
func (c *Controller) sample(ctx context.Context) {
	c.sampling = true
	go func() {
		res, err := c.loop.Sample(ctx)
		select {
		case c.samples <- sample{result: res, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (c *Controller) startDetection(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	c.stopLoop = cancel
	// Each run gets its own channel so frames from a stopped loop are never read.
	c.poses = make(chan tracking.PoseResult)
	c.detecting = true
	c.stats = tracking.Stats{}
	go c.loop.Run(loopCtx, c.poses)
	log.Info("detection started", "max_fps", c.loop.MaxFPS())
}

func (c *Controller) stopDetection() {
	if !c.detecting {
		return
	}
	c.stopLoop()
	c.stopLoop = nil
	c.poses = nil
	c.detecting = false
	c.stats.FPS = 0
	log.Info("detection stopped")
}

func (c *Controller) switchMode(m Mode) {
	if m != ModePose {
		c.stopDetection()
	}
	c.aggregator.Reset()
	if c.mode != m {
		log.Info("mode switched", "from", c.mode, "to", m)
	}
	c.mode = m
	c.dispatcher.Stop()
}

func (c *Controller) applyTuning(t Tuning) error {
	if t.Encoder != "" {
		enc, err := engine.EncoderByName(t.Encoder)
		if err != nil {
			return err
		}
		c.dispatcher.SetEncoder(enc)
	}
	c.processor.SetTuning(t.TuningParams)
	if t.MaxFPS > 0 && c.loop != nil {
		c.loop.SetMaxFPS(t.MaxFPS)
	}
	if t.DeltaThreshold > 0 {
		c.dispatcher.SetThreshold(t.DeltaThreshold)
	}
	log.Info("tuning updated", "tuning", c.tuning())
	return nil
}

func (c *Controller) tuning() Tuning {
	t := Tuning{
		TuningParams:   c.processor.Tuning(),
		DeltaThreshold: c.dispatcher.Threshold(),
		Encoder:        c.dispatcher.Encoder().Name(),
	}
	if c.loop != nil {
		t.MaxFPS = c.loop.MaxFPS()
	}
	return t
}

func (c *Controller) snapshot() Status {
	ref, _ := c.calibrator.Reference()
	return Status{
		Mode:           c.mode.String(),
		Detecting:      c.detecting,
		Calibration:    c.calibrator.State().String(),
		Reference:      ref,
		Engine:         c.gate.State().String(),
		EngineProgress: c.gate.Progress(),
		EngineError:    c.gate.LastError(),
		Keys:           c.aggregator.States(),
		Direction:      c.dispatcher.Last(),
		FPS:            c.stats.FPS,
		Dispatch:       c.dispatcher.Stats(),
		Tuning:         c.tuning(),
		LastError:      c.lastErr,
	}
}

// publish stores and fans out the snapshot when it changed.
func (c *Controller) publish() {
	st := c.snapshot()
	if prev := c.status.Load(); prev != nil && *prev == st {
		return
	}
	c.status.Store(&st)
	for _, s := range c.sinks {
		s.PublishStatus(st)
	}
}
