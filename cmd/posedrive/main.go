// posedrive - drive a game character with the keyboard or by leaning in
// front of a camera.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/teslashibe/go-posedrive/internal/config"
	"github.com/teslashibe/go-posedrive/internal/log"
	"github.com/teslashibe/go-posedrive/pkg/bridge"
	"github.com/teslashibe/go-posedrive/pkg/camera"
	"github.com/teslashibe/go-posedrive/pkg/console"
	"github.com/teslashibe/go-posedrive/pkg/control"
	"github.com/teslashibe/go-posedrive/pkg/debug"
	"github.com/teslashibe/go-posedrive/pkg/engine"
	"github.com/teslashibe/go-posedrive/pkg/movement"
	"github.com/teslashibe/go-posedrive/pkg/pose"
	"github.com/teslashibe/go-posedrive/pkg/tracking"
	"github.com/teslashibe/go-posedrive/pkg/web"
)

type options struct {
	cfg        config.Config
	mode       string
	static     string
	noCamera   bool
	useConsole bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	cfg := opts.cfg

	logFile := cfg.LogFile
	if opts.useConsole && logFile == "" {
		logFile = "posedrive.log"
	}
	log.Setup(log.Options{
		Level: cfg.LogLevel,
		File:  logFile,
		JSON:  os.Getenv("GO_ENV") == "production",
		Quiet: opts.useConsole,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		log.Error("posedrive stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg := opts.cfg

	trackCfg, err := tracking.ConfigByName(cfg.TrackingPreset)
	if err != nil {
		return err
	}
	trackCfg.MaxFPS = cfg.MaxFPS
	trackCfg.MirrorX = cfg.MirrorX
	trackCfg.ResetSmoothingOnCalibrate = cfg.ResetSmoothingOnCalibrate

	mode, ok := control.ParseMode(opts.mode)
	if !ok {
		return errors.New("mode must be keyboard or pose")
	}

	// Engine boundary
	gate := engine.NewGate()
	br := bridge.New(gate)
	gate.SetBootstrap(br.Bootstrap)

	enc, err := engine.EncoderByName(cfg.Encoder)
	if err != nil {
		return err
	}
	disp := movement.NewDispatcher(br, enc, gate)
	disp.SetThreshold(cfg.DeltaThreshold)

	// Camera and pose estimation; keyboard control works without them
	var loop control.FrameLoop
	if !opts.noCamera {
		l, closeFn, err := openPipeline(cfg)
		if err != nil {
			log.Warn("pose input unavailable, keyboard only", "error", err)
		} else {
			defer closeFn()
			loop = l
		}
	}

	ctrl := control.New(control.Options{
		Tracking: trackCfg,
		Mode:     mode,
	}, gate, disp, loop)

	srv := web.NewServer(web.Options{Addr: cfg.Addr, StaticDir: opts.static}, ctrl, br)
	ctrl.AddSink(srv)

	var sink *console.Sink
	if opts.useConsole {
		sink = console.NewSink()
		ctrl.AddSink(sink)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go ctrl.Run(ctx)

	errc := make(chan error, 2)
	go func() { errc <- srv.Run(ctx) }()

	log.Info("posedrive started",
		"addr", cfg.Addr,
		"mode", mode,
		"encoder", enc.Name(),
		"pose", loop != nil,
		"preset", cfg.TrackingPreset)

	if opts.useConsole {
		go func() {
			err := console.Run(ctx, ctrl, sink, cfg.HoldTimeout)
			if errors.Is(err, tea.ErrProgramKilled) {
				err = nil
			}
			errc <- err
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errc:
		// The console returning nil means the user quit.
		return err
	}
}

// openPipeline opens the camera and the configured pose backend.
func openPipeline(cfg config.Config) (*tracking.Loop, func(), error) {
	camCfg := camera.DefaultConfig()
	if preset := camera.GetPreset(cfg.CameraPreset); preset != nil {
		camCfg = *preset
	}
	camCfg.Device = cfg.CameraDevice
	if cfg.CameraWidth > 0 && cfg.CameraHeight > 0 {
		camCfg.Width = cfg.CameraWidth
		camCfg.Height = cfg.CameraHeight
	}
	camCfg.Framerate = max(int(cfg.MaxFPS), 1)
	if errs := camCfg.Validate(); len(errs) > 0 {
		return nil, nil, errors.New(errs[0])
	}

	cam, err := camera.Open(camCfg)
	if err != nil {
		return nil, nil, err
	}

	var estimators []pose.Estimator
	switch cfg.PoseBackend {
	case "remote":
		estimators = append(estimators, pose.NewRemoteEstimator(cfg.PoseURL))
	case "http":
		estimators = append(estimators, pose.NewHTTPEstimator(cfg.PoseURL))
	default:
		pcfg := pose.DefaultConfig()
		pcfg.ModelPath = cfg.PoseModel
		mn, err := pose.NewMoveNet(pcfg)
		if err != nil {
			log.Warn("movenet unavailable", "error", err)
		} else {
			estimators = append(estimators, mn)
		}
	}
	if cfg.PoseFallbackURL != "" {
		estimators = append(estimators, pose.NewHTTPEstimator(cfg.PoseFallbackURL))
	}

	est, err := pose.NewChain(estimators...)
	if err != nil {
		cam.Close()
		return nil, nil, err
	}
	log.Info("pose pipeline ready",
		"camera", camCfg.String(),
		"backend", cfg.PoseBackend,
		"estimators", est.Len())

	closeFn := func() {
		est.Close()
		cam.Close()
	}
	return tracking.NewLoop(cam, est, cfg.MaxFPS), closeFn, nil
}

// parseFlags loads the environment configuration and applies flag
// overrides.
func parseFlags() (options, error) {
	cfg, err := config.Load()
	if err != nil {
		return options{}, err
	}
	opts := options{cfg: cfg}

	flag.StringVar(&opts.cfg.Addr, "addr", cfg.Addr, "Listen address for the web API and engine socket")
	flag.StringVar(&opts.cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flag.StringVar(&opts.cfg.Encoder, "encoder", cfg.Encoder, "Engine command shape: vector, axis, discrete")
	flag.StringVar(&opts.cfg.PoseBackend, "pose", cfg.PoseBackend, "Pose backend: movenet, remote, http")
	flag.StringVar(&opts.cfg.PoseURL, "pose-url", cfg.PoseURL, "Pose service URL for the remote and http backends")
	flag.StringVar(&opts.cfg.PoseFallbackURL, "pose-fallback", cfg.PoseFallbackURL, "HTTP pose service used when the backend fails")
	flag.StringVar(&opts.cfg.TrackingPreset, "preset", cfg.TrackingPreset, "Tracking preset: default, responsive, steady")
	flag.IntVar(&opts.cfg.CameraDevice, "camera", cfg.CameraDevice, "Camera device index")
	flag.StringVar(&opts.cfg.CameraPreset, "camera-preset", cfg.CameraPreset, "Camera preset: default, low, 720p")
	flag.BoolVar(&opts.cfg.MirrorX, "mirror", cfg.MirrorX, "Mirror the horizontal pose axis")
	flag.StringVar(&opts.mode, "mode", "keyboard", "Initial mode: keyboard, pose")
	flag.StringVar(&opts.static, "static", "", "Directory served at / (engine page)")
	flag.BoolVar(&opts.noCamera, "no-camera", false, "Keyboard only, do not open the camera")
	flag.BoolVar(&opts.useConsole, "console", false, "Show the terminal console")
	flag.BoolVar(&debug.Enabled, "debug", false, "Enable verbose debug logging")
	flag.BoolVar(&debug.Pose, "debug-pose", false, "Log every pose frame")
	flag.BoolVar(&debug.Dispatch, "debug-dispatch", false, "Log every dispatch decision")
	flag.Parse()

	if debug.Pose || debug.Dispatch {
		debug.Enabled = true
	}
	if debug.Enabled {
		opts.cfg.LogLevel = "debug"
	}
	return opts, opts.cfg.Validate()
}
