package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"hmdlag/internal/frame"
	"hmdlag/internal/simhmd"
	"hmdlag/internal/trace"
)

const version = "0.3.0"

func printVersion() {
	fmt.Printf("hmdlag v%s\n", version)
	fmt.Println("Stereo HMD renderer with operator-controlled tracking and render latency")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  hmdlag [OPTIONS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (defaults are used when omitted)")
	fmt.Println()
	fmt.Println("  -frame-rate int")
	fmt.Printf("        Display refresh rate in Hz (default %d)\n", defaultFrameRate)
	fmt.Println()
	fmt.Println("  -input-device string")
	fmt.Println("        Linux evdev gamepad (e.g. /dev/input/event5); empty means IPC input only")
	fmt.Println()
	fmt.Println("  -stick-deadzone float")
	fmt.Printf("        Thumbstick deadzone (default %.1f)\n", frame.DefaultStickDeadzone)
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultSocketPath)
	fmt.Println()
	fmt.Println("  -http-port int")
	fmt.Printf("        State WebSocket port, 0 disables (default %d)\n", defaultHTTPPort)
	fmt.Println()
	fmt.Println("  -trace-output string")
	fmt.Println("        Write a pose-staleness PNG here on shutdown")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("CONTROLS:")
	fmt.Println("  grip L/R        render lag -/+    index L/R      tracking lag -/+")
	fmt.Println("  right stick     IOD -/+           right click    IOD reset")
	fmt.Println("  left stick      cube scale -/+    left click     cube scale reset")
	fmt.Println("  A               eye render mode   B              freeze mode")
	fmt.Println("  X               scene mode        Y              super rotation")
	fmt.Println("  select / R      recenter          mode / Esc     quit")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  hmdlag -config ~/.config/hmdlag/config.yaml")
	fmt.Println("  hmdlag -input-device /dev/input/event5 -trace-output /tmp/hmdlag.png")
	fmt.Println("  hmdctl tap rthumb")
	fmt.Println()
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath    = flag.String("config", "", "Path to YAML config file")
		frameRate     = flag.Int("frame-rate", defaultFrameRate, "Display refresh rate in Hz")
		inputDevice   = flag.String("input-device", "", "Linux evdev gamepad; empty means IPC input only")
		stickDeadzone = flag.Float64("stick-deadzone", frame.DefaultStickDeadzone, "Thumbstick deadzone")
		ipcSocketPath = flag.String("ipc-socket", defaultSocketPath, "Unix domain socket path for IPC")
		httpPort      = flag.Int("http-port", defaultHTTPPort, "State WebSocket port (0 disables)")
		traceOutput   = flag.String("trace-output", "", "Write a pose-staleness PNG here on shutdown")
		logLevelStr   = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		_             = flag.Bool("version", false, "Print version and exit")
	)
	flag.Usage = printUsage
	flag.Parse()

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags the user actually set override the file.
	var ov FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "frame-rate":
			ov.FrameRate = frameRate
		case "input-device":
			ov.InputDevice = inputDevice
		case "stick-deadzone":
			ov.StickDeadzone = stickDeadzone
		case "ipc-socket":
			ov.IPCSocketPath = ipcSocketPath
		case "http-port":
			ov.HTTPPort = httpPort
		case "trace-output":
			ov.TraceOutput = traceOutput
		case "log-level":
			ov.LogLevel = logLevelStr
		}
	})
	ov.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(logLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("hmdlag stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	session := uuid.NewString()
	logger = logger.With("session", session)

	sim := simhmd.New(cfg.ToSimConfig())
	defer sim.Close()

	var (
		observer frame.Observer
		recorder *trace.Recorder
	)
	if cfg.Trace.Output != "" {
		recorder = trace.NewRecorder(cfg.Trace.Window)
		observer = recorder
	}

	orch, err := frame.New(frame.Config{
		Compositor:    sim,
		Renderer:      simhmd.NewRenderer(0),
		Observer:      observer,
		StickDeadzone: cfg.Input.StickDeadzone,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	events := make(chan Event, 64)
	loopCfg := frameLoopConfig{FrameRate: cfg.Compositor.FrameRate}

	if len(cfg.Input.Devices) > 0 {
		pad := newGamepad(cfg.Input.StickMax, cfg.Input.TriggerMax)
		loopCfg.Pad = pad
		g.Go(func() error {
			return runGamepad(ctx, cfg.Input.Devices, pad, logger)
		})
	}

	g.Go(func() error {
		return runIPCServer(ctx, ExpandPath(cfg.IPC.SocketPath), events, logger)
	})

	if cfg.HTTP.Port > 0 {
		states := make(chan frame.State, 1)
		loopCfg.States = states

		srv := NewServer(logger, events, ServerConfig{Session: session})
		mux := http.NewServeMux()
		srv.Register(mux, cfg.HTTP.WSPath)

		g.Go(func() error {
			srv.Hub().Run(ctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(ctx, srv.Hub(), states, session, logger)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(ctx, cfg.HTTP.Port, mux, logger)
		})
	}

	g.Go(func() error {
		return runFrameLoop(ctx, orch, events, loopCfg, logger)
	})

	logger.Info("hmdlag running",
		"version", version,
		"frame_rate", cfg.Compositor.FrameRate,
		"input_devices", cfg.Input.Devices,
		"ipc", cfg.IPC.SocketPath,
		"http_port", cfg.HTTP.Port)

	err = g.Wait()
	if errors.Is(err, errQuitRequested) {
		err = nil
	}

	if recorder != nil {
		if werr := writeTrace(ExpandPath(cfg.Trace.Output), recorder, session, logger); werr != nil {
			logger.Warn("trace output failed", "error", werr)
		}
	}
	logger.Info("shutting down", "frames", orch.Frame())
	return err
}

func writeTrace(path string, rec *trace.Recorder, session string, logger *slog.Logger) error {
	recs := rec.Records()
	sum, err := trace.Summarize(recs)
	if err != nil {
		return err
	}
	logger.Info("trace summary", "summary", sum.String())

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trace output: %w", err)
	}
	if err := trace.WritePlot(f, recs, "hmdlag "+session); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close trace output: %w", err)
	}
	logger.Info("trace written", "path", path, "frames", len(recs))
	return nil
}
