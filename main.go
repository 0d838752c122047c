package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"audioroute/cmd"
	"audioroute/internal/audio"
	"audioroute/internal/config"
	applog "audioroute/internal/log"
	"audioroute/internal/platform"
	"audioroute/internal/platform/sim"
	"audioroute/internal/transport"
	"audioroute/internal/transport/udp"
	"audioroute/internal/tui"
	"audioroute/pkg/build"
)

// main is the entry point for the audio routing daemon.
// The program flow is divided into three phases:
//
// 1. Startup Phase:
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands (list, simulate) if requested
//
// 2. Running Phase:
//   - Open the host platform and start the routing engine
//   - Publish snapshots to the configured transports
//   - Run the device picker or wait for a signal
//
// 3. Shutdown Phase:
//   - Stop the engine, restoring the saved audio session
//   - Close transports and platform connections
func main() {
	// ==================== STARTUP PHASE ====================

	if err := build.Initialize(); err != nil {
		// Development builds carry no ldflags.
		applog.Debugf("Build info: %v", err)
	}

	options, err := cmd.ParseArgs()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if options.Command == "" {
		return // help or version was printed
	}

	cfg, err := config.LoadConfig(options.ConfigPath)
	if err != nil {
		applog.Fatalf("Configuration: %v", err)
	}
	if options.TUI {
		cfg.TUI.Enabled = true
	}
	closeLog, err := setupLogging(cfg, options.Verbose)
	if err != nil {
		applog.Fatalf("Logging: %v", err)
	}
	defer closeLog()

	applog.Debugf("Starting %s", build.GetBuildFlags())

	switch options.Command {
	case cmd.CommandList:
		err = listDevices(cfg, os.Stdout)
	case cmd.CommandSimulate:
		err = simulate(options.Scenario, os.Stdout)
	default:
		err = run(cfg, options.Activate)
	}
	if err != nil {
		applog.Fatalf("%v", err)
	}
}

// setupLogging applies the configured level, format and destination. The
// returned function closes the log file, if any.
func setupLogging(cfg *config.Config, verbose bool) (func(), error) {
	level := cfg.Level()
	if verbose {
		level = applog.LevelDebug
	}
	applog.SetLevel(level)
	if err := applog.SetFormat(cfg.LogFormat); err != nil {
		return nil, err
	}

	switch {
	case cfg.LogFile != "":
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		applog.SetOutput(f)
		return func() { f.Close() }, nil
	case cfg.TUI.Enabled:
		// Log lines would tear the full-screen picker.
		applog.SetOutput(io.Discard)
	}
	return func() {}, nil
}

// listDevices prints the PortAudio outputs and the audio server's sinks.
func listDevices(cfg *config.Config, w io.Writer) error {
	if err := platform.Initialize(); err != nil {
		return err
	}
	defer platform.Terminate()

	outputs, err := platform.OutputDevices()
	if err != nil {
		return err
	}
	platform.ListOutputs(w, outputs)

	host, err := platform.Open(cfg)
	if err != nil {
		fmt.Fprintf(w, "\nAudio server unavailable: %v\n", err)
		return nil
	}
	defer host.Close()

	sinks, err := host.Sinks()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\nAudio server sinks:")
	for _, name := range sinks {
		fmt.Fprintf(w, "  %s\n", name)
	}

	// A started engine reports the inventory without touching the session.
	engine := audio.NewEngine(host)
	defer engine.Close()
	if err := engine.Start(nil); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nRoutes: %s\n", formatSnapshot(engine.Snapshot()))
	return nil
}

// simulate replays a scenario against simulated hardware and prints the
// snapshot after every step.
func simulate(path string, w io.Writer) error {
	sc, err := sim.LoadScenario(path)
	if err != nil {
		return err
	}
	p := sc.Platform()
	engine := audio.NewEngine(p)
	defer engine.Close()

	listener := func(s audio.Snapshot) {
		applog.Debugf("Snapshot: %s", formatSnapshot(s))
	}
	fmt.Fprintf(w, "Scenario %s\n", sc.Name)
	report := func(step sim.Step, s audio.Snapshot) {
		fmt.Fprintf(w, "  %-32s %s\n", step, formatSnapshot(s))
	}
	if err := sc.Run(engine, p, listener, report); err != nil {
		return err
	}
	if err := engine.Close(); err != nil {
		return err
	}
	session := p.Session()
	fmt.Fprintf(w, "Session after close: mode=%s mute=%t speaker=%t\n",
		session.Mode, session.MicrophoneMuted, session.SpeakerphoneOn)
	return nil
}

func formatSnapshot(s audio.Snapshot) string {
	names := make([]string, len(s.Devices))
	for i, d := range s.Devices {
		names[i] = d.String()
	}
	selected := "none"
	if s.Selected != nil {
		selected = s.Selected.String()
		if s.UserSelected != nil {
			selected += "*"
		}
	}
	return fmt.Sprintf("state=%s selected=%s devices=[%s]", s.State, selected, strings.Join(names, " "))
}

// run is the daemon: it routes until a signal arrives or the picker quits.
func run(cfg *config.Config, activate bool) error {
	// ==================== RUNNING PHASE ====================

	host, err := platform.Open(cfg)
	if err != nil {
		return err
	}
	defer host.Close()

	engine := audio.NewEngine(host)
	defer engine.Close()

	out, err := openTransports(cfg, engine)
	if err != nil {
		return err
	}
	defer out.Close()
	publisher := transport.NewPublisher(out)

	var picker *tui.Program
	if cfg.TUI.Enabled {
		picker = tui.NewProgram(engine)
	}

	err = engine.Start(func(s audio.Snapshot) {
		publisher.Publish(s)
		if picker != nil {
			picker.Publish(s)
		}
	})
	if err != nil {
		return err
	}
	applog.WithFields(applog.Fields{
		"session": publisher.Session().String(),
	}).Info("Routing engine started")

	if activate {
		if err := engine.Activate(); err != nil {
			return err
		}
	}

	if picker != nil {
		if _, err := picker.Run(); err != nil {
			return fmt.Errorf("device picker: %w", err)
		}
	} else {
		done := make(chan os.Signal, 1)
		signal.Notify(done, os.Interrupt, syscall.SIGTERM)
		sig := <-done
		applog.Infof("Received %s, shutting down", sig)
	}

	// ==================== SHUTDOWN PHASE ====================

	// Closing the engine first restores the session and drains listeners
	// before the transports go away.
	return engine.Close()
}

// openTransports builds the configured snapshot transports. Snapshots are
// always logged unless the picker owns the terminal.
func openTransports(cfg *config.Config, sel transport.Selector) (transport.Fanout, error) {
	var out transport.Fanout
	if !cfg.TUI.Enabled || cfg.LogFile != "" {
		out = append(out, transport.NewLoggingTransport())
	}

	if cfg.Transport.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddr, sel)
		if err != nil {
			out.Close()
			return nil, err
		}
		out = append(out, ws)
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			out.Close()
			return nil, err
		}
		pub, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender)
		if err != nil {
			sender.Close()
			out.Close()
			return nil, err
		}
		pub.Start()
		out = append(out, pub)
	}
	return out, nil
}
