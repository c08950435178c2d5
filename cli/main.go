package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kardianos/service"
	log "github.com/sirupsen/logrus"

	"github.com/zhaobenny/clawtop/cli/internal/config"
	"github.com/zhaobenny/clawtop/cli/internal/monitor"
	"github.com/zhaobenny/clawtop/cli/internal/output"
	"github.com/zhaobenny/clawtop/internal/loader"
	"github.com/zhaobenny/clawtop/internal/model"
	"github.com/zhaobenny/clawtop/internal/pricing"
	"github.com/zhaobenny/clawtop/internal/report"
)

const version = "0.1.0"

func main() {
	// Detect subcommand first
	command := "report"
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "report", "config", "monitor":
			command = args[0]
			args = args[1:]
		}
	}

	switch command {
	case "config":
		runConfig(args)
	case "monitor":
		runMonitor(args)
	default:
		runReport(args)
	}
}

// reportFlags are shared by the report and monitor commands
type reportFlags struct {
	configPath string
	agentsDir  string
	logsDir    string
	limit      int
	days       int
	detail     bool
	workers    int
	preset     string
}

func (f *reportFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "Config file (default ~/.clawtop.yaml)")
	fs.StringVar(&f.agentsDir, "agents-dir", "", "Agents directory (default ~/.openclaw/agents)")
	fs.StringVar(&f.logsDir, "logs-dir", "", "Gateway log directory (default /tmp/openclaw)")
	fs.IntVar(&f.limit, "limit", 20, "Number of sessions to show, 0 for all")
	fs.IntVar(&f.days, "days", 0, "Only sessions active in the last N days, 0 for all time")
	fs.BoolVar(&f.detail, "detail", false, "Inspect transcripts of the top sessions")
	fs.IntVar(&f.workers, "workers", 4, "Concurrent file readers")
	fs.StringVar(&f.preset, "pricing", "", "Pricing preset (e.g. claude-sonnet-4-5, gpt-4o)")
}

// load reads the config file and lets explicitly set flags win over it
func (f *reportFlags) load(fs *flag.FlagSet) (*config.Config, string, error) {
	path := f.configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, "", err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "agents-dir":
			cfg.AgentsDir = f.agentsDir
		case "logs-dir":
			cfg.LogsDir = f.logsDir
		case "limit":
			cfg.Limit = f.limit
		case "days":
			cfg.Days = f.days
		case "detail":
			cfg.Detail = f.detail
		case "workers":
			cfg.Workers = f.workers
		case "pricing":
			cfg.Pricing.Preset = f.preset
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// newBuilder wires the report sources from config
func newBuilder(cfg *config.Config, logger log.FieldLogger) *report.Builder {
	b := &report.Builder{
		Agents:     os.DirFS(cfg.AgentsDir),
		AgentsRoot: cfg.AgentsDir,
		Log:        logger,
	}
	if cfg.LogsDir != "" {
		b.Logs = os.DirFS(cfg.LogsDir)
	}
	return b
}

func reportOptions(cfg *config.Config, p model.Pricing, now time.Time) report.Options {
	return report.Options{
		Since:           cfg.Since(now),
		Pricing:         p,
		Limit:           cfg.Limit,
		Detail:          cfg.Detail,
		DetailSessions:  cfg.DetailSessions,
		GatewayLookback: cfg.GatewayLookback,
		Workers:         cfg.Workers,
	}
}

// monitorOptions ranks every session so alerts are not bounded by the display limit
func monitorOptions(cfg *config.Config, p model.Pricing, now time.Time) report.Options {
	opts := reportOptions(cfg, p, now)
	opts.Limit = 0
	return opts
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func runReport(args []string) {
	fs := flag.NewFlagSet("clawtop", flag.ExitOnError)

	var (
		rf       reportFlags
		jsonOut  bool
		compact  bool
		showHelp bool
		showVer  bool
	)
	rf.register(fs)
	fs.BoolVar(&jsonOut, "json", false, "Output as JSON")
	fs.BoolVar(&compact, "compact", false, "Force compact table output")
	fs.BoolVar(&compact, "c", false, "Force compact table output")
	fs.BoolVar(&showHelp, "help", false, "Show help")
	fs.BoolVar(&showHelp, "h", false, "Show help")
	fs.BoolVar(&showVer, "version", false, "Show version")
	fs.BoolVar(&showVer, "v", false, "Show version")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `clawtop - token usage report for OpenClaw agents

Usage: clawtop [command] [options]

Commands:
  report    Rank sessions by token usage (default)
  config    Show or change settings
  monitor   Run the report periodically as a background service

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  clawtop                        Top 20 sessions across all agents
  clawtop --limit 50 --days 7    Top 50 sessions active this week
  clawtop --detail               Include transcript analysis of the top sessions
  clawtop --json > usage.json
  clawtop config --pricing claude-sonnet-4-5
  clawtop monitor install
`)
	}

	fs.Parse(args)

	if showVer {
		fmt.Printf("clawtop version %s\n", version)
		return
	}

	if showHelp {
		fs.Usage()
		return
	}

	cfg, _, err := rf.load(fs)
	if err != nil {
		fail("%v", err)
	}
	p, err := cfg.PricingModel()
	if err != nil {
		fail("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	usage, err := newBuilder(cfg, log.StandardLogger()).Build(ctx, reportOptions(cfg, p, time.Now()))
	if err != nil {
		var cfgErr *loader.ConfigurationError
		if errors.As(err, &cfgErr) {
			fail("No agents directory found at %s", cfgErr.Root)
		}
		fail("%v", err)
	}

	if jsonOut {
		if err := output.PrintJSON(os.Stdout, usage); err != nil {
			fail("%v", err)
		}
		return
	}
	output.PrintReport(os.Stdout, usage, output.TableOptions{ForceCompact: compact})
}

func runConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	var (
		rf          reportFlags
		show        bool
		input       float64
		outputPrice float64
		interval    time.Duration
		alertTokens int64
		logFile     string
	)
	rf.register(fs)
	fs.BoolVar(&show, "show", false, "Show current configuration")
	fs.Float64Var(&input, "input-price", 0, "Dollars per million input tokens")
	fs.Float64Var(&outputPrice, "output-price", 0, "Dollars per million output tokens")
	fs.DurationVar(&interval, "interval", monitor.DefaultInterval, "Monitor interval (e.g., 1h, 30m)")
	fs.Int64Var(&alertTokens, "alert-tokens", monitor.DefaultAlertTokens, "Monitor alert threshold per session")
	fs.StringVar(&logFile, "log-file", "", "Monitor log file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: clawtop config [options]

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  clawtop config --show
  clawtop config --agents-dir /srv/openclaw/agents --limit 50
  clawtop config --pricing claude-opus-4-5
  clawtop config --input-price 3 --output-price 15
  clawtop config --interval 30m --alert-tokens 250000
`)
	}

	fs.Parse(args)

	cfg, path, err := rf.load(fs)
	if err != nil {
		fail("loading config: %v", err)
	}

	if show {
		printConfig(cfg, path)
		return
	}

	changed := 0
	fs.Visit(func(fl *flag.Flag) {
		changed++
		switch fl.Name {
		case "input-price":
			cfg.Pricing.InputPerMillion = input
			cfg.Pricing.Preset = ""
		case "output-price":
			cfg.Pricing.OutputPerMillion = outputPrice
			cfg.Pricing.Preset = ""
		case "interval":
			cfg.Monitor.Interval = interval
		case "alert-tokens":
			cfg.Monitor.AlertTokens = alertTokens
		case "log-file":
			cfg.Monitor.LogFile = logFile
		case "config":
			changed--
		}
	})
	if changed == 0 {
		fs.Usage()
		return
	}

	if err := cfg.Validate(); err != nil {
		fail("%v", err)
	}
	if _, err := cfg.PricingModel(); err != nil {
		fail("%v", err)
	}
	if err := config.Save(path, cfg); err != nil {
		fail("saving config: %v", err)
	}

	fmt.Printf("Configuration saved to %s.\n", path)
}

func printConfig(cfg *config.Config, path string) {
	fmt.Printf("Config file: %s\n", path)
	fmt.Printf("Agents directory: %s\n", cfg.AgentsDir)
	fmt.Printf("Gateway logs: %s\n", cfg.LogsDir)
	fmt.Printf("Limit: %d\n", cfg.Limit)
	fmt.Printf("Days: %d\n", cfg.Days)
	fmt.Printf("Detail: %t (top %d sessions)\n", cfg.Detail, cfg.DetailSessions)
	fmt.Printf("Workers: %d\n", cfg.Workers)

	p, err := cfg.PricingModel()
	if err != nil {
		fmt.Printf("Pricing: %v\n", err)
	} else {
		name := cfg.Pricing.Preset
		if name == "" {
			name = "custom"
		}
		fmt.Printf("Pricing: %s ($%.2f in / $%.2f out per million)\n", name, p.InputPerMillion, p.OutputPerMillion)
	}
	fmt.Printf("Available presets: %s\n", strings.Join(pricing.Presets(), ", "))

	fmt.Printf("Monitor interval: %s\n", cfg.Monitor.Interval)
	fmt.Printf("Monitor alert threshold: %s tokens\n", output.FormatNumber(cfg.Monitor.AlertTokens))
	if cfg.Monitor.LogFile != "" {
		fmt.Printf("Monitor log file: %s\n", cfg.Monitor.LogFile)
	}
}

func runMonitor(args []string) {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	var rf reportFlags
	rf.register(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: clawtop monitor [command] [options]

Commands:
  (none)      Audit once and exit
  install     Install as a background service
  start       Start the background service
  stop        Stop the background service
  uninstall   Remove the background service
  status      Show service status

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
The interval and alert threshold come from the config file
(see 'clawtop config --interval' and '--alert-tokens').
`)
	}

	// Check for service commands before parsing flags
	var svcCommand string
	if len(args) > 0 {
		switch args[0] {
		case "install", "start", "stop", "uninstall", "status", "run":
			svcCommand = args[0]
			args = args[1:]
		}
	}

	fs.Parse(args)

	cfg, path, err := rf.load(fs)
	if err != nil {
		fail("%v", err)
	}
	p, err := cfg.PricingModel()
	if err != nil {
		fail("%v", err)
	}

	var logger *log.Logger
	if cfg.Monitor.LogFile != "" {
		logger = monitor.NewFileLogger(cfg.Monitor.LogFile)
	} else {
		logger = log.StandardLogger()
	}

	builder := newBuilder(cfg, logger)
	build := func(ctx context.Context) (*model.UsageReport, error) {
		return builder.Build(ctx, monitorOptions(cfg, p, time.Now()))
	}
	mon := monitor.New(build, cfg.Monitor.Interval, cfg.Monitor.AlertTokens, logger)

	svcConfig := &service.Config{
		Name:        "clawtop-monitor",
		DisplayName: "clawtop Monitor Service",
		Description: "Periodically audits OpenClaw agent token usage",
		Arguments:   []string{"monitor", "run", "--config=" + path},
	}

	s, err := service.New(mon, svcConfig)
	if err != nil {
		fail("failed to create service: %v", err)
	}

	switch svcCommand {
	case "install":
		if err := s.Install(); err != nil {
			fail("failed to install service: %v", err)
		}
		if err := s.Start(); err != nil {
			fail("service installed but failed to start: %v", err)
		}
		fmt.Println("Service installed and started.")
		fmt.Printf("Audit interval: %s\n", mon.Interval)

	case "start":
		if err := s.Start(); err != nil {
			fail("failed to start service: %v", err)
		}
		fmt.Println("Service started.")

	case "stop":
		if err := s.Stop(); err != nil {
			fail("failed to stop service: %v", err)
		}
		fmt.Println("Service stopped.")

	case "uninstall":
		s.Stop() // ignore error
		if err := s.Uninstall(); err != nil {
			fail("failed to uninstall service: %v", err)
		}
		fmt.Println("Service uninstalled.")

	case "status":
		status, err := s.Status()
		if err != nil {
			fmt.Printf("Service status: not installed or error (%v)\n", err)
			return
		}
		switch status {
		case service.StatusRunning:
			fmt.Println("Service status: running")
		case service.StatusStopped:
			fmt.Println("Service status: stopped")
		default:
			fmt.Println("Service status: unknown")
		}

	case "run":
		// Running as service (internal command)
		if err := s.Run(); err != nil {
			logger.WithError(err).Error("monitor: service exited")
			os.Exit(1)
		}

	default:
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		alerts, err := mon.RunOnce(ctx)
		if err != nil {
			var cfgErr *loader.ConfigurationError
			if errors.As(err, &cfgErr) {
				fail("No agents directory found at %s", cfgErr.Root)
			}
			fail("%v", err)
		}
		fmt.Printf("%d session(s) above %s tokens.\n", len(alerts), output.FormatNumber(mon.AlertTokens))
	}
}
