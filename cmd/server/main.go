package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"voxelsession.ai/internal/chat"
	"voxelsession.ai/internal/hub"
	"voxelsession.ai/internal/metrics"
	persistlog "voxelsession.ai/internal/persistence/log"
	"voxelsession.ai/internal/protocol"
	"voxelsession.ai/internal/session"
	"voxelsession.ai/internal/sim/physics"
	"voxelsession.ai/internal/sim/tuning"
	"voxelsession.ai/internal/transport/ws"
)

type options struct {
	addr          string
	tuningPath    string
	dataDir       string
	disableDB     bool
	audit         bool
	flightAllowed bool
	authorityKey  string
	operators     string
	floorRadius   int
}

func main() {
	var (
		opts     options
		logLevel = flag.String("log_level", "info", "log level (debug, info, warn, error)")
		dev      = flag.Bool("dev", false, "development logging (console encoder)")
	)
	flag.StringVar(&opts.addr, "addr", ":8080", "http listen address")
	flag.StringVar(&opts.tuningPath, "tuning", "./configs/tuning.yaml", "path to tuning.yaml (defaults are used when missing)")
	flag.StringVar(&opts.dataDir, "data", "./data", "runtime data directory")
	flag.BoolVar(&opts.disableDB, "disable_db", false, "disable the SQLite violation/disconnect index")
	flag.BoolVar(&opts.audit, "audit", true, "write violations and disconnects to the zstd JSONL audit log")
	flag.BoolVar(&opts.flightAllowed, "flight_allowed", false, "exempt every player from the floating check")
	flag.StringVar(&opts.authorityKey, "authority_key", "", "file with the hex ed25519 public key that countersigns chat keys (empty: no validation)")
	flag.StringVar(&opts.operators, "operators", "", "comma separated operator names")
	flag.IntVar(&opts.floorRadius, "floor_radius", 64, "half width of the flat floor under spawn")
	flag.Parse()

	logger, err := newLogger(*logLevel, *dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := signalContext()
	err = run(ctx, opts, logger)
	cancel()
	if err != nil {
		logger.Error("server exited", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run serves until ctx is done. Every resource opened here is closed on
// return, including on startup errors.
func run(ctx context.Context, opts options, logger *zap.Logger) error {
	tune, err := tuning.Load(opts.tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("load tuning: %w", err)
		}
		logger.Info("tuning not found, using defaults", zap.String("path", opts.tuningPath))
		tune = tuning.Defaults()
	}
	if opts.flightAllowed {
		tune.FlightAllowed = true
	}

	keys, err := loadAuthority(opts.authorityKey)
	if err != nil {
		return fmt.Errorf("load authority key: %w", err)
	}
	if keys == nil && tune.Chat.EnforceSecureChat {
		logger.Warn("secure chat enforced without an authority key; chat sessions will be ignored")
	}

	validator, err := protocol.NewValidator()
	if err != nil {
		return fmt.Errorf("compile schemas: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	recorders := session.Recorders{m}
	if opts.audit {
		auditLog := persistlog.NewAuditLogger(opts.dataDir, logger.Named("audit"))
		defer auditLog.Close()
		recorders = append(recorders, auditLog)
	}
	idx, err := openRuntimeIndex(opts.dataDir, opts.disableDB, logger.Named("index"))
	if err != nil {
		return fmt.Errorf("open index backend: %w", err)
	}
	if idx != nil {
		defer idx.Close()
		recorders = append(recorders, idx)
	}

	var filter chat.TextFilter = chat.PassThrough{}
	if len(tune.Chat.BannedWords) > 0 {
		filter = chat.NewWordFilter(tune.Chat.BannedWords)
	}

	grid := physics.NewGrid()
	grid.Floor(-1, opts.floorRadius)
	var authority chat.KeyProvider
	if keys != nil {
		authority = keys
	}
	h := hub.New(hub.Config{
		Tuning:    tune,
		Grid:      grid,
		Spawn:     physics.Vec3{X: 0.5, Y: 0, Z: 0.5},
		Operators: splitNames(opts.operators),
		Keys:      authority,
		Filter:    filter,
		Recorder:  recorders,
		Metrics:   m,
		Log:       logger.Named("hub"),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		if err := h.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("hub stopped", zap.Error(err))
		}
	}()
	// The hub closes its sessions before the audit log and index close.
	defer func() { <-hubDone }()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if envBool("VS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		registerAdmin(mux, h, idx, logger.Named("admin"))
	} else {
		logger.Info("admin endpoints disabled (VS_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("VS_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(h, validator, tune.Network, logger.Named("ws")).Handler())

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening",
		zap.String("addr", opts.addr),
		zap.String("data", filepath.Clean(opts.dataDir)),
		zap.Int("tick_rate_hz", tune.TickRateHz))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func splitNames(s string) []string {
	var out []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
