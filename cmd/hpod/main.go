package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/GoSim-25-26J-441/experiment-core/internal/resultsd"
	"github.com/GoSim-25-26J-441/experiment-core/pkg/config"
	"github.com/GoSim-25-26J-441/experiment-core/pkg/logger"
)

type options struct {
	grpcAddr   string
	httpAddr   string
	logLevel   string
	resultsDir string
	configPath string
}

// resolveOptions applies an experiment file, when given, to the flags the
// command line left unset.
func resolveOptions(opts options, explicit map[string]bool) (options, error) {
	if opts.configPath == "" {
		return opts, nil
	}
	cfg, err := config.LoadExperiment(opts.configPath)
	if err != nil {
		return opts, err
	}
	if !explicit["results-dir"] {
		opts.resultsDir = cfg.Experiment.ResultsDir
	}
	if !explicit["log-level"] {
		opts.logLevel = cfg.LogLevel
	}
	return opts, nil
}

func main() {
	var opts options

	flag.StringVar(&opts.grpcAddr, "grpc-addr", ":50051", "gRPC health listen address")
	flag.StringVar(&opts.httpAddr, "http-addr", ":8080", "HTTP listen address")
	flag.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.StringVar(&opts.resultsDir, "results-dir", "results", "directory holding experiment results")
	flag.StringVar(&opts.configPath, "config", "", "optional experiment file to validate and take defaults from")
	flag.Parse()

	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	resolved, err := resolveOptions(opts, explicit)
	if err != nil {
		logger.Error("invalid experiment file", "path", opts.configPath, "error", err)
		os.Exit(1)
	}
	opts = resolved

	logger.SetDefault(logger.NewText(opts.logLevel, os.Stdout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	store := resultsd.NewReportStore(opts.resultsDir)
	if !store.Ready() {
		logger.Warn("results directory does not exist yet", "results_dir", opts.resultsDir)
	}

	// TODO: Configure gRPC server security (e.g., TLS, authentication)
	// before exposing this service outside a trusted network.
	grpcServer := grpc.NewServer()
	healthServer := resultsd.NewHealthServer(store)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	grpcLis, err := net.Listen("tcp", opts.grpcAddr)
	if err != nil {
		logger.Error("failed to listen for gRPC", "addr", opts.grpcAddr, "error", err)
		stop()
		os.Exit(1)
	}

	httpSrv := &http.Server{
		Addr:              opts.httpAddr,
		Handler:           resultsd.NewHTTPServer(store).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go resultsd.WatchHealth(ctx, healthServer, store, 5*time.Second)

	// Start servers.
	go func() {
		logger.Info("gRPC health server listening", "addr", opts.grpcAddr)
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("gRPC server error", "error", err)
			stop()
		}
	}()

	go func() {
		logger.Info("HTTP server listening", "addr", opts.httpAddr, "results_dir", opts.resultsDir)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.GracefulStop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
}
