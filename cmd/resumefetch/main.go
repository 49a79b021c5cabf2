package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/vertextoedge/resumefetch/internal/adapter/backoff"
	"github.com/vertextoedge/resumefetch/internal/adapter/faultserver"
	"github.com/vertextoedge/resumefetch/internal/adapter/httpclient"
	"github.com/vertextoedge/resumefetch/internal/adapter/sink"
	"github.com/vertextoedge/resumefetch/internal/adapter/sqlite"
	"github.com/vertextoedge/resumefetch/internal/config"
	"github.com/vertextoedge/resumefetch/internal/logger"
	"github.com/vertextoedge/resumefetch/internal/service/fetcher"
	"github.com/vertextoedge/resumefetch/internal/service/stress"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	onceURL := flag.String("once", "", "Fetch a single URL and exit")
	output := flag.String("o", "", "Output file for -once mode (default: stdout)")
	flag.Parse()

	if *onceURL != "" {
		if err := fetchOnce(*onceURL, *output); err != nil {
			fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	zapLogger := logger.GetZapLogger()
	zapLogger.Info("starting resumefetch stress run",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	store, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		zapLogger.Fatal("failed to open result database", zap.Error(err), zap.String("path", cfg.Database.Path))
	}
	defer store.Close()

	target := cfg.Target.URL
	expectChecksum := ""
	if target == "" {
		srv, url, shutdown, err := startEmbeddedServer(cfg, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed to start embedded fault server", zap.Error(err))
		}
		defer shutdown()
		target = url
		expectChecksum = srv.Checksum()
		zapLogger.Info("embedded fault server listening", zap.String("url", url))
	}

	runner := stress.New(&stress.Config{
		Target:           target,
		Workers:          cfg.Stress.Workers,
		Iterations:       cfg.Stress.Iterations,
		HighWaterMark:    cfg.Fetch.HighWaterMark,
		MaxAttempts:      cfg.Fetch.Retry.MaxAttempts,
		MinDelay:         cfg.GetMinDelay(),
		MaxDelay:         cfg.GetMaxDelay(),
		SampleInterval:   cfg.Stress.GetSampleInterval(),
		ProgressInterval: cfg.Stress.GetProgressInterval(),
		ExpectChecksum:   expectChecksum,
		SavePayloadDir:   cfg.Stress.SavePayloadDir,
	}, httpclient.New(nil), store, afero.NewOsFs(), zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		zapLogger.Info("shutdown signal received, stopping stress run...")
		cancel()
	}()

	summary, err := runner.Start(ctx)
	if err != nil {
		zapLogger.Error("stress run reported harness errors", zap.Error(err))
	}
	if summary != nil {
		fmt.Printf("fetches: %d  completed: %d  failed: %d  bytes: %d  max rss: %d\n",
			summary.Total, summary.Completed, summary.Failed, summary.TotalBytes, summary.MaxRSS)
		if summary.Failed > 0 {
			os.Exit(1)
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

// startEmbeddedServer serves the configured synthetic resource locally
func startEmbeddedServer(cfg *config.Config, zapLogger *zap.Logger) (*faultserver.Server, string, func(), error) {
	srv := faultserver.New(faultserver.Script{
		Size:          cfg.Target.SizeBytes,
		Seed:          cfg.Target.Seed,
		TruncateEvery: cfg.Target.TruncateEvery,
		FailFirst:     cfg.Target.FailFirst,
		FailEvery:     cfg.Target.FailEvery,
	}, zapLogger)

	ln, err := net.Listen("tcp", cfg.Target.ListenAddr)
	if err != nil {
		return nil, "", nil, err
	}

	httpServer := &http.Server{Handler: srv}
	go func() {
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			zapLogger.Error("embedded fault server failed", zap.Error(err))
		}
	}()

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(ctx)
	}
	url := fmt.Sprintf("http://%s/resource", ln.Addr().String())
	return srv, url, shutdown, nil
}

// fetchOnce downloads a single resource with default settings, to a
// file when output is set and to stdout otherwise.
func fetchOnce(url, output string) error {
	if output != "" {
		return fetchToFile(url, output)
	}

	reader, err := fetcher.NewReader(fetcher.Config{
		Path:    url,
		Client:  httpclient.New(nil),
		Backoff: backoff.NewExponential(0, 0),
	})
	if err != nil {
		return err
	}
	defer reader.Close()

	hash := sha256.New()
	n, err := io.Copy(io.MultiWriter(os.Stdout, hash), reader)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "fetched %d bytes, sha256 %s\n", n, hex.EncodeToString(hash.Sum(nil)))
	return nil
}

func fetchToFile(url, output string) error {
	fileSink, err := sink.NewFile(afero.NewOsFs(), output)
	if err != nil {
		return err
	}

	session, err := fetcher.New(fetcher.Config{
		Path:    url,
		Client:  httpclient.New(nil),
		Sink:    fileSink,
		Backoff: backoff.NewExponential(0, 0),
	})
	if err != nil {
		return err
	}
	fileSink.Bind(session)

	session.Demand()
	if err := fileSink.Wait(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "fetched %d bytes, sha256 %s\n",
		session.BytesConsumed(), session.Digest())
	return nil
}
