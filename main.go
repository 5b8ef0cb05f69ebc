package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"trends-go/internal/config"
	"trends-go/internal/handler"
	"trends-go/pkg/batch"
	"trends-go/pkg/logger"
	"trends-go/pkg/storage"
	"trends-go/pkg/trends"
)

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBoolOrDefault returns environment variable as bool or default
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func main() {
	defaultConfig := getEnvOrDefault("TRENDS_CONFIG", "")
	defaultServe := getEnvBoolOrDefault("TRENDS_SERVE", false)
	defaultDebug := getEnvBoolOrDefault("DEBUG", false)

	var (
		configPath = flag.String("config", defaultConfig, "Configuration file path (env: TRENDS_CONFIG)")
		serve      = flag.Bool("serve", defaultServe, "Run as HTTP server instead of stdin/stdout filter (env: TRENDS_SERVE)")
		debug      = flag.Bool("debug", defaultDebug, "Enable debug logging (env: DEBUG)")
		help       = flag.Bool("help", false, "Show help message")
	)

	flag.Parse()

	if *help {
		printUsage()
		return
	}

	cfg, err := config.NewManager().Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	logLevel := cfg.Logger.Level
	if *debug {
		logLevel = "debug"
	}
	logger.SetLogger(logger.New(logger.Config{
		Level:      logLevel,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		TimeFormat: cfg.Logger.TimeFormat,
	}))

	log := logger.GetLogger().WithField("component", "main")

	if *serve {
		runServer(cfg, log)
		return
	}

	runFilter(cfg, log)
}

// newRunner builds the collaborator and runner for one request. The client is
// constructed with the request's tz and proxy; locale, endpoint and the retry
// policy come from config.
func newRunner(cfg *config.Config, req *batch.Request) (*batch.Runner, error) {
	client, err := trends.NewClient(trends.ClientConfig{
		BaseURL:       cfg.Trends.BaseURL,
		Locale:        cfg.Trends.Locale,
		TZ:            req.TZ,
		Retries:       cfg.Trends.Retries,
		BackoffFactor: cfg.Trends.BackoffFactor,
		Proxy:         req.Proxy,
		Timeout:       time.Duration(cfg.Trends.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	return batch.NewRunner(client), nil
}

// runFilter reads one request document from stdin and writes the result
// document to stdout. Any failure aborts with a non-zero exit and no partial
// output.
func runFilter(cfg *config.Config, log *logger.Logger) {
	req, err := batch.DecodeRequest(os.Stdin)
	if err != nil {
		log.WithError(err).Fatal("Failed to parse request")
	}

	runner, err := newRunner(cfg, req)
	if err != nil {
		log.WithError(err).Fatal("Failed to create trends client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	resp, err := runner.Run(ctx, req)
	if err != nil {
		log.WithError(err).Fatal("Batch run failed")
	}

	if err := json.NewEncoder(os.Stdout).Encode(resp); err != nil {
		log.WithError(err).Fatal("Failed to write response")
	}
}

// runServer exposes the batch run over HTTP until interrupted.
func runServer(cfg *config.Config, log *logger.Logger) {
	cache := storage.NewResponseCache(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLSeconds)*time.Second)

	factory := func(req *batch.Request) (handler.BatchRunner, error) {
		return newRunner(cfg, req)
	}

	app := fiber.New(fiber.Config{
		AppName:               "trends-go",
		DisableStartupMessage: true,
	})
	handler.NewController(factory, cache).Register(app)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Shutdown signal received")
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.WithError(err).Warn("Failed to shut down cleanly")
		}
	}()

	log.WithField("addr", addr).Info("Starting HTTP server")
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("Server failed")
	}
	log.Info("Server stopped")
}

func printUsage() {
	fmt.Println("trends-go - batch keyword interest fetcher")
	fmt.Println("")
	fmt.Println("USAGE:")
	fmt.Println("    ./trends-go < request.json > results.json")
	fmt.Println("    ./trends-go -serve")
	fmt.Println("")
	fmt.Println("OPTIONS:")
	fmt.Println("    -config string   Configuration file path (env: TRENDS_CONFIG)")
	fmt.Println("    -serve           Run as HTTP server (env: TRENDS_SERVE)")
	fmt.Println("    -debug           Enable debug logging (env: DEBUG)")
	fmt.Println("    -help            Show this help message")
	fmt.Println("")
	fmt.Println("REQUEST DOCUMENT (stdin, JSON):")
	fmt.Println("    keywords               array of strings (required for any output)")
	fmt.Println("    lookbackMonths         int, default 12 (over 36 falls back to 5 years)")
	fmt.Println("    geo                    region code, default \"\" (worldwide)")
	fmt.Println("    batchSize              keywords per upstream query, default 5")
	fmt.Println("    sleepBetweenBatchesMs  throttle between queries, default 1000")
	fmt.Println("    tz                     timezone offset in minutes, default 360")
	fmt.Println("    proxy                  optional proxy URL for http and https")
	fmt.Println("")
	fmt.Println("EXAMPLES:")
	fmt.Println("    echo '{\"keywords\":[\"go\",\"rust\"]}' | ./trends-go")
	fmt.Println("    ./trends-go -serve -config config/dev.yaml")
}
