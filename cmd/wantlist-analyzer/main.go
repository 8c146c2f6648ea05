// Command wantlist-analyzer ranks marketplace sellers by how much of a
// user's want list they can fill.
//
// With -user it runs one analysis and prints the JSON report. Otherwise it
// serves the HTTP API:
//
//	GET  /health          liveness
//	GET  /ready           readiness (Redis ping when configured)
//	GET  /metrics         Prometheus metrics
//	POST /analyses        start an analysis, 202 with the session id
//	GET  /analyses/{id}   session state and, once finished, the report
//	GET  /ratelimit       local window and last upstream rate limit state
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/3faceees/discogs-backend/internal/config"
	"github.com/3faceees/discogs-backend/pkg/analysis"
	"github.com/3faceees/discogs-backend/pkg/logging"
	"github.com/3faceees/discogs-backend/pkg/market"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is main with an exit code, so deferred cleanup always happens.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("wantlist-analyzer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		envFile      = fs.String("env", "", "path to a .env file (default: ./.env if present)")
		username     = fs.String("user", "", "analyze this user's want list once and print the report")
		minCondition = fs.String("min-condition", "", "minimum media condition, e.g. VG+")
		minSleeve    = fs.String("min-sleeve", "", "minimum sleeve condition")
		region       = fs.String("region", "", "seller region: "+fmt.Sprint(market.Regions()))
		minRating    = fs.Float64("min-rating", -1, "minimum seller rating (0-100)")
		maxPrice     = fs.String("max-price", "", "maximum listing price")
		maxItems     = fs.Int("max-items", 0, "analyze at most this many want-list items")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 2
	}

	logCfg := cfg.Logging()
	logCfg.Output = stderr
	logger := logging.Setup(logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize")
		return 1
	}
	defer svc.Close()

	if *username != "" {
		req, err := buildRequest(*username, *minCondition, *minSleeve, *region, *minRating, *maxPrice, *maxItems)
		if err != nil {
			fmt.Fprintf(stderr, "invalid arguments: %v\n", err)
			return 2
		}
		return runOnce(ctx, svc.engine, req, stdout, logger)
	}

	if err := serve(ctx, svc, ":"+cfg.Port, logger); err != nil {
		logger.Error().Err(err).Msg("Server failed")
		return 1
	}
	return 0
}

// buildRequest turns command-line filters into a request.
func buildRequest(username, minCondition, minSleeve, region string, minRating float64, maxPrice string, maxItems int) (analysis.Request, error) {
	req := analysis.Request{Username: username, MaxItems: maxItems}

	if minCondition != "" {
		if err := req.Criteria.MinCondition.UnmarshalText([]byte(minCondition)); err != nil {
			return req, fmt.Errorf("-min-condition: %w", err)
		}
	}
	if minSleeve != "" {
		if err := req.Criteria.MinSleeveCondition.UnmarshalText([]byte(minSleeve)); err != nil {
			return req, fmt.Errorf("-min-sleeve: %w", err)
		}
	}
	req.Criteria.Region = region
	if minRating >= 0 {
		req.Criteria.MinSellerRating = &minRating
	}
	if maxPrice != "" {
		p, err := decimal.NewFromString(maxPrice)
		if err != nil {
			return req, fmt.Errorf("-max-price: %w", err)
		}
		req.Criteria.MaxPrice = &p
	}
	return req, req.Validate()
}

// runOnce runs one analysis and writes the report to out. It returns the
// process exit code: 0 on a report with sellers, 1 otherwise.
func runOnce(ctx context.Context, engine *analysis.Engine, req analysis.Request, out io.Writer, logger zerolog.Logger) int {
	report, err := engine.Analyze(ctx, req)
	if report != nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(report); encErr != nil {
			logger.Error().Err(encErr).Msg("Failed to write report")
			return 1
		}
	}
	if err != nil {
		logger.Error().Err(err).Msg("Analysis did not produce a ranking")
		return 1
	}
	return 0
}

// serve runs the HTTP API until ctx is cancelled, then drains in-flight
// requests.
func serve(ctx context.Context, svc *service, addr string, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           svc.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Starting want-list analyzer")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
