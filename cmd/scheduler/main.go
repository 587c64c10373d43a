package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	smsretry "github.com/avrahamgoldberg/sms-retry-project"
	"github.com/avrahamgoldberg/sms-retry-project/api"
	"github.com/avrahamgoldberg/sms-retry-project/gateway/s3"
	"github.com/avrahamgoldberg/sms-retry-project/internal/config"
	awss3 "github.com/avrahamgoldberg/sms-retry-project/internal/lib/aws/s3"
	"github.com/avrahamgoldberg/sms-retry-project/internal/logging"
	"github.com/avrahamgoldberg/sms-retry-project/internal/metrics"
	"github.com/avrahamgoldberg/sms-retry-project/senders/sqs"
	"github.com/avrahamgoldberg/sms-retry-project/senders/twilio"
	"github.com/avrahamgoldberg/sms-retry-project/senders/webhook"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	client, err := awss3.New(ctx, cfg.Region, cfg.EndpointURL)
	if err != nil {
		log.Fatalf("init s3 client: %v", err)
	}
	gw, err := s3.New(ctx, client, s3.Config{
		Bucket:        cfg.Bucket,
		ActivePrefix:  cfg.ActivePrefix,
		SuccessPrefix: cfg.SuccessPrefix,
		FailedPrefix:  cfg.FailedPrefix,
	})
	if err != nil {
		log.Fatalf("init gateway: %v", err)
	}

	sender, err := newSender(ctx, cfg)
	if err != nil {
		log.Fatalf("init sender: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	hooks := metrics.NewStatsHook("smsretry_scheduler")

	engine := smsretry.NewEngine(gw, sender, smsretry.Options{
		BatchSize: cfg.BatchSize,
		Policy:    smsretry.DefaultPolicyWithMax(cfg.MaxAttempts),
		Logger:    logger,
		Hooks:     hooks,
	})

	stats, err := smsretry.Recover(ctx, engine, gw, smsretry.RecoveryOptions{
		AllowPartialRecovery: cfg.AllowPartialRecovery,
		Logger:               logger,
	})
	if err != nil {
		log.Fatalf("recovery: %v", err)
	}
	log.Printf("recovered %d pending records (%d stale, %d skipped)", stats.Recovered, stats.Stale, stats.Skipped)

	engine.Start()
	defer engine.Shutdown()

	startMetricsServer()

	httpServer := &http.Server{
		Addr: fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort),
		Handler: api.NewServer(engine, gw, api.GatewayConfig{
			Bucket:        cfg.Bucket,
			ActivePrefix:  cfg.ActivePrefix,
			SuccessPrefix: cfg.SuccessPrefix,
			FailedPrefix:  cfg.FailedPrefix,
		}),
	}

	go func() {
		log.Printf("api listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("api server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")
	_ = httpServer.Shutdown(context.Background())
}

func newSender(ctx context.Context, cfg config.Config) (smsretry.Sender, error) {
	switch cfg.Sender {
	case "sqs":
		return sqs.NewSender(ctx, cfg.Region, cfg.SQSEndpointURL, cfg.SQSQueueURL)
	case "webhook":
		return webhook.NewSender(cfg.WebhookURL), nil
	case "twilio":
		return twilio.NewSender(twilio.Config{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioFromNumber,
		})
	case "demo", "":
		return smsretry.NewDemoSender(cfg.DemoSuccessRate), nil
	default:
		return nil, fmt.Errorf("unknown sender %q", cfg.Sender)
	}
}

func startMetricsServer() {
	const addr = ":2112"
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	go func() {
		log.Printf("metrics available at http://localhost%s/debug/vars", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server stopped: %v", err)
		}
	}()
}
