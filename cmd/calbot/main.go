package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"calbot/internal/calendar"
	"calbot/internal/config"
	"calbot/internal/gateway"
	"calbot/internal/intent"
	"calbot/internal/ipc"
	"calbot/internal/metrics"
	"calbot/internal/pipeline"
	"calbot/internal/proxy"
	"calbot/internal/transcribe"
	"calbot/pkg/audioconv"
	"calbot/pkg/stt"
)

// Ten minutes of 16 kHz audio keeps uploads under the transcription size cap.
const maxVoiceSamples = 10 * 60 * audioconv.SampleRate

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	transports := cli.StringSliceP("transport", "t", []string{"telegram"}, "Transports to serve: telegram, bus, ipc")
	authorizeOnly := cli.Bool("authorize", false, "Run the calendar authorization flow and exit")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(2)
	}

	httpClient, err := proxy.NewHTTPClient(cfg.SocksProxy)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.SocksProxy, "err", err)
		os.Exit(1)
	}

	oauthConf, err := calendar.LoadOAuthConfig(cfg.CredentialsFile)
	if err != nil {
		log.Error("Failed to load calendar credentials", "file", cfg.CredentialsFile, "err", err)
		os.Exit(2)
	}
	store := calendar.NewTokenStore(cfg.TokenFile, oauthConf, calendar.LocalServerAuthorizer{})

	if *authorizeOnly {
		// Runs before signal handling is installed so Ctrl-C aborts the consent wait.
		if _, err := store.Token(calendar.WithHTTPClient(context.Background(), httpClient)); err != nil {
			log.Error("Authorization failed", "err", err)
			os.Exit(1)
		}
		log.Info("Calendar token stored", "file", cfg.TokenFile)
		return
	}

	for _, t := range *transports {
		if err := cfg.Validate(config.Transport(t)); err != nil {
			log.Error("Invalid config", "transport", t, "err", err)
			os.Exit(2)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ai := openai.NewClient(
		option.WithAPIKey(cfg.OpenAIKey),
		option.WithHTTPClient(httpClient),
	)

	log.Debug("Loaded API client")

	pipe := pipeline.New(
		intent.NewClassifier(ai, cfg.ClassifierModel),
		calendar.NewAdapter(calendar.NewOAuthConnector(store, httpClient), cfg.CalendarID),
		pipeline.Config{
			Placeholders: pipeline.DefaultPlaceholders(),
			Timeout:      cfg.RequestTimeout,
		},
	)

	recognizer := stt.NewTranscriber(ai, stt.Options{
		Model:    cfg.TranscribeModel,
		Language: cfg.TranscribeLanguage,
	})

	gw, err := gateway.New(
		pipe,
		transcribe.New(recognizer),
		audioconv.NewConverter(audioconv.Options{MaxSamples: maxVoiceSamples}),
		cfg.StagingDir,
	)
	if err != nil {
		log.Error("Failed to init gateway", "err", err)
		os.Exit(1)
	}

	log.Info("Boot up - successful", "transports", *transports)

	g, ctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return metrics.Serve(ctx, cfg.MetricsAddr) })
	}
	for _, t := range *transports {
		run, err := transport(ctx, config.Transport(t), cfg, httpClient, gw)
		if err != nil {
			log.Error("Failed to start transport", "transport", t, "err", err)
			os.Exit(1)
		}
		g.Go(func() error { return run(ctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("Shut down")
}

func transport(ctx context.Context, t config.Transport, cfg config.Config, client *http.Client, gw *gateway.Gateway) (func(context.Context) error, error) {
	switch t {
	case config.TransportTelegram:
		tg, err := gateway.NewTelegram(cfg.TelegramToken, client)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) error { return tg.Run(ctx, gw) }, nil

	case config.TransportBus:
		bus, err := gateway.DialBus(ctx, cfg.BusURL)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			defer bus.Close()
			return bus.Run(ctx, gw)
		}, nil

	case config.TransportIPC:
		return func(ctx context.Context) error {
			return ipc.Serve(ctx, cfg.IPCSocket, gw.Control)
		}, nil
	}
	return nil, fmt.Errorf("unknown transport %q", t)
}
