package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"sorstream/internal/core"
	"sorstream/internal/ingest"
	"sorstream/internal/ingest/binance"
	"sorstream/internal/model/enum"
	"sorstream/internal/obs"
	"sorstream/internal/ops"
	"sorstream/pkg/exception"
	"sorstream/pkg/loop"
	"sorstream/pkg/websocket"
)

var (
	errShutdown = errors.New("shutdown signal")
	errDrained  = errors.New("all targets finished")
)

func main() {
	if err := run(); err != nil {
		log.Printf("sor: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML config file (Binance defaults when empty)")
	envFile := flag.String("env", ".env", "optional environment file")
	flag.Parse()

	if err := ops.LoadEnv(*envFile); err != nil {
		return err
	}
	cfg, err := ops.Load(*configPath)
	if err != nil {
		return err
	}

	if cfg.ProfilingAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "sorstream",
			ServerAddress:   cfg.ProfilingAddr,
			Tags: map[string]string{
				"venue": cfg.Platform.String(),
			},
			Logger: profilerLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := obs.NewMetrics(reg)
	if cfg.MetricsAddr != "" {
		srv, err := obs.Serve(cfg.MetricsAddr, reg)
		if err != nil {
			return err
		}
		defer func() {
			_ = srv.Close()
		}()
		logs.Infof("metrics served, addr=%s", cfg.MetricsAddr)
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	go func() {
		select {
		case <-sys.Shutdown():
			cancel(errShutdown)
		case <-ctx.Done():
		}
	}()

	newDecoder, err := decoders(cfg.Platform)
	if err != nil {
		return err
	}

	l := loop.New(loop.DefaultQueueSize)
	opt := websocket.DefaultOption()
	opt.MaxMessageSize = cfg.MaxMessageSize
	connector := ingest.NewConnector(cfg.Host, cfg.Port, ingest.NewSessionFactory(l, opt))

	policy := ingest.FailurePolicy(ingest.IsolateFailure)
	if cfg.AbortOnConnectFailure {
		policy = ingest.AbortOnFailure(cancel)
	}

	handler := ingest.NewHandler(
		ingest.Config{
			Venue:             cfg.Platform.String(),
			Params:            cfg.Params,
			StopThreshold:     cfg.StopThreshold,
			RecomputeInterval: cfg.RecomputeInterval,
		},
		connector,
		newDecoder,
		ingest.WithMetrics(metrics),
		ingest.WithFailurePolicy(policy),
		ingest.WithDrained(func() { cancel(errDrained) }),
	)
	defer handler.Close()
	for _, sub := range cfg.Subscriptions {
		if err := handler.AddTarget(sub.Source, sub.Target); err != nil {
			return err
		}
	}

	pipeline := core.NewPipeline(handler)
	if err := pipeline.Init(ctx); err != nil {
		return err
	}

	logs.Infof("sor started, venue=%s, host=%s, port=%s, targets=%d", cfg.Platform, cfg.Host, cfg.Port, len(cfg.Subscriptions))
	_ = l.Run(ctx)

	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, errShutdown), errors.Is(cause, errDrained):
		logs.Infof("sor stopped, reason=%v", cause)
		return nil
	default:
		return cause
	}
}

func decoders(platform enum.Platform) (ingest.DecoderFactory, error) {
	switch platform {
	case enum.PlatformBinance:
		venue := platform.String()
		return func(source enum.Source) (ingest.Decoder, error) {
			return binance.NewDecoder(source, venue, time.Now)
		}, nil
	default:
		return nil, exception.ErrInvalidConfig
	}
}

type profilerLogger struct{}

func (profilerLogger) Infof(format string, args ...interface{})  { logs.Debugf(format, args...) }
func (profilerLogger) Debugf(format string, args ...interface{}) { logs.Debugf(format, args...) }
func (profilerLogger) Errorf(format string, args ...interface{}) { logs.Errorf(format, args...) }
