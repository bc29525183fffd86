package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"manifest/api/grpcserver"
	"manifest/infra/kafka"
	"manifest/jobs/broadcaster"
	"manifest/jobs/watcher"
)

const (
	compactEvery   = time.Minute
	reconcileEvery = time.Second
	keepSnapshots  = 100
)

func runWatch(ctx context.Context, a *app, args []string) error {
	fs := flags("watch")
	interval := fs.Duration("interval", a.cfg.WatchInterval, "poll interval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := a.session()
	if err != nil {
		return err
	}

	var pub watcher.Publisher
	var bc *broadcaster.Broadcaster
	if a.cfg.KafkaEnabled() {
		ser, err := kafka.NewSerializer(a.cfg.Kafka.FeedFormat)
		if err != nil {
			return err
		}
		feed := kafka.NewProducer(a.cfg.Kafka.Brokers, a.cfg.Kafka.FeedTopic, ser)
		defer feed.Close()
		pub = feed

		producer, err := broadcaster.NewProducer(a.cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		bc = broadcaster.New(broadcaster.Config{Topic: a.cfg.Kafka.EventTopic}, a.outbox, producer, a.log, a.metrics)
		defer bc.Close()
	} else {
		a.log.Info("no kafka brokers configured, feeds disabled")
	}

	w := watcher.New(s, *interval, a.svc, pub, a.log, a.metrics)
	health := grpcserver.New(a.log)
	metricsSrv := &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           a.metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(ctx) })
	g.Go(func() error { return a.svc.RunReconcile(ctx, reconcileEvery) })
	g.Go(func() error { return a.svc.RunCompaction(ctx, s.Market, keepSnapshots, compactEvery) })
	if bc != nil {
		g.Go(func() error { return bc.Run(ctx) })
	}
	g.Go(func() error { return health.ListenAndServe(ctx, a.cfg.GRPCAddr) })
	g.Go(func() error {
		a.log.Info("metrics listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "metrics server")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	health.SetServing(true)
	return g.Wait()
}
