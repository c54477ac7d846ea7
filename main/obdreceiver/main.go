package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jd3nn1s/obdlink/broker"
	"github.com/jd3nn1s/obdlink/config"
	"github.com/jd3nn1s/obdlink/metrics"
	"github.com/jd3nn1s/obdlink/receiver"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var configFile = flag.String("config", "obdlink.toml", "configuration file (toml or yaml)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal("unable to load configuration: ", err)
	}
	level, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, monitor := &receiver.Store{}, &receiver.Monitor{}

	metrics.Register()
	if cfg.Receiver.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if monitor.IsStale(time.Now(), cfg.Receiver.Timeout()) {
				http.Error(w, "stale", http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("ok"))
		})
		go func() {
			log.Error(http.ListenAndServe(cfg.Receiver.MetricsAddr, mux))
		}()
	}

	listener, err := receiver.NewListener(cfg.Link.Listen, cfg.Link.Framed, store, monitor)
	if err != nil {
		log.Fatal("unable to open telemetry listener: ", err)
	}
	defer listener.Close()
	log.WithField("addr", listener.Addr()).Info("listening for telemetry")

	client, err := broker.Connect(cfg.Receiver.MQTT)
	if err != nil {
		log.Fatal("unable to connect to mqtt: ", err)
	}
	defer broker.Disconnect(client)

	publisher := receiver.NewPublisher(client, cfg.Receiver.MQTT.Topic, store, cfg.Receiver.Timeout())
	go func() {
		_ = publisher.Start(ctx, cfg.Receiver.PublishInterval())
	}()

	if err := listener.Start(ctx); err != nil && err != context.Canceled {
		log.WithField("err", err).Error("telemetry listener stopped")
	}
}
