package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jd3nn1s/obdlink"
	"github.com/jd3nn1s/obdlink/config"
	"github.com/jd3nn1s/obdlink/forwarder"
	"github.com/jd3nn1s/obdlink/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var configFile = flag.String("config", "obdlink.toml", "configuration file (toml or yaml)")
var testMode = flag.Bool("testmode", false, "generate test data")
var printTelemetry = flag.Bool("print-telemetry", false, "print telemetry to stdout")

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

	if cfg.Sender.MetricsAddr != "" {
		metrics.Register()
		go func() {
			log.Error(http.ListenAndServe(cfg.Sender.MetricsAddr, promhttp.Handler()))
		}()
	}

	sender := obdlink.NewSender(cfg.Sender)
	fwder, err := forwarder.NewUDPForwarder(cfg.Link)
	if err != nil {
		log.Fatal("unable to load UDP forwarder: ", err)
	}
	defer fwder.Close()
	go fwder.Start(ctx)
	sender.AddForwarder(fwder)

	if cfg.Sender.CANInterface != "" {
		sender.AddForwarder(obdlink.NewCANForwarder(ctx, cfg.Sender.CANInterface))
	}

	sender.SetTestMode(*testMode)
	sender.Start(ctx)

	for ctx.Err() == nil {
		changed := sender.CheckChannels(ctx)
		if changed {
			if *printTelemetry {
				log.WithFields(sender.Telemetry.Fields()).Info("telemetry")
			}
			sender.TelemetryUpdate()
		}
	}
	log.Info("sender stopped")
}
