package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/pairlink/pairlink/cmd/relayserver/config"
	"github.com/pairlink/pairlink/signaling"
	"github.com/spf13/viper"
)

func main() {
	configFilePath := flag.String("configFilePath", "config.yaml", "Set the file path to the config file.")
	flag.Parse()

	config.LoadConfig(*configFilePath)
	logFilePointer := config.ConfigureLogger()
	if logFilePointer != nil {
		defer logFilePointer.Close()
	}

	// --------------------------------------------------------------------------------

	registry := signaling.NewRegistry(nil)
	monitor := signaling.NewMonitor(viper.GetDuration("probeinterval"), nil)
	server := signaling.NewRelayServer(nil, registry, monitor, websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go monitor.Run(ctx)

	listenAddress := viper.GetString("listenaddress")
	slog.Info("starting signaling relay", "listenAddress", listenAddress)
	if err := http.ListenAndServe(listenAddress, server.Handler()); err != nil {
		slog.Error("error during listen and serve", "err", err)
	}
}
