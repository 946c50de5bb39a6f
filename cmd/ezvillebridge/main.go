// Command ezvillebridge bridges an EzVille RS-485 wallpad bus to an
// MQTT broker: decoded device state is published for Home Assistant,
// and commands published back are encoded and sent to the gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-core/internal/ezville"
	"github.com/nerrad567/gray-logic-core/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-core/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-core/internal/infrastructure/mqtt"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "path to the bridge's JSON configuration file")
	flag.Parse()

	fmt.Printf("ezvillebridge %s (%s) built %s\n", version, commit, date)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Logging, version)
	logger.Info("ezvillebridge starting", "mode", cfg.Mode)

	mqttClient, err := mqtt.Connect(cfg.MQTTConnConfig())
	if err != nil {
		return fmt.Errorf("connecting to mqtt broker: %w", err)
	}
	defer mqttClient.Close()

	gateway, err := newGateway(ctx, cfg, mqttClient, logger)
	if err != nil {
		return fmt.Errorf("connecting to gateway: %w", err)
	}
	defer gateway.Close()

	bridge := ezville.NewBridge(bridgeConfig(cfg), mqttClient, gateway, logger, time.Now)
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received, stopping")
	bridge.Stop()
	logger.Info("ezvillebridge stopped")
	return nil
}

// ew11TelnetPort is the EW11 gateway's telnet service port. The
// original add-on dials telnetlib.Telnet(ew11_server) with no
// separate port option, which defaults to the standard telnet port;
// there is no options.json key for it either, so it stays a constant.
const ew11TelnetPort = 23

// newGateway builds the Connector implied by cfg.Mode.
func newGateway(ctx context.Context, cfg *config.Config, mqttClient *mqtt.Client, logger *logging.Logger) (ezville.Connector, error) {
	socketCfg := ezville.SocketConnectorConfig{
		Address:      fmt.Sprintf("%s:%d", cfg.EW11Server, cfg.EW11Port),
		BufferSize:   cfg.EW11BufferSize,
		ReceiveDelay: cfg.SerialRecvDelayDuration(),
	}

	switch ezville.TransportMode(cfg.Mode) {
	case ezville.ModeSocket:
		return ezville.DialSocket(ctx, socketCfg, logger)
	case ezville.ModeMQTT:
		return ezville.NewMQTTConnector(mqttClient)
	case ezville.ModeMixed:
		recv, err := ezville.NewMQTTConnector(mqttClient)
		if err != nil {
			return nil, err
		}
		send, err := ezville.DialSocket(ctx, socketCfg, logger)
		if err != nil {
			return nil, err
		}
		return ezville.NewMixedConnector(recv, send), nil
	default:
		return nil, fmt.Errorf("unsupported transport mode %q", cfg.Mode)
	}
}

// bridgeConfig maps the loaded file configuration onto the bridge's
// own Config shape.
func bridgeConfig(cfg *config.Config) ezville.Config {
	return ezville.Config{
		StateLoopDelay:   cfg.StateLoopDelayDuration(),
		CommandLoopDelay: cfg.CommandLoopDelayDuration(),
		EW11Timeout:      cfg.GatewayTimeout(),
		Transmitter: ezville.TransmitterConfig{
			CmdCount:      cfg.CommandSendCount,
			CmdInterval:   cfg.CommandIntervalDuration(),
			CmdRetryCount: cfg.CommandRetryCount,
			RandomBackoff: cfg.RandomBackoff,
		},
		Telnet: ezville.TelnetConfig{
			Address:  fmt.Sprintf("%s:%d", cfg.EW11Server, ew11TelnetPort),
			Username: cfg.EW11ID,
			Password: cfg.EW11Password,
			Timeout:  5 * time.Second,
		},
		MQTTLog: cfg.MQTTLog,
		EW11Log: cfg.EW11Log,
	}
}
