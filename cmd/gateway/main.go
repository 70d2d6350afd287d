package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nestwatch/conbee-gateway/pkg/api"
	"github.com/nestwatch/conbee-gateway/pkg/automation"
	"github.com/nestwatch/conbee-gateway/pkg/config"
	"github.com/nestwatch/conbee-gateway/pkg/db"
	"github.com/nestwatch/conbee-gateway/pkg/device"
	"github.com/nestwatch/conbee-gateway/pkg/device/schema"
	"github.com/nestwatch/conbee-gateway/pkg/zigbee"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	dbPath := flag.String("db", "", "Path to installation-profile database (default: ~/.config/conbee-gateway/gateway.db)")
	portFlag := flag.String("port", "", "Path to the Zigbee coordinator serial device (default: CONBEE_PORT env, then autodetect)")
	dataDirFlag := flag.String("data-dir", "", "Directory for devices.json and automations.json (default: DATA_DIR env, then ./data)")
	flag.Parse()

	cfg := config.Load()
	if *portFlag != "" {
		cfg.SerialPort = *portFlag
	}
	if *dataDirFlag != "" {
		cfg.DataDir = *dataDirFlag
	}

	ctx := context.Background()

	database, err := db.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open installation-profile database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close installation-profile database")
		}
	}()

	if err := database.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run database migrations")
	}

	needsBootstrap, err := database.NeedsBootstrap(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to check bootstrap status")
	}
	if needsBootstrap {
		log.Info().Msg("first run detected, bootstrapping installation profile")
		if err := database.Bootstrap(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to bootstrap installation profile")
		}
	}

	profileCfg, err := database.ActiveConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load installation profile")
	}

	log.Info().
		Str("profile", profileCfg.Profile.Name).
		Str("timezone", profileCfg.Timezone()).
		Str("api_address", profileCfg.APIAddress()).
		Str("data_dir", cfg.DataDir).
		Msg("configuration loaded")

	// Try to connect to the Zigbee coordinator; absence is not fatal, the
	// API starts with network-dependent endpoints reporting unavailable.
	var controller device.Controller
	var eventSubscriber device.EventSubscriber
	var networkManager *zigbee.NetworkManager

	zbController, err := zigbee.NewController(cfg.SerialPort, cfg.DataDir)
	if err != nil {
		log.Warn().Err(err).Str("port", cfg.SerialPort).Msg("zigbee coordinator unavailable, using null controller")
		controller = device.NewNullController()
		eventSubscriber = device.NewNullEventSubscriber()
	} else {
		controller = zbController
		eventSubscriber = zbController
		networkManager = zbController.NetworkManager()
	}

	var automationEngine *automation.Engine
	if networkManager != nil {
		automationEngine = automation.NewEngine(networkManager, cfg.DataDir)
		automationEngine.Start()
		defer automationEngine.Stop()
	} else {
		log.Warn().Msg("automation engine not started: no zigbee network manager available")
	}

	validator := schema.NewValidator()
	router := api.NewRouter(controller, eventSubscriber, validator, automationEngine)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutting down")
		controller.Close()
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close installation-profile database")
		}
		os.Exit(0)
	}()

	addr := profileCfg.APIAddress()
	log.Info().Str("address", addr).Msg("starting gateway API server")
	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
