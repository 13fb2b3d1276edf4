package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"signal-desk/src/config"
	"signal-desk/src/engine"
	"signal-desk/src/entitlement"
	"signal-desk/src/interfaces"
	"signal-desk/src/logger"
	"signal-desk/src/models"
	"signal-desk/src/network"
	"signal-desk/src/pricefeed"
	"signal-desk/src/server"
	"signal-desk/src/session"
	"signal-desk/src/storage"
	"signal-desk/src/utils"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(config.Name)

	// 1. Storage
	var db interfaces.IStateStore

	switch config.Storage.DBType {
	case "postgres":
		db, err = storage.NewPostgresStateDB(config.MConfig, appLogger)
	default:
		// Default to SQLite
		db, err = storage.NewSQLiteStateDB(config.MConfig, appLogger)
	}

	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	if err := db.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
	}
	defer db.Close()

	// 2. Core components
	var networkManager interfaces.INetworkManager = network.NewAsyncNetworkManager(config.MConfig, appLogger)
	clock := utils.NewMarketClock()
	calendar := utils.NewExchangeCalendar()

	entitlements := entitlement.NewStore(db, logger.NewLogger("Entitlement"))
	entitlements.Load()

	signalEngine := engine.NewSignalEngine(db, logger.NewLogger("SignalEngine"))
	signalEngine.Load()

	sessionCtrl := session.NewController(config.MConfig, entitlements, signalEngine, logger.NewLogger("Session"))

	feed := pricefeed.NewPriceFeed(config.MConfig, networkManager, clock, logger.NewLogger("PriceFeed"))

	var srv interfaces.IDataExchanger = server.NewFastAPIServer(config.MConfig, sessionCtrl, entitlements, signalEngine, feed.Book, clock, calendar, appLogger)

	// 3. Start Server
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	// 4. Main Loop (Push Model)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wrapWg := &sync.WaitGroup{}
	updatesChan := make(chan map[string]models.MLivePrice, 100)

	// Start Feed
	if err := feed.Start(ctx, updatesChan, wrapWg); err != nil {
		appLogger.Critical("Failed to start price feed: %v", err)
		return
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	appLogger.Info("Starting price loop (Push Model)...")

	for {
		select {
		case updates, ok := <-updatesChan:
			if !ok {
				appLogger.Info("Price feed closed channel.")
				return
			}

			srv.Broadcast(&models.MPricePayload{
				Type:      "UPDATE",
				Prices:    updates,
				Timestamp: time.Now().UnixMilli(),
			})

		case <-quit:
			appLogger.Info("Shutting down...")
			feed.Stop()
			cancel()      // Signal sources to stop
			wrapWg.Wait() // Wait for sources to close
			return
		}
	}
}
