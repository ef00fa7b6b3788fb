package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jivedev/jivecore/internal/config"
	"github.com/jivedev/jivecore/internal/core"
	"github.com/jivedev/jivecore/internal/eventbus"
	"github.com/nats-io/nats-server/v2/server"
)

func main() {
	configPath := flag.String("config", "configs/jivecore.yaml", "Path to configuration file")
	port := flag.Int("port", 0, "Override server port (0 = use config)")
	flag.Parse()

	log.Println("===============================================")
	log.Println("  jivecore - work-item orchestration engine")
	log.Println("===============================================")

	var cfg *config.Config
	var err error

	if _, statErr := os.Stat(*configPath); statErr == nil {
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			log.Printf("[MAIN] Warning: failed to load config from %s: %v", *configPath, err)
			log.Println("[MAIN] Using default configuration")
			cfg = config.DefaultConfig()
		} else {
			log.Printf("[MAIN] Loaded configuration from %s", *configPath)
		}
	} else {
		log.Println("[MAIN] Config file not found, using defaults")
		cfg = config.DefaultConfig()
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}

	log.Printf("[MAIN] Server port: %d", cfg.Server.Port)
	log.Printf("[MAIN] NATS port: %d", cfg.Server.NATSPort)
	log.Printf("[MAIN] Store data path: %s", cfg.Store.DataPath)
	log.Printf("[MAIN] Embedding endpoint: %s (model %s)", cfg.Embedding.Endpoint, cfg.Embedding.Model)

	if err := os.MkdirAll(cfg.Store.DataPath, 0755); err != nil {
		log.Fatalf("[MAIN] Failed to create data directory: %v", err)
	}

	natsOpts := &server.Options{
		Port:     cfg.Server.NATSPort,
		HTTPPort: -1,
		NoLog:    true,
		NoSigs:   true,
	}
	natsServer, err := server.NewServer(natsOpts)
	if err != nil {
		log.Fatalf("[MAIN] Failed to create NATS server: %v", err)
	}
	go natsServer.Start()
	if !natsServer.ReadyForConnections(5 * time.Second) {
		log.Fatal("[MAIN] NATS server failed to start in time")
	}
	log.Printf("[MAIN] Embedded NATS server started on port %d", cfg.Server.NATSPort)

	natsURL := fmt.Sprintf("nats://localhost:%d", cfg.Server.NATSPort)
	bus, err := eventbus.Connect(natsURL, "jivecore")
	if err != nil {
		log.Fatalf("[MAIN] Failed to connect event bus: %v", err)
	}
	defer bus.Close()
	log.Printf("[MAIN] Event bus connected: %s", natsURL)

	c, err := core.New(cfg, bus)
	if err != nil {
		log.Fatalf("[MAIN] Failed to initialize core: %v", err)
	}
	defer c.Close()
	log.Println("[MAIN] Core initialized (store, resolver, dependency engine, hierarchy manager, sync engine, orchestrator, executor driver)")

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	mux.HandleFunc("/api/sessions/", func(w http.ResponseWriter, r *http.Request) {
		executionID := r.URL.Path[len("/api/sessions/"):]
		if executionID == "" {
			http.Error(w, "execution id required", http.StatusBadRequest)
			return
		}
		session := c.Orchestrator.Session(executionID)
		if session == nil {
			http.Error(w, "execution not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"execution_id":"%s","status":"%s","current_index":%d,"plan_size":%d}`,
			session.ExecutionID, session.Status, session.CurrentIndex, len(session.Plan))
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}

	go func() {
		log.Printf("[MAIN] HTTP server starting on port %d", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[MAIN] HTTP server error: %v", err)
		}
	}()

	log.Println("===============================================")
	log.Printf("  jivecore ready!")
	log.Printf("  Health:   http://localhost:%d/health", cfg.Server.Port)
	log.Printf("  Sessions: http://localhost:%d/api/sessions/<execution_id>", cfg.Server.Port)
	log.Println("===============================================")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[MAIN] Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("[MAIN] HTTP server shutdown error: %v", err)
	}

	natsServer.Shutdown()

	log.Println("[MAIN] jivecore shutdown complete")
}
