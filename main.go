package main

import (
	"flag"
	"log"

	"dnsgate/internal/config"
	"dnsgate/internal/server"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Println("=== DNSGATE - scoped DNS API proxy ===")
	log.Printf("Version: %s", version)
	log.Printf("Listening on %s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Lockout after %d failures, cooldown %s", cfg.Security.LockoutThreshold, cfg.Security.Cooldown())

	if err := server.Start(cfg, version); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
