package server

import (
	"fmt"
	"log"
	"net/http"

	"dnsgate/db"
	"dnsgate/internal/audit"
	"dnsgate/internal/auth"
	"dnsgate/internal/config"
	"dnsgate/internal/database"
	"dnsgate/internal/handler"
	"dnsgate/internal/notify"
	"dnsgate/internal/proxy"
	"dnsgate/internal/ratelimit"
	"dnsgate/internal/upstream"
)

func Start(cfg *config.Config, version string) error {
	store, err := database.Open(cfg.Database.DSN, db.MigrationsFS())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	dispatcher := notify.NewDispatcher(nil)
	defer dispatcher.Close()

	recorder := audit.NewRecorder(store, dispatcher)
	validator := auth.NewValidator(store, cfg.Security.LockoutThreshold, cfg.Security.Cooldown(), dispatcher)
	guard := auth.NewGuard()
	limiter := ratelimit.NewLimiter(store, cfg.RateLimit)

	gateway, err := upstream.NewGateway(cfg, store)
	if err != nil {
		return fmt.Errorf("failed to init upstream gateway: %w", err)
	}

	orch := proxy.NewOrchestrator(limiter, validator, guard, gateway, recorder)

	var ldapClient *auth.LDAPClient
	if cfg.LDAP.Enabled {
		ldapClient = auth.NewLDAPClient(cfg.LDAP)
		log.Println("LDAP operator authentication enabled")
		log.Printf("LDAP server: %s", cfg.LDAP.URL)
	}

	proxyH := handler.NewProxyHandler(orch)
	adminH := handler.NewAdminHandler(store, recorder, ldapClient, cfg.Admin.Username, cfg.Admin.PasswordHash)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/dns", proxyH.Handle)

	mux.HandleFunc("GET /admin/clients", adminH.RequireOperator(adminH.ListClients))
	mux.HandleFunc("POST /admin/clients", adminH.RequireOperator(adminH.CreateClient))
	mux.HandleFunc("DELETE /admin/clients/{clientID}", adminH.RequireOperator(adminH.DeleteClient))
	mux.HandleFunc("POST /admin/clients/{clientID}/active", adminH.RequireOperator(adminH.SetClientActive))
	mux.HandleFunc("POST /admin/clients/{clientID}/rotate", adminH.RequireOperator(adminH.RotateSecret))
	mux.HandleFunc("POST /admin/clients/{clientID}/unlock", adminH.RequireOperator(adminH.UnlockClient))
	mux.HandleFunc("POST /admin/clients/{clientID}/rules", adminH.RequireOperator(adminH.AddRule))
	mux.HandleFunc("DELETE /admin/rules/{id}", adminH.RequireOperator(adminH.DeleteRule))
	mux.HandleFunc("POST /admin/clients/{clientID}/origins", adminH.RequireOperator(adminH.AddOrigin))
	mux.HandleFunc("DELETE /admin/origins/{id}", adminH.RequireOperator(adminH.DeleteOrigin))
	mux.HandleFunc("GET /admin/audit", adminH.RequireOperator(adminH.AuditLog))
	mux.HandleFunc("POST /admin/zones/flush", adminH.RequireOperator(adminH.FlushZoneCache))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(w, "ok %s\n", version)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("dnsgate server starting on %s", addr)
	return http.ListenAndServe(addr, mux)
}
