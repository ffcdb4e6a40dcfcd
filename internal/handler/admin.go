package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dnsgate/internal/audit"
	"dnsgate/internal/auth"
	"dnsgate/internal/database"
	"dnsgate/internal/model"
	"dnsgate/internal/permission"
	"dnsgate/internal/util"
)

// AdminHandler is the policy-administration surface: clients, rules and
// origin restrictions. It sits outside the request-path core; every
// mutation is audited like a request decision.
type AdminHandler struct {
	db        *database.DB
	recorder  *audit.Recorder
	ldap      *auth.LDAPClient
	adminUser string
	adminHash string
}

func NewAdminHandler(db *database.DB, recorder *audit.Recorder, ldap *auth.LDAPClient, adminUser, adminHash string) *AdminHandler {
	return &AdminHandler{
		db:        db,
		recorder:  recorder,
		ldap:      ldap,
		adminUser: adminUser,
		adminHash: adminHash,
	}
}

// RequireOperator gates the admin API with HTTP Basic auth: LDAP with an
// admin-mapped group when enabled, otherwise the configured local
// operator account.
func (h *AdminHandler) RequireOperator(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if ok && h.authorize(username, password) {
			next(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="dnsgate admin"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}
}

func (h *AdminHandler) authorize(username, password string) bool {
	if h.ldap != nil {
		result, err := h.ldap.Authenticate(username, password)
		return err == nil && result != nil && h.ldap.IsAdmin(result.Groups)
	}
	if username != h.adminUser {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(h.adminHash), []byte(password)) == nil
}

func (h *AdminHandler) logAction(r *http.Request, action, clientID, detail string) {
	h.recorder.Record(model.AuditEntry{
		ClientID:  clientID,
		SourceIP:  util.GetClientIP(r),
		Operation: action,
		Reason:    detail,
		Outcome:   model.OutcomeAllowed,
	})
}

func (h *AdminHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.db.ListClients()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list clients")
		return
	}

	type clientView struct {
		ClientID       string     `json:"client_id"`
		Active         bool       `json:"active"`
		FailedAttempts int        `json:"failed_attempts"`
		LockedUntil    *time.Time `json:"locked_until,omitempty"`
		ExpiresAt      *time.Time `json:"expires_at,omitempty"`
		CreatedAt      time.Time  `json:"created_at"`
	}
	views := make([]clientView, 0, len(clients))
	for _, c := range clients {
		views = append(views, clientView{
			ClientID:       c.ClientID,
			Active:         c.Active,
			FailedAttempts: c.FailedAttempts,
			LockedUntil:    c.LockedUntil,
			ExpiresAt:      c.ExpiresAt,
			CreatedAt:      c.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"clients": views})
}

// CreateClient provisions a client and returns the generated secret
// exactly once. Only the bcrypt hash is stored.
func (h *AdminHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ClientID  string     `json:"client_id"`
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if !auth.ValidClientID(body.ClientID) {
		writeError(w, http.StatusBadRequest, "client_id must be 3-64 chars of [a-z0-9-], starting alphanumeric")
		return
	}

	secret := auth.GenerateSecret()
	hash, err := auth.HashSecret(secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash secret")
		return
	}
	if err := h.db.CreateClient(body.ClientID, hash, body.ExpiresAt); err != nil {
		writeError(w, http.StatusConflict, "failed to create client")
		return
	}

	h.logAction(r, "admin_create_client", body.ClientID, "")
	writeJSON(w, http.StatusCreated, map[string]string{
		"client_id": body.ClientID,
		"secret":    secret,
	})
}

func (h *AdminHandler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientID")
	if err := h.db.DeleteClient(clientID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete client")
		return
	}
	h.logAction(r, "admin_delete_client", clientID, "")
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *AdminHandler) SetClientActive(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientID")
	var body struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.db.SetClientActive(clientID, body.Active); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update client")
		return
	}
	h.logAction(r, "admin_set_client_active", clientID, fmt.Sprintf("active=%t", body.Active))
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// RotateSecret replaces the client secret and clears lockout state.
func (h *AdminHandler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientID")

	secret := auth.GenerateSecret()
	hash, err := auth.HashSecret(secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash secret")
		return
	}
	if err := h.db.UpdateClientSecret(clientID, hash); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to rotate secret")
		return
	}

	h.logAction(r, "admin_rotate_secret", clientID, "")
	writeJSON(w, http.StatusOK, map[string]string{
		"client_id": clientID,
		"secret":    secret,
	})
}

func (h *AdminHandler) UnlockClient(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientID")
	if err := h.db.UnlockClient(clientID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to unlock client")
		return
	}
	h.logAction(r, "admin_unlock_client", clientID, "")
	writeJSON(w, http.StatusOK, map[string]string{"status": "unlocked"})
}

func (h *AdminHandler) AddRule(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientID")
	var body struct {
		RealmType   string   `json:"realm_type"`
		Realm       string   `json:"realm"`
		RecordTypes []string `json:"record_types"`
		Operations  []string `json:"operations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	realmType := model.RealmType(body.RealmType)
	if realmType != model.RealmExactHost && realmType != model.RealmDelegation {
		writeError(w, http.StatusBadRequest, "realm_type must be exact or delegation")
		return
	}
	if !permission.ValidName(body.Realm) {
		writeError(w, http.StatusBadRequest, "realm is not a valid DNS name")
		return
	}
	if len(body.RecordTypes) == 0 || len(body.Operations) == 0 {
		writeError(w, http.StatusBadRequest, "record_types and operations must not be empty")
		return
	}
	for _, t := range body.RecordTypes {
		if t != model.Wildcard && !model.ValidRecordType(t) {
			writeError(w, http.StatusBadRequest, "unknown record type: "+t)
			return
		}
	}
	for _, op := range body.Operations {
		if op != model.Wildcard && !model.ValidOperation(op) {
			writeError(w, http.StatusBadRequest, "unknown operation: "+op)
			return
		}
	}

	client, err := h.db.GetClientByClientID(clientID)
	if err != nil || client == nil {
		writeError(w, http.StatusNotFound, "no such client")
		return
	}

	rule := model.PermissionRule{
		ClientID:    client.ID,
		RealmType:   realmType,
		Realm:       body.Realm,
		RecordTypes: body.RecordTypes,
		Operations:  body.Operations,
	}
	if err := h.db.AddRule(rule); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add rule")
		return
	}

	h.logAction(r, "admin_add_rule", clientID,
		fmt.Sprintf("%s %s types=%v ops=%v", realmType, body.Realm, body.RecordTypes, body.Operations))
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (h *AdminHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	if err := h.db.DeleteRule(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete rule")
		return
	}
	h.logAction(r, "admin_delete_rule", "", fmt.Sprintf("rule_id=%d", id))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *AdminHandler) AddOrigin(w http.ResponseWriter, r *http.Request) {
	clientID := r.PathValue("clientID")
	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := auth.ValidOriginValue(body.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	client, err := h.db.GetClientByClientID(clientID)
	if err != nil || client == nil {
		writeError(w, http.StatusNotFound, "no such client")
		return
	}

	if err := h.db.AddOrigin(model.OriginRestriction{ClientID: client.ID, Value: body.Value}); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add origin restriction")
		return
	}

	h.logAction(r, "admin_add_origin", clientID, body.Value)
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (h *AdminHandler) DeleteOrigin(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid origin id")
		return
	}
	if err := h.db.DeleteOrigin(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete origin restriction")
		return
	}
	h.logAction(r, "admin_delete_origin", "", fmt.Sprintf("origin_id=%d", id))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// FlushZoneCache drops cached domain-to-zone lookups so the next request
// resolves against the vendor account again. Useful after zones are added
// or removed upstream.
func (h *AdminHandler) FlushZoneCache(w http.ResponseWriter, r *http.Request) {
	h.db.InvalidateZoneCache()
	h.logAction(r, "admin_flush_zone_cache", "", "")
	writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}

func (h *AdminHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit := 50
	offset := (page - 1) * limit

	entries, total, err := h.db.ListAuditLog(limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load audit log")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries":     entries,
		"page":        page,
		"total":       total,
		"total_pages": (total + limit - 1) / limit,
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": msg})
}
