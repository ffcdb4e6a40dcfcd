package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dnsgate/internal/model"
	"dnsgate/internal/notify"
)

// Denial reasons recorded in the audit trail. They never appear in a
// response body.
const (
	ReasonUnknownClient  = "unknown_client"
	ReasonClientInactive = "client_inactive"
	ReasonClientLocked   = "client_locked"
	ReasonClientExpired  = "client_expired"
	ReasonSecretMismatch = "secret_mismatch"
)

var (
	clientIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{2,63}$`)
	secretPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{20,128}$`)
)

// ValidClientID reports whether the identifier has the accepted shape:
// 3-64 chars of [a-z0-9-], starting alphanumeric.
func ValidClientID(id string) bool {
	return clientIDPattern.MatchString(id)
}

// ValidSecret reports whether a presented secret has the accepted shape:
// 20-128 chars of [A-Za-z0-9_-].
func ValidSecret(secret string) bool {
	return secretPattern.MatchString(secret)
}

// GenerateSecret returns a fresh client secret: 48 hex chars, which
// stays inside the accepted secret alphabet.
func GenerateSecret() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), 12)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ClientStore is the slice of the policy store the validator needs.
type ClientStore interface {
	GetClientByClientID(clientID string) (*model.Client, error)
	RegisterAuthFailure(clientID string, threshold int, cooldown time.Duration) (bool, error)
	ResetAuthFailures(clientID string) error
}

// Validator verifies presented credentials and maintains lockout state.
type Validator struct {
	store     ClientStore
	threshold int
	cooldown  time.Duration
	notifier  notify.Notifier
	now       func() time.Time
}

func NewValidator(store ClientStore, threshold int, cooldown time.Duration, notifier notify.Notifier) *Validator {
	return &Validator{
		store:     store,
		threshold: threshold,
		cooldown:  cooldown,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Authenticate resolves the client and verifies the secret. On success
// it returns the client and clears the failure counter. On denial it
// returns a nil client and the audit reason; err is reserved for store
// failures. Callers must treat every denial the same externally.
func (v *Validator) Authenticate(clientID, secret string) (*model.Client, string, error) {
	client, err := v.store.GetClientByClientID(clientID)
	if err != nil {
		return nil, "", fmt.Errorf("client lookup: %w", err)
	}
	if client == nil {
		return nil, ReasonUnknownClient, nil
	}

	now := v.now()
	if !client.Active {
		return nil, ReasonClientInactive, nil
	}
	if client.LockedUntil != nil && now.Before(*client.LockedUntil) {
		return nil, ReasonClientLocked, nil
	}
	if client.ExpiresAt != nil && now.After(*client.ExpiresAt) {
		return nil, ReasonClientExpired, nil
	}

	if bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(secret)) != nil {
		locked, ferr := v.store.RegisterAuthFailure(clientID, v.threshold, v.cooldown)
		if ferr != nil {
			return nil, "", fmt.Errorf("failure count update: %w", ferr)
		}
		if locked && v.notifier != nil {
			v.notifier.Notify(notify.Event{
				Kind:     notify.KindLockout,
				ClientID: clientID,
				Detail:   fmt.Sprintf("locked after %d consecutive failures", v.threshold),
			})
		}
		return nil, ReasonSecretMismatch, nil
	}

	if err := v.store.ResetAuthFailures(clientID); err != nil {
		return nil, "", fmt.Errorf("failure count reset: %w", err)
	}
	return client, "", nil
}
