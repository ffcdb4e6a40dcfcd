package database

import (
	"database/sql"
	"strings"
	"time"

	"dnsgate/internal/model"
)

// GetClientByClientID loads a client together with its permission rules
// and origin restrictions. Returns (nil, nil) when no such client exists.
func (db *DB) GetClientByClientID(clientID string) (*model.Client, error) {
	c := &model.Client{}
	var lockedUntil, expiresAt sql.NullTime
	err := db.conn.QueryRow(
		`SELECT id, client_id, secret_hash, active, failed_attempts, locked_until, expires_at, created_at, updated_at
		 FROM clients WHERE client_id = $1`,
		clientID,
	).Scan(&c.ID, &c.ClientID, &c.SecretHash, &c.Active, &c.FailedAttempts,
		&lockedUntil, &expiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lockedUntil.Valid {
		c.LockedUntil = &lockedUntil.Time
	}
	if expiresAt.Valid {
		c.ExpiresAt = &expiresAt.Time
	}

	if c.Rules, err = db.rulesForClient(c.ID); err != nil {
		return nil, err
	}
	if c.Origins, err = db.originsForClient(c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

func (db *DB) rulesForClient(id int64) ([]model.PermissionRule, error) {
	rows, err := db.conn.Query(
		`SELECT id, client_id, realm_type, realm, record_types, operations, created_at
		 FROM permission_rules WHERE client_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []model.PermissionRule
	for rows.Next() {
		var r model.PermissionRule
		var types, ops string
		if err := rows.Scan(&r.ID, &r.ClientID, &r.RealmType, &r.Realm, &types, &ops, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.RecordTypes = splitSet(types)
		r.Operations = splitSet(ops)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (db *DB) originsForClient(id int64) ([]model.OriginRestriction, error) {
	rows, err := db.conn.Query(
		`SELECT id, client_id, value, created_at
		 FROM origin_restrictions WHERE client_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var origins []model.OriginRestriction
	for rows.Next() {
		var o model.OriginRestriction
		if err := rows.Scan(&o.ID, &o.ClientID, &o.Value, &o.CreatedAt); err != nil {
			return nil, err
		}
		origins = append(origins, o)
	}
	return origins, rows.Err()
}

func (db *DB) ListClients() ([]model.Client, error) {
	rows, err := db.conn.Query(
		`SELECT id, client_id, active, failed_attempts, locked_until, expires_at, created_at, updated_at
		 FROM clients ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		var c model.Client
		var lockedUntil, expiresAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.ClientID, &c.Active, &c.FailedAttempts,
			&lockedUntil, &expiresAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if lockedUntil.Valid {
			c.LockedUntil = &lockedUntil.Time
		}
		if expiresAt.Valid {
			c.ExpiresAt = &expiresAt.Time
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (db *DB) CreateClient(clientID, secretHash string, expiresAt *time.Time) error {
	_, err := db.conn.Exec(
		"INSERT INTO clients (client_id, secret_hash, expires_at) VALUES ($1, $2, $3)",
		clientID, secretHash, expiresAt,
	)
	return err
}

func (db *DB) UpdateClientSecret(clientID, secretHash string) error {
	_, err := db.conn.Exec(
		`UPDATE clients SET secret_hash = $1, failed_attempts = 0, locked_until = NULL, updated_at = NOW()
		 WHERE client_id = $2`,
		secretHash, clientID)
	return err
}

func (db *DB) SetClientActive(clientID string, active bool) error {
	_, err := db.conn.Exec("UPDATE clients SET active = $1, updated_at = NOW() WHERE client_id = $2",
		active, clientID)
	return err
}

func (db *DB) DeleteClient(clientID string) error {
	_, err := db.conn.Exec("DELETE FROM clients WHERE client_id = $1", clientID)
	return err
}

// UnlockClient clears the failure counter and any active lockout.
func (db *DB) UnlockClient(clientID string) error {
	_, err := db.conn.Exec(
		"UPDATE clients SET failed_attempts = 0, locked_until = NULL, updated_at = NOW() WHERE client_id = $1",
		clientID)
	return err
}

// RegisterAuthFailure increments the failure counter and, when the
// threshold is crossed, sets the lockout timestamp. The whole mutation is
// a single statement so concurrent bursts cannot slip past the threshold
// with a read-then-write race. Returns true when the client is now locked.
func (db *DB) RegisterAuthFailure(clientID string, threshold int, cooldown time.Duration) (bool, error) {
	var locked bool
	err := db.conn.QueryRow(
		`UPDATE clients SET
		   failed_attempts = failed_attempts + 1,
		   locked_until = CASE WHEN failed_attempts + 1 >= $2
		                       THEN NOW() + make_interval(secs => $3)
		                       ELSE locked_until END,
		   updated_at = NOW()
		 WHERE client_id = $1
		 RETURNING failed_attempts >= $2`,
		clientID, threshold, cooldown.Seconds(),
	).Scan(&locked)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return locked, err
}

func (db *DB) ResetAuthFailures(clientID string) error {
	_, err := db.conn.Exec(
		`UPDATE clients SET failed_attempts = 0, locked_until = NULL, updated_at = NOW()
		 WHERE client_id = $1 AND (failed_attempts <> 0 OR locked_until IS NOT NULL)`,
		clientID)
	return err
}

func (db *DB) AddRule(r model.PermissionRule) error {
	_, err := db.conn.Exec(
		`INSERT INTO permission_rules (client_id, realm_type, realm, record_types, operations)
		 VALUES ($1, $2, $3, $4, $5)`,
		r.ClientID, string(r.RealmType), r.Realm, joinSet(r.RecordTypes), joinSet(r.Operations))
	return err
}

func (db *DB) DeleteRule(id int64) error {
	_, err := db.conn.Exec("DELETE FROM permission_rules WHERE id = $1", id)
	return err
}

func (db *DB) AddOrigin(o model.OriginRestriction) error {
	_, err := db.conn.Exec(
		"INSERT INTO origin_restrictions (client_id, value) VALUES ($1, $2)",
		o.ClientID, o.Value)
	return err
}

func (db *DB) DeleteOrigin(id int64) error {
	_, err := db.conn.Exec("DELETE FROM origin_restrictions WHERE id = $1", id)
	return err
}

func splitSet(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func joinSet(values []string) string {
	return strings.Join(values, ",")
}
