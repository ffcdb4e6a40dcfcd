package database

import (
	"database/sql"

	"dnsgate/internal/model"
)

func (db *DB) AppendAudit(entry model.AuditEntry) error {
	clientID := sql.NullString{String: entry.ClientID, Valid: entry.ClientID != ""}
	_, err := db.conn.Exec(
		`INSERT INTO audit_log (client_id, source_ip, operation, domain, hostname, record_type, outcome, reason, security_event)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		clientID, entry.SourceIP, entry.Operation, entry.Domain, entry.Hostname,
		entry.RecordType, entry.Outcome, entry.Reason, entry.SecurityEvent,
	)
	return err
}

func (db *DB) ListAuditLog(limit, offset int) ([]model.AuditEntry, int, error) {
	var total int
	_ = db.conn.QueryRow("SELECT COUNT(*) FROM audit_log").Scan(&total)

	rows, err := db.conn.Query(
		`SELECT id, client_id, source_ip, operation, domain, hostname, record_type, outcome, reason, security_event, created_at
		 FROM audit_log ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var clientID sql.NullString
		if err := rows.Scan(&e.ID, &clientID, &e.SourceIP, &e.Operation, &e.Domain,
			&e.Hostname, &e.RecordType, &e.Outcome, &e.Reason, &e.SecurityEvent, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		e.ClientID = clientID.String
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
