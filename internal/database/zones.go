package database

import "time"

const zoneCacheTTL = 5 * time.Minute

// GetCachedZoneID returns the hosted zone previously resolved for a
// domain, if the entry is still fresh.
func (db *DB) GetCachedZoneID(domain string) (string, bool) {
	var zoneID string
	var cachedAt time.Time
	err := db.conn.QueryRow(
		"SELECT zone_id, cached_at FROM zones_cache WHERE domain = $1", domain,
	).Scan(&zoneID, &cachedAt)
	if err != nil {
		return "", false
	}
	if time.Since(cachedAt) > zoneCacheTTL {
		return "", false
	}
	return zoneID, true
}

func (db *DB) CacheZoneID(domain, zoneID string) error {
	_, err := db.conn.Exec(
		`INSERT INTO zones_cache (domain, zone_id, cached_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (domain) DO UPDATE SET zone_id = $2, cached_at = NOW()`,
		domain, zoneID)
	return err
}

func (db *DB) InvalidateZoneCache() {
	_, _ = db.conn.Exec("DELETE FROM zones_cache")
}
