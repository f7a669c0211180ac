package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// EngineKind categorizes a database backend behind the execution engine's
// common interface.
type EngineKind string

const (
	EnginePostgres  EngineKind = "postgres"
	EngineMySQL     EngineKind = "mysql"
	EngineSQLServer EngineKind = "sqlserver"
	EngineMongoDB   EngineKind = "mongodb"
	EngineSQLite    EngineKind = "sqlite"
)

// ValidEngineKind reports whether s names a supported engine kind.
func ValidEngineKind(s string) bool {
	switch EngineKind(s) {
	case EnginePostgres, EngineMySQL, EngineSQLServer, EngineMongoDB, EngineSQLite:
		return true
	}
	return false
}

// Dialect returns the query dialect the engine kind understands.
func (k EngineKind) Dialect() Dialect {
	if k == EngineMongoDB {
		return DialectDocument
	}
	return DialectSQL
}

// ConnectionProfile identifies one configured database session. Supplied by
// the external configuration layer per call or per session; the execution
// engine holds at most one live connection per profile at a time.
type ConnectionProfile struct {
	EngineKind EngineKind `json:"engine_kind"`
	Host       string     `json:"host"`
	Port       int        `json:"port"`
	Database   string     `json:"database"` // database name, or file path for sqlite
	Username   string     `json:"username"`
	Password   string     `json:"-"` // never serialized
}

// Fingerprint returns a stable key identifying the profile, safe to log and
// to use as a cache/pool key. The password participates in the hash so a
// credential change forces a reconnect, but is never exposed.
func (p ConnectionProfile) Fingerprint() string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s|%s|%s",
		p.EngineKind, p.Host, p.Port, p.Database, p.Username, p.Password)))
	return string(p.EngineKind) + ":" + hex.EncodeToString(h[:8])
}

// Validate checks the profile for the fields its engine kind requires.
func (p ConnectionProfile) Validate() error {
	if !ValidEngineKind(string(p.EngineKind)) {
		return fmt.Errorf("unsupported engine kind %q", p.EngineKind)
	}
	if p.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if p.EngineKind != EngineSQLite && p.Host == "" {
		return fmt.Errorf("host is required for %s", p.EngineKind)
	}
	return nil
}
