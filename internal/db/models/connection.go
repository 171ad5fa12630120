// connection.go defines the Connection model tracking one tunnel endpoint
// through its reserved/active/closed lifecycle. The connection repository uses
// sqlx struct scanning, hence the db tags.
package models

import "time"

// ConnectionType distinguishes HTTP subdomain tunnels from raw TCP tunnels.
type ConnectionType string

const (
	ConnectionTypeHTTP ConnectionType = "http"
	ConnectionTypeTCP  ConnectionType = "tcp"
)

// Valid reports whether t is a known connection type.
func (t ConnectionType) Valid() bool {
	return t == ConnectionTypeHTTP || t == ConnectionTypeTCP
}

// ConnectionStatus is the lifecycle state of a connection.
type ConnectionStatus string

const (
	// ConnectionStatusReserved is the initial state: the record exists but the
	// tunnel has not opened. Reservations older than ten seconds are reclaimed.
	ConnectionStatusReserved ConnectionStatus = "reserved"
	ConnectionStatusActive   ConnectionStatus = "active"
	ConnectionStatusClosed   ConnectionStatus = "closed"
)

// Connection is one tunnel endpoint record. ID is a 26-character ULID, so ids
// sort by creation time. Subdomain is set only for http connections; Port only
// for tcp.
type Connection struct {
	ID        string           `db:"id" json:"id"`
	Type      ConnectionType   `db:"type" json:"type"`
	Subdomain *string          `db:"subdomain" json:"subdomain"`
	Port      *int             `db:"port" json:"port"`
	Status    ConnectionStatus `db:"status" json:"status"`
	CreatedBy string           `db:"created_by" json:"created_by"`
	TeamID    string           `db:"team_id" json:"team_id"`
	StartedAt *time.Time       `db:"started_at" json:"started_at"`
	ClosedAt  *time.Time       `db:"closed_at" json:"closed_at"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// ConnectionWithCreator joins a connection with the email of the member that
// created it, for list rendering.
type ConnectionWithCreator struct {
	Connection
	CreatorEmail string `db:"creator_email" json:"creator_email"`
}
