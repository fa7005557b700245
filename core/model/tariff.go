package model

import "time"

// TariffStatus is the lifecycle state of a tariff.
type TariffStatus int

const (
	TariffActive TariffStatus = iota
	TariffRevoked
)

// String returns a human-readable representation of the status.
func (s TariffStatus) String() string {
	switch s {
	case TariffActive:
		return "active"
	case TariffRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Tariff is a priced offering issued by a broker. The core only tracks
// ownership and revocation.
type Tariff struct {
	ID             int64        `json:"id" yaml:"id"`
	Broker         string       `json:"broker" yaml:"broker"`
	OwnerAuthToken string       `json:"owner_auth_token" yaml:"owner_auth_token"`
	Status         TariffStatus `json:"status" yaml:"-"`
	RevokedAt      time.Time    `json:"revoked_at,omitempty" yaml:"-"`
}

// IsRevoked reports whether the tariff has been revoked.
func (t Tariff) IsRevoked() bool { return t.Status == TariffRevoked }
