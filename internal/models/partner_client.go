package models

import (
	"time"

	"github.com/google/uuid"
)

// PartnerClient is a credential this node issued to a partner organization
// so it can authenticate against our token endpoint.
type PartnerClient struct {
	ClientID   string
	OrgID      uuid.UUID // partner organization the client acts for
	SecretHash []byte    // bcrypt

	CreatedAt time.Time
	RevokedAt *time.Time // Soft delete for revocation tracking
}

// IsRevoked returns true if the client credential has been revoked.
func (c *PartnerClient) IsRevoked() bool {
	return c.RevokedAt != nil
}
