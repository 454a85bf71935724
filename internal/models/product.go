package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a product of an organization. Products form a bill of
// materials tree through ParentID.
type Product struct {
	ProductID   uuid.UUID
	OrgID       uuid.UUID
	ParentID    *uuid.UUID
	Name        string
	Description string
	CPC         string // UN CPC category code
	Identifiers []Identifier
	UnitAmount  float64
	Unit        string

	CreatedAt time.Time
	UpdatedAt time.Time
}
