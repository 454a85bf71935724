package store

import (
	"context"
	"errors"
)

// Sentinel errors for common error conditions
var (
	ErrNoRowsAffected    = errors.New("no rows affected")
	ErrOrganizationCycle = errors.New("organization tree contains a cycle")
)

// Store is the relational store used by the federation core. Reads may be
// issued directly; every multi-row mutation goes through WithTx.
type Store interface {
	Queries

	// WithTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back on any error, including a panic.
	WithTx(ctx context.Context, fn func(q Queries) error) error
}

// Queries is the set of operations available inside and outside a transaction.
type Queries interface {
	OrganizationStore
	ProductStore
	DataSourceStore
	PartnerClientStore
	FootprintStore
	TaskStore
}
