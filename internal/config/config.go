// Package config holds the runtime configuration of a node and the YAML
// configuration file loader used by the command line.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/wolfeidau/pcfhub/internal/store/postgres"
	"github.com/wolfeidau/pcfhub/internal/vault"
)

// Store types.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Node configures a running node.
type Node struct {
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8443" env:"PCFHUB_LISTEN"`
	Cert   string `help:"path to TLS cert file" default:"" env:"PCFHUB_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"PCFHUB_TLS_KEY"`

	BaseURL     string   `help:"public base URL of this node, used as token issuer and in bundles" default:"https://localhost:8443" env:"PCFHUB_BASE_URL"`
	CORSOrigins []string `help:"allowed CORS origins for the operator API" default:"https://localhost" env:"PCFHUB_CORS_ORIGINS"`

	NodeKey     string `help:"path to the PEM encoded ECDSA P-256 node key" default:"" env:"PCFHUB_NODE_KEY"`
	VaultSecret string `help:"application secret used to encrypt stored credentials" env:"PCFHUB_VAULT_SECRET"`
	Dev         bool   `help:"development mode, allows an ephemeral node key" default:"false" env:"PCFHUB_DEV"`

	SignatureMaxAge time.Duration `help:"accepted clock skew of signed requests" default:"5m" env:"PCFHUB_SIGNATURE_MAX_AGE"`
	MaxBodyBytes    int64         `help:"maximum accepted request body size" default:"4194304" env:"PCFHUB_MAX_BODY_BYTES"`
	TokenTTL        time.Duration `help:"lifetime of issued access tokens" default:"1h" env:"PCFHUB_TOKEN_TTL"`
	HTTPTimeout     time.Duration `help:"timeout of calls to partner nodes" default:"30s" env:"PCFHUB_HTTP_TIMEOUT"`
	JWKSCacheDir    string        `help:"directory caching partner key sets, in memory when empty" default:"" env:"PCFHUB_JWKS_CACHE_DIR"`

	Tracing     bool    `help:"enable tracing and metrics export" default:"false" env:"PCFHUB_TRACING"`
	SampleRatio float64 `help:"fraction of traces sampled" default:"1" env:"PCFHUB_TRACE_SAMPLE_RATIO"`

	StoreType string        `help:"store type (memory or postgres)" default:"memory" env:"PCFHUB_STORE_TYPE" enum:"memory,postgres"`
	Postgres  PostgresFlags `embed:"" prefix:"postgres-"`
}

// PostgresFlags configures the shared connection pool.
type PostgresFlags struct {
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"2"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`
	StartupTimeout  int32 `help:"seconds to wait for the database on startup" default:"30"`

	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"PCFHUB_POSTGRES_AUTO_MIGRATE"`
}

// PoolConfig converts the flags into a pool configuration.
func (p *PostgresFlags) PoolConfig() *postgres.PoolConfig {
	return &postgres.PoolConfig{
		ConnString:      p.ConnString,
		MaxConns:        p.MaxConns,
		MinConns:        p.MinConns,
		MaxConnLifetime: p.MaxConnLifetime,
		MaxConnIdleTime: p.MaxConnIdleTime,
		StartupTimeout:  p.StartupTimeout,
	}
}

// Validate checks the PostgreSQL settings.
func (p *PostgresFlags) Validate() error {
	if p.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

// Validate checks the settings a node cannot start without.
func (n *Node) Validate() error {
	u, err := url.Parse(n.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("base URL must be an absolute http(s) URL, got %q", n.BaseURL)
	}
	if len(n.VaultSecret) < vault.MinSecretLength {
		return fmt.Errorf("vault secret must be at least %d bytes (--vault-secret or PCFHUB_VAULT_SECRET)", vault.MinSecretLength)
	}
	if n.NodeKey == "" && !n.Dev {
		return errors.New("node key is required outside development mode (--node-key or PCFHUB_NODE_KEY)")
	}
	if (n.Cert == "") != (n.Key == "") {
		return errors.New("TLS cert and key must be set together")
	}
	if n.SampleRatio < 0 || n.SampleRatio > 1 {
		return errors.New("trace sample ratio must be between 0 and 1")
	}
	if n.StoreType == StorePostgres {
		return n.Postgres.Validate()
	}
	return nil
}
