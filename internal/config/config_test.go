package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, yamlDoc string, args ...string) *Node {
	t.Helper()

	var cli struct {
		Config kong.ConfigFlag `help:"configuration file"`
		Node   Node            `embed:""`
	}
	parser, err := kong.New(&cli, kong.Configuration(YAML), kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)

	if yamlDoc != "" {
		path := filepath.Join(t.TempDir(), "pcfhub.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))
		args = append([]string{"--config", path}, args...)
	}

	_, err = parser.Parse(args)
	require.NoError(t, err)
	return &cli.Node
}

func TestYAMLResolver(t *testing.T) {
	n := parse(t, `
base_url: https://us.example
listen: 127.0.0.1:9000
token-ttl: 15m
tracing: true
cors-origins:
  - https://console.example
  - https://admin.example
store-type: postgres
postgres:
  conn-string: postgres://pcf@db/pcf
  max-conns: 7
`)

	require.Equal(t, "https://us.example", n.BaseURL)
	require.Equal(t, "127.0.0.1:9000", n.Listen)
	require.Equal(t, 15*time.Minute, n.TokenTTL)
	require.True(t, n.Tracing)
	require.Equal(t, []string{"https://console.example", "https://admin.example"}, n.CORSOrigins)
	require.Equal(t, StorePostgres, n.StoreType)
	require.Equal(t, "postgres://pcf@db/pcf", n.Postgres.ConnString)
	require.EqualValues(t, 7, n.Postgres.MaxConns)
	require.Equal(t, 5*time.Minute, n.SignatureMaxAge)
}

func TestDefaultsWithoutConfig(t *testing.T) {
	n := parse(t, "")
	require.Equal(t, StoreMemory, n.StoreType)
	require.Equal(t, time.Hour, n.TokenTTL)
	require.EqualValues(t, 4<<20, n.MaxBodyBytes)
}

func TestEmptyConfigFile(t *testing.T) {
	n := parse(t, "# nothing here\n")
	require.Equal(t, "0.0.0.0:8443", n.Listen)
}

func TestYAMLRejectsMalformedDocument(t *testing.T) {
	_, err := YAML(strings.NewReader("listen: [unterminated"))
	require.Error(t, err)
}

func TestNodeValidate(t *testing.T) {
	valid := func() *Node {
		return &Node{
			BaseURL:     "https://us.example",
			VaultSecret: strings.Repeat("s", 32),
			NodeKey:     "/etc/pcfhub/node.pem",
			StoreType:   StoreMemory,
			SampleRatio: 1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(n *Node)
		wantErr string
	}{
		{"valid", func(n *Node) {}, ""},
		{"relative base url", func(n *Node) { n.BaseURL = "/pcf" }, "base URL"},
		{"short vault secret", func(n *Node) { n.VaultSecret = "short" }, "vault secret"},
		{"missing node key", func(n *Node) { n.NodeKey = "" }, "node key"},
		{"ephemeral key in dev", func(n *Node) { n.NodeKey = ""; n.Dev = true }, ""},
		{"cert without key", func(n *Node) { n.Cert = "cert.pem" }, "TLS"},
		{"sample ratio", func(n *Node) { n.SampleRatio = 2 }, "sample ratio"},
		{"postgres without conn string", func(n *Node) { n.StoreType = StorePostgres }, "connection string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := valid()
			tt.mutate(n)
			err := n.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
