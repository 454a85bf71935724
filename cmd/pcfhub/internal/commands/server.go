package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/wolfeidau/pcfhub/internal/auth"
	"github.com/wolfeidau/pcfhub/internal/client"
	"github.com/wolfeidau/pcfhub/internal/config"
	"github.com/wolfeidau/pcfhub/internal/federation"
	"github.com/wolfeidau/pcfhub/internal/httpsig"
	"github.com/wolfeidau/pcfhub/internal/logger"
	"github.com/wolfeidau/pcfhub/internal/models"
	"github.com/wolfeidau/pcfhub/internal/server"
	"github.com/wolfeidau/pcfhub/internal/store"
	"github.com/wolfeidau/pcfhub/internal/telemetry"
	"github.com/wolfeidau/pcfhub/internal/vault"
)

type ServerCmd struct {
	Node config.Node `embed:""`

	DevTenant string `help:"create a tenant with this name on start and log an operator token (memory store only)" default:"" env:"PCFHUB_DEV_TENANT"`
}

func (c *ServerCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	if err := c.Node.Validate(); err != nil {
		return err
	}
	if c.DevTenant != "" && c.Node.StoreType != config.StoreMemory {
		return errors.New("--dev-tenant requires the memory store")
	}

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Str("base_url", c.Node.BaseURL).Msg("Starting server")

	if c.Node.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
			ServiceName: "pcfhub",
			Version:     globals.Version,
			SampleRatio: c.Node.SampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	st, closeStore, err := openStore(ctx, &c.Node)
	if err != nil {
		return err
	}
	defer closeStore()

	keys, err := auth.LoadKeyManager(c.Node.NodeKey, c.Node.Dev)
	if err != nil {
		return fmt.Errorf("failed to load node key: %w", err)
	}
	v, err := vault.New([]byte(c.Node.VaultSecret))
	if err != nil {
		return err
	}

	outbound := &http.Client{Timeout: c.Node.HTTPTimeout}
	remote := client.NewRemote(outbound, httpsig.NewSigner(keys.PrivateKey(), keys.Kid()))
	dispatcher := federation.NewDispatcher(st, v, keys, client.NewTokenClient(outbound), remote, c.Node.BaseURL)

	partnerKeys := auth.NewPartnerKeys(st, client.NewCachingHTTPClient(c.Node.JWKSCacheDir, c.Node.HTTPTimeout))
	verifier := httpsig.NewVerifier(partnerKeys, c.Node.SignatureMaxAge)

	srv := server.New(server.Config{
		BaseURL:      c.Node.BaseURL,
		CORSOrigins:  c.Node.CORSOrigins,
		MaxBodyBytes: c.Node.MaxBodyBytes,
		TokenTTL:     c.Node.TokenTTL,
	}, st, keys, verifier, dispatcher)

	log.Info().Str("kid", keys.Kid()).Msg("Node key loaded")

	if c.DevTenant != "" {
		if err := seedTenant(ctx, st, srv.Authorizer(), c.DevTenant); err != nil {
			return err
		}
	}

	httpServer := configureHTTPServer(c.Node.Listen, srv.Handler(log))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if c.Node.Cert != "" {
			log.Info().Str("addr", c.Node.Listen).Msg("Starting HTTPS server")
			err = httpServer.ListenAndServeTLS(c.Node.Cert, c.Node.Key)
		} else {
			log.Warn().Str("addr", c.Node.Listen).Msg("Starting HTTP server without TLS")
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// seedTenant creates a tenant root for local development and logs an
// operator token for it.
func seedTenant(ctx context.Context, st store.Store, authorizer *auth.JWTAuthorizer, name string) error {
	orgID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate organization ID: %w", err)
	}
	now := time.Now().UTC()
	org := &models.Organization{
		OrgID:     orgID,
		Name:      name,
		Type:      models.OrganizationTypeInternal,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreateOrganization(ctx, org); err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	token, err := authorizer.IssueToken("dev-operator", orgID, []string{auth.RoleOperator}, 24*time.Hour)
	if err != nil {
		return fmt.Errorf("failed to issue operator token: %w", err)
	}

	log.Ctx(ctx).Warn().Str("org_id", orgID.String()).Str("token", token).Msg("Created development tenant")
	return nil
}
