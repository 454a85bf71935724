package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfeidau/pcfhub/internal/config"
	"github.com/wolfeidau/pcfhub/internal/logger"
	"github.com/wolfeidau/pcfhub/internal/models"
)

type OrgCmd struct {
	Name   string `help:"organization name" required:""`
	Parent string `help:"parent organization ID, empty for a tenant root" default:""`
	Type   string `help:"organization type" default:"internal" enum:"internal,business_partner"`
	LEI    string `help:"legal entity identifier" default:""`

	Postgres config.PostgresFlags `embed:"" prefix:"postgres-"`
}

func (c *OrgCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	org := &models.Organization{
		Name: c.Name,
		Type: models.OrganizationType(c.Type),
	}
	if c.Parent != "" {
		parent, err := uuid.Parse(c.Parent)
		if err != nil {
			return fmt.Errorf("invalid parent ID: %w", err)
		}
		org.ParentID = &parent
	} else if org.Type != models.OrganizationTypeInternal {
		return fmt.Errorf("a tenant root must be an internal organization")
	}
	if c.LEI != "" {
		org.Identifiers = []models.Identifier{{Type: models.IdentifierLEI, Value: c.LEI}}
	}

	orgID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate organization ID: %w", err)
	}
	org.OrgID = orgID
	org.CreatedAt = time.Now().UTC()
	org.UpdatedAt = org.CreatedAt

	st, err := openPostgres(ctx, &c.Postgres)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.CreateOrganization(ctx, org); err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	log.Info().Str("org_id", org.OrgID.String()).Str("name", org.Name).Msg("Created organization")
	fmt.Println(org.OrgID)
	return nil
}
