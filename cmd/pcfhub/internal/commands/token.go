package commands

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfeidau/pcfhub/internal/auth"
)

type TokenCmd struct {
	NodeKey string        `help:"path to the PEM encoded node key" required:"" env:"PCFHUB_NODE_KEY"`
	BaseURL string        `help:"base URL of the node, the token issuer" required:"" env:"PCFHUB_BASE_URL"`
	Org     string        `help:"organization ID the operator acts for" required:""`
	Subject string        `help:"operator name recorded in the token" default:"operator"`
	TTL     time.Duration `help:"token lifetime" default:"12h"`
}

func (c *TokenCmd) Run(globals *Globals) error {
	orgID, err := uuid.Parse(c.Org)
	if err != nil {
		return fmt.Errorf("invalid organization ID: %w", err)
	}

	keys, err := auth.LoadKeyManager(c.NodeKey, false)
	if err != nil {
		return err
	}

	token, err := auth.NewJWTAuthorizer(keys, c.BaseURL).IssueToken(c.Subject, orgID, []string{auth.RoleOperator}, c.TTL)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Println(token)
	return nil
}
