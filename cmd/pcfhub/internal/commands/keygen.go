package commands

import (
	"fmt"
	"os"

	"github.com/wolfeidau/pcfhub/internal/auth"
)

type KeygenCmd struct {
	Out   string `help:"file the private key is written to" default:"node.pem"`
	Force bool   `help:"overwrite an existing key file" default:"false"`
}

func (c *KeygenCmd) Run(globals *Globals) error {
	km, err := auth.GenerateKeyManager()
	if err != nil {
		return err
	}

	privatePEM, err := auth.EncodePrivateKeyPEM(km.PrivateKey())
	if err != nil {
		return fmt.Errorf("failed to encode private key: %w", err)
	}
	publicPEM, err := km.PublicKeyPEM()
	if err != nil {
		return fmt.Errorf("failed to encode public key: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if c.Force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(c.Out, flags, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	if _, err := f.Write(privatePEM); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}

	fmt.Printf("Wrote node key to %s\n", c.Out)
	fmt.Printf("Key ID: %s\n\n%s", km.Kid(), publicPEM)
	return nil
}
