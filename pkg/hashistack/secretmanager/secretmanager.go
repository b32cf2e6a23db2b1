package secretmanager

import (
	"os"

	vault "github.com/hashicorp/vault-client-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides a Vault client built from the standard VAULT_* variables.
// Without VAULT_ADDR no client is provided and config secrets come from the
// environment alone.
var Module = fx.Module("secretmanager", fx.Provide(ProvideVault))

func ProvideVault() (*vault.Client, error) {
	if os.Getenv("VAULT_ADDR") == "" {
		zap.L().Info("VAULT_ADDR not set, secrets are read from the environment")
		return nil, nil
	}

	return vault.New(
		vault.WithEnvironment(),
	)
}
