package vault

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"go.uber.org/zap"
)

// Secret names stored in the key vault.
const (
	SecretBinanceAPIKey    = "binance-api-key"
	SecretBinanceAPISecret = "binance-api-secret"
	SecretSQLServer        = "azure-sql-server"
	SecretSQLUsername      = "azure-sql-username"
	SecretSQLPassword      = "azure-sql-password"
	SecretSMTPPassword     = "google-password"
)

// ErrSecretNotFound is returned when the vault has no secret with the
// requested name. Callers treat it as a fatal credential error.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore retrieves named secrets. The Azure Key Vault client satisfies
// it; tests substitute an in-memory map.
type SecretStore interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// KeyVault is an Azure Key Vault backed SecretStore.
type KeyVault struct {
	client *azsecrets.Client
	logger *zap.Logger
}

var _ SecretStore = (*KeyVault)(nil)

// New creates a KeyVault client authenticated via the default Azure
// credential chain (environment, managed identity, CLI).
func New(vaultURL string, logger *zap.Logger) (*KeyVault, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain azure credential: %w", err)
	}

	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create key vault client for %s: %w", vaultURL, err)
	}

	return &KeyVault{client: client, logger: logger}, nil
}

// GetSecret retrieves the latest version of a secret.
func (kv *KeyVault) GetSecret(ctx context.Context, name string) (string, error) {
	resp, err := kv.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			kv.logger.Error("Secret missing from key vault", zap.String("secret", name))
			return "", fmt.Errorf("secret %q: %w", name, ErrSecretNotFound)
		}
		return "", fmt.Errorf("failed to retrieve secret %q: %w", name, err)
	}

	if resp.Value == nil {
		return "", fmt.Errorf("secret %q: %w", name, ErrSecretNotFound)
	}
	return *resp.Value, nil
}
