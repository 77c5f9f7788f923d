// Package credentials provides the one CredentialProvider implementation
// this repo ships. Per-user SMTP credential storage and encryption at rest
// is an external collaborator (spec §1); this is the single-tenant stand-in
// a small team can run without standing up that collaborator, reading one
// shared SMTP identity from the environment the way cmd/server already
// reads its other configuration.
package credentials

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/harshitdeora/task-schedular-sub000/internal/executor"
)

// EnvProvider resolves every userID to the same SMTP identity, configured
// via SMTP_HOST/SMTP_PORT/SMTP_USERNAME/SMTP_ENCRYPTED_PASSWORD/SMTP_FROM.
// EncryptedPassword must already be in this repo's AES-256-CBC at-rest
// format (internal/crypto), matching whatever the external credential
// collaborator would have stored.
type EnvProvider struct {
	cred executor.SMTPCredentials
}

// NewEnvProvider builds an EnvProvider from the process environment.
func NewEnvProvider() (*EnvProvider, error) {
	port, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("credentials: invalid SMTP_PORT: %w", err)
	}
	return &EnvProvider{cred: executor.SMTPCredentials{
		Host:              getEnv("SMTP_HOST", "localhost"),
		Port:              port,
		Username:          os.Getenv("SMTP_USERNAME"),
		EncryptedPassword: os.Getenv("SMTP_ENCRYPTED_PASSWORD"),
		From:              getEnv("SMTP_FROM", "workflow-orchestrator@localhost"),
	}}, nil
}

// GetSMTPCredentials ignores userID, returning the single configured identity.
func (p *EnvProvider) GetSMTPCredentials(ctx context.Context, userID string) (*executor.SMTPCredentials, error) {
	cred := p.cred
	return &cred, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
