package executor

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/harshitdeora/task-schedular-sub000/internal/crypto"
	"github.com/harshitdeora/task-schedular-sub000/internal/errs"
	"github.com/harshitdeora/task-schedular-sub000/internal/storage"
	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

// deferredThreshold is the "more than 10 s in the future" cutoff from
// spec §4.2 that decides between an immediate send and a DeferredEmail.
const deferredThreshold = 10 * time.Second

// SMTPCredentials is what the email executor needs to send on a user's
// behalf. Storage and at-rest encryption of these rows is an external
// collaborator (spec §1); the executor only decrypts the password it is
// handed, using the core's own AES-256-CBC format (spec §6).
type SMTPCredentials struct {
	Host              string
	Port              int
	Username          string
	EncryptedPassword string
	From              string
}

// CredentialProvider resolves a user's SMTP credentials. Its
// implementation lives outside this package (spec §1's external
// credential-storage collaborator); this interface is the narrow contract
// the executor depends on.
type CredentialProvider interface {
	GetSMTPCredentials(ctx context.Context, userID string) (*SMTPCredentials, error)
}

// EmailExecutor is the "email" node kind (spec §4.2).
type EmailExecutor struct {
	creds         CredentialProvider
	deferred      storage.DeferredEmailRepository
	encryptionKey []byte
	sendFunc      func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailExecutor creates a new email executor. encryptionKey is the
// 32-byte key the binaries derive with crypto.DeriveKey from
// CREDENTIAL_PASSPHRASE.
func NewEmailExecutor(creds CredentialProvider, deferred storage.DeferredEmailRepository, encryptionKey []byte) *EmailExecutor {
	return &EmailExecutor{
		creds:         creds,
		deferred:      deferred,
		encryptionKey: encryptionKey,
		sendFunc:      smtp.SendMail,
	}
}

func (e *EmailExecutor) Kind() models.NodeKind { return models.NodeKindEmail }

func (e *EmailExecutor) Execute(ctx context.Context, config map[string]interface{}, rc RunContext) (*TaskResult, error) {
	recipient, _ := config["to"].(string)
	if recipient == "" {
		return nil, errs.New(errs.KindValidation, "email task requires a recipient", nil)
	}
	subject, _ := config["subject"].(string)
	body, _ := config["body"].(string)

	scheduled, _ := config["scheduled"].(bool)
	var fireAt time.Time
	if fireAtStr, ok := config["fireAt"].(string); ok && fireAtStr != "" {
		parsed, err := time.Parse(time.RFC3339, fireAtStr)
		if err != nil {
			return nil, errs.New(errs.KindValidation, fmt.Sprintf("invalid fireAt: %v", err), err)
		}
		fireAt = parsed
	}

	if scheduled && !fireAt.IsZero() && time.Until(fireAt) > deferredThreshold {
		email := &models.DeferredEmail{
			OwningRunID:    rc.RunID,
			OwningNodeID:   rc.NodeID,
			SenderIdentity: rc.UserID,
			Recipient:      recipient,
			Subject:        subject,
			Body:           body,
			FireAt:         fireAt,
			Status:         models.DeferredEmailPending,
		}
		if err := e.deferred.Create(ctx, email); err != nil {
			return nil, errs.New(errs.KindInfraTransient, fmt.Sprintf("failed to create deferred email: %v", err), err)
		}
		return &TaskResult{Outcome: OutcomeScheduled, Output: map[string]interface{}{"deferredEmailId": email.ID}}, nil
	}

	return e.sendNow(ctx, rc, recipient, subject, body)
}

func (e *EmailExecutor) sendNow(ctx context.Context, rc RunContext, recipient, subject, body string) (*TaskResult, error) {
	cred, err := e.creds.GetSMTPCredentials(ctx, rc.UserID)
	if err != nil {
		return nil, errs.New(errs.KindConfigMissing, fmt.Sprintf("no SMTP credentials for user: %v", err), err)
	}
	password, err := crypto.Decrypt(e.encryptionKey, cred.EncryptedPassword)
	if err != nil {
		return nil, errs.New(errs.KindConfigMissing, fmt.Sprintf("failed to decrypt SMTP password: %v", err), err)
	}

	addr := fmt.Sprintf("%s:%d", cred.Host, cred.Port)
	auth := smtp.PlainAuth("", cred.Username, password, cred.Host)
	msg := fmt.Appendf(nil, "From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", cred.From, recipient, subject, body)

	if err := e.sendFunc(addr, auth, cred.From, []string{recipient}, msg); err != nil {
		return nil, errs.New(errs.KindExecutorFailed, fmt.Sprintf("smtp send failed: %v", err), err)
	}

	return &TaskResult{Outcome: OutcomeSuccess, Output: map[string]interface{}{"recipient": recipient}}, nil
}
