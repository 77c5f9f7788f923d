// Package deferredmail implements C8: a once-a-minute sweep that sends
// every DeferredEmail whose fireAt has arrived, then reopens the owning
// run's completion decision through the reconciler — the run stayed
// "running" only because this email was still pending (spec §4.7).
package deferredmail

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"time"

	"github.com/harshitdeora/task-schedular-sub000/internal/crypto"
	"github.com/harshitdeora/task-schedular-sub000/internal/dispatcher"
	"github.com/harshitdeora/task-schedular-sub000/internal/executor"
	"github.com/harshitdeora/task-schedular-sub000/internal/state"
	"github.com/harshitdeora/task-schedular-sub000/internal/storage"
	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

const sweepInterval = 1 * time.Minute

// Handler is the C8 contract implementation.
type Handler struct {
	deferred      storage.DeferredEmailRepository
	runs          storage.RunRepository
	dags          storage.DAGRepository
	creds         executor.CredentialProvider
	dispatcher    *dispatcher.Dispatcher
	reconciler    *state.Reconciler
	encryptionKey []byte
	sendFunc      func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates a Handler.
func New(
	deferred storage.DeferredEmailRepository,
	runs storage.RunRepository,
	dags storage.DAGRepository,
	creds executor.CredentialProvider,
	disp *dispatcher.Dispatcher,
	reconciler *state.Reconciler,
	encryptionKey []byte,
) *Handler {
	return &Handler{
		deferred:      deferred,
		runs:          runs,
		dags:          dags,
		creds:         creds,
		dispatcher:    disp,
		reconciler:    reconciler,
		encryptionKey: encryptionKey,
		sendFunc:      smtp.SendMail,
	}
}

// Run sweeps every minute until ctx is cancelled.
func (h *Handler) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	h.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweep(ctx)
		}
	}
}

func (h *Handler) sweep(ctx context.Context) {
	due, err := h.deferred.ListDue(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("deferredmail: failed to list due emails: %v", err)
		return
	}
	for _, email := range due {
		h.process(ctx, email)
	}
}

func (h *Handler) process(ctx context.Context, email *models.DeferredEmail) {
	sendErr := h.send(ctx, email)
	now := time.Now().UTC()

	if sendErr != nil {
		if err := h.deferred.MarkFailed(ctx, email.ID, sendErr.Error()); err != nil {
			log.Printf("deferredmail: failed to mark email %s failed: %v", email.ID, err)
			return
		}
		h.updateOwningTask(ctx, email, models.TaskFailed, nil, sendErr.Error())
		return
	}

	if err := h.deferred.MarkSent(ctx, email.ID, now); err != nil {
		log.Printf("deferredmail: failed to mark email %s sent: %v", email.ID, err)
		return
	}
	h.updateOwningTask(ctx, email, models.TaskSuccess, map[string]interface{}{"messageId": email.ID}, "")
}

func (h *Handler) send(ctx context.Context, email *models.DeferredEmail) error {
	cred, err := h.creds.GetSMTPCredentials(ctx, email.SenderIdentity)
	if err != nil {
		return fmt.Errorf("no SMTP credentials for sender: %w", err)
	}
	password, err := crypto.Decrypt(h.encryptionKey, cred.EncryptedPassword)
	if err != nil {
		return fmt.Errorf("failed to decrypt SMTP password: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cred.Host, cred.Port)
	auth := smtp.PlainAuth("", cred.Username, password, cred.Host)
	msg := fmt.Appendf(nil, "From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", cred.From, email.Recipient, email.Subject, email.Body)

	return h.sendFunc(addr, auth, cred.From, []string{email.Recipient}, msg)
}

// updateOwningTask transitions the owning taskRecord out of "scheduled"
// only if it is still in that state — a run that was force-completed by
// the auto-fail monitor in the meantime must not be resurrected.
func (h *Handler) updateOwningTask(ctx context.Context, email *models.DeferredEmail, status models.TaskStatus, output map[string]interface{}, errMsg string) {
	run, err := h.runs.Get(ctx, email.OwningRunID)
	if err != nil {
		log.Printf("deferredmail: failed to load owning run %s: %v", email.OwningRunID, err)
		return
	}
	rec := run.RecordByNodeID(email.OwningNodeID)
	if rec == nil || rec.Status != models.TaskScheduled {
		return
	}

	completedAt := time.Now().UTC()
	rec.Status = status
	rec.CompletedAt = &completedAt
	rec.Output = output
	rec.Error = errMsg

	if err := h.runs.Update(ctx, run); err != nil {
		log.Printf("deferredmail: failed to persist owning task update for run %s: %v", run.ID, err)
		return
	}

	if status == models.TaskSuccess {
		def, err := h.dags.Get(ctx, run.DAGID)
		if err != nil {
			log.Printf("deferredmail: failed to load dag %s for dependents: %v", run.DAGID, err)
		} else if err := h.dispatcher.EnqueueDependents(ctx, run, email.OwningNodeID, def); err != nil {
			log.Printf("deferredmail: failed to enqueue dependents for run %s: %v", run.ID, err)
		}
	}

	if err := h.reconciler.ReconcileRun(ctx, run.ID); err != nil {
		log.Printf("deferredmail: reconcile failed for run %s: %v", run.ID, err)
	}
}
