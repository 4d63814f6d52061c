package service

import (
	"testing"
	"time"

	"github.com/quillsign/quillsign-server/internal/models"
	"github.com/quillsign/quillsign-server/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepScheduledDeletions(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedAccount(t, false)
	env.addSignee(t, f, "Alice", "alice@globex.test", nil)

	// Not scheduled yet, nothing to sweep
	deleted, err := env.svc.SweepScheduledDeletions(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	// Backdate the deletion so the account is due
	account, err := env.repo.GetAccountByID(env.ctx, f.accountID)
	require.NoError(t, err)
	past := time.Now().UTC().Add(-time.Hour)
	account.DeletionScheduledAt = &past
	require.NoError(t, env.repo.UpdateAccount(env.ctx, account))

	deleted, err = env.svc.SweepScheduledDeletions(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	// The account and everything under it is gone
	account, err = env.repo.GetAccountByID(env.ctx, f.accountID)
	require.NoError(t, err)
	assert.Nil(t, account)

	user, err := env.repo.GetUserByID(env.ctx, f.userID)
	require.NoError(t, err)
	assert.Nil(t, user)

	clients, err := env.repo.ListClientsByAccount(env.ctx, f.accountID)
	require.NoError(t, err)
	assert.Empty(t, clients)
}

func TestSendSigningReminders(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedAccount(t, false)

	a := env.addSignee(t, f, "Alice", "alice@globex.test", nil)
	b := env.addSignee(t, f, "Bob", "bob@globex.test", nil)

	data := env.createContract(t, f, a.ID, b.ID)
	result, err := env.svc.SendContract(env.ctx, f.userID, data.Contract.ID)
	require.NoError(t, err)
	require.Len(t, result.Notified, 2)

	// Alice signs; only Bob is still actionable
	_, err = env.submit(t, result.Notified[0])
	require.NoError(t, err)
	env.mail.reset()

	// The contract saw activity just now, a one-hour threshold skips it
	reminded, err := env.svc.SendSigningReminders(env.ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, reminded)

	// With no threshold it is stale immediately
	reminded, err = env.svc.SendSigningReminders(env.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, reminded)

	reminders := env.mail.byType(notify.EmailSigningReminder)
	require.Len(t, reminders, 1)
	assert.Equal(t, "bob@globex.test", reminders[0].EmailTo)
	assert.Contains(t, reminders[0].Body, "/public/contract/view?token=")
}

func TestDeactivateExpiredSubscriptions(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedAccount(t, false)

	deactivated, err := env.svc.DeactivateExpiredSubscriptions(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, deactivated)

	account, err := env.repo.GetAccountByID(env.ctx, f.accountID)
	require.NoError(t, err)
	past := time.Now().UTC().Add(-24 * time.Hour)
	account.SubscriptionExpiresAt = &past
	require.NoError(t, env.repo.UpdateAccount(env.ctx, account))

	deactivated, err = env.svc.DeactivateExpiredSubscriptions(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deactivated)

	account, err = env.repo.GetAccountByID(env.ctx, f.accountID)
	require.NoError(t, err)
	assert.NotNil(t, account.DeactivatedAt)

	// Already deactivated accounts are not picked up again
	deactivated, err = env.svc.DeactivateExpiredSubscriptions(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, deactivated)

	_, err = env.svc.Login(env.ctx, models.LoginRequest{
		Email:    "owner@acme.test",
		Password: "password-123",
	})
	assert.ErrorIs(t, err, ErrUnauthorized)
}
