package service

import (
	"testing"
	"time"

	"github.com/quillsign/quillsign-server/internal/models"
	"github.com/quillsign/quillsign-server/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignUpProvisionsTenant(t *testing.T) {
	env := newTestEnv(t)

	auth, err := env.svc.SignUp(env.ctx, models.SignUpRequest{
		AccountName: "Acme Corp",
		Email:       "owner@acme.test",
		Password:    "password-123",
		Name:        "Olive Owner",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, auth.UserID)
	assert.NotEmpty(t, auth.AccountID)

	// The primary user can log in straight away
	user, err := env.repo.GetUserByID(env.ctx, auth.UserID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.True(t, user.IsPrimary)

	// Signup also creates the client that holds the account's own signees
	accountClient, err := env.repo.GetAccountClient(env.ctx, auth.AccountID)
	require.NoError(t, err)
	require.NotNil(t, accountClient)
	assert.Equal(t, "Acme Corp", accountClient.Name)

	// Duplicate email is rejected
	_, err = env.svc.SignUp(env.ctx, models.SignUpRequest{
		AccountName: "Other Corp",
		Email:       "owner@acme.test",
		Password:    "password-456",
		Name:        "Other Owner",
	})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedAccount(t, false)

	auth, err := env.svc.Login(env.ctx, models.LoginRequest{
		Email:    "owner@acme.test",
		Password: "password-123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, auth.Token)
	assert.Equal(t, f.userID, auth.UserID)

	_, err = env.svc.Login(env.ctx, models.LoginRequest{
		Email:    "owner@acme.test",
		Password: "wrong-password",
	})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.svc.Login(env.ctx, models.LoginRequest{
		Email:    "nobody@acme.test",
		Password: "password-123",
	})
	assert.ErrorIs(t, err, ErrUnauthorized)

	// A deactivated account refuses login even with good credentials
	account, err := env.repo.GetAccountByID(env.ctx, f.accountID)
	require.NoError(t, err)
	now := time.Now().UTC()
	account.DeactivatedAt = &now
	require.NoError(t, env.repo.UpdateAccount(env.ctx, account))

	_, err = env.svc.Login(env.ctx, models.LoginRequest{
		Email:    "owner@acme.test",
		Password: "password-123",
	})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestScheduleAccountDeletion(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedAccount(t, false)

	// A secondary user may not schedule deletion
	secondary := &models.User{
		AccountID: f.accountID,
		Email:     "second@acme.test",
		Name:      "Sam Second",
		Password:  "irrelevant",
	}
	require.NoError(t, env.repo.CreateUser(env.ctx, secondary))

	_, err := env.svc.ScheduleAccountDeletion(env.ctx, secondary.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	account, err := env.svc.ScheduleAccountDeletion(env.ctx, f.userID)
	require.NoError(t, err)
	require.NotNil(t, account.DeletionScheduledAt)
	require.NotNil(t, account.DeactivatedAt)

	// The deletion date is midnight UTC, a grace period out
	assert.Equal(t, 0, account.DeletionScheduledAt.Hour())
	assert.True(t, account.DeletionScheduledAt.After(time.Now().UTC()))

	// Both users are told
	assert.Len(t, env.mail.byType(notify.EmailDeletionNotice), 2)

	// Scheduling twice is rejected
	_, err = env.svc.ScheduleAccountDeletion(env.ctx, f.userID)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestMidnightAfter(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	got := midnightAfter(now, 30)
	assert.Equal(t, time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC), got)
}

func TestClientAndSigneeManagement(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedAccount(t, false)

	signee := env.addSignee(t, f, "Alice", "alice@globex.test", intPtr(2))

	// Per-account email uniqueness
	_, err := env.svc.CreateOrUpdateSignee(env.ctx, f.userID, models.SigneeRequest{
		ClientID: f.clientID,
		Name:     "Also Alice",
		Email:    "alice@globex.test",
	})
	assert.ErrorIs(t, err, ErrInvalid)

	// Updating the signee with its own email is fine
	updated, err := env.svc.CreateOrUpdateSignee(env.ctx, f.userID, models.SigneeRequest{
		ID:              signee.ID,
		ClientID:        f.clientID,
		Name:            "Alice Updated",
		Email:           "alice@globex.test",
		SigningSequence: intPtr(5),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Updated", updated.Name)
	require.NotNil(t, updated.SigningSequence)
	assert.Equal(t, 5, *updated.SigningSequence)

	signees, err := env.svc.ListSignees(env.ctx, f.userID, f.clientID)
	require.NoError(t, err)
	assert.Len(t, signees, 1)

	require.NoError(t, env.svc.DeleteSignee(env.ctx, f.userID, signee.ID))
	signees, err = env.svc.ListSignees(env.ctx, f.userID, f.clientID)
	require.NoError(t, err)
	assert.Empty(t, signees)

	// Account client plus the seeded one
	clients, err := env.svc.ListClients(env.ctx, f.userID)
	require.NoError(t, err)
	assert.Len(t, clients, 2)
}

func TestSigneeEditDoesNotTouchBindings(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedAccount(t, true)

	signee := env.addSignee(t, f, "Alice", "alice@globex.test", intPtr(1))
	data := env.createContract(t, f, signee.ID)

	// Raising the signee's sequence after binding changes nothing on the
	// contract; the snapshot rules
	_, err := env.svc.CreateOrUpdateSignee(env.ctx, f.userID, models.SigneeRequest{
		ID:              signee.ID,
		ClientID:        f.clientID,
		Name:            "Alice Renamed",
		Email:           "alice.new@globex.test",
		SigningSequence: intPtr(9),
	})
	require.NoError(t, err)

	bindings := env.bindings(t, data.Contract.ID)
	require.Len(t, bindings, 1)
	assert.Equal(t, "Alice", bindings[0].Name)
	assert.Equal(t, "alice@globex.test", bindings[0].Email)
	require.NotNil(t, bindings[0].SigneePriority)
	assert.Equal(t, 1, *bindings[0].SigneePriority)
}
