package service

import (
	"context"
	"fmt"
	"time"

	"github.com/quillsign/quillsign-server/internal/models"
	"github.com/quillsign/quillsign-server/internal/notify"
	"go.uber.org/zap"
)

// Background job entry points. These run off the request path on the jobs
// scheduler, against the same repository.

// SweepScheduledDeletions deletes every account whose deletion date has
// arrived. Provider-side users are disabled and removed first; the account
// row goes last and takes its dependents with it through the storage-level
// cascade. Returns the number of accounts removed.
func (s *DefaultService) SweepScheduledDeletions(ctx context.Context) (int, error) {
	due, err := s.repo.ListAccountsDueForDeletion(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("error listing accounts due for deletion: %w", err)
	}

	deleted := 0
	for _, account := range due {
		users, err := s.repo.ListUsersByAccount(ctx, account.ID)
		if err != nil {
			s.logger.Error("deletion sweep: listing users failed",
				zap.String("account_id", account.ID), zap.Error(err))
			continue
		}

		for _, u := range users {
			if err := s.idp.DisableUser(ctx, u.Email); err != nil {
				s.logger.Error("deletion sweep: disable user failed",
					zap.String("email", u.Email), zap.Error(err))
			}
			if err := s.idp.DeleteUser(ctx, u.Email); err != nil {
				s.logger.Error("deletion sweep: delete user failed",
					zap.String("email", u.Email), zap.Error(err))
			}
		}

		if err := s.repo.DeleteAccount(ctx, account.ID); err != nil {
			s.logger.Error("deletion sweep: delete account failed",
				zap.String("account_id", account.ID), zap.Error(err))
			continue
		}

		s.logger.Info("account deleted", zap.String("account_id", account.ID))
		deleted++
	}

	return deleted, nil
}

// SendSigningReminders re-mails everyone currently able to act on a
// contract that has seen no activity for pendingFor. The pending set is
// exactly the actionable set: in parallel mode every notified signee who
// has not signed, in priority mode only the current signer.
func (s *DefaultService) SendSigningReminders(ctx context.Context, pendingFor time.Duration) (int, error) {
	contracts, err := s.repo.ListContractsByStatus(ctx, models.ContractSentForSigning)
	if err != nil {
		return 0, fmt.Errorf("error listing contracts: %w", err)
	}

	cutoff := time.Now().UTC().Add(-pendingFor)
	reminded := 0
	for _, contract := range contracts {
		if contract.UpdatedAt.After(cutoff) {
			continue
		}

		bindings, err := s.repo.ListContractSignees(ctx, contract.ID)
		if err != nil {
			s.logger.Error("reminder: listing contract signees failed",
				zap.String("contract_id", contract.ID), zap.Error(err))
			continue
		}

		for _, b := range bindings {
			if b.Status != models.SigneePending {
				continue
			}
			s.enqueue(ctx, b.Email, notify.SigningReminderData{
				SigneeName:   b.Name,
				ContractName: contract.Title,
				ContractLink: s.contractLink(b.ID),
			})
			reminded++
		}
	}

	return reminded, nil
}

// DeactivateExpiredSubscriptions deactivates accounts whose subscription
// date has passed; nothing is deleted.
func (s *DefaultService) DeactivateExpiredSubscriptions(ctx context.Context) (int, error) {
	expired, err := s.repo.ListAccountsWithExpiredSubscription(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("error listing expired subscriptions: %w", err)
	}

	deactivated := 0
	for i := range expired {
		account := expired[i]
		now := time.Now().UTC()
		account.DeactivatedAt = &now
		if err := s.repo.UpdateAccount(ctx, &account); err != nil {
			s.logger.Error("subscription sweep: update failed",
				zap.String("account_id", account.ID), zap.Error(err))
			continue
		}
		deactivated++
	}

	return deactivated, nil
}
