package service

import (
	"context"
	"fmt"
	"time"

	"github.com/quillsign/quillsign-server/internal/models"
	"github.com/quillsign/quillsign-server/internal/notify"
	"github.com/quillsign/quillsign-server/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// SignUp provisions a tenant: the account, its primary user and the account
// client that holds the organization's own signees.
func (s *DefaultService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthData, error) {
	existingUser, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}
	if existingUser != nil {
		return nil, fmt.Errorf("%w: user with this email already exists", ErrInvalid)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	account := &models.Account{Name: req.AccountName}
	user := &models.User{
		Email:     req.Email,
		Name:      req.Name,
		Password:  string(hashedPassword),
		IsPrimary: true,
	}

	err = s.repo.Transact(ctx, func(tx repository.Repository) error {
		if err := tx.CreateAccount(ctx, account); err != nil {
			return fmt.Errorf("error creating account: %w", err)
		}

		user.AccountID = account.ID
		if err := tx.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("error creating user: %w", err)
		}

		// The account client represents the tenant's own organization;
		// its signees end up on every contract.
		accountClient := &models.Client{
			AccountID:       account.ID,
			Name:            req.AccountName,
			IsAccountClient: true,
		}
		if err := tx.CreateClient(ctx, accountClient); err != nil {
			return fmt.Errorf("error creating account client: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account created",
		zap.String("account_id", account.ID),
		zap.String("user_id", user.ID),
	)

	return &models.AuthData{
		UserID:    user.ID,
		AccountID: account.ID,
		Email:     user.Email,
		Name:      user.Name,
	}, nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthData, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}

	account, err := s.repo.GetAccountByID(ctx, user.AccountID)
	if err != nil {
		return nil, fmt.Errorf("error getting account: %w", err)
	}
	if account == nil || account.DeactivatedAt != nil {
		return nil, fmt.Errorf("%w: account is deactivated", ErrUnauthorized)
	}

	jwt, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthData{
		UserID:    user.ID,
		AccountID: user.AccountID,
		Email:     user.Email,
		Name:      user.Name,
		Token:     jwt,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

func (s *DefaultService) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	user, err := s.currentUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.GetAccountByID(ctx, user.AccountID)
	if err != nil {
		return nil, fmt.Errorf("error getting account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: account", ErrNotFound)
	}

	return account, nil
}

// ScheduleAccountDeletion deactivates the account immediately and books the
// actual deletion for midnight a grace period out. No data is removed here;
// the deletion sweep does that when the date arrives.
func (s *DefaultService) ScheduleAccountDeletion(ctx context.Context, userID string) (*models.Account, error) {
	user, err := s.currentUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsPrimary {
		return nil, fmt.Errorf("%w: only the primary user can delete the account", ErrUnauthorized)
	}

	account, err := s.repo.GetAccountByID(ctx, user.AccountID)
	if err != nil {
		return nil, fmt.Errorf("error getting account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: account", ErrNotFound)
	}
	if account.DeletionScheduledAt != nil {
		return nil, fmt.Errorf("%w: deletion already scheduled", ErrInvalid)
	}

	now := time.Now().UTC()
	deletionDate := midnightAfter(now, s.deletionGraceDays)
	account.DeletionScheduledAt = &deletionDate
	account.DeactivatedAt = &now

	if err := s.repo.UpdateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("error updating account: %w", err)
	}

	users, err := s.repo.ListUsersByAccount(ctx, account.ID)
	if err != nil {
		s.logger.Error("listing users for deletion notice failed", zap.Error(err))
		return account, nil
	}
	for _, u := range users {
		s.enqueue(ctx, u.Email, notify.DeletionNoticeData{
			UserName:     u.Name,
			AccountName:  account.Name,
			DeletionDate: deletionDate.Format("2006-01-02"),
		})
	}

	s.logger.Info("account deletion scheduled",
		zap.String("account_id", account.ID),
		zap.Time("deletion_date", deletionDate),
	)

	return account, nil
}

// midnightAfter returns 00:00 UTC of the day graceDays out
func midnightAfter(now time.Time, graceDays int) time.Time {
	d := now.AddDate(0, 0, graceDays)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
