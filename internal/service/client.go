package service

import (
	"context"
	"fmt"

	"github.com/quillsign/quillsign-server/internal/models"
)

// CreateOrUpdateClient creates a client or updates an existing one. The
// account client's PriorityRequired flag can be edited like any other
// client's; its IsAccountClient marker cannot.
func (s *DefaultService) CreateOrUpdateClient(ctx context.Context, userID string, req models.ClientRequest) (*models.Client, error) {
	user, err := s.currentUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.ID == "" {
		client := &models.Client{
			AccountID:        user.AccountID,
			Name:             req.Name,
			PriorityRequired: req.PriorityRequired,
		}
		if err := s.repo.CreateClient(ctx, client); err != nil {
			return nil, fmt.Errorf("error creating client: %w", err)
		}
		return client, nil
	}

	client, err := s.repo.GetClientByID(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("error getting client: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: client", ErrNotFound)
	}
	if client.AccountID != user.AccountID {
		return nil, fmt.Errorf("%w: client belongs to another account", ErrUnauthorized)
	}

	client.Name = req.Name
	client.PriorityRequired = req.PriorityRequired
	if err := s.repo.UpdateClient(ctx, client); err != nil {
		return nil, fmt.Errorf("error updating client: %w", err)
	}

	return client, nil
}

func (s *DefaultService) ListClients(ctx context.Context, userID string) ([]models.Client, error) {
	user, err := s.currentUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	clients, err := s.repo.ListClientsByAccount(ctx, user.AccountID)
	if err != nil {
		return nil, fmt.Errorf("error listing clients: %w", err)
	}

	return clients, nil
}

// CreateOrUpdateSignee creates or updates a signee. Email uniqueness is per
// account and enforced here, not by a database constraint. A signee's
// SigningSequence edit never touches bindings already materialized on
// contracts; those keep the snapshot taken at attach time.
func (s *DefaultService) CreateOrUpdateSignee(ctx context.Context, userID string, req models.SigneeRequest) (*models.Signee, error) {
	user, err := s.currentUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	client, err := s.repo.GetClientByID(ctx, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("error getting client: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: client", ErrNotFound)
	}
	if client.AccountID != user.AccountID {
		return nil, fmt.Errorf("%w: client belongs to another account", ErrUnauthorized)
	}

	existing, err := s.repo.GetSigneeByEmail(ctx, user.AccountID, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking signee email: %w", err)
	}
	if existing != nil && existing.ID != req.ID {
		return nil, fmt.Errorf("%w: a signee with this email already exists", ErrInvalid)
	}

	if req.ID == "" {
		signee := &models.Signee{
			AccountID:       user.AccountID,
			ClientID:        req.ClientID,
			Name:            req.Name,
			Email:           req.Email,
			SigningSequence: req.SigningSequence,
		}
		if err := s.repo.CreateSignee(ctx, signee); err != nil {
			return nil, fmt.Errorf("error creating signee: %w", err)
		}
		return signee, nil
	}

	signee, err := s.repo.GetSigneeByID(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("error getting signee: %w", err)
	}
	if signee == nil {
		return nil, fmt.Errorf("%w: signee", ErrNotFound)
	}
	if signee.AccountID != user.AccountID {
		return nil, fmt.Errorf("%w: signee belongs to another account", ErrUnauthorized)
	}

	signee.Name = req.Name
	signee.Email = req.Email
	signee.SigningSequence = req.SigningSequence
	if err := s.repo.UpdateSignee(ctx, signee); err != nil {
		return nil, fmt.Errorf("error updating signee: %w", err)
	}

	return signee, nil
}

func (s *DefaultService) DeleteSignee(ctx context.Context, userID, signeeID string) error {
	user, err := s.currentUser(ctx, userID)
	if err != nil {
		return err
	}

	signee, err := s.repo.GetSigneeByID(ctx, signeeID)
	if err != nil {
		return fmt.Errorf("error getting signee: %w", err)
	}
	if signee == nil {
		return fmt.Errorf("%w: signee", ErrNotFound)
	}
	if signee.AccountID != user.AccountID {
		return fmt.Errorf("%w: signee belongs to another account", ErrUnauthorized)
	}

	if err := s.repo.DeleteSignee(ctx, signeeID); err != nil {
		return fmt.Errorf("error deleting signee: %w", err)
	}

	return nil
}

func (s *DefaultService) ListSignees(ctx context.Context, userID, clientID string) ([]models.Signee, error) {
	user, err := s.currentUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	client, err := s.repo.GetClientByID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("error getting client: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: client", ErrNotFound)
	}
	if client.AccountID != user.AccountID {
		return nil, fmt.Errorf("%w: client belongs to another account", ErrUnauthorized)
	}

	signees, err := s.repo.ListSigneesByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("error listing signees: %w", err)
	}

	return signees, nil
}

func (s *DefaultService) CreateFolder(ctx context.Context, userID string, req models.FolderRequest) (*models.Folder, error) {
	user, err := s.currentUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	folder := &models.Folder{
		AccountID: user.AccountID,
		Name:      req.Name,
	}
	if err := s.repo.CreateFolder(ctx, folder); err != nil {
		return nil, fmt.Errorf("error creating folder: %w", err)
	}

	return folder, nil
}

func (s *DefaultService) ListFolders(ctx context.Context, userID string) ([]models.Folder, error) {
	user, err := s.currentUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	folders, err := s.repo.ListFoldersByAccount(ctx, user.AccountID)
	if err != nil {
		return nil, fmt.Errorf("error listing folders: %w", err)
	}

	return folders, nil
}
