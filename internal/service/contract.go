package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quillsign/quillsign-server/internal/models"
	"github.com/quillsign/quillsign-server/internal/notify"
	"github.com/quillsign/quillsign-server/internal/repository"
	"github.com/quillsign/quillsign-server/internal/token"
	"go.uber.org/zap"
)

// CreateOrUpdateContract creates a draft contract with its signee bindings,
// or updates an existing one. On create the binding set is materialized for
// every selected signee plus every account-level signee; on update the
// non-account part of the set is replaced wholesale when the selection
// changed. Replacing the set is rejected once any signee has signed.
func (s *DefaultService) CreateOrUpdateContract(
	ctx context.Context,
	userID string,
	req models.ContractRequest,
) (*models.ContractData, error) {
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

	folder, err := s.repo.GetFolderByID(ctx, req.FolderID)
	if err != nil {
		return nil, fmt.Errorf("error getting folder: %w", err)
	}
	if folder == nil {
		return nil, fmt.Errorf("%w: folder", ErrNotFound)
	}
	if folder.AccountID != user.AccountID {
		return nil, fmt.Errorf("%w: folder belongs to another account", ErrUnauthorized)
	}

	if req.ID == "" {
		return s.createContract(ctx, user, client, req)
	}
	return s.updateContract(ctx, user, req)
}

func (s *DefaultService) createContract(
	ctx context.Context,
	user *models.User,
	client *models.Client,
	req models.ContractRequest,
) (*models.ContractData, error) {
	selected, err := s.resolveSelectedSignees(ctx, user.AccountID, req.ClientID, req.SigneeIDs)
	if err != nil {
		return nil, err
	}

	accountSignees, err := s.accountSignees(ctx, user.AccountID)
	if err != nil {
		return nil, err
	}

	contract := &models.Contract{
		AccountID:     user.AccountID,
		ClientID:      req.ClientID,
		FolderID:      req.FolderID,
		Title:         req.Title,
		Content:       req.Content,
		SignedContent: req.Content,
		Status:        models.ContractDraft,
		CreatedBy:     user.ID,
	}

	err = s.repo.Transact(ctx, func(tx repository.Repository) error {
		if err := tx.CreateContract(ctx, contract); err != nil {
			return fmt.Errorf("error creating contract: %w", err)
		}

		bindings := buildBindings(contract.ID, selected, accountSignees, 0)
		if err := tx.CreateContractSignees(ctx, bindings); err != nil {
			return fmt.Errorf("error creating contract signees: %w", err)
		}

		return tx.CreateContractLog(ctx, &models.ContractLog{
			ContractID:  contract.ID,
			ActorName:   user.Name,
			Description: fmt.Sprintf("%s created this contract", user.Name),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("contract created",
		zap.String("contract_id", contract.ID),
		zap.String("account_id", user.AccountID),
	)

	return s.contractData(ctx, contract)
}

func (s *DefaultService) updateContract(
	ctx context.Context,
	user *models.User,
	req models.ContractRequest,
) (*models.ContractData, error) {
	contract, err := s.repo.GetContractByID(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("error getting contract: %w", err)
	}
	if contract == nil {
		return nil, fmt.Errorf("%w: contract", ErrNotFound)
	}
	if contract.AccountID != user.AccountID {
		return nil, fmt.Errorf("%w: contract belongs to another account", ErrUnauthorized)
	}
	if contract.Status.Terminal() {
		return nil, fmt.Errorf("%w: contract is %s", ErrInvalid, contract.Status)
	}
	if contract.ClientID != req.ClientID {
		return nil, fmt.Errorf("%w: contract client cannot be changed", ErrInvalid)
	}

	bindings, err := s.repo.ListContractSignees(ctx, contract.ID)
	if err != nil {
		return nil, fmt.Errorf("error listing contract signees: %w", err)
	}
	signed := signedCount(bindings)

	replaceSet := signeeSetChanged(bindings, req.SigneeIDs)
	if replaceSet && signed > 0 {
		// Replacing bindings after a signature exists would orphan that
		// signature; the set is locked from the first submit on.
		return nil, fmt.Errorf("%w: signee set cannot change after a signee has signed", ErrInvalid)
	}

	contract.Title = req.Title
	contract.Content = req.Content
	contract.FolderID = req.FolderID
	if signed == 0 {
		// Nothing appended yet, keep the signing copy in step with the draft
		contract.SignedContent = req.Content
	}

	var selected []models.Signee
	if replaceSet {
		selected, err = s.resolveSelectedSignees(ctx, user.AccountID, req.ClientID, req.SigneeIDs)
		if err != nil {
			return nil, err
		}
	}

	err = s.repo.Transact(ctx, func(tx repository.Repository) error {
		if err := tx.UpdateContract(ctx, contract); err != nil {
			return fmt.Errorf("error updating contract: %w", err)
		}

		if replaceSet {
			if err := tx.DeleteNonAccountContractSignees(ctx, contract.ID); err != nil {
				return fmt.Errorf("error deleting contract signees: %w", err)
			}
			nextPos := 0
			for _, b := range bindings {
				if b.Position >= nextPos {
					nextPos = b.Position + 1
				}
			}
			fresh := buildBindings(contract.ID, selected, nil, nextPos)
			if len(fresh) > 0 {
				if err := tx.CreateContractSignees(ctx, fresh); err != nil {
					return fmt.Errorf("error creating contract signees: %w", err)
				}
			}
		}

		return tx.CreateContractLog(ctx, &models.ContractLog{
			ContractID:  contract.ID,
			ActorName:   user.Name,
			Description: fmt.Sprintf("%s updated this contract", user.Name),
		})
	})
	if err != nil {
		return nil, err
	}

	return s.contractData(ctx, contract)
}

// SendContract computes the eligible recipient set, marks each recipient
// pending and mails them a tokenized signing link. The draft only moves to
// sent_for_signing when at least one recipient was actually notified; an
// empty eligible set leaves the contract untouched.
func (s *DefaultService) SendContract(ctx context.Context, userID, contractID string) (*models.SendResult, error) {
	user, err := s.currentUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	contract, err := s.repo.GetContractByID(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("error getting contract: %w", err)
	}
	if contract == nil {
		return nil, fmt.Errorf("%w: contract", ErrNotFound)
	}
	if contract.AccountID != user.AccountID {
		return nil, fmt.Errorf("%w: contract belongs to another account", ErrUnauthorized)
	}
	if contract.Status.Terminal() {
		return nil, fmt.Errorf("%w: contract is %s", ErrInvalid, contract.Status)
	}

	client, err := s.repo.GetClientByID(ctx, contract.ClientID)
	if err != nil {
		return nil, fmt.Errorf("error getting client: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: client", ErrNotFound)
	}

	account, err := s.repo.GetAccountByID(ctx, contract.AccountID)
	if err != nil {
		return nil, fmt.Errorf("error getting account: %w", err)
	}

	var notified []models.ContractSignee
	err = s.repo.Transact(ctx, func(tx repository.Repository) error {
		bindings, err := tx.ListContractSignees(ctx, contract.ID)
		if err != nil {
			return fmt.Errorf("error listing contract signees: %w", err)
		}

		notified = eligibleRecipients(client.PriorityRequired, bindings)
		if len(notified) == 0 {
			return nil
		}

		for i := range notified {
			notified[i].Status = models.SigneePending
			if err := tx.UpdateContractSignee(ctx, &notified[i]); err != nil {
				return fmt.Errorf("error updating contract signee: %w", err)
			}
		}

		if contract.Status == models.ContractDraft {
			contract.Status = models.ContractSentForSigning
			if err := tx.UpdateContract(ctx, contract); err != nil {
				return fmt.Errorf("error updating contract: %w", err)
			}
		}

		return tx.CreateContractLog(ctx, &models.ContractLog{
			ContractID:  contract.ID,
			ActorName:   user.Name,
			Description: fmt.Sprintf("%s sent this contract for signing", user.Name),
		})
	})
	if err != nil {
		return nil, err
	}

	result := &models.SendResult{
		ContractID: contract.ID,
		Status:     string(contract.Status),
	}
	for _, b := range notified {
		result.Notified = append(result.Notified, b.ID)
		s.enqueue(ctx, b.Email, notify.SendContractData{
			SigneeName:   b.Name,
			ContractName: contract.Title,
			AccountName:  account.Name,
			ContractLink: s.contractLink(b.ID),
		})
	}

	return result, nil
}

// CancelContract moves a non-terminal contract to cancelled. A draft that
// was never sent only notifies its creator; an in-flight contract notifies
// everyone who was asked to sign or already did.
func (s *DefaultService) CancelContract(ctx context.Context, userID, contractID string) error {
	user, err := s.currentUser(ctx, userID)
	if err != nil {
		return err
	}

	contract, err := s.repo.GetContractByID(ctx, contractID)
	if err != nil {
		return fmt.Errorf("error getting contract: %w", err)
	}
	if contract == nil {
		return fmt.Errorf("%w: contract", ErrNotFound)
	}
	if contract.AccountID != user.AccountID {
		return fmt.Errorf("%w: contract belongs to another account", ErrUnauthorized)
	}
	if contract.Status.Terminal() {
		return fmt.Errorf("%w: contract is already %s", ErrInvalid, contract.Status)
	}

	wasDraft := contract.Status == models.ContractDraft

	bindings, err := s.repo.ListContractSignees(ctx, contract.ID)
	if err != nil {
		return fmt.Errorf("error listing contract signees: %w", err)
	}

	err = s.repo.Transact(ctx, func(tx repository.Repository) error {
		contract.Status = models.ContractCancelled
		if err := tx.UpdateContract(ctx, contract); err != nil {
			return fmt.Errorf("error updating contract: %w", err)
		}

		return tx.CreateContractLog(ctx, &models.ContractLog{
			ContractID:  contract.ID,
			ActorName:   user.Name,
			Description: fmt.Sprintf("%s cancelled this contract", user.Name),
		})
	})
	if err != nil {
		return err
	}

	if wasDraft {
		creator, err := s.repo.GetUserByID(ctx, contract.CreatedBy)
		if err == nil && creator != nil {
			s.enqueue(ctx, creator.Email, notify.CancelledData{
				RecipientName: creator.Name,
				ContractName:  contract.Title,
				ActorName:     user.Name,
			})
		}
		return nil
	}

	for _, b := range bindings {
		if b.Status == models.SigneePending || b.Status == models.SigneeSigned {
			s.enqueue(ctx, b.Email, notify.CancelledData{
				RecipientName: b.Name,
				ContractName:  contract.Title,
				ActorName:     user.Name,
			})
		}
	}

	return nil
}

// SubmitSignature records one signee's signature. The whole state machine
// step (mark signed, overwrite the signing copy, advance the sequence,
// check completion) runs inside a single serializable transaction so two
// concurrent submits on the same contract cannot interleave.
func (s *DefaultService) SubmitSignature(
	ctx context.Context,
	req models.SubmitSignatureRequest,
	callerIP string,
) (*models.ContractSignee, error) {
	bindingID, err := s.tokens.Resolve(req.Token)
	if err != nil {
		if errors.Is(err, token.ErrInvalidToken) {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, err)
		}
		return nil, err
	}

	var (
		binding  *models.ContractSignee
		contract *models.Contract
		account  *models.Account
		advanced *models.ContractSignee
		finished []models.ContractSignee
	)

	err = s.repo.Transact(ctx, func(tx repository.Repository) error {
		var err error
		binding, err = tx.GetContractSigneeByID(ctx, bindingID)
		if err != nil {
			return fmt.Errorf("error getting contract signee: %w", err)
		}
		if binding == nil {
			return fmt.Errorf("%w: contract signee", ErrNotFound)
		}
		if binding.Status == models.SigneeSigned {
			return fmt.Errorf("%w: already signed", ErrInvalid)
		}
		if binding.Status != models.SigneePending {
			return fmt.Errorf("%w: not yet invited to sign", ErrInvalid)
		}

		contract, err = tx.GetContractByID(ctx, binding.ContractID)
		if err != nil {
			return fmt.Errorf("error getting contract: %w", err)
		}
		if contract == nil {
			return fmt.Errorf("%w: contract", ErrNotFound)
		}
		if contract.Status.Terminal() {
			return fmt.Errorf("%w: contract is %s", ErrInvalid, contract.Status)
		}

		account, err = tx.GetAccountByID(ctx, contract.AccountID)
		if err != nil {
			return fmt.Errorf("error getting account: %w", err)
		}

		// 1. record the signature on the binding
		sigType := models.SignatureType(req.SignatureType)
		if sigType == models.SignatureImage {
			key := fmt.Sprintf("contracts/%s/signatures/%s", contract.ID, binding.ID)
			stored, err := s.objects.Upload(ctx, key, []byte(req.Signature), "image/png")
			if err != nil {
				return fmt.Errorf("error storing signature image: %w", err)
			}
			binding.SignatureKey = stored
		}

		now := time.Now().Unix()
		binding.Status = models.SigneeSigned
		binding.Signature = req.Signature
		binding.SignatureType = sigType
		binding.SignedAt = &now
		binding.SignedIP = callerIP
		if err := tx.UpdateContractSignee(ctx, binding); err != nil {
			return fmt.Errorf("error updating contract signee: %w", err)
		}

		// 2. overwrite the signing copy, last write wins
		contract.SignedContent = req.SignedContent
		if err := tx.UpdateContract(ctx, contract); err != nil {
			return fmt.Errorf("error updating contract: %w", err)
		}

		// 3. audit entry
		if err := tx.CreateContractLog(ctx, &models.ContractLog{
			ContractID:  contract.ID,
			ActorName:   binding.Name,
			Description: fmt.Sprintf("%s signed this document", binding.Name),
		}); err != nil {
			return fmt.Errorf("error creating contract log: %w", err)
		}

		// 5. advance the sequence when the client requires ordering
		client, err := tx.GetClientByID(ctx, contract.ClientID)
		if err != nil {
			return fmt.Errorf("error getting client: %w", err)
		}
		if client != nil && client.PriorityRequired && binding.SigneePriority != nil {
			bindings, err := tx.ListContractSignees(ctx, contract.ID)
			if err != nil {
				return fmt.Errorf("error listing contract signees: %w", err)
			}
			if next := nextInSequence(bindings, *binding.SigneePriority); next != nil {
				next.Status = models.SigneePending
				if err := tx.UpdateContractSignee(ctx, next); err != nil {
					return fmt.Errorf("error updating contract signee: %w", err)
				}
				advanced = next
			}
		}

		// 6. completion check
		bindings, err := tx.ListContractSignees(ctx, contract.ID)
		if err != nil {
			return fmt.Errorf("error listing contract signees: %w", err)
		}
		if pendingCount(bindings) == 0 && signedCount(bindings) > 0 {
			contract.Status = models.ContractSigned
			if err := tx.UpdateContract(ctx, contract); err != nil {
				return fmt.Errorf("error updating contract: %w", err)
			}
			if err := tx.CreateContractLog(ctx, &models.ContractLog{
				ContractID:  contract.ID,
				ActorName:   binding.Name,
				Description: "Contract signed by all signees",
			}); err != nil {
				return fmt.Errorf("error creating contract log: %w", err)
			}
			finished = bindings
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// 4. confirmation to the signer, then the cascade, all fire-and-forget
	s.enqueue(ctx, binding.Email, notify.SigningConfirmedData{
		SigneeName:   binding.Name,
		ContractName: contract.Title,
	})

	if advanced != nil {
		accountName := ""
		if account != nil {
			accountName = account.Name
		}
		s.enqueue(ctx, advanced.Email, notify.SendContractData{
			SigneeName:   advanced.Name,
			ContractName: contract.Title,
			AccountName:  accountName,
			ContractLink: s.contractLink(advanced.ID),
		})
	}

	for _, b := range finished {
		s.enqueue(ctx, b.Email, notify.SignedByAllData{
			SigneeName:   b.Name,
			ContractName: contract.Title,
		})
	}

	s.logger.Info("signature submitted",
		zap.String("contract_id", contract.ID),
		zap.String("binding_id", binding.ID),
		zap.String("status", string(contract.Status)),
	)

	return binding, nil
}

// TrackOpen records that a signee opened their signing link
func (s *DefaultService) TrackOpen(ctx context.Context, signedToken string) error {
	binding, err := s.resolveBinding(ctx, signedToken)
	if err != nil {
		return err
	}

	return s.repo.CreateContractLog(ctx, &models.ContractLog{
		ContractID:  binding.ContractID,
		ActorName:   binding.Name,
		Description: fmt.Sprintf("%s opened the contract", binding.Name),
	})
}

// ViewContract resolves a signing link to the contract it belongs to
func (s *DefaultService) ViewContract(ctx context.Context, signedToken string) (*models.ContractData, error) {
	binding, err := s.resolveBinding(ctx, signedToken)
	if err != nil {
		return nil, err
	}

	contract, err := s.repo.GetContractByID(ctx, binding.ContractID)
	if err != nil {
		return nil, fmt.Errorf("error getting contract: %w", err)
	}
	if contract == nil {
		return nil, fmt.Errorf("%w: contract", ErrNotFound)
	}

	return s.contractData(ctx, contract)
}

func (s *DefaultService) ListContracts(
	ctx context.Context,
	userID, clientID, folderID string,
	limit, offset int,
) (*models.ContractListData, error) {
	user, err := s.currentUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	contracts, total, err := s.repo.ListContractsByAccount(ctx, user.AccountID, clientID, folderID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("error listing contracts: %w", err)
	}

	return &models.ContractListData{
		Contracts: contracts,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	}, nil
}

func (s *DefaultService) ListContractSignees(ctx context.Context, userID, contractID string) ([]models.ContractSignee, error) {
	if _, err := s.authorizedContract(ctx, userID, contractID); err != nil {
		return nil, err
	}

	bindings, err := s.repo.ListContractSignees(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("error listing contract signees: %w", err)
	}

	return bindings, nil
}

func (s *DefaultService) ListContractLogs(ctx context.Context, userID, contractID string) ([]models.ContractLog, error) {
	if _, err := s.authorizedContract(ctx, userID, contractID); err != nil {
		return nil, err
	}

	logs, err := s.repo.ListContractLogs(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("error listing contract logs: %w", err)
	}

	return logs, nil
}

// Helpers

func (s *DefaultService) authorizedContract(ctx context.Context, userID, contractID string) (*models.Contract, error) {
	user, err := s.currentUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	contract, err := s.repo.GetContractByID(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("error getting contract: %w", err)
	}
	if contract == nil {
		return nil, fmt.Errorf("%w: contract", ErrNotFound)
	}
	if contract.AccountID != user.AccountID {
		return nil, fmt.Errorf("%w: contract belongs to another account", ErrUnauthorized)
	}

	return contract, nil
}

func (s *DefaultService) resolveBinding(ctx context.Context, signedToken string) (*models.ContractSignee, error) {
	bindingID, err := s.tokens.Resolve(signedToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, err)
	}

	binding, err := s.repo.GetContractSigneeByID(ctx, bindingID)
	if err != nil {
		return nil, fmt.Errorf("error getting contract signee: %w", err)
	}
	if binding == nil {
		return nil, fmt.Errorf("%w: contract signee", ErrNotFound)
	}

	return binding, nil
}

func (s *DefaultService) contractData(ctx context.Context, contract *models.Contract) (*models.ContractData, error) {
	bindings, err := s.repo.ListContractSignees(ctx, contract.ID)
	if err != nil {
		return nil, fmt.Errorf("error listing contract signees: %w", err)
	}

	for i := range bindings {
		if bindings[i].SignatureKey == "" {
			continue
		}
		url, err := s.objects.PresignedURL(ctx, bindings[i].SignatureKey, 15*time.Minute)
		if err != nil {
			s.logger.Warn("presigning signature image failed",
				zap.String("binding_id", bindings[i].ID), zap.Error(err))
			continue
		}
		bindings[i].SignatureURL = url
	}

	return &models.ContractData{
		Contract: contract,
		Signees:  bindings,
		Editable: contract.IsEditable(signedCount(bindings)),
	}, nil
}

// resolveSelectedSignees loads and validates the caller's signee selection
func (s *DefaultService) resolveSelectedSignees(
	ctx context.Context,
	accountID, clientID string,
	signeeIDs []string,
) ([]models.Signee, error) {
	seen := make(map[string]bool)
	var selected []models.Signee
	for _, id := range signeeIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		signee, err := s.repo.GetSigneeByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("error getting signee: %w", err)
		}
		if signee == nil {
			return nil, fmt.Errorf("%w: signee %s", ErrNotFound, id)
		}
		if signee.AccountID != accountID {
			return nil, fmt.Errorf("%w: signee belongs to another account", ErrUnauthorized)
		}
		if signee.ClientID != clientID {
			return nil, fmt.Errorf("%w: signee %s does not belong to the contract client", ErrInvalid, id)
		}
		selected = append(selected, *signee)
	}
	return selected, nil
}

// accountSignees returns the signees of the account's own client; they are
// implicitly attached to every contract.
func (s *DefaultService) accountSignees(ctx context.Context, accountID string) ([]models.Signee, error) {
	accountClient, err := s.repo.GetAccountClient(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("error getting account client: %w", err)
	}
	if accountClient == nil {
		return nil, nil
	}

	signees, err := s.repo.ListSigneesByClient(ctx, accountClient.ID)
	if err != nil {
		return nil, fmt.Errorf("error listing account signees: %w", err)
	}
	return signees, nil
}

// buildBindings materializes ContractSignee rows, selected signees first
// and account-level signees after, positions continuing from startPos.
// Name, email and priority are snapshotted here and never updated again.
func buildBindings(contractID string, selected, accountLevel []models.Signee, startPos int) []models.ContractSignee {
	var bindings []models.ContractSignee
	pos := startPos

	add := func(signee models.Signee, isAccount bool) {
		bindings = append(bindings, models.ContractSignee{
			ContractID:      contractID,
			SigneeID:        signee.ID,
			Name:            signee.Name,
			Email:           signee.Email,
			IsAccountSignee: isAccount,
			Status:          models.SigneeNotSent,
			SigneePriority:  copyIntPtr(signee.SigningSequence),
			Position:        pos,
		})
		pos++
	}

	for _, signee := range selected {
		add(signee, false)
	}
	for _, signee := range accountLevel {
		add(signee, true)
	}

	return bindings
}

// signeeSetChanged compares the currently bound non-account signee ids with
// the requested selection as sets.
func signeeSetChanged(bindings []models.ContractSignee, signeeIDs []string) bool {
	current := make(map[string]bool)
	for _, b := range bindings {
		if !b.IsAccountSignee {
			current[b.SigneeID] = true
		}
	}

	requested := make(map[string]bool)
	for _, id := range signeeIDs {
		requested[id] = true
	}

	if len(current) != len(requested) {
		return true
	}
	for id := range requested {
		if !current[id] {
			return true
		}
	}
	return false
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
