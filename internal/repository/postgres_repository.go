package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/quillsign/quillsign-server/internal/models"
)

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// Account operations
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	UpdateAccount(ctx context.Context, account *models.Account) error
	DeleteAccount(ctx context.Context, id string) error
	ListAccountsDueForDeletion(ctx context.Context, now time.Time) ([]models.Account, error)
	ListAccountsWithExpiredSubscription(ctx context.Context, now time.Time) ([]models.Account, error)

	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsersByAccount(ctx context.Context, accountID string) ([]models.User, error)

	// Client operations
	CreateClient(ctx context.Context, client *models.Client) error
	UpdateClient(ctx context.Context, client *models.Client) error
	GetClientByID(ctx context.Context, id string) (*models.Client, error)
	GetAccountClient(ctx context.Context, accountID string) (*models.Client, error)
	ListClientsByAccount(ctx context.Context, accountID string) ([]models.Client, error)

	// Folder operations
	CreateFolder(ctx context.Context, folder *models.Folder) error
	GetFolderByID(ctx context.Context, id string) (*models.Folder, error)
	ListFoldersByAccount(ctx context.Context, accountID string) ([]models.Folder, error)

	// Signee operations
	CreateSignee(ctx context.Context, signee *models.Signee) error
	UpdateSignee(ctx context.Context, signee *models.Signee) error
	DeleteSignee(ctx context.Context, id string) error
	GetSigneeByID(ctx context.Context, id string) (*models.Signee, error)
	GetSigneeByEmail(ctx context.Context, accountID, email string) (*models.Signee, error)
	ListSigneesByClient(ctx context.Context, clientID string) ([]models.Signee, error)

	// Contract operations
	CreateContract(ctx context.Context, contract *models.Contract) error
	UpdateContract(ctx context.Context, contract *models.Contract) error
	GetContractByID(ctx context.Context, id string) (*models.Contract, error)
	ListContractsByAccount(ctx context.Context, accountID, clientID, folderID string, limit, offset int) ([]models.Contract, int, error)
	ListContractsByStatus(ctx context.Context, status models.ContractStatus) ([]models.Contract, error)

	// Contract signee bindings
	CreateContractSignees(ctx context.Context, bindings []models.ContractSignee) error
	GetContractSigneeByID(ctx context.Context, id string) (*models.ContractSignee, error)
	UpdateContractSignee(ctx context.Context, binding *models.ContractSignee) error
	ListContractSignees(ctx context.Context, contractID string) ([]models.ContractSignee, error)
	DeleteNonAccountContractSignees(ctx context.Context, contractID string) error

	// Contract logs
	CreateContractLog(ctx context.Context, entry *models.ContractLog) error
	ListContractLogs(ctx context.Context, contractID string) ([]models.ContractLog, error)

	// Transact runs fn against a repository bound to a single serializable
	// transaction. The signing state machine (submit → advance → complete)
	// must run inside one Transact call so concurrent submits on the same
	// contract cannot interleave.
	Transact(ctx context.Context, fn func(Repository) error) error
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db  *sqlx.DB
	ext sqlx.ExtContext // db outside a transaction, tx inside Transact
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db:  db,
		ext: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

func (r *PostgresRepository) Transact(ctx context.Context, fn func(Repository) error) error {
	if _, inTx := r.ext.(*sqlx.Tx); inTx {
		// Already transactional, reuse the same tx
		return fn(r)
	}

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}

	txRepo := &PostgresRepository{db: r.db, ext: tx}
	if err := fn(txRepo); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Account repository methods
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, name, subscription_expires_at, deletion_scheduled_at, deactivated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if account.ID == "" {
		account.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := r.ext.ExecContext(ctx, query,
		account.ID, account.Name, account.SubscriptionExpiresAt,
		account.DeletionScheduledAt, account.DeactivatedAt,
		account.CreatedAt, account.UpdatedAt)

	return err
}

func (r *PostgresRepository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT * FROM accounts WHERE id = $1`

	var account models.Account
	err := sqlx.GetContext(ctx, r.ext, &account, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Account not found
		}
		return nil, err
	}

	return &account, nil
}

func (r *PostgresRepository) UpdateAccount(ctx context.Context, account *models.Account) error {
	query := `
		UPDATE accounts
		SET name = $1, subscription_expires_at = $2, deletion_scheduled_at = $3,
		    deactivated_at = $4, updated_at = $5
		WHERE id = $6
	`

	account.UpdatedAt = time.Now().UTC()

	_, err := r.ext.ExecContext(ctx, query,
		account.Name, account.SubscriptionExpiresAt, account.DeletionScheduledAt,
		account.DeactivatedAt, account.UpdatedAt, account.ID)

	return err
}

// DeleteAccount removes the account row; clients, folders, signees,
// contracts, bindings and logs go with it through ON DELETE CASCADE.
func (r *PostgresRepository) DeleteAccount(ctx context.Context, id string) error {
	_, err := r.ext.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) ListAccountsDueForDeletion(ctx context.Context, now time.Time) ([]models.Account, error) {
	query := `SELECT * FROM accounts WHERE deletion_scheduled_at IS NOT NULL AND deletion_scheduled_at <= $1`

	var accounts []models.Account
	err := sqlx.SelectContext(ctx, r.ext, &accounts, query, now)
	if err != nil {
		return nil, err
	}

	return accounts, nil
}

func (r *PostgresRepository) ListAccountsWithExpiredSubscription(ctx context.Context, now time.Time) ([]models.Account, error) {
	query := `
		SELECT * FROM accounts
		WHERE subscription_expires_at IS NOT NULL AND subscription_expires_at <= $1
		AND deactivated_at IS NULL
	`

	var accounts []models.Account
	err := sqlx.SelectContext(ctx, r.ext, &accounts, query, now)
	if err != nil {
		return nil, err
	}

	return accounts, nil
}

// User repository methods
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, account_id, email, name, password, is_primary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.ext.ExecContext(ctx, query,
		user.ID, user.AccountID, user.Email, user.Name, user.Password,
		user.IsPrimary, user.CreatedAt, user.UpdatedAt)

	return err
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT * FROM users WHERE email = $1`

	var user models.User
	err := sqlx.GetContext(ctx, r.ext, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT * FROM users WHERE id = $1`

	var user models.User
	err := sqlx.GetContext(ctx, r.ext, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) ListUsersByAccount(ctx context.Context, accountID string) ([]models.User, error) {
	query := `SELECT * FROM users WHERE account_id = $1`

	var users []models.User
	err := sqlx.SelectContext(ctx, r.ext, &users, query, accountID)
	if err != nil {
		return nil, err
	}

	return users, nil
}

// Client repository methods
func (r *PostgresRepository) CreateClient(ctx context.Context, client *models.Client) error {
	query := `
		INSERT INTO clients (id, account_id, name, priority_required, is_account_client, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if client.ID == "" {
		client.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now

	_, err := r.ext.ExecContext(ctx, query,
		client.ID, client.AccountID, client.Name, client.PriorityRequired,
		client.IsAccountClient, client.CreatedAt, client.UpdatedAt)

	return err
}

func (r *PostgresRepository) UpdateClient(ctx context.Context, client *models.Client) error {
	query := `
		UPDATE clients SET name = $1, priority_required = $2, updated_at = $3
		WHERE id = $4
	`

	client.UpdatedAt = time.Now().UTC()

	_, err := r.ext.ExecContext(ctx, query,
		client.Name, client.PriorityRequired, client.UpdatedAt, client.ID)

	return err
}

func (r *PostgresRepository) GetClientByID(ctx context.Context, id string) (*models.Client, error) {
	query := `SELECT * FROM clients WHERE id = $1`

	var client models.Client
	err := sqlx.GetContext(ctx, r.ext, &client, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Client not found
		}
		return nil, err
	}

	return &client, nil
}

func (r *PostgresRepository) GetAccountClient(ctx context.Context, accountID string) (*models.Client, error) {
	query := `SELECT * FROM clients WHERE account_id = $1 AND is_account_client = TRUE`

	var client models.Client
	err := sqlx.GetContext(ctx, r.ext, &client, query, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &client, nil
}

func (r *PostgresRepository) ListClientsByAccount(ctx context.Context, accountID string) ([]models.Client, error) {
	query := `SELECT * FROM clients WHERE account_id = $1 ORDER BY created_at ASC`

	var clients []models.Client
	err := sqlx.SelectContext(ctx, r.ext, &clients, query, accountID)
	if err != nil {
		return nil, err
	}

	return clients, nil
}

// Folder repository methods
func (r *PostgresRepository) CreateFolder(ctx context.Context, folder *models.Folder) error {
	query := `
		INSERT INTO folders (id, account_id, name, created_at)
		VALUES ($1, $2, $3, $4)
	`

	if folder.ID == "" {
		folder.ID = uuid.New().String()
	}
	folder.CreatedAt = time.Now().UTC()

	_, err := r.ext.ExecContext(ctx, query,
		folder.ID, folder.AccountID, folder.Name, folder.CreatedAt)

	return err
}

func (r *PostgresRepository) GetFolderByID(ctx context.Context, id string) (*models.Folder, error) {
	query := `SELECT * FROM folders WHERE id = $1`

	var folder models.Folder
	err := sqlx.GetContext(ctx, r.ext, &folder, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &folder, nil
}

func (r *PostgresRepository) ListFoldersByAccount(ctx context.Context, accountID string) ([]models.Folder, error) {
	query := `SELECT * FROM folders WHERE account_id = $1 ORDER BY created_at ASC`

	var folders []models.Folder
	err := sqlx.SelectContext(ctx, r.ext, &folders, query, accountID)
	if err != nil {
		return nil, err
	}

	return folders, nil
}

// Signee repository methods
func (r *PostgresRepository) CreateSignee(ctx context.Context, signee *models.Signee) error {
	query := `
		INSERT INTO signees (id, account_id, client_id, name, email, signing_sequence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	if signee.ID == "" {
		signee.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	signee.CreatedAt = now
	signee.UpdatedAt = now

	_, err := r.ext.ExecContext(ctx, query,
		signee.ID, signee.AccountID, signee.ClientID, signee.Name, signee.Email,
		signee.SigningSequence, signee.CreatedAt, signee.UpdatedAt)

	return err
}

func (r *PostgresRepository) UpdateSignee(ctx context.Context, signee *models.Signee) error {
	query := `
		UPDATE signees SET name = $1, email = $2, signing_sequence = $3, updated_at = $4
		WHERE id = $5
	`

	signee.UpdatedAt = time.Now().UTC()

	_, err := r.ext.ExecContext(ctx, query,
		signee.Name, signee.Email, signee.SigningSequence, signee.UpdatedAt, signee.ID)

	return err
}

func (r *PostgresRepository) DeleteSignee(ctx context.Context, id string) error {
	_, err := r.ext.ExecContext(ctx, `DELETE FROM signees WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) GetSigneeByID(ctx context.Context, id string) (*models.Signee, error) {
	query := `SELECT * FROM signees WHERE id = $1`

	var signee models.Signee
	err := sqlx.GetContext(ctx, r.ext, &signee, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Signee not found
		}
		return nil, err
	}

	return &signee, nil
}

// GetSigneeByEmail enforces the per-account email uniqueness check; there is
// no DB constraint for it because the same email may exist under another
// account.
func (r *PostgresRepository) GetSigneeByEmail(ctx context.Context, accountID, email string) (*models.Signee, error) {
	query := `SELECT * FROM signees WHERE account_id = $1 AND email = $2`

	var signee models.Signee
	err := sqlx.GetContext(ctx, r.ext, &signee, query, accountID, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &signee, nil
}

func (r *PostgresRepository) ListSigneesByClient(ctx context.Context, clientID string) ([]models.Signee, error) {
	query := `SELECT * FROM signees WHERE client_id = $1 ORDER BY created_at ASC`

	var signees []models.Signee
	err := sqlx.SelectContext(ctx, r.ext, &signees, query, clientID)
	if err != nil {
		return nil, err
	}

	return signees, nil
}

// Contract repository methods
func (r *PostgresRepository) CreateContract(ctx context.Context, contract *models.Contract) error {
	query := `
		INSERT INTO contracts (id, account_id, client_id, folder_id, title, content, signed_content, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	if contract.ID == "" {
		contract.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	contract.CreatedAt = now
	contract.UpdatedAt = now

	_, err := r.ext.ExecContext(ctx, query,
		contract.ID, contract.AccountID, contract.ClientID, contract.FolderID,
		contract.Title, contract.Content, contract.SignedContent, contract.Status,
		contract.CreatedBy, contract.CreatedAt, contract.UpdatedAt)

	return err
}

func (r *PostgresRepository) UpdateContract(ctx context.Context, contract *models.Contract) error {
	query := `
		UPDATE contracts
		SET client_id = $1, folder_id = $2, title = $3, content = $4,
		    signed_content = $5, status = $6, updated_at = $7
		WHERE id = $8
	`

	contract.UpdatedAt = time.Now().UTC()

	_, err := r.ext.ExecContext(ctx, query,
		contract.ClientID, contract.FolderID, contract.Title, contract.Content,
		contract.SignedContent, contract.Status, contract.UpdatedAt, contract.ID)

	return err
}

func (r *PostgresRepository) GetContractByID(ctx context.Context, id string) (*models.Contract, error) {
	query := `SELECT * FROM contracts WHERE id = $1`

	var contract models.Contract
	err := sqlx.GetContext(ctx, r.ext, &contract, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Contract not found
		}
		return nil, err
	}

	return &contract, nil
}

func (r *PostgresRepository) ListContractsByAccount(
	ctx context.Context,
	accountID, clientID, folderID string,
	limit, offset int,
) ([]models.Contract, int, error) {
	query := `SELECT * FROM contracts WHERE account_id = $1`
	countQuery := `SELECT COUNT(*) FROM contracts WHERE account_id = $1`
	args := []interface{}{accountID}

	if clientID != "" {
		args = append(args, clientID)
		cond := ` AND client_id = $2`
		query += cond
		countQuery += cond
	}
	if folderID != "" {
		args = append(args, folderID)
		cond := ` AND folder_id = $` + strconv.Itoa(len(args))
		query += cond
		countQuery += cond
	}

	var total int
	if err := sqlx.GetContext(ctx, r.ext, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	var contracts []models.Contract
	if err := sqlx.SelectContext(ctx, r.ext, &contracts, query, args...); err != nil {
		return nil, 0, err
	}

	return contracts, total, nil
}

func (r *PostgresRepository) ListContractsByStatus(ctx context.Context, status models.ContractStatus) ([]models.Contract, error) {
	query := `SELECT * FROM contracts WHERE status = $1 ORDER BY updated_at ASC`

	var contracts []models.Contract
	err := sqlx.SelectContext(ctx, r.ext, &contracts, query, status)
	if err != nil {
		return nil, err
	}

	return contracts, nil
}

// Contract signee binding methods
func (r *PostgresRepository) CreateContractSignees(ctx context.Context, bindings []models.ContractSignee) error {
	query := `
		INSERT INTO contract_signees (id, contract_id, signee_id, name, email, is_account_signee, status, signee_priority, position, signature, signature_type, signature_key, signed_at, signed_ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	now := time.Now().UTC()
	for i := range bindings {
		b := &bindings[i]
		if b.ID == "" {
			b.ID = uuid.New().String()
		}
		b.CreatedAt = now

		_, err := r.ext.ExecContext(ctx, query,
			b.ID, b.ContractID, b.SigneeID, b.Name, b.Email, b.IsAccountSignee,
			b.Status, b.SigneePriority, b.Position, b.Signature, b.SignatureType,
			b.SignatureKey, b.SignedAt, b.SignedIP, b.CreatedAt)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *PostgresRepository) GetContractSigneeByID(ctx context.Context, id string) (*models.ContractSignee, error) {
	query := `SELECT * FROM contract_signees WHERE id = $1`

	var binding models.ContractSignee
	err := sqlx.GetContext(ctx, r.ext, &binding, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Binding not found
		}
		return nil, err
	}

	return &binding, nil
}

func (r *PostgresRepository) UpdateContractSignee(ctx context.Context, binding *models.ContractSignee) error {
	query := `
		UPDATE contract_signees
		SET status = $1, signature = $2, signature_type = $3, signature_key = $4,
		    signed_at = $5, signed_ip = $6
		WHERE id = $7
	`

	_, err := r.ext.ExecContext(ctx, query,
		binding.Status, binding.Signature, binding.SignatureType,
		binding.SignatureKey, binding.SignedAt, binding.SignedIP, binding.ID)

	return err
}

// ListContractSignees returns bindings in insertion order; the sequencer
// relies on this order to break priority ties.
func (r *PostgresRepository) ListContractSignees(ctx context.Context, contractID string) ([]models.ContractSignee, error) {
	query := `SELECT * FROM contract_signees WHERE contract_id = $1 ORDER BY position ASC`

	var bindings []models.ContractSignee
	err := sqlx.SelectContext(ctx, r.ext, &bindings, query, contractID)
	if err != nil {
		return nil, err
	}

	return bindings, nil
}

// DeleteNonAccountContractSignees drops the replaceable part of the binding
// set; account-level bindings survive signee selection changes.
func (r *PostgresRepository) DeleteNonAccountContractSignees(ctx context.Context, contractID string) error {
	query := `DELETE FROM contract_signees WHERE contract_id = $1 AND is_account_signee = FALSE`
	_, err := r.ext.ExecContext(ctx, query, contractID)
	return err
}

// Contract log methods
func (r *PostgresRepository) CreateContractLog(ctx context.Context, entry *models.ContractLog) error {
	query := `
		INSERT INTO contract_logs (id, contract_id, actor_name, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.ext.ExecContext(ctx, query,
		entry.ID, entry.ContractID, entry.ActorName, entry.Description, entry.CreatedAt)

	return err
}

func (r *PostgresRepository) ListContractLogs(ctx context.Context, contractID string) ([]models.ContractLog, error) {
	query := `SELECT * FROM contract_logs WHERE contract_id = $1 ORDER BY created_at ASC`

	var logs []models.ContractLog
	err := sqlx.SelectContext(ctx, r.ext, &logs, query, contractID)
	if err != nil {
		return nil, err
	}

	return logs, nil
}
