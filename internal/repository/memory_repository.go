package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quillsign/quillsign-server/internal/models"
)

// MemoryRepository is an in-memory Repository used by the test suite and for
// running the server without Postgres. Individual operations are guarded by
// mu; Transact additionally holds txMu for its whole body, which gives the
// same "one signing transaction at a time" guarantee the Postgres
// implementation gets from serializable isolation. Transact calls must not
// be nested on this implementation.
type MemoryRepository struct {
	mu   sync.Mutex
	txMu sync.Mutex

	accounts        map[string]models.Account
	users           map[string]models.User
	clients         map[string]models.Client
	folders         map[string]models.Folder
	signees         map[string]models.Signee
	contracts       map[string]models.Contract
	contractSignees map[string]models.ContractSignee
	contractLogs    []models.ContractLog
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts:        make(map[string]models.Account),
		users:           make(map[string]models.User),
		clients:         make(map[string]models.Client),
		folders:         make(map[string]models.Folder),
		signees:         make(map[string]models.Signee),
		contracts:       make(map[string]models.Contract),
		contractSignees: make(map[string]models.ContractSignee),
	}
}

func (r *MemoryRepository) Transact(ctx context.Context, fn func(Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	return fn(r)
}

// Account operations
func (r *MemoryRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	r.accounts[account.ID] = *account
	return nil
}

func (r *MemoryRepository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		return &a, nil
	}
	return nil, nil
}

func (r *MemoryRepository) UpdateAccount(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account.UpdatedAt = time.Now().UTC()
	r.accounts[account.ID] = *account
	return nil
}

func (r *MemoryRepository) DeleteAccount(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, id)
	// Mirror the DB-level ON DELETE CASCADE
	for uid, u := range r.users {
		if u.AccountID == id {
			delete(r.users, uid)
		}
	}
	for cid, c := range r.clients {
		if c.AccountID == id {
			delete(r.clients, cid)
		}
	}
	for fid, f := range r.folders {
		if f.AccountID == id {
			delete(r.folders, fid)
		}
	}
	for sid, s := range r.signees {
		if s.AccountID == id {
			delete(r.signees, sid)
		}
	}
	for ctid, ct := range r.contracts {
		if ct.AccountID == id {
			delete(r.contracts, ctid)
			for bid, b := range r.contractSignees {
				if b.ContractID == ctid {
					delete(r.contractSignees, bid)
				}
			}
		}
	}
	return nil
}

func (r *MemoryRepository) ListAccountsDueForDeletion(ctx context.Context, now time.Time) ([]models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Account
	for _, a := range r.accounts {
		if a.DeletionScheduledAt != nil && !a.DeletionScheduledAt.After(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListAccountsWithExpiredSubscription(ctx context.Context, now time.Time) ([]models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Account
	for _, a := range r.accounts {
		if a.SubscriptionExpiresAt != nil && !a.SubscriptionExpiresAt.After(now) && a.DeactivatedAt == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

// User operations
func (r *MemoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (r *MemoryRepository) ListUsersByAccount(ctx context.Context, accountID string) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, u := range r.users {
		if u.AccountID == accountID {
			out = append(out, u)
		}
	}
	return out, nil
}

// Client operations
func (r *MemoryRepository) CreateClient(ctx context.Context, client *models.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if client.ID == "" {
		client.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now
	r.clients[client.ID] = *client
	return nil
}

func (r *MemoryRepository) UpdateClient(ctx context.Context, client *models.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	client.UpdatedAt = time.Now().UTC()
	r.clients[client.ID] = *client
	return nil
}

func (r *MemoryRepository) GetClientByID(ctx context.Context, id string) (*models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (r *MemoryRepository) GetAccountClient(ctx context.Context, accountID string) (*models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.AccountID == accountID && c.IsAccountClient {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ListClientsByAccount(ctx context.Context, accountID string) ([]models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Client
	for _, c := range r.clients {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Folder operations
func (r *MemoryRepository) CreateFolder(ctx context.Context, folder *models.Folder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if folder.ID == "" {
		folder.ID = uuid.New().String()
	}
	folder.CreatedAt = time.Now().UTC()
	r.folders[folder.ID] = *folder
	return nil
}

func (r *MemoryRepository) GetFolderByID(ctx context.Context, id string) (*models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.folders[id]; ok {
		return &f, nil
	}
	return nil, nil
}

func (r *MemoryRepository) ListFoldersByAccount(ctx context.Context, accountID string) ([]models.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Folder
	for _, f := range r.folders {
		if f.AccountID == accountID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Signee operations
func (r *MemoryRepository) CreateSignee(ctx context.Context, signee *models.Signee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if signee.ID == "" {
		signee.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	signee.CreatedAt = now
	signee.UpdatedAt = now
	r.signees[signee.ID] = *signee
	return nil
}

func (r *MemoryRepository) UpdateSignee(ctx context.Context, signee *models.Signee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	signee.UpdatedAt = time.Now().UTC()
	r.signees[signee.ID] = *signee
	return nil
}

func (r *MemoryRepository) DeleteSignee(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.signees, id)
	return nil
}

func (r *MemoryRepository) GetSigneeByID(ctx context.Context, id string) (*models.Signee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.signees[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (r *MemoryRepository) GetSigneeByEmail(ctx context.Context, accountID, email string) (*models.Signee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.signees {
		if s.AccountID == accountID && s.Email == email {
			s := s
			return &s, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ListSigneesByClient(ctx context.Context, clientID string) ([]models.Signee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Signee
	for _, s := range r.signees {
		if s.ClientID == clientID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Contract operations
func (r *MemoryRepository) CreateContract(ctx context.Context, contract *models.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if contract.ID == "" {
		contract.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	contract.CreatedAt = now
	contract.UpdatedAt = now
	r.contracts[contract.ID] = *contract
	return nil
}

func (r *MemoryRepository) UpdateContract(ctx context.Context, contract *models.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	contract.UpdatedAt = time.Now().UTC()
	r.contracts[contract.ID] = *contract
	return nil
}

func (r *MemoryRepository) GetContractByID(ctx context.Context, id string) (*models.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.contracts[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (r *MemoryRepository) ListContractsByAccount(
	ctx context.Context,
	accountID, clientID, folderID string,
	limit, offset int,
) ([]models.Contract, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []models.Contract
	for _, c := range r.contracts {
		if c.AccountID != accountID {
			continue
		}
		if clientID != "" && c.ClientID != clientID {
			continue
		}
		if folderID != "" && c.FolderID != folderID {
			continue
		}
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (r *MemoryRepository) ListContractsByStatus(ctx context.Context, status models.ContractStatus) ([]models.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Contract
	for _, c := range r.contracts {
		if c.Status == status {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

// Contract signee bindings
func (r *MemoryRepository) CreateContractSignees(ctx context.Context, bindings []models.ContractSignee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for i := range bindings {
		if bindings[i].ID == "" {
			bindings[i].ID = uuid.New().String()
		}
		bindings[i].CreatedAt = now
		r.contractSignees[bindings[i].ID] = bindings[i]
	}
	return nil
}

func (r *MemoryRepository) GetContractSigneeByID(ctx context.Context, id string) (*models.ContractSignee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.contractSignees[id]; ok {
		return &b, nil
	}
	return nil, nil
}

func (r *MemoryRepository) UpdateContractSignee(ctx context.Context, binding *models.ContractSignee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contractSignees[binding.ID] = *binding
	return nil
}

func (r *MemoryRepository) ListContractSignees(ctx context.Context, contractID string) ([]models.ContractSignee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ContractSignee
	for _, b := range r.contractSignees {
		if b.ContractID == contractID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *MemoryRepository) DeleteNonAccountContractSignees(ctx context.Context, contractID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, b := range r.contractSignees {
		if b.ContractID == contractID && !b.IsAccountSignee {
			delete(r.contractSignees, id)
		}
	}
	return nil
}

// Contract logs
func (r *MemoryRepository) CreateContractLog(ctx context.Context, entry *models.ContractLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	r.contractLogs = append(r.contractLogs, *entry)
	return nil
}

func (r *MemoryRepository) ListContractLogs(ctx context.Context, contractID string) ([]models.ContractLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ContractLog
	for _, l := range r.contractLogs {
		if l.ContractID == contractID {
			out = append(out, l)
		}
	}
	return out, nil
}
