package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/quillsign/quillsign-server/internal/identity"
	"github.com/quillsign/quillsign-server/internal/models"
	"github.com/quillsign/quillsign-server/internal/notify"
	"github.com/quillsign/quillsign-server/internal/repository"
	"github.com/quillsign/quillsign-server/internal/storage"
	"github.com/quillsign/quillsign-server/internal/token"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// captureDispatcher collects enqueued email jobs instead of sending them
type captureDispatcher struct {
	mu   sync.Mutex
	jobs []notify.EmailJob
}

func (d *captureDispatcher) Enqueue(ctx context.Context, job notify.EmailJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *captureDispatcher) all() []notify.EmailJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notify.EmailJob(nil), d.jobs...)
}

func (d *captureDispatcher) byType(t notify.EmailType) []notify.EmailJob {
	var out []notify.EmailJob
	for _, j := range d.all() {
		if j.EmailType == t {
			out = append(out, j)
		}
	}
	return out
}

func (d *captureDispatcher) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = nil
}

type testEnv struct {
	ctx    context.Context
	svc    *DefaultService
	repo   *repository.MemoryRepository
	mail   *captureDispatcher
	tokens *token.Issuer
}

func newTestEnv(t *testing.T) *testEnv {
	repo := repository.NewMemoryRepository()
	mail := &captureDispatcher{}
	tokens := token.NewIssuer("test-secret", time.Hour)

	templates, err := notify.LoadTemplates(nil)
	require.NoError(t, err)

	logger := zap.NewNop()
	svc := NewDefaultService(
		repo,
		mail,
		templates,
		tokens,
		storage.NewMemoryStore(),
		&identity.LogProvider{Logger: logger},
		logger,
		Options{
			JWTSecret: "test-secret",
			BaseURL:   "http://localhost:8080",
		},
	).(*DefaultService)

	return &testEnv{
		ctx:    context.Background(),
		svc:    svc,
		repo:   repo,
		mail:   mail,
		tokens: tokens,
	}
}

type fixture struct {
	userID    string
	accountID string
	clientID  string
	folderID  string
}

// seedAccount provisions an account with one client and one folder
func (e *testEnv) seedAccount(t *testing.T, priorityRequired bool) *fixture {
	auth, err := e.svc.SignUp(e.ctx, models.SignUpRequest{
		AccountName: "Acme Corp",
		Email:       "owner@acme.test",
		Password:    "password-123",
		Name:        "Olive Owner",
	})
	require.NoError(t, err)

	client, err := e.svc.CreateOrUpdateClient(e.ctx, auth.UserID, models.ClientRequest{
		Name:             "Globex",
		PriorityRequired: priorityRequired,
	})
	require.NoError(t, err)

	folder, err := e.svc.CreateFolder(e.ctx, auth.UserID, models.FolderRequest{Name: "Deals"})
	require.NoError(t, err)

	return &fixture{
		userID:    auth.UserID,
		accountID: auth.AccountID,
		clientID:  client.ID,
		folderID:  folder.ID,
	}
}

func (e *testEnv) addSignee(t *testing.T, f *fixture, name, email string, sequence *int) *models.Signee {
	signee, err := e.svc.CreateOrUpdateSignee(e.ctx, f.userID, models.SigneeRequest{
		ClientID:        f.clientID,
		Name:            name,
		Email:           email,
		SigningSequence: sequence,
	})
	require.NoError(t, err)
	return signee
}

func (e *testEnv) createContract(t *testing.T, f *fixture, signeeIDs ...string) *models.ContractData {
	data, err := e.svc.CreateOrUpdateContract(e.ctx, f.userID, models.ContractRequest{
		ClientID:  f.clientID,
		FolderID:  f.folderID,
		Title:     "Master Services Agreement",
		Content:   "The parties agree as follows.",
		SigneeIDs: signeeIDs,
	})
	require.NoError(t, err)
	return data
}

// submit signs on behalf of the binding using a freshly minted link token
func (e *testEnv) submit(t *testing.T, bindingID string) (*models.ContractSignee, error) {
	tok, err := e.tokens.Generate(bindingID)
	require.NoError(t, err)

	return e.svc.SubmitSignature(e.ctx, models.SubmitSignatureRequest{
		Token:         tok,
		SignedContent: "The parties agree as follows. [signed]",
		Signature:     "Signed in good faith",
		SignatureType: "text",
	}, "203.0.113.9")
}

func (e *testEnv) bindings(t *testing.T, contractID string) []models.ContractSignee {
	bindings, err := e.repo.ListContractSignees(e.ctx, contractID)
	require.NoError(t, err)
	return bindings
}

func (e *testEnv) contract(t *testing.T, contractID string) *models.Contract {
	contract, err := e.repo.GetContractByID(e.ctx, contractID)
	require.NoError(t, err)
	require.NotNil(t, contract)
	return contract
}

func intPtr(v int) *int { return &v }
