package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/quillsign/quillsign-server/internal/identity"
	"github.com/quillsign/quillsign-server/internal/models"
	"github.com/quillsign/quillsign-server/internal/notify"
	"github.com/quillsign/quillsign-server/internal/repository"
	"github.com/quillsign/quillsign-server/internal/storage"
	"github.com/quillsign/quillsign-server/internal/token"
	"go.uber.org/zap"
)

// Sentinel errors the API layer translates into response envelopes
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalid      = errors.New("invalid request")
)

// Service defines all the business logic operations
type Service interface {
	// Authentication and accounts
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthData, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthData, error)
	GetAccount(ctx context.Context, userID string) (*models.Account, error)
	ScheduleAccountDeletion(ctx context.Context, userID string) (*models.Account, error)

	// Clients, signees, folders
	CreateOrUpdateClient(ctx context.Context, userID string, req models.ClientRequest) (*models.Client, error)
	ListClients(ctx context.Context, userID string) ([]models.Client, error)
	CreateOrUpdateSignee(ctx context.Context, userID string, req models.SigneeRequest) (*models.Signee, error)
	DeleteSignee(ctx context.Context, userID, signeeID string) error
	ListSignees(ctx context.Context, userID, clientID string) ([]models.Signee, error)
	CreateFolder(ctx context.Context, userID string, req models.FolderRequest) (*models.Folder, error)
	ListFolders(ctx context.Context, userID string) ([]models.Folder, error)

	// Contract lifecycle
	CreateOrUpdateContract(ctx context.Context, userID string, req models.ContractRequest) (*models.ContractData, error)
	SendContract(ctx context.Context, userID, contractID string) (*models.SendResult, error)
	CancelContract(ctx context.Context, userID, contractID string) error
	SubmitSignature(ctx context.Context, req models.SubmitSignatureRequest, callerIP string) (*models.ContractSignee, error)
	TrackOpen(ctx context.Context, signedToken string) error
	ViewContract(ctx context.Context, signedToken string) (*models.ContractData, error)
	ListContracts(ctx context.Context, userID, clientID, folderID string, limit, offset int) (*models.ContractListData, error)
	ListContractSignees(ctx context.Context, userID, contractID string) ([]models.ContractSignee, error)
	ListContractLogs(ctx context.Context, userID, contractID string) ([]models.ContractLog, error)

	// Background jobs
	SweepScheduledDeletions(ctx context.Context) (int, error)
	SendSigningReminders(ctx context.Context, pendingFor time.Duration) (int, error)
	DeactivateExpiredSubscriptions(ctx context.Context) (int, error)
}

// Options configures a DefaultService
type Options struct {
	JWTSecret         string
	EmailTokenTTL     time.Duration
	BaseURL           string
	DeletionGraceDays int
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo       repository.Repository
	dispatcher notify.Dispatcher
	templates  notify.TemplateSet
	tokens     *token.Issuer
	objects    storage.ObjectStore
	idp        identity.Provider
	logger     *zap.Logger

	jwtSecret         []byte
	tokenDuration     time.Duration
	baseURL           string
	deletionGraceDays int
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(
	repo repository.Repository,
	dispatcher notify.Dispatcher,
	templates notify.TemplateSet,
	tokens *token.Issuer,
	objects storage.ObjectStore,
	idp identity.Provider,
	logger *zap.Logger,
	opts Options,
) Service {
	if opts.DeletionGraceDays <= 0 {
		opts.DeletionGraceDays = 30
	}
	return &DefaultService{
		repo:              repo,
		dispatcher:        dispatcher,
		templates:         templates,
		tokens:            tokens,
		objects:           objects,
		idp:               idp,
		logger:            logger,
		jwtSecret:         []byte(opts.JWTSecret),
		tokenDuration:     24 * time.Hour, // 24 hours token validity
		baseURL:           opts.BaseURL,
		deletionGraceDays: opts.DeletionGraceDays,
	}
}

// currentUser resolves the authenticated caller; an unknown user id means
// the session refers to someone who no longer exists.
func (s *DefaultService) currentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: unknown user", ErrUnauthorized)
	}
	return user, nil
}

// enqueue pushes an email job and only logs a failure. The surrounding
// business action has already committed by the time this runs; a lost
// notification does not undo it.
func (s *DefaultService) enqueue(ctx context.Context, emailTo string, payload notify.Payload) {
	job, err := s.templates.Job(emailTo, payload)
	if err != nil {
		s.logger.Error("email job build failed", zap.Error(err))
		return
	}
	if err := s.dispatcher.Enqueue(ctx, job); err != nil {
		s.logger.Error("email enqueue failed",
			zap.String("type", string(job.EmailType)),
			zap.String("to", job.EmailTo),
			zap.Error(err),
		)
	}
}

func (s *DefaultService) generateJWT(user *models.User) (string, error) {
	expirationTime := time.Now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub": user.ID, // subject
		"exp": expirationTime.Unix(),
		"iat": time.Now().Unix(), // issued at
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.jwtSecret)
}

// contractLink builds the tokenized signing URL mailed to a signee
func (s *DefaultService) contractLink(bindingID string) string {
	t, err := s.tokens.Generate(bindingID)
	if err != nil {
		s.logger.Error("email token generation failed", zap.Error(err))
		return s.baseURL
	}
	return s.baseURL + "/public/contract/view?token=" + t
}
