package models

// Request models
type SignUpRequest struct {
	AccountName string `json:"accountName" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	Name        string `json:"name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ClientRequest struct {
	ID               string `json:"id"` // empty on create
	Name             string `json:"name" binding:"required"`
	PriorityRequired bool   `json:"priorityRequired"`
}

type SigneeRequest struct {
	ID              string `json:"id"` // empty on create
	ClientID        string `json:"clientId" binding:"required"`
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	SigningSequence *int   `json:"signingSequence"`
}

type FolderRequest struct {
	Name string `json:"name" binding:"required"`
}

type ContractRequest struct {
	ID        string   `json:"id"` // empty on create
	ClientID  string   `json:"clientId" binding:"required"`
	FolderID  string   `json:"folderId" binding:"required"`
	Title     string   `json:"title" binding:"required"`
	Content   string   `json:"content" binding:"required"`
	SigneeIDs []string `json:"signeeIds"`
}

type ContractActionRequest struct {
	ContractID string `json:"contractId" binding:"required"`
}

type SubmitSignatureRequest struct {
	Token         string `json:"token" binding:"required"`
	SignedContent string `json:"signedContent" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
	SignatureType string `json:"signatureType" binding:"required,oneof=text svg image"`
}

type TrackOpenRequest struct {
	Token string `json:"token" binding:"required"`
}

// Response is the standard envelope every endpoint answers with. The HTTP
// status code mirrors Status except for business-level not-found, which is
// reported as 200 with Status=false.
type Response struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

type AuthData struct {
	UserID    string `json:"userId"`
	AccountID string `json:"accountId"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

type ContractData struct {
	Contract *Contract        `json:"contract"`
	Signees  []ContractSignee `json:"signees,omitempty"`
	Editable bool             `json:"editable"`
}

type ContractListData struct {
	Contracts []Contract `json:"contracts"`
	Total     int        `json:"total"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
}

type SendResult struct {
	ContractID string   `json:"contractId"`
	Notified   []string `json:"notified"` // binding ids that were marked pending
	Status     string   `json:"status"`
}
