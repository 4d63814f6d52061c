package api

import (
	"github.com/gin-gonic/gin"
	"github.com/quillsign/quillsign-server/internal/models"
)

// CreateOrUpdateClient creates a client, or updates it when an id is given
func (h *Handler) CreateOrUpdateClient(c *gin.Context) {
	var req models.ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	client, err := h.svc.CreateOrUpdateClient(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Client saved", client)
}

// ListClients returns all clients of the caller's account
func (h *Handler) ListClients(c *gin.Context) {
	clients, err := h.svc.ListClients(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Clients retrieved", clients)
}

// CreateOrUpdateSignee creates a signee, or updates it when an id is given
func (h *Handler) CreateOrUpdateSignee(c *gin.Context) {
	var req models.SigneeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	signee, err := h.svc.CreateOrUpdateSignee(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Signee saved", signee)
}

// DeleteSignee removes a signee from its client
func (h *Handler) DeleteSignee(c *gin.Context) {
	var req struct {
		SigneeID string `json:"signeeId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.svc.DeleteSignee(c.Request.Context(), userID(c), req.SigneeID); err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Signee deleted", nil)
}

// ListSignees returns the signees of a client
func (h *Handler) ListSignees(c *gin.Context) {
	signees, err := h.svc.ListSignees(c.Request.Context(), userID(c), c.Query("clientId"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Signees retrieved", signees)
}

// CreateFolder creates a folder
func (h *Handler) CreateFolder(c *gin.Context) {
	var req models.FolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	folder, err := h.svc.CreateFolder(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Folder created", folder)
}

// ListFolders returns all folders of the caller's account
func (h *Handler) ListFolders(c *gin.Context) {
	folders, err := h.svc.ListFolders(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Folders retrieved", folders)
}
