package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/quillsign/quillsign-server/internal/models"
)

// CreateOrUpdateContract creates a draft, or updates a contract when an id
// is given
func (h *Handler) CreateOrUpdateContract(c *gin.Context) {
	var req models.ContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	data, err := h.svc.CreateOrUpdateContract(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Contract saved", data)
}

// SendContract dispatches the contract to its current recipients and moves
// a draft to sent_for_signing
func (h *Handler) SendContract(c *gin.Context) {
	var req models.ContractActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	result, err := h.svc.SendContract(c.Request.Context(), userID(c), req.ContractID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Contract sent", result)
}

// CancelContract cancels a non-terminal contract
func (h *Handler) CancelContract(c *gin.Context) {
	var req models.ContractActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.svc.CancelContract(c.Request.Context(), userID(c), req.ContractID); err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Contract cancelled", nil)
}

// ListContracts returns the account's contracts, optionally filtered by
// client or folder
func (h *Handler) ListContracts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	data, err := h.svc.ListContracts(
		c.Request.Context(),
		userID(c),
		c.Query("clientId"),
		c.Query("folderId"),
		limit,
		offset,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Contracts retrieved", data)
}

// ListContractSignees returns the signee bindings of a contract
func (h *Handler) ListContractSignees(c *gin.Context) {
	signees, err := h.svc.ListContractSignees(c.Request.Context(), userID(c), c.Query("contractId"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Contract signees retrieved", signees)
}

// ListContractLogs returns the audit trail of a contract
func (h *Handler) ListContractLogs(c *gin.Context) {
	logs, err := h.svc.ListContractLogs(c.Request.Context(), userID(c), c.Query("contractId"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Contract logs retrieved", logs)
}

// SubmitSignature records a signee's signature. The caller authenticates
// with the emailed token rather than a login session.
func (h *Handler) SubmitSignature(c *gin.Context) {
	var req models.SubmitSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	binding, err := h.svc.SubmitSignature(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Signature recorded", binding)
}

// TrackOpen records that a signee opened the contract email
func (h *Handler) TrackOpen(c *gin.Context) {
	var req models.TrackOpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.svc.TrackOpen(c.Request.Context(), req.Token); err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Open recorded", nil)
}

// ViewContract returns the contract body for a tokenized signee link
func (h *Handler) ViewContract(c *gin.Context) {
	data, err := h.svc.ViewContract(c.Request.Context(), c.Query("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Contract retrieved", data)
}
