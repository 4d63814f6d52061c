package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quillsign/quillsign-server/internal/models"
	"github.com/quillsign/quillsign-server/internal/service"
)

// SignUp handles new account registration
func (h *Handler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	data, err := h.svc.SignUp(c.Request.Context(), req)
	if err != nil {
		// Duplicate email is the one invalid case worth its own status
		if errors.Is(err, service.ErrInvalid) {
			c.JSON(http.StatusConflict, models.Response{
				Status:  false,
				Message: err.Error(),
			})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.Response{
		Status:  true,
		Message: "Account created",
		Data:    data,
	})
}

// Login handles user authentication
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	data, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Login successful", data)
}

// GetAccount returns the caller's account
func (h *Handler) GetAccount(c *gin.Context) {
	account, err := h.svc.GetAccount(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Account retrieved", account)
}

// ScheduleAccountDeletion marks the account for deletion after the grace
// period. Only the primary user may do this.
func (h *Handler) ScheduleAccountDeletion(c *gin.Context) {
	account, err := h.svc.ScheduleAccountDeletion(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, "Account deletion scheduled", account)
}
