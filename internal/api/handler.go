package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quillsign/quillsign-server/internal/models"
	"github.com/quillsign/quillsign-server/internal/service"
)

// Handler holds the service and implements the HTTP endpoints
type Handler struct {
	svc service.Service
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service) *Handler {
	return &Handler{svc: svc}
}

// SetupRoutes registers all routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	// Public auth endpoints
	auth := router.Group("/api/auth")
	{
		auth.POST("/signup", h.SignUp)
		auth.POST("/login", h.Login)
	}

	// Signee-facing endpoints, authenticated by the emailed token instead
	// of a login session
	public := router.Group("/public/contract")
	{
		public.POST("/submit", h.SubmitSignature)
		public.POST("/track-open", h.TrackOpen)
		public.GET("/view", h.ViewContract)
	}

	// Authenticated endpoints
	api := router.Group("/api")
	api.Use(AuthMiddleware())
	{
		api.GET("/account", h.GetAccount)
		api.POST("/account/delete", h.ScheduleAccountDeletion)

		api.POST("/client/create-update", h.CreateOrUpdateClient)
		api.GET("/client/list", h.ListClients)

		api.POST("/signee/create-update", h.CreateOrUpdateSignee)
		api.POST("/signee/delete", h.DeleteSignee)
		api.GET("/signee/list", h.ListSignees)

		api.POST("/folder/create", h.CreateFolder)
		api.GET("/folder/list", h.ListFolders)

		api.POST("/contract/create-update", h.CreateOrUpdateContract)
		api.POST("/contract/send", h.SendContract)
		api.POST("/contract/cancel", h.CancelContract)
		api.GET("/contract/list", h.ListContracts)
		api.GET("/contract/list-signees", h.ListContractSignees)
		api.GET("/contract/list-logs", h.ListContractLogs)
	}
}

// userID returns the authenticated user id set by the auth middleware
func userID(c *gin.Context) string {
	return c.GetString("userId")
}

func respondOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, models.Response{
		Status:  true,
		Message: message,
		Data:    data,
	})
}

// respondError maps service errors onto the response envelope. A missing
// business entity answers 200 with status false, matching what clients of
// the original service expect.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusOK, models.Response{
			Status:  false,
			Message: err.Error(),
		})
	case errors.Is(err, service.ErrInvalid):
		c.JSON(http.StatusBadRequest, models.Response{
			Status:  false,
			Message: err.Error(),
		})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, models.Response{
			Status:  false,
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, models.Response{
			Status:  false,
			Message: "Something went wrong",
			Error:   err.Error(),
		})
	}
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.Response{
		Status:  false,
		Message: "Invalid request",
		Error:   err.Error(),
	})
}
