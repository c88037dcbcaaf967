package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/socialhub/socialhub/backend/go-services/internal/messages/service"
	"github.com/socialhub/socialhub/backend/go-services/pkg/logger"
	"github.com/socialhub/socialhub/backend/go-services/pkg/middleware"
)

// RegisterMessageRoutes mounts the message endpoints on rg. rg must already
// require authentication.
func RegisterMessageRoutes(rg *gin.RouterGroup, svc *service.Service) {
	rg.POST("/messages/:to", func(c *gin.Context) {
		me, _ := middleware.Identity(c)
		var req struct {
			Text string `json:"text"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		msg, err := svc.Send(c.Request.Context(), me, c.Param("to"), req.Text)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	})

	rg.GET("/messages/:to", func(c *gin.Context) {
		me, _ := middleware.Identity(c)
		list, err := svc.Conversation(c.Request.Context(), me, c.Param("to"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	})

	rg.PATCH("/messages/:to/read", func(c *gin.Context) {
		me, _ := middleware.Identity(c)
		msg, err := svc.MarkRead(c.Request.Context(), c.Param("to"), me)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "readAt": msg.ReadAt})
	})
}

func respondError(c *gin.Context, err error) {
	var input service.InputError
	switch {
	case errors.As(err, &input):
		c.JSON(http.StatusBadRequest, gin.H{"error": input.Error()})
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrRecipientNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		logger.Errorf("messages: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
