package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Unsubscribe verifies a signed opt-out token from an email footer.
func (s *Server) Unsubscribe(c *gin.Context) {
	raw := c.Query("token")
	if raw == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	claims, err := s.signer.Verify(raw, s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"userId":           claims.UserID.String(),
		"notificationType": claims.NotificationType,
	})
}
