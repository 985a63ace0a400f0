package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	webhookdomain "github.com/smallbiznis/seohub/internal/webhook/domain"
)

// ListOrphanedTasks pages webhook events that matched nothing, unprocessed
// first, for manual reconciliation.
func (s *Server) ListOrphanedTasks(c *gin.Context) {
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	resp, err := s.webhookSvc.ListOrphans(c.Request.Context(), webhookdomain.ListOrphansRequest{
		PageToken: c.Query("page_token"),
		PageSize:  int32(pageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
