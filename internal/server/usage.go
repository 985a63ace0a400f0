package server

import (
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	usagedomain "github.com/smallbiznis/seohub/internal/usage/domain"
)

func (s *Server) dealershipID(c *gin.Context) (snowflake.ID, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return 0, false
	}
	return snowflake.ID(id), true
}

// GetDealershipUsage reports current-period progress against the active
// package limits.
func (s *Server) GetDealershipUsage(c *gin.Context) {
	id, ok := s.dealershipID(c)
	if !ok {
		return
	}

	progress, err := s.usageSvc.Summary(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// ListDealershipUsageArchives pages prior billing-period snapshots.
func (s *Server) ListDealershipUsageArchives(c *gin.Context) {
	id, ok := s.dealershipID(c)
	if !ok {
		return
	}

	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	resp, err := s.usageSvc.Archives(c.Request.Context(), usagedomain.ListArchivesRequest{
		DealershipID: id,
		PageToken:    c.Query("page_token"),
		PageSize:     int32(pageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
