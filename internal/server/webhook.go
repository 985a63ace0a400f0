package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	webhookdomain "github.com/smallbiznis/seohub/internal/webhook/domain"
)

// HandleSeoworksWebhook ingests one task event. Unmatched events are
// acknowledged with 200 so the vendor does not retry them forever.
func (s *Server) HandleSeoworksWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	event, err := webhookdomain.DecodeTaskEvent(body)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	outcome, err := s.webhookSvc.Process(c.Request.Context(), event)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := gin.H{
		"eventType":   event.EventType,
		"externalId":  event.Data.ExternalID,
		"clientId":    event.Data.ClientID,
		"clientEmail": event.Data.ClientEmail,
	}
	if outcome.Matched {
		resp["taskType"] = event.Data.TaskType
		resp["status"] = event.Data.Status
		resp["success"] = true
		resp["message"] = "Webhook processed successfully"
		resp["requestId"] = outcome.RequestID.String()
	} else {
		resp["message"] = "Webhook received (no matching request found)"
	}

	c.JSON(http.StatusOK, resp)
}

// SeoworksWebhookProbe lets the vendor verify credentials and reachability.
func (s *Server) SeoworksWebhookProbe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"message":   "SEOWorks webhook endpoint is operational",
		"timestamp": s.clock.Now().UTC().Format(time.RFC3339),
	})
}
