package api

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

var now = time.Now

func newEnvelope(success bool, message string, data interface{}) Envelope {
	return Envelope{
		Success:   success,
		Message:   message,
		Data:      data,
		Timestamp: now().UTC().Format(time.RFC3339),
	}
}

func Success(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, newEnvelope(true, message, data))
}

func Error(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, newEnvelope(false, message, nil))
}
