package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIError is the JSON body the status server returns for non-2xx responses.
type APIError struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewAPIError creates a new APIError with the given message and optional details.
func NewAPIError(message string, details map[string]interface{}) *APIError {
	return &APIError{
		Error:   message,
		Details: details,
	}
}

// ServiceUnavailable sends a 503 Service Unavailable response without aborting.
func ServiceUnavailable(c *gin.Context, message string, details map[string]interface{}) {
	c.JSON(http.StatusServiceUnavailable, NewAPIError(message, details))
}
