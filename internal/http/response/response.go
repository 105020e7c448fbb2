package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error payloads follow {"error": {"code", "message"}} so API clients
// can switch on the stable code instead of parsing messages.
type errorBody struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, gin.H{"error": errorBody{Code: code, Message: msg}})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
