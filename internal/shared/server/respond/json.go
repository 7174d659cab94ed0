package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSON writes payload with status. Handlers that already aborted (for
// example after Error) are left untouched.
func JSON(c *gin.Context, status int, payload any) {
	if c.Writer.Written() {
		return
	}
	c.JSON(status, payload)
}

func OK(c *gin.Context, payload any) {
	JSON(c, http.StatusOK, payload)
}

// Created answers a successful upload.
func Created(c *gin.Context, payload any) {
	JSON(c, http.StatusCreated, payload)
}

// NoContent ends the chain with 204, used by logout and CORS preflights.
func NoContent(c *gin.Context) {
	c.AbortWithStatus(http.StatusNoContent)
}
