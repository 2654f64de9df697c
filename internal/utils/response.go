// Package utils holds the JSON envelope shared by every HTTP handler.
package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{
		"success": false,
		"error":   msg,
	})
}

// StageError reports a failed pipeline run along with the stage it failed in.
func StageError(c *gin.Context, code int, stage, msg string) {
	c.JSON(code, gin.H{
		"success": false,
		"stage":   stage,
		"error":   msg,
	})
}
