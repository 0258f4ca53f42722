package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ValidateObjectID answers 400 when any of the named path params is not a
// 24 character hex id.
func ValidateObjectID(params ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range params {
			if !primitive.IsValidObjectID(c.Param(name)) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Malformed id"})
				return
			}
		}
		c.Next()
	}
}
