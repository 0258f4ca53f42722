package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// ServeUpload streams a stored image. Names are flat, so anything with a
// path separator is rejected outright.
func (h HandlerSet) ServeUpload(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	obj, err := h.services.Uploads.Open(c.Request.Context(), name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer obj.Body.Close()

	c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, obj.Body, map[string]string{
		"Cache-Control":          "public, max-age=" + strconv.Itoa(365*24*3600) + ", immutable",
		"X-Content-Type-Options": "nosniff",
	})
}
