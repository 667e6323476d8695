package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSON writes a JSON response with the given status. Responses carry
// personal data and are never cached.
func JSON(c *gin.Context, status int, payload any) {
	noStore(c)
	c.JSON(status, payload)
}

// OK writes a 200 OK JSON response.
func OK(c *gin.Context, payload any) {
	JSON(c, http.StatusOK, payload)
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
}
