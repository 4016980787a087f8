package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/tablemut/version"
)

// Version returns the build information.
func Version() gin.HandlerFunc {
	info := version.GetVersionInfo()
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, info)
	}
}
