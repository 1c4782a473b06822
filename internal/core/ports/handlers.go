package ports

import "github.com/gin-gonic/gin"

// HTTPHandler mounts its routes on the group it is given; the caller decides which
// middleware guards the group.
type HTTPHandler interface {
	RegisterRoutes(rg *gin.RouterGroup)
}
