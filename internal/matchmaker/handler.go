package matchmaker

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GET /waiting  当前等待池快照（排队顺序）
func (h *Handler) Waiting(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"players": h.svc.poolView(c.Request.Context())})
}
