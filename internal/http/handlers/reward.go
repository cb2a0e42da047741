package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mwanafrika/mwanafrika-backend/internal/clients/gcp"
	"github.com/mwanafrika/mwanafrika-backend/internal/http/response"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/ctxutil"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
	"github.com/mwanafrika/mwanafrika-backend/internal/services"
)

type RewardHandler struct {
	log     *logger.Logger
	rewards services.RewardService
	// vouchers is the store voucher images are read back from. May be nil.
	vouchers gcp.BucketService
}

func NewRewardHandler(log *logger.Logger, rewards services.RewardService, vouchers gcp.BucketService) *RewardHandler {
	return &RewardHandler{log: log.With("handler", "RewardHandler"), rewards: rewards, vouchers: vouchers}
}

// GET /api/rewards
func (h *RewardHandler) List(c *gin.Context) {
	response.RespondOK(c, gin.H{"rewards": h.rewards.List()})
}

// POST /api/rewards/:id/redeem
func (h *RewardHandler) Redeem(c *gin.Context) {
	ctx := c.Request.Context()
	res, err := h.rewards.Redeem(ctx, ctxutil.UserID(ctx), c.Param("id"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /vouchers/:file
func (h *RewardHandler) Voucher(c *gin.Context) {
	name := c.Param("file")
	if h.vouchers == nil || !strings.HasSuffix(name, ".png") || strings.ContainsAny(name, `/\`) {
		response.RespondError(c, http.StatusNotFound, "voucher_not_found", errors.New("voucher not found"))
		return
	}
	rc, err := h.vouchers.DownloadFile(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			response.RespondError(c, http.StatusNotFound, "voucher_not_found", errors.New("voucher not found"))
			return
		}
		h.log.Error("voucher download failed", "file", name, "error", err)
		response.RespondAPIError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Cache-Control", "private, max-age=86400")
	c.Header("Content-Type", gcp.ContentTypeForKey(name))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		h.log.Warn("voucher stream interrupted", "file", name, "error", err)
	}
}
