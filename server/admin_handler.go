package server

import (
	"github.com/aiandyou50/CandleSpinner-sub000/auth"
	apperrors "github.com/aiandyou50/CandleSpinner-sub000/errors"
	"github.com/aiandyou50/CandleSpinner-sub000/game"
	"github.com/aiandyou50/CandleSpinner-sub000/ton"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AdminHandler exposes operator-only recovery and auditing endpoints. All
// routes behind it require a valid operator JWT.
type AdminHandler struct {
	sequences *ton.SequenceReconciler
	stats     *game.StatsRecorder
	payout    *game.PayoutEngine
	custody   string
	logger    zerolog.Logger
}

// NewAdminHandler creates an admin handler
func NewAdminHandler(sequences *ton.SequenceReconciler, stats *game.StatsRecorder, payout *game.PayoutEngine, custodyAddress string, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		sequences: sequences,
		stats:     stats,
		payout:    payout,
		custody:   custodyAddress,
		logger:    logger.With().Str("handler", "admin").Logger(),
	}
}

type sequenceResetRequest struct {
	Account string `json:"account"`
}

type sequenceResetResponse struct {
	Account  string `json:"account"`
	Sequence int64  `json:"sequence"`
}

// ResetSequence godoc
// @Summary      Resynchronize the custody sequence counter
// @Description  Forcibly resets the durable sequence value to the network's observed value. Operator recovery path.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        request  body  sequenceResetRequest  false  "Account override (defaults to the custody account)"
// @Success      200  {object}  BaseResponse{data=sequenceResetResponse}
// @Failure      401  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /api/admin/sequence/reset [post]
func (h *AdminHandler) ResetSequence(c *gin.Context) {
	var req sequenceResetRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		BadRequest(c, apperrors.Wrap(err, apperrors.ErrInvalidRequest, "Invalid reset request"))
		return
	}

	account := req.Account
	if account == "" {
		account = h.custody
	}

	operatorID, _ := auth.GetOperatorID(c)
	sequence, err := h.sequences.Reset(c.Request.Context(), account)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	h.logger.Warn().
		Str("operator_id", operatorID).
		Str("account", account).
		Int64("sequence", sequence).
		Msg("Sequence reset by operator")

	OK(c, sequenceResetResponse{Account: account, Sequence: sequence})
}

type rtpResponse struct {
	Date        string         `json:"date"`
	Stats       *game.RTPStats `json:"stats"`
	Theoretical float64        `json:"theoretical"`
}

// DailyRTP godoc
// @Summary      Daily RTP aggregate
// @Description  Returns the observed RTP aggregate for a UTC date alongside the analytic figure
// @Tags         admin
// @Produce      json
// @Param        date  query  string  true  "UTC date (2006-01-02)"
// @Success      200  {object}  BaseResponse{data=rtpResponse}
// @Failure      404  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /api/admin/rtp [get]
func (h *AdminHandler) DailyRTP(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		BadRequest(c, apperrors.New(apperrors.ErrInvalidRequest, "date query parameter is required"))
		return
	}

	stats, err := h.stats.Daily(c.Request.Context(), date)
	if err != nil {
		NotFound(c, apperrors.Wrap(err, apperrors.ErrNotFound, "no stats recorded for date"))
		return
	}

	OK(c, rtpResponse{
		Date:        date,
		Stats:       stats,
		Theoretical: h.payout.TheoreticalRTP(),
	})
}
