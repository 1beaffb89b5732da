package server

import (
	apperrors "github.com/aiandyou50/CandleSpinner-sub000/errors"
	"github.com/aiandyou50/CandleSpinner-sub000/ton"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SettlementHandler handles deposit and withdrawal HTTP requests
type SettlementHandler struct {
	settlements *ton.Orchestrator
	logger      zerolog.Logger
}

// NewSettlementHandler creates a settlement handler
func NewSettlementHandler(settlements *ton.Orchestrator, logger zerolog.Logger) *SettlementHandler {
	return &SettlementHandler{
		settlements: settlements,
		logger:      logger.With().Str("handler", "settlement").Logger(),
	}
}

// SettlementRequest is the deposit/withdrawal request body
type SettlementRequest struct {
	Player string          `json:"player" binding:"required"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// Deposit godoc
// @Summary      Deposit tokens
// @Description  Submits an on-chain transfer into the game contract and credits the balance once submission succeeds or times out unconfirmed
// @Tags         settlement
// @Accept       json
// @Produce      json
// @Param        request  body  SettlementRequest  true  "Deposit request"
// @Success      200  {object}  BaseResponse{data=ton.Result}
// @Failure      400  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse
// @Router       /api/deposit [post]
func (h *SettlementHandler) Deposit(c *gin.Context) {
	h.settle(c, ton.ModeDeposit)
}

// Withdraw godoc
// @Summary      Withdraw tokens
// @Description  Submits an on-chain transfer to the player's address and debits the balance once submission succeeds or times out unconfirmed
// @Tags         settlement
// @Accept       json
// @Produce      json
// @Param        request  body  SettlementRequest  true  "Withdrawal request"
// @Success      200  {object}  BaseResponse{data=ton.Result}
// @Failure      400  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse
// @Router       /api/withdraw [post]
func (h *SettlementHandler) Withdraw(c *gin.Context) {
	h.settle(c, ton.ModeWithdrawal)
}

func (h *SettlementHandler) settle(c *gin.Context, mode ton.Mode) {
	var req SettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, apperrors.Wrap(err, apperrors.ErrInvalidRequest, "Invalid settlement request"))
		return
	}

	result, err := h.settlements.Settle(c.Request.Context(), ton.Request{
		Player: req.Player,
		Amount: req.Amount,
		Mode:   mode,
	})
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, result)
}
