package server

import (
	apperrors "github.com/aiandyou50/CandleSpinner-sub000/errors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SpinHandler handles game-play HTTP requests
//
// Flow: HTTP Request -> SpinHandler -> SpinService -> game components
type SpinHandler struct {
	spins  *SpinService
	logger zerolog.Logger
}

// NewSpinHandler creates a spin handler
func NewSpinHandler(spins *SpinService, logger zerolog.Logger) *SpinHandler {
	return &SpinHandler{
		spins:  spins,
		logger: logger.With().Str("handler", "spin").Logger(),
	}
}

// Spin godoc
// @Summary      Execute a spin
// @Description  Settles one wager: derives a provably fair outcome, applies the paytable and updates the balance
// @Tags         game
// @Accept       json
// @Produce      json
// @Param        request  body  SpinRequest  true  "Spin request"
// @Success      200  {object}  BaseResponse{data=SpinResponse}
// @Failure      400  {object}  ErrorResponse
// @Router       /api/spin [post]
func (h *SpinHandler) Spin(c *gin.Context) {
	var req SpinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, apperrors.Wrap(err, apperrors.ErrInvalidRequest, "Invalid spin request"))
		return
	}

	response, err := h.spins.Spin(c.Request.Context(), req)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, response)
}

type collectRequest struct {
	Player string `json:"player" binding:"required"`
}

// Collect godoc
// @Summary      Collect pending winnings
// @Description  Moves pending winnings into the player's balance
// @Tags         game
// @Accept       json
// @Produce      json
// @Param        request  body  collectRequest  true  "Collect request"
// @Success      200  {object}  BaseResponse{data=CollectResponse}
// @Failure      400  {object}  ErrorResponse
// @Router       /api/collect [post]
func (h *SpinHandler) Collect(c *gin.Context) {
	var req collectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, apperrors.Wrap(err, apperrors.ErrInvalidRequest, "Invalid collect request"))
		return
	}

	response, err := h.spins.Collect(c.Request.Context(), req.Player)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, response)
}

// Balance godoc
// @Summary      Get player balance
// @Tags         game
// @Produce      json
// @Param        player  path  string  true  "Player address"
// @Success      200  {object}  BaseResponse{data=game.UserBalanceState}
// @Router       /api/balance/{player} [get]
func (h *SpinHandler) Balance(c *gin.Context) {
	state, err := h.spins.Balance(c.Request.Context(), c.Param("player"))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, state)
}

// Outcome godoc
// @Summary      Get a recorded spin outcome
// @Tags         game
// @Produce      json
// @Param        gameId  path  string  true  "Game ID"
// @Success      200  {object}  BaseResponse{data=game.OutcomeRecord}
// @Failure      404  {object}  ErrorResponse
// @Router       /api/outcome/{gameId} [get]
func (h *SpinHandler) Outcome(c *gin.Context) {
	record, err := h.spins.Outcome(c.Request.Context(), c.Param("gameId"))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, record)
}

type revealRequest struct {
	Player string `json:"player" binding:"required"`
}

// Reveal godoc
// @Summary      Rotate and reveal the server seed
// @Description  Supersedes the current server seed and discloses it so past outcomes can be audited
// @Tags         fairness
// @Accept       json
// @Produce      json
// @Param        request  body  revealRequest  true  "Reveal request"
// @Success      200  {object}  BaseResponse{data=RevealResponse}
// @Router       /api/fairness/reveal [post]
func (h *SpinHandler) Reveal(c *gin.Context) {
	var req revealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, apperrors.Wrap(err, apperrors.ErrInvalidRequest, "Invalid reveal request"))
		return
	}

	response, err := h.spins.Reveal(c.Request.Context(), req.Player)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, response)
}

// Verify godoc
// @Summary      Verify a past outcome
// @Description  Re-derives the outcome from a revealed seed and compares the claimed center symbols
// @Tags         fairness
// @Accept       json
// @Produce      json
// @Param        request  body  VerifyRequest  true  "Verification request"
// @Success      200  {object}  BaseResponse{data=VerifyResponse}
// @Router       /api/fairness/verify [post]
func (h *SpinHandler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, apperrors.Wrap(err, apperrors.ErrInvalidRequest, "Invalid verification request"))
		return
	}

	response, err := h.spins.Verify(req)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, response)
}
