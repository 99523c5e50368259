package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"roulette/pkg/types/matchtype"
	"roulette/services/match/service"
)

type MatchHandler struct {
	matchService *service.MatchService
	health       *service.HealthMonitor
	log          zerolog.Logger
}

func NewMatchHandler(matchService *service.MatchService, health *service.HealthMonitor, log zerolog.Logger) *MatchHandler {
	return &MatchHandler{matchService: matchService, health: health, log: log}
}

func userIDFromHeader(c echo.Context) (int64, error) {
	raw := c.Request().Header.Get("X-User-ID")
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "X-User-ID header missing or not a number")
	}
	return userID, nil
}

// httpError maps domain sentinels onto status codes. Lock contention is
// 429 so clients retry; precondition conflicts are 409 with the sentinel
// text as the message.
func httpError(err error) error {
	switch {
	case errors.Is(err, matchtype.ErrLockBusy):
		return echo.NewHTTPError(http.StatusTooManyRequests, "operation already in progress, retry shortly")
	case errors.Is(err, matchtype.ErrAlreadyPaired),
		errors.Is(err, matchtype.ErrAlreadySearching),
		errors.Is(err, matchtype.ErrNothingToStop),
		errors.Is(err, matchtype.ErrNotSearching),
		errors.Is(err, matchtype.ErrPairEnded):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, matchtype.ErrUserBlocked):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, matchtype.ErrPairNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

type startResponse struct {
	Matched      bool            `json:"matched"`
	Pair         *matchtype.Pair `json:"pair,omitempty"`
	Position     int             `json:"position,omitempty"`
	TotalWaiting int             `json:"total_waiting,omitempty"`
	Overcrowded  bool            `json:"overcrowded,omitempty"`
}

func (h *MatchHandler) StartSearch(c echo.Context) error {
	userID, err := userIDFromHeader(c)
	if err != nil {
		return err
	}

	result, err := h.matchService.StartSearch(c.Request().Context(), userID)
	if err != nil {
		h.log.Debug().Err(err).Int64("user_id", userID).Msg("start search rejected")
		return httpError(err)
	}

	return c.JSON(http.StatusOK, startResponse{
		Matched:      result.Matched,
		Pair:         result.Pair,
		Position:     result.Position,
		TotalWaiting: result.TotalWaiting,
		Overcrowded:  result.Overcrowded,
	})
}

type stopResponse struct {
	StoppedSearch bool            `json:"stopped_search"`
	EndedPair     *matchtype.Pair `json:"ended_pair,omitempty"`
}

func (h *MatchHandler) StopSearch(c echo.Context) error {
	userID, err := userIDFromHeader(c)
	if err != nil {
		return err
	}

	result, err := h.matchService.StopSearch(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, stopResponse{
		StoppedSearch: result.StoppedSearch,
		EndedPair:     result.EndedPair,
	})
}

func (h *MatchHandler) NextSearch(c echo.Context) error {
	userID, err := userIDFromHeader(c)
	if err != nil {
		return err
	}

	result, err := h.matchService.NextSearch(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, startResponse{
		Matched:      result.Matched,
		Pair:         result.Pair,
		Position:     result.Position,
		TotalWaiting: result.TotalWaiting,
		Overcrowded:  result.Overcrowded,
	})
}

func (h *MatchHandler) QueueStatus(c echo.Context) error {
	userID, err := userIDFromHeader(c)
	if err != nil {
		return err
	}

	status, err := h.matchService.QueueStatus(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, status)
}

func (h *MatchHandler) SwitchToRandom(c echo.Context) error {
	userID, err := userIDFromHeader(c)
	if err != nil {
		return err
	}

	if err := h.matchService.SwitchToRandomMatching(c.Request().Context(), userID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (h *MatchHandler) QueueHealth(c echo.Context) error {
	snapshot, err := h.health.Snapshot(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, snapshot)
}

// RecordMessage is called by the chat service whenever a message lands in
// a conversation, keeping last_message_at fresh for the sweeper.
func (h *MatchHandler) RecordMessage(c echo.Context) error {
	pairID := c.Param("id")
	if err := h.matchService.RecordMessage(c.Request().Context(), pairID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

type rateRequest struct {
	Score int `json:"score"`
}

func (h *MatchHandler) RatePair(c echo.Context) error {
	userID, err := userIDFromHeader(c)
	if err != nil {
		return err
	}

	var req rateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Score < 1 || req.Score > 5 {
		return echo.NewHTTPError(http.StatusBadRequest, "score must be between 1 and 5")
	}

	if err := h.matchService.RatePair(c.Request().Context(), c.Param("id"), userID, req.Score); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}
