package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/planloop/pkg/models"
)

type advanceRequest struct {
	OwnerID string `json:"owner_id"`
	Message string `json:"message"`
	Mode    string `json:"mode,omitempty"`
}

type confirmRequest struct {
	OwnerID   string `json:"owner_id"`
	SessionID string `json:"session_id"`
}

type newConversationRequest struct {
	OwnerID string `json:"owner_id"`
	Mode    string `json:"mode,omitempty"`
}

func (s *Server) advanceConversation(c echo.Context) error {
	var req advanceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}

	result, err := s.controller.AdvanceConversation(
		c.Request().Context(), req.OwnerID, req.Message, models.PlanMode(req.Mode))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

func (s *Server) confirmPlan(c echo.Context) error {
	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}

	result, err := s.controller.ConfirmAndMaterialize(
		c.Request().Context(), req.OwnerID, req.SessionID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

func (s *Server) newConversation(c echo.Context) error {
	var req newConversationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}

	sess, err := s.controller.StartNewConversation(
		c.Request().Context(), req.OwnerID, models.PlanMode(req.Mode))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"session_id": sess.ID,
	})
}

// writeError maps engine error kinds onto HTTP responses.
func writeError(c echo.Context, err error) error {
	var missingErr *models.MissingSlotsError

	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, models.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, errorBody("please start a new conversation"))
	case errors.As(err, &missingErr):
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
			"error":         "missing required information",
			"missing_slots": missingErr.Missing,
		})
	case errors.Is(err, models.ErrGatewayFailure):
		return c.JSON(http.StatusBadGateway, errorBody("the assistant is unavailable, please try again"))
	case errors.Is(err, models.ErrRollbackFailure):
		// Fatal inconsistency; distinct from an ordinary failed save.
		log.Error().Err(err).Msg("rollback failure surfaced to client")
		return c.JSON(http.StatusInternalServerError, errorBody("your plan could not be saved and needs support attention"))
	case errors.Is(err, models.ErrMaterializationFailure):
		return c.JSON(http.StatusInternalServerError, errorBody("changes were not saved, please try again"))
	default:
		log.Error().Err(err).Msg("unhandled error in API handler")
		return c.JSON(http.StatusInternalServerError, errorBody("internal error"))
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
