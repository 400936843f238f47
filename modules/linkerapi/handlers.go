package linkerapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/devicelink/pkg/linker"
	"github.com/dmitrymomot/devicelink/pkg/logger"
	"github.com/dmitrymomot/devicelink/pkg/response"
)

type startCodeResponse struct {
	SessionID    string `json:"sessionId"`
	LinkingImage string `json:"linkingImage"`
}

type startPairRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	SessionID   string `json:"sessionId,omitempty"`
}

type startPairResponse struct {
	SessionID   string `json:"sessionId"`
	PairingCode string `json:"pairingCode"`
}

type statusResponse struct {
	Status  linker.Status `json:"status"`
	Message string        `json:"message"`
}

func (s *Service) handleStartCode(w http.ResponseWriter, r *http.Request) {
	id, art, err := s.manager.StartWithCode(r.Context())
	if err != nil {
		s.log.Warn("code session start failed", logger.SessionID(id), logger.Error(err))
		response.Error(w, mapError(err))
		return
	}
	response.JSON(w, http.StatusOK, startCodeResponse{
		SessionID:    id,
		LinkingImage: art.Data,
	})
}

func (s *Service) handleStartPair(w http.ResponseWriter, r *http.Request) {
	var req startPairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, response.ErrBadRequest)
		return
	}

	id, code, err := s.manager.StartWithPairing(r.Context(), req.SessionID, req.PhoneNumber)
	if err != nil {
		s.log.Warn("pairing session start failed", logger.SessionID(id), logger.Error(err))
		response.Error(w, mapError(err))
		return
	}
	response.JSON(w, http.StatusOK, startPairResponse{
		SessionID:   id,
		PairingCode: code,
	})
}

// handleStatus reports the session's lifecycle state. Unknown ids report
// disconnected rather than 404, so pollers never special-case missing
// sessions.
func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, msg := s.manager.Status(chi.URLParam(r, "sessionID"))
	response.JSON(w, http.StatusOK, statusResponse{Status: status, Message: msg})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, linker.ErrInvalidPhone):
		return response.NewHTTPError(http.StatusBadRequest, "invalid_phone")
	case errors.Is(err, linker.ErrEmptySessionID):
		return response.ErrBadRequest
	case errors.Is(err, linker.ErrAlreadyLinked):
		return response.NewHTTPError(http.StatusConflict, "already_linked")
	case errors.Is(err, linker.ErrSessionExists):
		return response.NewHTTPError(http.StatusConflict, "session_exists")
	case errors.Is(err, linker.ErrLinkTimeout):
		return response.NewHTTPError(http.StatusGatewayTimeout, "link_timeout")
	case errors.Is(err, linker.ErrManagerClosed):
		return response.ErrServiceUnavailable
	default:
		return err
	}
}
