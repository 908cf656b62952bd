package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/acmg-amp-rating/internal/domain"
	"github.com/acmg-amp-rating/internal/service"
)

const (
	sessionWriteWait = 10 * time.Second
	sessionReadLimit = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Session message actions.
const (
	ActionSet      = "set"
	ActionSave     = "save"
	ActionReset    = "reset"
	ActionEvaluate = "evaluate"
)

// SessionRequest is one client message on a live review session. An empty action
// means "set".
type SessionRequest struct {
	Action   string               `json:"action,omitempty"`
	Code     domain.CriterionCode `json:"code"`
	Presence domain.Presence      `json:"presence"`
	Strength domain.RuleStrength  `json:"strength,omitempty"`
	Comment  string               `json:"comment,omitempty"`
}

// SessionResponse is one server message on a live review session.
type SessionResponse struct {
	Type       string                      `json:"type"`
	SessionID  string                      `json:"session_id"`
	OpenedAt   *time.Time                  `json:"opened_at,omitempty"`
	Effective  *domain.EffectiveAssessment `json:"effective,omitempty"`
	Verdict    *domain.Verdict             `json:"verdict,omitempty"`
	Evaluation *service.Evaluation         `json:"evaluation,omitempty"`
	Persisted  bool                        `json:"persisted"`
	Error      string                      `json:"error,omitempty"`
}

// handleLiveSession upgrades to a websocket and drives one review session until the
// client disconnects.
func (s *Server) handleLiveSession(c *gin.Context) {
	session, err := s.service.OpenSession(c.Request.Context(), c.Param("variant"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(sessionReadLimit)

	log := s.logger.WithFields(logrus.Fields{
		"session_id": session.ID(),
		"variant":    session.Variant(),
	})
	log.Info("Live review session started")

	openedAt := session.OpenedAt()
	if err := s.send(conn, SessionResponse{
		Type:       "evaluation",
		SessionID:  session.ID(),
		OpenedAt:   &openedAt,
		Evaluation: session.Evaluate(),
		Persisted:  session.Persisted(),
	}); err != nil {
		log.WithError(err).Warn("Failed to send initial evaluation")
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("Live review session closed unexpectedly")
			}
			break
		}

		var req SessionRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			// Malformed payloads are reported and the session stays open.
			if err := s.send(conn, s.sessionError(session, domain.NewValidationError("message", err.Error(), nil))); err != nil {
				return
			}
			continue
		}

		resp := s.applySessionRequest(c, session, req)
		if err := s.send(conn, resp); err != nil {
			log.WithError(err).Warn("Failed to send session update")
			return
		}
	}

	log.WithField("duration", time.Since(session.OpenedAt()).String()).Info("Live review session ended")
}

func (s *Server) applySessionRequest(c *gin.Context, session *service.ReviewSession, req SessionRequest) SessionResponse {
	switch req.Action {
	case "", ActionSet:
		ea, verdict, err := session.SetJudgment(req.Code, req.Presence, req.Strength)
		if err != nil {
			return s.sessionError(session, err)
		}
		return SessionResponse{
			Type:      "judgment",
			SessionID: session.ID(),
			Effective: &ea,
			Verdict:   &verdict,
			Persisted: session.Persisted(),
		}
	case ActionSave:
		eval, err := s.service.SaveSession(c.Request.Context(), session, req.Comment)
		if err != nil {
			return s.sessionError(session, err)
		}
		return SessionResponse{Type: "saved", SessionID: session.ID(), Evaluation: eval, Persisted: true}
	case ActionReset:
		session.Reset()
		return SessionResponse{
			Type:       "evaluation",
			SessionID:  session.ID(),
			Evaluation: session.Evaluate(),
			Persisted:  session.Persisted(),
		}
	case ActionEvaluate:
		return SessionResponse{
			Type:       "evaluation",
			SessionID:  session.ID(),
			Evaluation: session.Evaluate(),
			Persisted:  session.Persisted(),
		}
	default:
		return s.sessionError(session, domain.NewValidationError("action", "unknown session action", req.Action))
	}
}

func (s *Server) sessionError(session *service.ReviewSession, err error) SessionResponse {
	_, code := statusFor(err)
	if code == "INTERNAL_ERROR" {
		s.logger.WithError(err).WithField("session_id", session.ID()).Error("Live review session request failed")
	}
	return SessionResponse{
		Type:      "error",
		SessionID: session.ID(),
		Error:     err.Error(),
		Persisted: session.Persisted(),
	}
}

func (s *Server) send(conn *websocket.Conn, resp SessionResponse) error {
	if err := conn.SetWriteDeadline(time.Now().Add(sessionWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(resp)
}
