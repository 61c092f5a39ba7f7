package server

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/thesyncim/rtcguard/pkg/guard"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message types exchanged on /ws.
const (
	MessageOffer     = "offer"
	MessageAnswer    = "answer"
	MessageCandidate = "candidate"
	MessageReport    = "report"
	MessageError     = "error"
)

// SignalingMessage is one frame of the trickle protocol. A candidate message
// without a candidate marks the end of gathering.
type SignalingMessage struct {
	Type      string                   `json:"type"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	Report    *Record                  `json:"report,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// session is one websocket signaling exchange.
type session struct {
	srv      *Server
	conn     *websocket.Conn
	remote   string
	writeMu  sync.Mutex
	pc       *guard.PeerConnection
	recordID string
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sess := &session{srv: s, conn: conn, remote: r.RemoteAddr}
	if err := sess.run(); err != nil {
		s.logger.Warn("signaling session ended", zap.String("remote", sess.remote), zap.Error(err))
	}
	if sess.pc != nil {
		s.release(sess.pc)
	}
}

func (sess *session) run() error {
	for {
		var msg SignalingMessage
		if err := sess.conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}

		if err := sess.handle(msg); err != nil {
			sess.srv.logger.Debug("signaling message rejected", zap.String("type", msg.Type), zap.Error(err))
			sess.send(SignalingMessage{Type: MessageError, Error: err.Error()})
		}
	}
}

func (sess *session) handle(msg SignalingMessage) error {
	switch msg.Type {
	case MessageOffer:
		return sess.handleOffer(msg.SDP)
	case MessageCandidate:
		return sess.handleCandidate(msg.Candidate)
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func (sess *session) handleOffer(sdp string) error {
	if sess.pc != nil {
		return errors.New("offer already received")
	}

	audit, err := guard.Audit(sdp)
	if err != nil {
		return err
	}
	rec := sess.srv.store.Add(TransportWebSocket, sess.remote, audit)
	sess.recordID = rec.ID
	sess.srv.logRecord(rec)

	pc, err := sess.srv.newPeerConnection()
	if err != nil {
		return fmt.Errorf("failed to create peer connection: %w", err)
	}
	sess.pc = pc

	// With the candidate filter on, host candidates never reach this handler.
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			sess.send(SignalingMessage{Type: MessageCandidate})
			return
		}
		init := c.ToJSON()
		sess.send(SignalingMessage{Type: MessageCandidate, Candidate: &init})
	})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}

	// The answer goes out before gathering starts so no candidate overtakes it.
	sess.send(SignalingMessage{Type: MessageAnswer, SDP: answer.SDP})
	sess.send(SignalingMessage{Type: MessageReport, Report: &rec})
	if err := pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}
	return nil
}

// handleCandidate audits a trickled browser candidate and hands it to the
// connection. A nil candidate is the browser's end of gathering.
func (sess *session) handleCandidate(init *webrtc.ICECandidateInit) error {
	if sess.pc == nil {
		return errors.New("candidate before offer")
	}
	if init == nil || init.Candidate == "" {
		if rec, ok := sess.srv.store.Get(sess.recordID); ok {
			sess.send(SignalingMessage{Type: MessageReport, Report: &rec})
		}
		return nil
	}

	c, err := guard.AuditCandidate(init.Candidate)
	if err != nil {
		return err
	}
	sess.srv.store.AddTrickled(sess.recordID, c)
	if c.Leaky() {
		sess.srv.logger.Warn("browser trickled a local address",
			zap.String("id", sess.recordID),
			zap.String("type", c.Type),
			zap.String("address", c.Address))
	}
	return sess.pc.AddICECandidate(*init)
}

// send serialises writes; pion invokes OnICECandidate from its own goroutines.
func (sess *session) send(msg SignalingMessage) {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	if err := sess.conn.WriteJSON(msg); err != nil {
		sess.srv.logger.Debug("failed to write signaling message", zap.Error(err))
	}
}
