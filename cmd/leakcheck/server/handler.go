package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/thesyncim/rtcguard/pkg/guard"
)

// OfferResponse is the reply to POST /offer.
type OfferResponse struct {
	Answer *webrtc.SessionDescription `json:"answer"`
	Report Record                     `json:"report"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(HTMLPage))
}

// handleConfig serves the configuration the test page hands to
// RTCPeerConnection, exactly as configured, so the page's shim is what
// sanitizes it.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	body, err := guard.MarshalConfiguration(webrtc.Configuration{ICEServers: s.cfg.ICEServers})
	if err != nil {
		s.logger.Error("failed to encode configuration", zap.Error(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// handleOffer audits a browser offer and answers it through the guard once
// server-side gathering has finished.
func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		s.logger.Warn("failed to decode offer", zap.Error(err))
		http.Error(w, "Invalid offer", http.StatusBadRequest)
		return
	}
	if offer.Type != webrtc.SDPTypeOffer {
		http.Error(w, "Invalid offer", http.StatusBadRequest)
		return
	}

	audit, err := guard.Audit(offer.SDP)
	if err != nil {
		s.logger.Warn("failed to audit offer", zap.Error(err))
		http.Error(w, "Invalid offer", http.StatusBadRequest)
		return
	}
	rec := s.store.Add(TransportHTTP, r.RemoteAddr, audit)
	s.logRecord(rec)

	pc, err := s.newPeerConnection()
	if err != nil {
		s.logger.Error("failed to create peer connection", zap.Error(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	if err := pc.SetRemoteDescription(offer); err != nil {
		s.logger.Warn("failed to set remote description", zap.Error(err))
		s.release(pc)
		http.Error(w, "Invalid offer", http.StatusBadRequest)
		return
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		s.logger.Error("failed to create answer", zap.Error(err))
		s.release(pc)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	gathered := webrtc.GatheringCompletePromise(pc.Native())
	if err := pc.SetLocalDescription(answer); err != nil {
		s.logger.Error("failed to set local description", zap.Error(err))
		s.release(pc)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	s.waitGathering(r.Context(), gathered)

	writeJSON(w, OfferResponse{Answer: pc.LocalDescription(), Report: rec})
}

func (s *Server) waitGathering(ctx context.Context, gathered <-chan struct{}) {
	timer := time.NewTimer(s.cfg.GatherTimeout)
	defer timer.Stop()
	select {
	case <-gathered:
	case <-timer.C:
		s.logger.Warn("ICE gathering timed out, answering with candidates so far",
			zap.Duration("timeout", s.cfg.GatherTimeout))
	case <-ctx.Done():
	}
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.store.List())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, rec)
}

func (s *Server) logRecord(rec Record) {
	fields := []zap.Field{
		zap.String("id", rec.ID),
		zap.String("transport", rec.Transport),
		zap.String("remote", rec.Remote),
	}
	if rec.Offer != nil {
		fields = append(fields, zap.Int("candidates", len(rec.Offer.Candidates)), zap.Any("by_type", rec.Offer.ByType))
	}
	if rec.Leaking {
		s.logger.Warn("browser offer discloses local addresses", append(fields, zap.Int("leaks", len(rec.Offer.Leaks)))...)
		return
	}
	s.logger.Info("browser offer audited", fields...)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
