package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/dooropener-core/internal/audit"
	"github.com/nerrad567/dooropener-core/internal/auth"
	"github.com/nerrad567/dooropener-core/internal/infrastructure/mqtt"
)

// openRequest is the request body for POST /door/open.
type openRequest struct {
	PIN string `json:"pin"`
}

// openResponse is the gate endpoint's response shape. It matches what the
// original door UI expects: a status string plus a human message.
type openResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// handleOpenDoor evaluates a gate attempt and, when granted, forwards the
// open command to the actuator.
//
// Every terminal path appends exactly one audit record and announces the
// attempt on the optional side channels. Denials below the block layer
// have already served their progressive delay inside the engine by the
// time this handler writes the response.
func (s *Server) handleOpenDoor(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	session := sessionID(r)
	now := time.Now()

	// headless scanners rarely send a User-Agent; reject before the
	// engine so they cannot probe the credential table at all
	if r.Header.Get("User-Agent") == "" {
		s.recordAttempt(audit.NewRecord(now, ip, session, "", string(auth.OutcomeSuspicious),
			"missing User-Agent header"), 0)
		writeJSON(w, http.StatusBadRequest, openResponse{
			Status:  "error",
			Message: "Request rejected.",
		})
		return
	}

	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// an unreadable body is still an attempt: it feeds the same
		// failure path as a malformed PIN
		req.PIN = ""
	}

	attempt := auth.Attempt{
		PIN:         strings.TrimSpace(req.PIN),
		IP:          ip,
		Fingerprint: auth.Fingerprint(ip, r.Header.Get("User-Agent"), r.Header.Get("Accept-Language")),
		SessionID:   session,
		Identity:    identityFromRequest(r),
	}

	decision := s.engine.Evaluate(r.Context(), attempt)

	if decision.Outcome != auth.OutcomeSuccess {
		s.recordAttempt(attemptRecord(now, ip, session, decision), decision.Delay)
		s.writeDenial(w, decision)
		return
	}

	// authenticated; now command the door
	if err := s.actuator.TriggerOpen(r.Context(), s.entity); err != nil {
		s.logger.Error("open command failed", "entity", s.entity, "error", err)
		s.recordAttempt(audit.NewRecord(now, ip, session, decision.Username,
			string(auth.OutcomeOpenFailure), err.Error()), 0)
		writeJSON(w, http.StatusBadGateway, openResponse{
			Status:  "error",
			Message: "Authenticated, but the door did not respond.",
		})
		return
	}

	s.recordAttempt(audit.NewRecord(now, ip, session, decision.Username,
		string(auth.OutcomeSuccess), "door opened"), 0)
	s.announceOpen(decision.Username)

	writeJSON(w, http.StatusOK, openResponse{
		Status:  "success",
		Message: fmt.Sprintf("Door open command sent.\nWelcome home, %s!", displayName(decision.Username)),
	})
}

// attemptRecord builds the audit record for a denial.
func attemptRecord(now time.Time, ip, session string, decision auth.Decision) audit.Record {
	details := decision.Reason
	if decision.BlockedUntil != nil {
		details = fmt.Sprintf("%s; blocked until %s", details,
			decision.BlockedUntil.UTC().Format(time.RFC3339))
	}
	return audit.NewRecord(now, ip, session, decision.Username, string(decision.Outcome), details)
}

// recordAttempt appends to the trail and feeds the side channels.
func (s *Server) recordAttempt(rec audit.Record, delay time.Duration) {
	s.trail.Append(rec)

	if s.metrics != nil {
		user := rec.User
		if user == "UNKNOWN" {
			user = ""
		}
		s.metrics.WriteAttemptMetric(rec.Status, user, delay)
	}

	if s.mqtt != nil {
		payload, err := json.Marshal(rec)
		if err == nil {
			if err := s.mqtt.PublishEvent(mqtt.TopicEventAttempt, payload); err != nil {
				s.logger.Debug("attempt announcement failed", "error", err)
			}
		}
	}
}

// announceOpen publishes the open event for automations.
func (s *Server) announceOpen(username string) {
	if s.mqtt == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"user":      username,
		"entity":    s.entity,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := s.mqtt.PublishEvent(mqtt.TopicEventOpen, payload); err != nil {
		s.logger.Debug("open announcement failed", "error", err)
	}
}

// writeDenial maps a denial outcome to its HTTP response. Blocked outcomes
// get 429 with Retry-After so well-behaved clients back off.
func (s *Server) writeDenial(w http.ResponseWriter, decision auth.Decision) {
	switch decision.Outcome {
	case auth.OutcomeInvalidFormat:
		writeJSON(w, http.StatusBadRequest, openResponse{
			Status:  "error",
			Message: "PIN must be 4-8 digits.",
		})
	case auth.OutcomeAuthFailure:
		writeJSON(w, http.StatusUnauthorized, openResponse{
			Status:  "error",
			Message: fmt.Sprintf("Incorrect PIN. %d attempts remaining.", decision.RemainingAttempts),
		})
	case auth.OutcomeSessionBlocked, auth.OutcomeIPBlocked, auth.OutcomeGlobalBlocked:
		if decision.BlockedUntil != nil {
			retry := int(time.Until(*decision.BlockedUntil).Seconds())
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
		}
		writeJSON(w, http.StatusTooManyRequests, openResponse{
			Status:  "error",
			Message: "Too many failed attempts. Please try again later.",
		})
	default:
		writeJSON(w, http.StatusInternalServerError, openResponse{
			Status:  "error",
			Message: "Something went wrong. The door stays closed.",
		})
	}
}

// displayName capitalises a username for the welcome message. Email-style
// federated subjects are shown as-is.
func displayName(username string) string {
	if username == "" || strings.Contains(username, "@") {
		return username
	}
	return strings.ToUpper(username[:1]) + username[1:]
}

// handleBattery reads the door battery level through the controller.
// Controller faults deliberately yield a null level with status 200: the
// UI shows the gauge as unknown instead of erroring.
func (s *Server) handleBattery(w http.ResponseWriter, r *http.Request) {
	if s.battery == "" {
		writeJSON(w, http.StatusOK, map[string]any{"level": nil})
		return
	}

	state, err := s.actuator.SensorState(r.Context(), s.battery)
	if err != nil || state == "" {
		if err != nil {
			s.logger.Error("battery state fetch failed", "error", err)
		}
		writeJSON(w, http.StatusOK, map[string]any{"level": nil})
		return
	}

	if s.metrics != nil {
		if level, err := strconv.ParseFloat(state, 64); err == nil {
			s.metrics.WriteBatteryMetric(s.battery, level)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"level": state})
}
