package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/notifyrelay/relay/internal/httputil"
	"github.com/notifyrelay/relay/internal/sms"
)

// handleTwilioStatus handles POST /twilio/status, the carrier's delivery
// status callback. It only logs; nothing is stored or forwarded.
func (s *Server) handleTwilioStatus(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.CallbackEnabled() {
		httputil.WriteError(w, http.StatusNotFound, "callback not enabled")
		return
	}

	signature := strings.TrimSpace(r.Header.Get(sms.SignatureHeader))
	if signature == "" {
		httputil.WriteError(w, http.StatusUnauthorized, "missing signature")
		return
	}

	form, ok := httputil.ParseForm(w, r)
	if !ok {
		return
	}
	params := sms.ParamsFromValues(form)
	if !sms.Verify(s.cfg.Twilio.StatusCallbackURL, params, s.cfg.Twilio.AuthToken, signature) {
		s.logger.Error("twilio_callback_invalid_signature",
			"event", "twilio_callback_invalid_signature",
			"request_id", middleware.GetReqID(r.Context()),
			"remote", r.RemoteAddr,
		)
		httputil.WriteError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	messageSid := form.Get("MessageSid")
	if _, ok := form["MessageSid"]; !ok {
		messageSid = form.Get("SmsSid")
	}
	messageStatus := "unknown"
	if _, ok := form["MessageStatus"]; ok {
		messageStatus = form.Get("MessageStatus")
	}
	to := form.Get("To")
	if to != "" {
		to = sms.MaskPhone(to)
	}

	s.logger.Info("twilio_sms_delivery_status",
		"event", "twilio_sms_delivery_status",
		"providerMessageSid", messageSid,
		"messageStatus", messageStatus,
		"to", to,
		"errorCode", form.Get("ErrorCode"),
		"errorMessage", form.Get("ErrorMessage"),
	)
	httputil.WriteOK(w)
}
