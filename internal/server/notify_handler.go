package server

import (
	"context"
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/notifyrelay/relay/internal/httputil"
	"github.com/notifyrelay/relay/internal/sms"
)

const (
	maxSubjectLength = 200
	maxTextLength    = 5000
)

// notifyRequest is the body of POST /notify. Unknown fields are ignored.
type notifyRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// fieldError names the first invalid field of a notify request.
type fieldError struct {
	Field   string
	Code    string
	Message string
}

// validateNotify checks req and returns the trimmed destination.
func (s *Server) validateNotify(req *notifyRequest) (string, *fieldError) {
	if req.To == "" {
		return "", &fieldError{"to", "required", "to is required"}
	}
	to, err := sms.ValidateE164(req.To)
	if err != nil {
		return "", &fieldError{"to", "invalid_phone", "to must be a valid E.164 phone number, for example +12025550123"}
	}
	if !sms.IsAllowedCountry(to, s.cfg.Notify.AllowedCountries) {
		return "", &fieldError{"to", "country_not_allowed", "to is in a country that is not allowed"}
	}
	if n := utf8.RuneCountInString(req.Subject); n < 1 || n > maxSubjectLength {
		return "", &fieldError{"subject", "length", "subject must be between 1 and 200 characters"}
	}
	if n := utf8.RuneCountInString(req.Text); n < 1 || n > maxTextLength {
		return "", &fieldError{"text", "length", "text must be between 1 and 5000 characters"}
	}
	return to, nil
}

// handleNotify handles POST /notify.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	to, ferr := s.validateNotify(&req)
	if ferr != nil {
		httputil.WriteFieldError(w, http.StatusBadRequest, ferr.Message, ferr.Field, ferr.Code, ferr.Message)
		return
	}

	// A caller that disconnects must not suppress the carrier outcome log; the
	// dispatcher's own timeout still bounds the send.
	ctx := context.WithoutCancel(r.Context())
	result, err := s.sender.Send(ctx, to, req.Text)
	if err != nil {
		var derr *sms.DispatchError
		if errors.As(err, &derr) {
			httputil.WriteError(w, http.StatusBadGateway, derr.PublicMessage())
			return
		}
		s.logger.Error("notification dispatch failed", "error", err, "to", sms.MaskPhone(to))
		httputil.WriteError(w, http.StatusBadGateway, "notification provider unavailable")
		return
	}

	s.logger.Info("notification_sent",
		"event", "notification_sent",
		"notificationId", uuid.NewString(),
		"to", sms.MaskPhone(to),
		"region", sms.PhoneCountry(to),
		"subject", req.Subject,
		"textLength", utf8.RuneCountInString(req.Text),
		"providerMessageSid", result.MessageSID,
	)
	httputil.WriteOK(w)
}
