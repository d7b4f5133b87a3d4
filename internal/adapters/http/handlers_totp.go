package http

import (
	"net/http"

	"github.com/securevault/securevault/internal/application"
)

func (h *Handler) totpSetup(w http.ResponseWriter, r *http.Request) {
	token, ok := tokenFromContext(r)
	if !ok {
		writeMissingBearerError(r.Context(), w, "totp_setup")
		return
	}

	res, err := h.service.SetupTOTP(r.Context(), token)
	if err != nil {
		writeMappedError(r.Context(), w, "totp_setup", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) totpConfirm(w http.ResponseWriter, r *http.Request) {
	token, ok := tokenFromContext(r)
	if !ok {
		writeMissingBearerError(r.Context(), w, "totp_confirm")
		return
	}
	var req application.TotpVerifyRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "totp_confirm", err)
		return
	}

	if err := h.service.ConfirmTOTP(r.Context(), token, req.Code); err != nil {
		writeMappedError(r.Context(), w, "totp_confirm", err)
		return
	}
	writeMessage(w, http.StatusOK, "2FA enabled successfully")
}

func (h *Handler) totpVerifyLogin(w http.ResponseWriter, r *http.Request) {
	var req application.TotpLoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "totp_verify_login", err)
		return
	}
	req.IPAddress = readIP(r)

	res, err := h.service.VerifyTOTPLogin(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "totp_verify_login", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) totpDisable(w http.ResponseWriter, r *http.Request) {
	token, ok := tokenFromContext(r)
	if !ok {
		writeMissingBearerError(r.Context(), w, "totp_disable")
		return
	}
	var req application.TotpVerifyRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "totp_disable", err)
		return
	}

	if err := h.service.DisableTOTP(r.Context(), token, req.Code); err != nil {
		writeMappedError(r.Context(), w, "totp_disable", err)
		return
	}
	writeMessage(w, http.StatusOK, "2FA disabled successfully")
}
