package invites

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/libradesk/libradesk/internal/auth"
	"github.com/rs/zerolog/log"
)

// The /functions surface uses flat response bodies and permissive CORS
// headers, not the /api/v1 envelope.

type inviteRequest struct {
	Email string `json:"email"`
}

type errorBody struct {
	Error string `json:"error"`
}

type successBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		return
	}
}

// HandlePreflight answers the CORS preflight with an empty success response.
func HandlePreflight(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.WriteHeader(http.StatusOK)
}

// HandleInviteAdmin handles POST /functions/invite-admin
func HandleInviteAdmin(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID := auth.GetUserID(r.Context())
		if callerID == uuid.Nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
			return
		}

		var req inviteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body"})
			return
		}

		result, err := service.InviteAdmin(r.Context(), callerID, req.Email)
		if err != nil {
			switch {
			case errors.Is(err, ErrNotAdmin):
				writeJSON(w, http.StatusForbidden, errorBody{Error: "Only admins can invite users"})
			case errors.Is(err, ErrEmailRequired):
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "Email is required"})
			case errors.Is(err, ErrInvalidEmail):
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid email address"})
			case errors.Is(err, ErrDuplicateInvitation):
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "An active invitation already exists for this email"})
			case errors.Is(err, ErrUserExists):
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "A user with this email already exists"})
			default:
				log.Error().Err(err).Str("email", req.Email).Msg("Invite request failed")
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
			}
			return
		}

		writeJSON(w, http.StatusOK, successBody{Success: true, Message: result.Message})
	}
}
