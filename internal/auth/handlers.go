package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/libradesk/libradesk/internal/apperrors"
	"github.com/libradesk/libradesk/internal/audit"
	"github.com/libradesk/libradesk/internal/identity"
	"github.com/rs/zerolog/log"
)

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token  string    `json:"token"`
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

// HandleLogin processes credential submissions. Every submission passes
// through the client's lockout guard before any credential check: a locked
// session is refused outright, so locked attempts never reach the identity
// store and never leak whether the credentials would have succeeded.
func HandleLogin(users *identity.Store, auditor *audit.Writer, tracker *LockoutTracker, jwtSecret string, sessionDays int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.Email = strings.TrimSpace(req.Email)
		if req.Email == "" || req.Password == "" {
			apperrors.WriteBadRequest(w, r, "Email and password are required")
			return
		}
		if _, err := mail.ParseAddress(req.Email); err != nil {
			apperrors.WriteBadRequest(w, r, "Please enter a valid email address")
			return
		}

		guard := tracker.Guard(clientKey(r))

		if err := guard.Allow(); err != nil {
			var lockErr *LockedOutError
			if errors.As(err, &lockErr) {
				if err := auditor.LogLoginLocked(r.Context(), req.Email, clientKey(r)); err != nil {
					log.Error().Err(err).Msg("Failed to log audit event")
				}
				apperrors.WriteTooManyRequests(w, r, lockedMessage(lockErr.RemainingMinutes))
				return
			}
			apperrors.WriteInternalError(w, r, "Login failed")
			return
		}

		userID, ok := checkCredentials(r, users, req.Email, req.Password)
		if !ok {
			locked, attemptsRemaining := guard.RecordFailure()

			if err := auditor.LogLoginFailed(r.Context(), req.Email, clientKey(r)); err != nil {
				log.Error().Err(err).Msg("Failed to log audit event")
			}

			if locked {
				minutes := int(LockoutDuration.Minutes())
				var lockErr *LockedOutError
				if errors.As(guard.Allow(), &lockErr) {
					minutes = lockErr.RemainingMinutes
				}
				apperrors.WriteTooManyRequests(w, r, lockedMessage(minutes))
				return
			}

			message := "Invalid email or password."
			if attemptsRemaining <= 2 {
				message += fmt.Sprintf(" %d %s remaining.", attemptsRemaining, pluralize("attempt", attemptsRemaining))
			}
			apperrors.WriteUnauthorized(w, r, message)
			return
		}

		guard.RecordSuccess()

		token, err := CreateToken(userID, jwtSecret, sessionDays)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create token")
			apperrors.WriteInternalError(w, r, "Failed to create session")
			return
		}

		log.Info().
			Str("user_id", userID.String()).
			Str("email", req.Email).
			Msg("User logged in successfully")

		apperrors.WriteSuccess(w, r, http.StatusOK, LoginResponse{
			Token:  token,
			UserID: userID,
			Email:  req.Email,
		})
	}
}

// checkCredentials verifies the email/password pair against the identity
// store. All failure modes collapse into a single boolean so the handler
// cannot distinguish (and therefore cannot reveal) unknown accounts from
// wrong passwords.
func checkCredentials(r *http.Request, users *identity.Store, email, password string) (uuid.UUID, bool) {
	user, err := users.GetByEmail(r.Context(), email)
	if err != nil {
		if !errors.Is(err, identity.ErrUserNotFound) {
			log.Error().Err(err).Str("email", email).Msg("Failed to query user")
		}
		return uuid.Nil, false
	}

	// Invited users have no password until they complete the magic link.
	if user.PasswordHash == nil {
		log.Debug().Str("email", email).Msg("Login failed: account has no password set")
		return uuid.Nil, false
	}

	if err := VerifyPassword(*user.PasswordHash, password); err != nil {
		log.Debug().Str("email", email).Msg("Login failed: wrong password")
		return uuid.Nil, false
	}

	return user.ID, true
}

// AcceptInviteRequest represents the magic-link completion payload
type AcceptInviteRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// AcceptInviteResponse represents the magic-link completion response
type AcceptInviteResponse struct {
	UserID uuid.UUID `json:"user_id"`
}

// HandleAcceptInvite finishes the invited-account setup: it spends the
// setup token from the magic link and stores the chosen password.
func HandleAcceptInvite(users *identity.Store, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AcceptInviteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		req.Token = strings.TrimSpace(req.Token)
		if req.Token == "" {
			apperrors.WriteBadRequest(w, r, "Setup token is required")
			return
		}
		if len(req.Password) < MinPasswordLength {
			apperrors.WriteBadRequest(w, r, fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
			return
		}

		passwordHash, err := HashPassword(req.Password)
		if err != nil {
			log.Error().Err(err).Msg("Failed to hash password")
			apperrors.WriteInternalError(w, r, "Failed to set password")
			return
		}

		userID, err := users.SetPasswordFromSetupToken(r.Context(), req.Token, passwordHash)
		if err != nil {
			if errors.Is(err, identity.ErrSetupTokenInvalid) {
				apperrors.WriteBadRequest(w, r, "Invalid or already used setup token")
				return
			}
			log.Error().Err(err).Msg("Failed to complete invite setup")
			apperrors.WriteInternalError(w, r, "Failed to set password")
			return
		}

		if err := auditor.LogInviteCompleted(r.Context(), userID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		log.Info().Str("user_id", userID.String()).Msg("Invited user completed account setup")

		apperrors.WriteSuccess(w, r, http.StatusOK, AcceptInviteResponse{UserID: userID})
	}
}

// clientKey derives the lockout key for a request: the remote IP without
// the port. RealIP middleware has already resolved proxies upstream.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func lockedMessage(minutes int) string {
	return fmt.Sprintf("Too many failed attempts. Please try again in %d %s.", minutes, pluralize("minute", minutes))
}

func pluralize(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
