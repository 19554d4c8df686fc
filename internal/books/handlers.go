package books

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/libradesk/libradesk/internal/apperrors"
	"github.com/libradesk/libradesk/internal/audit"
	"github.com/libradesk/libradesk/internal/auth"
	"github.com/rs/zerolog/log"
)

// ListResponse represents the response for listing books
type ListResponse struct {
	Books  []Book `json:"books"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// HandleList handles GET /api/v1/books
func HandleList(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := parseListRequest(r)

		service := NewService(pool)
		items, total, err := service.List(r.Context(), req)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list books")
			apperrors.WriteInternalError(w, r, "Failed to retrieve books")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, ListResponse{
			Books:  items,
			Total:  total,
			Limit:  req.Limit,
			Offset: req.Offset,
		})
	}
}

// HandleGet handles GET /api/v1/books/{book_id}
func HandleGet(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookID, err := uuid.Parse(chi.URLParam(r, "book_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid book ID")
			return
		}

		service := NewService(pool)
		book, err := service.GetByID(r.Context(), bookID)
		if err != nil {
			if errors.Is(err, ErrBookNotFound) {
				apperrors.WriteNotFound(w, r, "Book not found")
				return
			}
			log.Error().Err(err).Str("book_id", bookID.String()).Msg("Failed to get book")
			apperrors.WriteInternalError(w, r, "Failed to retrieve book")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, book)
	}
}

// HandleCreate handles POST /api/v1/books
func HandleCreate(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in BookInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		trimInput(&in)
		if err := in.Validate(); err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		service := NewService(pool)
		book, err := service.Create(r.Context(), in)
		if err != nil {
			if errors.Is(err, ErrStockNumberConflict) {
				apperrors.WriteConflict(w, r, "Stock number already in use")
				return
			}
			log.Error().Err(err).Msg("Failed to create book")
			apperrors.WriteInternalError(w, r, "Failed to create book")
			return
		}

		userID := auth.GetUserID(r.Context())
		if err := auditor.LogBookEvent(r.Context(), audit.EventBookCreated, userID, book.ID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, book)
	}
}

// HandleUpdate handles PUT /api/v1/books/{book_id}
func HandleUpdate(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookID, err := uuid.Parse(chi.URLParam(r, "book_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid book ID")
			return
		}

		var in BookInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		trimInput(&in)
		if err := in.Validate(); err != nil {
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}

		service := NewService(pool)
		book, err := service.Update(r.Context(), bookID, in)
		if err != nil {
			if errors.Is(err, ErrBookNotFound) {
				apperrors.WriteNotFound(w, r, "Book not found")
				return
			}
			if errors.Is(err, ErrStockNumberConflict) {
				apperrors.WriteConflict(w, r, "Stock number already in use")
				return
			}
			log.Error().Err(err).Str("book_id", bookID.String()).Msg("Failed to update book")
			apperrors.WriteInternalError(w, r, "Failed to update book")
			return
		}

		userID := auth.GetUserID(r.Context())
		if err := auditor.LogBookEvent(r.Context(), audit.EventBookUpdated, userID, book.ID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, book)
	}
}

// HandleDelete handles DELETE /api/v1/books/{book_id}
func HandleDelete(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookID, err := uuid.Parse(chi.URLParam(r, "book_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid book ID")
			return
		}

		service := NewService(pool)
		if err := service.Delete(r.Context(), bookID); err != nil {
			if errors.Is(err, ErrBookNotFound) {
				apperrors.WriteNotFound(w, r, "Book not found")
				return
			}
			log.Error().Err(err).Str("book_id", bookID.String()).Msg("Failed to delete book")
			apperrors.WriteInternalError(w, r, "Failed to delete book")
			return
		}

		userID := auth.GetUserID(r.Context())
		if err := auditor.LogBookEvent(r.Context(), audit.EventBookDeleted, userID, bookID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"deleted": true,
		})
	}
}

func parseListRequest(r *http.Request) ListRequest {
	req := ListRequest{
		Search:   strings.TrimSpace(r.URL.Query().Get("search")),
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		Language: strings.TrimSpace(r.URL.Query().Get("language")),
		Limit:    50,
		Offset:   0,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 200 {
			req.Limit = parsed
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			req.Offset = parsed
		}
	}

	return req
}

func trimInput(in *BookInput) {
	in.StockNumber = strings.TrimSpace(in.StockNumber)
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Publisher = strings.TrimSpace(in.Publisher)
}
