package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/auth"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/availability"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/identity"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/storage"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/user"
)

// signUpHandler registers a new account. An administrator's token, when present, allows
// creating other administrators.
func signUpHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reg user.Registration
		if err := readJSON(w, r, &reg); err != nil {
			writeBodyError(w, err)
			return
		}
		profile, err := users.Register(r.Context(), session(r), reg)
		if err != nil {
			handleAccountError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, profile)
	}
}

func signInHandler(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SignInRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeBodyError(w, err)
			return
		}
		tok, sess, err := svc.SignIn(r.Context(), req.Email, req.Password)
		if err != nil {
			handleAccountError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, SignInResponse{
			AccessToken: tok.AccessToken,
			ExpiresAt:   tok.ExpiresAt,
			UserID:      sess.UserID,
			Role:        sess.Role,
		})
	}
}

func signOutHandler(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.SignOut(r.Context(), bearerToken(r)); err != nil {
			handleAccountError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func meHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := users.Get(r.Context(), session(r).UserID)
		if err != nil {
			handleAccountError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func listSpecialtiesHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := users.ListSpecialties(r.Context())
		if err != nil {
			handleAccountError(w, r, err)
			return
		}
		if list == nil {
			list = []user.Specialty{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func listSpecialistsHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := users.ListSpecialists(r.Context())
		if err != nil {
			handleAccountError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func getAvailabilityHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := users.Availability(r.Context(), session(r).UserID)
		if err != nil {
			handleAccountError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func saveAvailabilityHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var list []availability.SpecialtyAvailability
		if err := readJSON(w, r, &list); err != nil {
			writeBodyError(w, err)
			return
		}
		saved, err := users.SaveAvailability(r.Context(), session(r), list)
		if err != nil {
			handleAccountError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

// uploadImageHandler takes a multipart "file" part and stores it as profile image {n}.
func uploadImageHandler(users *user.Service, images *storage.ImageStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if images == nil {
			writeError(w, http.StatusServiceUnavailable, "uploads_disabled", "image storage is not configured")
			return
		}
		n, err := strconv.Atoi(chi.URLParam(r, "n"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_image_slot", "image slot must be 1 or 2")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageBytes+1<<16)
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_upload", "expected a multipart file field named file")
			return
		}
		defer file.Close()

		userID := session(r).UserID
		url, err := images.UploadProfileImage(r.Context(), userID, n, file)
		if err != nil {
			handleAccountError(w, r, err)
			return
		}
		profile, err := users.SetImage(r.Context(), userID, n, url)
		if err != nil {
			handleAccountError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func listUsersHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var role identity.Role
		if raw := strings.TrimSpace(r.URL.Query().Get("tipo")); raw != "" {
			parsed, err := identity.ParseRole(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_role", err.Error())
				return
			}
			role = parsed
		}
		list, err := users.ListByRole(r.Context(), session(r), role)
		if err != nil {
			handleAccountError(w, r, err)
			return
		}
		if list == nil {
			list = []user.Profile{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func approvalHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ApprovalRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeBodyError(w, err)
			return
		}
		profile, err := users.SetApproval(r.Context(), session(r), chi.URLParam(r, "id"), *req.Approved)
		if err != nil {
			handleAccountError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func handleAccountError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, user.ErrInvalidRegistration),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, availability.ErrInvalidRules),
		errors.Is(err, user.ErrInvalidImages),
		errors.Is(err, storage.ErrInvalidSlot):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, storage.ErrUnsupportedImage):
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_image", err.Error())
	case errors.Is(err, storage.ErrImageTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "image_too_large", err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid_session", err.Error())
	case errors.Is(err, auth.ErrNotApproved):
		writeError(w, http.StatusForbidden, "not_approved", err.Error())
	case errors.Is(err, user.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, user.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", err.Error())
	case errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, user.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", err.Error())
	default:
		writeInternalError(w, r, err)
	}
}
