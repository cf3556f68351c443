package httpapi

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"

	"github.com/dmitrijs2005/vidkeeper/internal/common"
	"github.com/dmitrijs2005/vidkeeper/internal/filex"
	"github.com/dmitrijs2005/vidkeeper/internal/server/models"
	"github.com/dmitrijs2005/vidkeeper/internal/server/services"
)

const (
	maxJSONBody   = 1 << 20
	maxFieldBytes = 4 << 10
)

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	User         *models.PublicAccount `json:"user"`
	AccessToken  string                `json:"accessToken"`
	RefreshToken string                `json:"refreshToken"`
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, message)
}

// handleRegister streams the multipart form: text fields are read into
// memory, files are spooled into the upload dir and removed when the
// request ends.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, 2*s.maxUploadBytes+maxJSONBody)
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart form expected")
		return
	}

	var in services.RegisterInput
	defer func() {
		for _, p := range []string{in.AvatarPath, in.CoverImagePath} {
			if err := filex.Remove(p); err != nil {
				s.logger.Warn(ctx, "temp file cleanup failed", "path", p, "error", err)
			}
		}
	}()

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.rejectForm(w, r, err)
			return
		}

		switch name := part.FormName(); name {
		case "avatar", "coverImage":
			if part.FileName() == "" {
				break
			}
			path, err := filex.Spool(s.uploadDir, part.FileName(), part, s.maxUploadBytes)
			if err != nil {
				_ = part.Close()
				s.rejectForm(w, r, err)
				return
			}
			target := &in.AvatarPath
			if name == "coverImage" {
				target = &in.CoverImagePath
			}
			_ = filex.Remove(*target)
			*target = path

		case "fullName", "email", "username", "password":
			b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			if err != nil {
				_ = part.Close()
				s.rejectForm(w, r, err)
				return
			}
			if len(b) > maxFieldBytes {
				_ = part.Close()
				writeError(w, http.StatusBadRequest, fmt.Sprintf("field %s is too long", name))
				return
			}
			v := string(b)
			switch name {
			case "fullName":
				in.FullName = v
			case "email":
				in.Email = v
			case "username":
				in.Username = v
			case "password":
				in.Password = v
			}
		}
		_ = part.Close()
	}

	account, err := s.accounts.Register(ctx, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, account, "User registered successfully")
}

func (s *Server) rejectForm(w http.ResponseWriter, r *http.Request, err error) {
	var (
		tooBig  *http.MaxBytesError
		pathErr *fs.PathError
	)
	switch {
	case errors.Is(err, filex.ErrTooLarge), errors.As(err, &tooBig):
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("files must not exceed %d bytes", s.maxUploadBytes))
	case errors.As(err, &pathErr):
		s.logger.Error(r.Context(), "spooling upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		writeError(w, http.StatusBadRequest, "malformed multipart form")
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := s.accounts.Authenticate(r.Context(), services.LoginInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.setSessionCookies(w, session.Tokens)
	writeData(w, http.StatusOK, sessionResponse{
		User:         session.Account,
		AccessToken:  session.Tokens.AccessToken,
		RefreshToken: session.Tokens.RefreshToken,
	}, "User logged in successfully")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	if err := s.accounts.Terminate(r.Context(), id.AccountID); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.clearSessionCookies(w)
	writeData(w, http.StatusOK, struct{}{}, "User logged out successfully")
}

// handleRefresh takes the refresh token from its cookie, falling back to
// a JSON body.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(common.RefreshTokenCookieName); err == nil {
		token = c.Value
	}
	if token == "" && r.ContentLength != 0 {
		var req refreshRequest
		if err := decodeJSON(w, r, maxJSONBody, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		token = req.RefreshToken
	}

	session, err := s.accounts.RefreshSession(r.Context(), token)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.setSessionCookies(w, session.Tokens)
	writeData(w, http.StatusOK, sessionResponse{
		User:         session.Account,
		AccessToken:  session.Tokens.AccessToken,
		RefreshToken: session.Tokens.RefreshToken,
	}, "Access token refreshed")
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	account, err := s.accounts.CurrentAccount(r.Context(), id.AccountID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, account, "Current user fetched successfully")
}
