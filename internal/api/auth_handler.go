package api

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/linkflow-ai/linkflow/internal/domain/models"
	pkgcrypto "github.com/linkflow-ai/linkflow/internal/pkg/crypto"
)

// authHandler issues access/refresh token pairs. It queries users directly
// rather than through a dedicated service, since this rework only needs
// enough of the account surface to authenticate callers of the execution
// and credential endpoints (see DESIGN.md).
type authHandler struct {
	db         *gorm.DB
	jwtManager *pkgcrypto.JWTManager
}

func newAuthHandler(db *gorm.DB, jwtManager *pkgcrypto.JWTManager) *authHandler {
	return &authHandler{db: db, jwtManager: jwtManager}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var user models.User
	if err := h.db.WithContext(r.Context()).Where("email = ?", req.Email).First(&user).Error; err != nil {
		writeError(w, http.StatusUnauthorized, errCodeUnauthorized, "invalid email or password")
		return
	}
	if !pkgcrypto.CheckPassword(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, errCodeUnauthorized, "invalid email or password")
		return
	}

	tokens, err := h.jwtManager.GenerateTokenPair(user.ID, user.Email, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errCodeInternal, "failed to issue tokens")
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *authHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	tokens, err := h.jwtManager.RefreshTokens(req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, errCodeUnauthorized, "invalid or expired refresh token")
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}
