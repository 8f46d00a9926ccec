package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Ahaxin/myday/internal/config"
	"github.com/Ahaxin/myday/internal/models"
	"github.com/Ahaxin/myday/internal/store"
)

type emailAuthRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      uint      `json:"user_id"`
}

// EmailAuthHandler authenticates a user by email, creating the user on
// first sight, and mints a short-lived JWT.
func EmailAuthHandler(cfg *config.Config, st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload emailAuthRequest
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "valid email is required"})
			return
		}

		user, err := st.GetUserByEmail(c.Request.Context(), payload.Email)
		if errors.Is(err, store.ErrNotFound) {
			user = &models.User{Email: payload.Email}
			if createErr := st.CreateUser(c.Request.Context(), user); createErr != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
				return
			}
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up user"})
			return
		}

		token, expiresAt, err := IssueToken(cfg.JWTSecret, user.ID, user.Email, cfg.TokenExpiry)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
			return
		}

		c.JSON(http.StatusOK, tokenResponse{
			AccessToken: token,
			TokenType:   "bearer",
			ExpiresAt:   expiresAt,
			UserID:      user.ID,
		})
	}
}
