package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// LoginRequest carries the display name a player wants to use. Identity is
// the display name only; there are no accounts.
type LoginRequest struct {
	Name string `json:"name" binding:"required,min=1,max=24"`
}

// LoginResponse returns the token used for session creation.
type LoginResponse struct {
	Token    string `json:"token"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

// JWTClaims are the claims issued at login.
type JWTClaims struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

// Login issues a 24-hour token for a display name. Any name is accepted;
// collisions are resolved per session at join time.
func Login(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		playerID := uuid.NewString()
		claims := JWTClaims{
			PlayerID: playerID,
			Name:     req.Name,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
				IssuedAt:  jwt.NewNumericDate(time.Now()),
				NotBefore: jwt.NewNumericDate(time.Now()),
			},
		}

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		tokenString, err := token.SignedString([]byte(jwtSecret))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}

		c.JSON(http.StatusOK, LoginResponse{
			Token:    tokenString,
			PlayerID: playerID,
			Name:     req.Name,
		})
	}
}
