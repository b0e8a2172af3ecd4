package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/staffing/internal/auth"
	"github.com/monocle-dev/staffing/internal/types"
)

type Actor struct {
	Subject string `json:"sub"`
	Name    string `json:"name"`
}

// DisplayName is the name recorded on assignments, falling back to the subject.
func (a Actor) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Subject
}

func AuthMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")

		if authHeader == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is required"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)

		if len(parts) != 2 || parts[0] != "Bearer" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})

			return
		}

		claims, err := auth.VerifyJWT(parts[1])

		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		ctx.Set(types.ContextActorKey, Actor{
			Subject: claims.Subject,
			Name:    claims.Name,
		})
		ctx.Next()
	}
}
