package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/requesthub/internal/auth"
)

type TokenVerifier interface {
	VerifyServiceToken(token string) (*auth.Claims, error)
}

// RequireServiceToken guards the /internal surface. Only sibling services
// holding the shared secret may call it.
func RequireServiceToken(verifier TokenVerifier) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")

		token, ok := strings.CutPrefix(header, "Bearer ")

		if !ok || strings.TrimSpace(token) == "" {
			unauthorized(ctx, "Missing bearer token")
			return
		}

		claims, err := verifier.VerifyServiceToken(strings.TrimSpace(token))

		if err != nil {
			unauthorized(ctx, "Invalid service token")
			return
		}

		ctx.Set(CtxService, claims.Service)
		ctx.Next()
	}
}

func unauthorized(ctx *gin.Context, msg string) {
	ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    "unauthorized",
			"message": msg,
		},
	})
}
