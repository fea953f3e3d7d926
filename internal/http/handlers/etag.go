package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// respondListWithETag writes a list payload with a strong ETag so polling
// clients (the mobile app refreshes request lists aggressively) can get a
// cheap 304.
func respondListWithETag(ctx *gin.Context, payload interface{}) {
	b, err := json.Marshal(payload)
	if err != nil {
		ctx.JSON(http.StatusOK, payload)
		return
	}

	sum := sha256.Sum256(b)
	etag := `"` + hex.EncodeToString(sum[:]) + `"`

	ctx.Header("ETag", etag)

	if etagMatches(ctx.GetHeader("If-None-Match"), etag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
}

func etagMatches(headerValue, current string) bool {
	headerValue = strings.TrimSpace(headerValue)

	if headerValue == "" {
		return false
	}

	if headerValue == "*" {
		return true
	}

	for _, part := range strings.Split(headerValue, ",") {
		part = strings.TrimSpace(part)
		// weak validators compare equal on the opaque part
		part = strings.TrimPrefix(part, "W/")

		if part == current {
			return true
		}
	}

	return false
}
