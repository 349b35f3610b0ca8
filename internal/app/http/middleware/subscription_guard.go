package middleware

import (
	"context"
	"net/http"

	"ats-scanner/internal/apperr"
	"ats-scanner/internal/domain/access"
	"ats-scanner/internal/domain/plans"

	"github.com/gin-gonic/gin"
)

// PolicySource resolves what a signed-in user may do right now.
type PolicySource interface {
	Policy(ctx context.Context, userID uint) (access.Policy, error)
}

// RequireCapability lets the request through only when the caller's
// effective plan grants feature. Must run after AuthMiddleware.
func RequireCapability(src PolicySource, feature plans.Feature) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("user_id")
		if userID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		policy, err := src.Policy(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(apperr.Status(err), gin.H{"error": apperr.Message(err)})
			return
		}
		if !policy.Allows(feature) {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":            "your plan does not include " + string(feature),
				"capability":       feature,
				"upgrade_required": true,
			})
			return
		}

		c.Set("policy", policy)
		c.Next()
	}
}
