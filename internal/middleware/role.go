package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sync-hire/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextUserRole)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		role, _ := roleVal.(string)
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireInterviewScope allows admins through unconditionally and candidates
// only when their token is scoped to the interview in the :id path param.
func RequireInterviewScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.MustGet(ContextUserRole).(string)
		if role == "admin" {
			c.Next()
			return
		}
		interviewID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid interview id")
			c.Abort()
			return
		}
		scope, _ := c.MustGet(ContextInterviewID).(uuid.UUID)
		if scope != interviewID {
			response.Forbidden(c, "token not valid for this interview")
			c.Abort()
			return
		}
		c.Next()
	}
}
