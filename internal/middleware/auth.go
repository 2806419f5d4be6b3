package middleware

import (
	"net/http"

	"comnet/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const CheckUserKey = "user"
const NetworkKey = "network_id"

// AuthRequired rejects requests without a loaded user.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(CheckUserKey); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

// LoadUser resolves the session's user_id and sets the user and its network
// on the context. Anonymous requests get the default network.
func LoadUser(db *gorm.DB, defaultNetwork uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(NetworkKey, defaultNetwork)

		session := sessions.Default(c)
		if userID := session.Get("user_id"); userID != nil {
			var user models.User
			if err := db.WithContext(c.Request.Context()).First(&user, userID).Error; err == nil {
				c.Set(CheckUserKey, &user)
				if user.NetworkID != uuid.Nil {
					c.Set(NetworkKey, user.NetworkID)
				}
			}
		}
		c.Next()
	}
}

// CurrentUser returns the loaded user, if any.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(CheckUserKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

// NetworkID returns the request's network scope.
func NetworkID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(NetworkKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}
