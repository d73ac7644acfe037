// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated staff member's identity.
// Handlers read it without depending on how the token was parsed.
type Identity interface {
	// UserID returns the authenticated staff member's ID.
	UserID() uuid.UUID
	// DisplayName is the staff name stamped into audit fields.
	DisplayName() string
	// Roles returns the staff member's assigned roles.
	Roles() []string
	// HasRole checks if the staff member has a specific role.
	HasRole(role string) bool
	// IsAuthenticated returns true if the request carried a valid token.
	IsAuthenticated() bool
}

type identity struct {
	userID        uuid.UUID
	name          string
	roles         []string
	authenticated bool
}

func (i *identity) UserID() uuid.UUID { return i.userID }

func (i *identity) DisplayName() string {
	if i.name == "" {
		return i.userID.String()
	}
	return i.name
}

func (i *identity) Roles() []string { return i.roles }

func (i *identity) HasRole(role string) bool {
	for _, r := range i.roles {
		if r == role {
			return true
		}
	}
	return false
}

func (i *identity) IsAuthenticated() bool { return i.authenticated }

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	userID, userOK := c.Get(ContextUserIDKey)
	if !userOK {
		return &identity{authenticated: false}
	}

	uid, ok := userID.(uuid.UUID)
	if !ok {
		return &identity{authenticated: false}
	}

	var roleList []string
	if roles, ok := c.Get(ContextRolesKey); ok {
		roleList, _ = roles.([]string)
	}
	name := c.GetString(ContextUserNameKey)

	return &identity{
		userID:        uid,
		name:          name,
		roles:         roleList,
		authenticated: true,
	}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the user is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
