package middleware

import "github.com/gin-gonic/gin"

// accountNumberKey is the key used to store the authenticated account number
// in the context. Using a custom type prevents collisions.
const accountNumberKey = contextKey("accountNumber")

// GetAccountNumberFromContext retrieves the authenticated account number from
// the Gin context. It returns the number and a boolean indicating if it was
// found.
func GetAccountNumberFromContext(c *gin.Context) (string, bool) {
	numberVal, exists := c.Get(string(accountNumberKey))
	if !exists {
		// check in the request context as well
		ctxVal := c.Request.Context().Value(accountNumberKey)
		if ctxVal != nil {
			if number, ok := ctxVal.(string); ok {
				return number, true
			}
		}
		return "", false
	}

	number, ok := numberVal.(string)
	if !ok {
		// This should not happen if the auth middleware sets it correctly
		return "", false
	}

	return number, true
}
