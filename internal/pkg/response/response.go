package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// The client-facing contract is deliberately small: success is {ok:true},
// failures carry a generic error string plus optional per-field details.
// Raw provider errors never reach the client; callers log them server-side.

// Pagination metadata returned with paginated responses.
type Pagination struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	TotalPage   int   `json:"total_page"`
	Size        int   `json:"size"`
	HasNextPage bool  `json:"has_next_page"`
}

// pagedResponse is the envelope for paginated list responses.
type pagedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// OK sends a 200 {ok:true} response.
func OK(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Data sends a 200 response with a payload.
func Data(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Paged sends a paginated response.
func Paged(c *gin.Context, data interface{}, pagination Pagination) {
	c.JSON(http.StatusOK, pagedResponse{
		Data:       data,
		Pagination: pagination,
	})
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message})
}

// ValidationFailed sends a 400 with the first error per field, so the
// client can highlight the offending inputs.
func ValidationFailed(c *gin.Context, details map[string]string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   "validation failed",
		"details": details,
	})
}

// TooManyRequests sends a 429 error response.
func TooManyRequests(c *gin.Context) {
	c.Header("Retry-After", "600")
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, slow down"})
}

// Unauthorized sends a 401 error response.
func Unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

// NotFound sends a 404 error response.
func NotFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
}

// MethodNotAllowed sends a 405 error response.
func MethodNotAllowed(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
}

// InternalError sends a 500 with a generic message only.
func InternalError(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": message})
}
