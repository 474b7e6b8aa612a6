package middleware

import (
  "fmt"
  "net/http"
  "strings"
  "github.com/gin-gonic/gin"
  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"
  "github.com/tubewise/tubewise-backend/internal/platform/ctxutil"
  "github.com/tubewise/tubewise-backend/internal/platform/logger"
  "github.com/tubewise/tubewise-backend/internal/types"
)

type JWTClaims struct {
  Role string `json:"role,omitempty"`
  jwt.RegisteredClaims
}

// AuthMiddleware verifies bearer tokens minted elsewhere and hangs the
// identity plus a correlation id on the request context. Websocket clients
// cannot set headers, so ?token= is accepted too.
type AuthMiddleware struct {
  log          *logger.Logger
  jwtSecretKey string
}

func NewAuthMiddleware(log *logger.Logger, jwtSecretKey string) *AuthMiddleware {
  middlewareLog := log.With("middleware", "AuthMiddleware")
  return &AuthMiddleware{log: middlewareLog, jwtSecretKey: jwtSecretKey}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
  return func(c *gin.Context) {
    tokenString := extractToken(c)
    if tokenString == "" {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "UNAUTHENTICATED", "message": "missing or invalid token"}})
      return
    }
    userID, isAdmin, err := am.verify(tokenString)
    if err != nil {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "UNAUTHENTICATED", "message": err.Error()}})
      return
    }

    requestID := strings.TrimSpace(c.GetHeader("X-Request-ID"))
    if requestID == "" {
      requestID = uuid.New().String()
    }
    ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{
      UserID:    userID,
      IsAdmin:   isAdmin,
      RequestID: requestID,
    })
    c.Request = c.Request.WithContext(ctx)
    c.Header("X-Request-ID", requestID)
    c.Next()
  }
}

func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
  return func(c *gin.Context) {
    rd := ctxutil.GetRequestData(c.Request.Context())
    if rd == nil || !rd.IsAdmin {
      c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": gin.H{"code": "FORBIDDEN", "message": "admin role required"}})
      return
    }
    c.Next()
  }
}

func (am *AuthMiddleware) verify(tokenString string) (uuid.UUID, bool, error) {
  parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
    if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
      return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
    }
    return []byte(am.jwtSecretKey), nil
  })
  if err != nil {
    return uuid.Nil, false, fmt.Errorf("invalid token: %w", err)
  }
  claims, ok := parsed.Claims.(*JWTClaims)
  if !ok || !parsed.Valid {
    return uuid.Nil, false, fmt.Errorf("invalid or expired token")
  }
  userID, err := uuid.Parse(claims.Subject)
  if err != nil || userID == uuid.Nil {
    return uuid.Nil, false, fmt.Errorf("invalid user id in token")
  }
  return userID, claims.Role == types.RoleAdmin, nil
}

func extractToken(c *gin.Context) string {
  if qToken := strings.TrimSpace(c.Query("token")); qToken != "" {
    return qToken
  }
  authHeader := c.GetHeader("Authorization")
  if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
    return strings.TrimSpace(authHeader[7:])
  }
  return ""
}
