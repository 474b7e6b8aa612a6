package handlers

import (
  "net/http"
  "strconv"
  "github.com/gin-gonic/gin"
  "github.com/tubewise/tubewise-backend/internal/platform/apierr"
)

type APIError struct {
  Message string `json:"message"`
  Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
  Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
  msg := "unknown error"
  if err != nil {
    msg = err.Error()
  }
  c.JSON(status, ErrorEnvelope{
    Error: APIError{
      Message: msg,
      Code:    code,
    },
  })
}

// RespondAPIError maps a service error to its wire status and code. Internal
// details are not echoed back for 5xx.
func RespondAPIError(c *gin.Context, err error) {
  status := apierr.StatusOf(err)
  code := apierr.CodeOf(err)
  if status >= http.StatusInternalServerError {
    c.JSON(status, ErrorEnvelope{
      Error: APIError{
        Message: "something went wrong, try again",
        Code:    code,
      },
    })
    return
  }
  RespondError(c, status, code, err)
}

func RespondOK(c *gin.Context, payload any) {
  c.JSON(http.StatusOK, payload)
}

// pageParams clamps list pagination the same way the services do, so the
// echoed limit/offset match what was applied.
func pageParams(c *gin.Context) (int, int) {
  limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
  offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
  if limit <= 0 || limit > 100 {
    limit = 50
  }
  if offset < 0 {
    offset = 0
  }
  return limit, offset
}
