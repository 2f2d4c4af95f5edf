package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	apperrors "github.com/oslocurrency/oslocrawler-ws/internal/platform/errors"
)

// handleNewBlock acknowledges a block notification and hands it to the ingest service.
// The body is always parsed as JSON whatever its Content-Type. It must be an object or an
// array; anything inside it is judged later, after the 200 is sent.
func (s *Server) handleNewBlock(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return apperrors.ValidationError("failed to read request body").WithContext("cause", err.Error())
	}
	if !isJSONDocument(body) {
		return apperrors.ValidationError("request body must be a JSON object or array")
	}

	s.ingest.Accept(c.Request().Context(), body)

	if err := c.String(http.StatusOK, http.StatusText(http.StatusOK)); err != nil {
		return fmt.Errorf("failed to write ingest response: %w", err)
	}
	return nil
}

func isJSONDocument(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid(trimmed)
}
