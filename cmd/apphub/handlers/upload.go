package handlers

import (
	"fmt"
	"io"

	"github.com/labstack/echo/v4"

	"github.com/dhis2/dhis2-apptore/common/errs"
)

// readArtifact extracts the uploaded artifact from the "file" multipart part.
// Reads at most maxBytes; a larger payload is rejected rather than truncated.
func readArtifact(c echo.Context, maxBytes int64) ([]byte, string, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("%w: file form field is required", errs.ErrInvalidArgument)
	}

	if fileHeader.Size > maxBytes {
		return nil, "", fmt.Errorf("%w: artifact exceeds %d bytes", errs.ErrInvalidArgument, maxBytes)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	// Size can lie for streamed parts, so enforce the cap on the read too
	content, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(content)) > maxBytes {
		return nil, "", fmt.Errorf("%w: artifact exceeds %d bytes", errs.ErrInvalidArgument, maxBytes)
	}

	mediaType := fileHeader.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	return content, mediaType, nil
}
