package supabase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/san2804/finguard-go/internal/domain"
)

// Upload stores a receipt image in Supabase Storage and returns its public
// URL. Objects are keyed by owner and record id so a record always points at
// exactly one blob.
func (c *Client) Upload(ctx context.Context, ownerID, recordID string, data []byte, contentType string) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UploadAttachment")
	defer span.End()
	span.SetAttributes(
		attribute.String("owner.id", ownerID),
		attribute.Int("blob.size", len(data)),
	)

	objectPath := path.Join(ownerID, recordID+extensionFor(contentType))
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, objectPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", &domain.ErrBlobUpload{Err: err}
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: storage upload failed",
			zap.String("object", objectPath),
			zap.Error(err),
		)
		return "", &domain.ErrBlobUpload{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("supabase: storage upload non-2xx",
			zap.String("object", objectPath),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return "", &domain.ErrBlobUpload{Err: fmt.Errorf("storage returned %d: %s", resp.StatusCode, string(body))}
	}

	c.logger.Debug("supabase: storage upload OK", zap.String("object", objectPath))
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, c.bucket, objectPath), nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "application/pdf":
		return ".pdf"
	default:
		return ""
	}
}
