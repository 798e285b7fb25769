package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ArchiveEnabled reports whether a GCS bucket is configured.
func ArchiveEnabled() bool {
	return strings.TrimSpace(os.Getenv("GCS_BUCKET")) != ""
}

// getGoogleClient prefers ADC; GCS_CREDENTIALS_JSON overrides it for local runs.
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// UploadWorkbookToGCS writes an xlsx payload to GCS_BUCKET/objectName and returns the gs:// URI.
func UploadWorkbookToGCS(ctx context.Context, objectName string, data []byte) (string, error) {
	bucketName := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucketName == "" {
		return "", errors.New("GCS_BUCKET is required")
	}
	if len(data) == 0 {
		return "", errors.New("empty workbook")
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = xlsxContentType
	if _, err := bytes.NewReader(data).WriteTo(wc); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("write gcs object %q: %w", objectName, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("close gcs object %q: %w", objectName, err)
	}
	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}
