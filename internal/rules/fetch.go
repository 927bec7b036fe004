package rules

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxDocumentSize caps the rules download. The Comprehensive Rules text is
// around 3 MiB; anything past this is not the document we asked for.
const maxDocumentSize = 32 << 20

// Fetch downloads the Comprehensive Rules text document from url. Wizards
// moves the file with every rules update, so the URL is configuration, not
// a constant.
func Fetch(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("rules fetch: url must not be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("rules fetch: build request: %w", err)
	}
	req.Header.Set("User-Agent", "tolarian-tutor/1.0")

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("rules fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("rules fetch: unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return "", fmt.Errorf("rules fetch: read body: %w", err)
	}
	return string(body), nil
}
