package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const DEFAULT_REGION = "local"

var zoneSuffix = regexp.MustCompile(`-[a-z]$`)

// Region returns the current region of the GCP machine, or DEFAULT_REGION
// when the metadata server cannot be reached.
func Region(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://metadata.google.internal/computeMetadata/v1/instance/zone", nil)
	if err != nil {
		return "", err
	}
	req.Header.Add("Metadata-Flavor", "Google")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		// can only send requests inside machine, otherwise we are in localhost
		return DEFAULT_REGION, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return regionFromZone(string(body))
}

// regionFromZone turns "projects/<n>/zones/europe-west3-a" into "europe-west3".
func regionFromZone(response string) (string, error) {
	parts := strings.Split(response, "/")
	if len(parts) < 4 {
		return "", fmt.Errorf("invalid response format: %s", response)
	}
	return zoneSuffix.ReplaceAllString(strings.TrimSpace(parts[3]), ""), nil
}
