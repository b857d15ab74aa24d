package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-version"
)

// AppVersion is overridden at build time with -ldflags "-X ...cmd.AppVersion=v1.2.3".
var AppVersion = "v0.0.0"

// ReleaseURL points at the latest GitHub release of the project.
var ReleaseURL = "https://api.github.com/repos/nulzo/generation-router/releases/latest"

type release struct {
	TagName string `json:"tag_name"`
}

// Update describes a newer published release.
type Update struct {
	Current string
	Latest  string
}

// CheckForUpdates compares current with the latest release tag at url. It
// returns nil, nil when current is up to date.
func CheckForUpdates(ctx context.Context, url, current string) (*Update, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release lookup returned status %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, err
	}

	have, err := version.NewVersion(current)
	if err != nil {
		return nil, fmt.Errorf("invalid current version %q: %w", current, err)
	}
	latest, err := version.NewVersion(rel.TagName)
	if err != nil {
		return nil, fmt.Errorf("invalid release tag %q: %w", rel.TagName, err)
	}

	if have.LessThan(latest) {
		return &Update{Current: current, Latest: rel.TagName}, nil
	}
	return nil, nil
}
