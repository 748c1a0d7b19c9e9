package editor

import (
	"context"
	"fmt"

	"github.com/MisreadableMind/word-to-site-ai/pkg/deploy"
	"github.com/MisreadableMind/word-to-site-ai/pkg/models"
	"github.com/MisreadableMind/word-to-site-ai/pkg/providers/instawp"
)

// HostDirectory resolves site ids through the hosting provider, which owns
// the site records and their admin credentials.
type HostDirectory struct {
	host *instawp.Client
}

func NewHostDirectory(host *instawp.Client) *HostDirectory {
	return &HostDirectory{host: host}
}

func (d *HostDirectory) Resolve(ctx context.Context, siteID string) (SiteClient, string, error) {
	site, ready, err := d.host.GetSite(ctx, siteID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up site %s: %w", siteID, err)
	}
	if !ready {
		return nil, "", fmt.Errorf("site %s is not ready yet", siteID)
	}

	client := deploy.NewClient(models.SiteCredentials{
		BaseURL:  site.WpURL,
		Username: site.WpUsername,
		Password: site.WpPassword,
	})
	return client, site.WpURL, nil
}
