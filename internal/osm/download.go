package osm

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/urbmob/viario-cli/pkg/overpass"
)

// QueryClient is the Overpass surface the downloader needs.
type QueryClient interface {
	Query(ctx context.Context, ql string) (*overpass.Response, error)
}

// Downloader fetches a clipped street network for a boundary polygon.
type Downloader struct {
	Client           QueryClient
	Filters          Filters
	QueryTimeoutSecs int
}

// NewDownloader creates a Downloader with the embedded filter set.
func NewDownloader(client QueryClient, timeoutSecs int) (*Downloader, error) {
	filters, err := LoadFilters()
	if err != nil {
		return nil, err
	}
	if timeoutSecs <= 0 {
		timeoutSecs = 180
	}
	return &Downloader{Client: client, Filters: filters, QueryTimeoutSecs: timeoutSecs}, nil
}

// Download retrieves and assembles the network of the given type clipped to
// the boundary. Geometries stay in WGS84; callers project afterwards.
func (d *Downloader) Download(ctx context.Context, boundary geom.T, nt NetworkType) (*Network, error) {
	ql, err := d.Filters.BuildQuery(boundary, nt, d.QueryTimeoutSecs)
	if err != nil {
		return nil, err
	}

	zap.L().Info("osm: downloading street network",
		zap.String("network_type", string(nt)),
	)

	resp, err := d.Client.Query(ctx, ql)
	if err != nil {
		return nil, eris.Wrapf(err, "osm: download %s network", nt)
	}

	net, err := BuildNetwork(resp.Elements)
	if err != nil {
		return nil, err
	}

	zap.L().Info("osm: network assembled",
		zap.Int("nodes", net.NodeCount),
		zap.Int("ways", net.WayCount),
		zap.Int("edges", len(net.Edges)),
	)
	return net, nil
}
