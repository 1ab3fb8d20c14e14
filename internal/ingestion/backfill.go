package ingestion

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/Eboreg/spodcat-backend/internal/database/repositories"
	"github.com/Eboreg/spodcat-backend/internal/geoip"
	"github.com/Eboreg/spodcat-backend/internal/metrics"
)

// HostResolver resolves an IP address to hostnames. The default is
// net.DefaultResolver's reverse lookup.
type HostResolver func(ctx context.Context, addr string) ([]string, error)

// Backfiller runs the after-the-fact enrichment jobs over already stored
// log rows: reverse-DNS remote hosts and geo references. Both jobs are
// resumable; they only touch rows that still lack the value.
type Backfiller struct {
	repo    repositories.RequestLogRepository
	geo     *geoip.Service
	resolve HostResolver
	logger  *pterm.Logger
}

func NewBackfiller(repo repositories.RequestLogRepository, geo *geoip.Service, logger *pterm.Logger) *Backfiller {
	return &Backfiller{
		repo: repo,
		geo:  geo,
		resolve: func(ctx context.Context, addr string) ([]string, error) {
			return net.DefaultResolver.LookupAddr(ctx, addr)
		},
		logger: logger,
	}
}

// FillRemoteHosts resolves a hostname for every distinct address that has
// log rows without one. Lookup failures are logged and skipped; the
// address is retried on the next run.
func (b *Backfiller) FillRemoteHosts(ctx context.Context) (int, error) {
	addrs, err := b.repo.AddrsWithoutHost(ctx)
	if err != nil {
		return 0, err
	}

	b.logger.Info("Filling remote hosts", b.logger.Args("addresses", len(addrs)))

	filled := 0
	for _, addr := range addrs {
		if err := ctx.Err(); err != nil {
			return filled, err
		}

		names, err := b.resolve(ctx, addr)
		if err != nil || len(names) == 0 {
			b.logger.Debug("No reverse DNS result", b.logger.Args("ip", addr, "error", err))
			continue
		}

		host := strings.TrimSuffix(names[0], ".")
		if err := b.repo.SetRemoteHost(ctx, addr, host); err != nil {
			return filled, err
		}
		filled++
	}

	b.logger.Info("Remote host backfill done",
		b.logger.Args("resolved", filled, "total", len(addrs)))
	return filled, nil
}

// FillGeoIPs looks up and links geo info for every distinct address whose
// log rows lack a geo reference. Provider errors skip the address.
func (b *Backfiller) FillGeoIPs(ctx context.Context) (int, error) {
	addrs, err := b.repo.AddrsWithoutGeo(ctx)
	if err != nil {
		return 0, err
	}

	b.logger.Info("Filling geo references", b.logger.Args("addresses", len(addrs)))

	filled := 0
	for _, addr := range addrs {
		if err := ctx.Err(); err != nil {
			return filled, err
		}

		geo, err := b.geo.GetOrCreate(ctx, addr)
		if err != nil {
			metrics.GeoIPLookups.WithLabelValues("error").Inc()
			b.logger.Warn("GeoIP lookup failed during backfill",
				b.logger.Args("ip", addr, "error", err))
			continue
		}
		if geo == nil {
			continue
		}

		if err := b.repo.SetGeoIPAddr(ctx, addr, geo.IP); err != nil {
			return filled, err
		}
		filled++

		// Be polite to the external provider on large backlogs
		time.Sleep(10 * time.Millisecond)
	}

	b.logger.Info("Geo backfill done", b.logger.Args("linked", filled, "total", len(addrs)))
	return filled, nil
}
