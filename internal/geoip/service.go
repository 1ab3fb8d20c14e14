// MIT License
//
// Copyright (c) 2026 Eboreg
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
package geoip

import (
	"context"
	"errors"
	"net/netip"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Eboreg/spodcat-backend/internal/database/models"
)

// Service fronts the external provider with a persisted per-IP cache so a
// distinct address is looked up at most once. Addresses the provider has no
// data for are not negatively cached; each miss triggers a new call.
type Service struct {
	db       *gorm.DB
	provider Provider
	logger   *pterm.Logger
}

func NewService(db *gorm.DB, provider Provider, logger *pterm.Logger) *Service {
	return &Service{
		db:       db,
		provider: provider,
		logger:   logger,
	}
}

// Lookupable reports whether an address is a candidate for external lookup.
// Private, loopback, link-local and unparseable addresses never leave the
// process.
func Lookupable(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return !addr.IsPrivate() && !addr.IsLoopback() && !addr.IsLinkLocalUnicast() &&
		!addr.IsLinkLocalMulticast() && !addr.IsUnspecified()
}

// GetOrCreate returns the cached GeoIP row for an address, performing and
// persisting the external lookup on first sight. A nil row with nil error
// means "no geo info" (private address, disabled provider, or provider
// miss); callers proceed without geo data.
func (s *Service) GetOrCreate(ctx context.Context, ip string) (*models.GeoIP, error) {
	if ip == "" || !Lookupable(ip) {
		return nil, nil
	}

	var cached models.GeoIP
	err := s.db.WithContext(ctx).Where("ip = ?", ip).First(&cached).Error
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if s.provider == nil || !s.provider.Enabled() {
		return nil, nil
	}

	result, err := s.provider.Lookup(ctx, ip)
	if err != nil {
		return nil, err
	}
	if result == nil {
		s.logger.Debug("GeoIP provider had no data", s.logger.Args("ip", ip))
		return nil, nil
	}

	row := &models.GeoIP{
		IP:      ip,
		City:    result.City,
		Region:  result.Region,
		Country: result.Country,
		Org:     result.Org,
	}

	// Conditional insert: a concurrent request from the same never-seen
	// address may have won the race, in which case the conflict is success
	// and we read back whatever landed first.
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error
	if err != nil {
		return nil, err
	}

	var stored models.GeoIP
	if err := s.db.WithContext(ctx).Where("ip = ?", ip).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}
