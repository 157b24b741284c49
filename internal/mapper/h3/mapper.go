package h3mapper

import (
	"fmt"
	"math"

	h3 "github.com/uber/h3-go/v4"

	"github.com/sedn/nbn-facade/internal/core/model"
	"github.com/sedn/nbn-facade/internal/mapper"
)

type Mapper struct{}

var _ mapper.Interface = (*Mapper)(nil)

func New() *Mapper { return &Mapper{} }

// CellForPoint returns the cell containing (lat, lng) in degrees.
func (m *Mapper) CellForPoint(lat, lng float64, res int) (string, error) {
	if err := validateRes(res); err != nil {
		return "", err
	}
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return "", fmt.Errorf("coordinates out of range: %v,%v", lat, lng)
	}
	c, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lng}, res)
	if err != nil {
		return "", fmt.Errorf("h3 cell: %w", err)
	}
	return c.String(), nil
}

// AnnotateSites sets Cell on every site whose coordinates map to a cell.
// Sites at the 0,0 placeholder are left without one.
func (m *Mapper) AnnotateSites(sites map[string]model.SiteLocation, res int) error {
	if err := validateRes(res); err != nil {
		return err
	}
	for id, s := range sites {
		if s.Coordinates == [2]float64{} {
			continue
		}
		cell, err := m.CellForPoint(s.Coordinates[0], s.Coordinates[1], res)
		if err != nil {
			continue
		}
		s.Cell = cell
		sites[id] = s
	}
	return nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
