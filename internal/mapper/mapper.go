// Package mapper converts site coordinates into H3 cells.
package mapper

type Interface interface {
	CellForPoint(lat, lng float64, res int) (string, error)
}
