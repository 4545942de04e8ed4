package geocoder

import "context"

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Geocoder interface {
	Resolve(ctx context.Context, address string) (*Coordinates, error)
}
