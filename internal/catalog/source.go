package catalog

import "context"

// Source reads the full reference data set from a backend.
type Source interface {
	Load(ctx context.Context) (*Reference, error)
}
