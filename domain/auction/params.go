package auction

import (
	"github.com/feeflow/goclient/base/ptr"
	"github.com/feeflow/goclient/domain"
)

type FindOptions struct {
	Viewer *domain.Address
	First  *int32
}

type FindOptionsFunc func(*FindOptions) error

func GetFindOptions(opts ...FindOptionsFunc) (FindOptions, error) {
	res := FindOptions{}

	for _, opt := range opts {
		if err := opt(&res); err != nil {
			return res, err
		}
	}

	return res, nil
}

// WithViewer scopes participants to one bidder address.
func WithViewer(viewer domain.Address) FindOptionsFunc {
	return func(options *FindOptions) error {
		options.Viewer = viewer.ToLowerPtr()
		return nil
	}
}

func WithFirst(first int32) FindOptionsFunc {
	return func(options *FindOptions) error {
		options.First = ptr.Int32(first)
		return nil
	}
}
