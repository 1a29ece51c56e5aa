package objectstore

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/reviewdesk/core"
)

// New returns the object store of the configured provider.
func New(ctx context.Context, conf *core.Config) (core.ObjectStore, error) {
	switch conf.Storage.Provider {
	case core.StorageOSS:
		return NewOSSStore(conf)
	case core.StorageFirebase:
		return NewFirebaseStore(ctx, conf)
	case core.StorageLocal, "":
		return NewLocalStore(conf)
	default:
		return nil, errors.Errorf("unknown storage provider %q", conf.Storage.Provider)
	}
}
