package sigcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/morezero/inference-client/pkg/apierr"
	"github.com/morezero/inference-client/pkg/ref"
	"github.com/morezero/inference-client/pkg/signature"
)

const logPrefix = "sigcache:resolver"

// Resolver is a read-through signature.Source. Cache failures are logged and
// fall back to the underlying source.
type Resolver struct {
	Source signature.Source
	// Cache is optional.
	Cache Cache
	// Constraint is an optional semver constraint every fetched set must satisfy.
	Constraint string
}

// Describe returns the signatures for r.
func (res *Resolver) Describe(ctx context.Context, r ref.Ref) (*signature.Set, error) {
	key := r.String()

	if res.Cache != nil {
		set, err := res.Cache.Get(ctx, key)
		switch {
		case err == nil:
			slog.Debug(fmt.Sprintf("%s - cache hit for %s", logPrefix, key))
			return set, res.check(set)
		case !errors.Is(err, ErrNotFound):
			slog.Warn(fmt.Sprintf("%s - cache read failed for %s: %v", logPrefix, key, err))
		}
	}

	set, err := res.Source.Describe(ctx, r)
	if err != nil {
		return nil, err
	}
	if set.Resource == "" {
		set.Resource = key
	}
	if err := res.check(set); err != nil {
		return nil, err
	}

	if res.Cache != nil {
		if err := res.Cache.Put(ctx, key, set); err != nil {
			slog.Warn(fmt.Sprintf("%s - cache write failed for %s: %v", logPrefix, key, err))
		}
	}
	return set, nil
}

func (res *Resolver) check(set *signature.Set) error {
	if err := set.CheckCompatible(); err != nil {
		return err
	}
	if err := ref.CheckConstraint(set.Version, res.Constraint); err != nil {
		return &apierr.Error{
			Code:    apierr.CodeIncompatibleResource,
			Message: fmt.Sprintf("Resource %s does not satisfy signature constraint %q", set.Resource, res.Constraint),
			Cause:   err,
		}
	}
	return nil
}
