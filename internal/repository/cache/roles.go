package cache

import (
	"context"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/arklim/medportal-api/internal/core/domain"
	"github.com/arklim/medportal-api/internal/core/port"
)

// RoleRepository memoizes role lookups from the wrapped repository.
// Roles change only through migrations, so a coarse expiration is enough.
type RoleRepository struct {
	next  port.RoleRepository
	cache *gocache.Cache
	ttl   time.Duration
}

// NewRoleRepository wraps next with an in-process cache.
func NewRoleRepository(next port.RoleRepository, ttl, cleanupInterval time.Duration) *RoleRepository {
	return &RoleRepository{
		next:  next,
		cache: gocache.New(ttl, cleanupInterval),
		ttl:   ttl,
	}
}

// GetByID serves the role from cache, falling back to the wrapped repository on a miss.
func (r *RoleRepository) GetByID(ctx context.Context, id int64) (*domain.Role, error) {
	key := strconv.FormatInt(id, 10)
	if cached, found := r.cache.Get(key); found {
		role := cached.(domain.Role)
		return &role, nil
	}

	role, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cache.Set(key, *role, r.ttl)
	return role, nil
}

var _ port.RoleRepository = (*RoleRepository)(nil)
