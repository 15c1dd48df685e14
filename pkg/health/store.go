package health

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/scbackend/pkg/types"
)

// ProjectLister is the slice of storage.Store the store checker needs.
type ProjectLister interface {
	ListProjects() ([]*types.Project, error)
}

// StoreChecker reports healthy when the project store can be listed.
type StoreChecker struct {
	Store ProjectLister
}

// NewStoreChecker creates a checker for store.
func NewStoreChecker(store ProjectLister) *StoreChecker {
	return &StoreChecker{Store: store}
}

// Check lists projects. The store calls are synchronous, so ctx is only
// consulted before the call.
func (s *StoreChecker) Check(ctx context.Context) Result {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return Result{Message: err.Error(), CheckedAt: start}
	}

	projects, err := s.Store.ListProjects()
	if err != nil {
		return Result{
			Message:   fmt.Sprintf("list failed: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("%d projects", len(projects)),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type
func (s *StoreChecker) Type() CheckType {
	return CheckTypeStore
}
