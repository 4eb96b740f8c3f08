package ports

import (
	"github.com/hashlock-labs/swapd/internal/core/domain"
)

// RepoManager gives access to the repositories of the storage layer and
// owns the lifecycle of the underlying store.
type RepoManager interface {
	SwapRepository() domain.SwapRepository

	Close()
}
