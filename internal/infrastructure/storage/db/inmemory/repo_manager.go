package inmemory

import (
	"github.com/hashlock-labs/swapd/internal/core/domain"
	"github.com/hashlock-labs/swapd/internal/core/ports"
)

type repoManager struct {
	swapRepository domain.SwapRepository
}

// NewRepoManager returns a ports.RepoManager backed by volatile in-process
// maps. Meant for tests and for running the daemon in ephemeral mode.
func NewRepoManager() ports.RepoManager {
	return &repoManager{
		swapRepository: NewSwapRepositoryImpl(),
	}
}

func (m *repoManager) SwapRepository() domain.SwapRepository {
	return m.swapRepository
}

func (m *repoManager) Close() {}
