package ports

import "github.com/duplexpay/duplexd/internal/core/domain"

type RepoManager interface {
	Channels() domain.ChannelRepository
	PayResults() domain.PayResultRepository
	Close()
}
