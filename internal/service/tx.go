package service

import "context"

// TxRepositories exposes the repositories bound to one transaction.
type TxRepositories interface {
	Documents() DocumentRepositoryInterface
	Chunks() ChunkRepositoryInterface
}

// TxRunner runs fn in a transaction that is committed when fn returns nil
// and rolled back otherwise. A document row and its chunks always change
// together.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
