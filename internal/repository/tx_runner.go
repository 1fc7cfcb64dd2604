package repository

import (
	"context"

	"github.com/etvincen/boredapi/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type txBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// TxRunner scopes document and chunk writes to one read-committed
// transaction. Version checks rely on the row lock taken by LockVersion.
type TxRunner struct {
	db   txBeginner
	opts pgx.TxOptions
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{db: pool, opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted}}
}

// WithTx commits when fn returns nil and rolls back otherwise, panics included.
func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	return pgx.BeginTxFunc(ctx, r.db, r.opts, func(tx pgx.Tx) error {
		return fn(txRepos{
			documents: NewDocumentRepositoryWithTx(tx),
			chunks:    NewChunkRepositoryWithTx(tx),
		})
	})
}

type txRepos struct {
	documents *DocumentRepository
	chunks    *ChunkRepository
}

func (r txRepos) Documents() service.DocumentRepositoryInterface { return r.documents }

func (r txRepos) Chunks() service.ChunkRepositoryInterface { return r.chunks }
