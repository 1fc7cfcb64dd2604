package service

import "context"

// testTxRunner hands the same repositories to every transaction and records
// how many ran.
type testTxRunner struct {
	repos  TxRepositories
	called int
	err    error
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called++
	if t.err != nil {
		return t.err
	}
	return fn(t.repos)
}

type testTxRepos struct {
	documents DocumentRepositoryInterface
	chunks    ChunkRepositoryInterface
}

func (t *testTxRepos) Documents() DocumentRepositoryInterface { return t.documents }

func (t *testTxRepos) Chunks() ChunkRepositoryInterface { return t.chunks }
