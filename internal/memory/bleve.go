package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve"
)

// BleveStore keeps episodes in per-user in-memory BM25 indexes. It is the
// default EpisodeStore when no Postgres storage is configured; episodes do
// not survive a restart.
type BleveStore struct {
	mu    sync.Mutex
	users map[string]*userIndex
}

type userIndex struct {
	index    bleve.Index
	episodes map[string]Episode
}

func NewBleveStore() *BleveStore {
	return &BleveStore{users: map[string]*userIndex{}}
}

func (s *BleveStore) bucket(userID string) (*userIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		return u, nil
	}
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("bleve: creating index: %w", err)
	}
	u := &userIndex{index: idx, episodes: map[string]Episode{}}
	s.users[userID] = u
	return u, nil
}

func (s *BleveStore) Insert(_ context.Context, ep Episode) error {
	u, err := s.bucket(ep.UserID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := u.index.Index(ep.ID, map[string]string{"content": ep.SearchableContent()}); err != nil {
		return fmt.Errorf("bleve: indexing episode: %w", err)
	}
	u.episodes[ep.ID] = ep
	return nil
}

func (s *BleveStore) Search(_ context.Context, userID, query string, limit int) ([]Episode, error) {
	s.mu.Lock()
	u, ok := s.users[userID]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := u.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve: searching episodes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Episode, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if ep, ok := u.episodes[hit.ID]; ok {
			out = append(out, ep)
		}
	}
	return out, nil
}
