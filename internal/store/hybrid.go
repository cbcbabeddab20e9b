package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"newsbrief/internal/model"
)

// keyCreated is a sorted set of record ids scored by creation time in ms.
const keyCreated = "articles:created"

func metaKey(id uuid.UUID) string            { return "article:" + id.String() }
func urlKey(sourceURL string) string         { return "article:url:" + sourceURL }
func statusKey(s model.ArticleStatus) string { return "articles:status:" + string(s) }

// HybridStore keeps metadata and indexes in Redis and article bodies in Badger.
type HybridStore struct {
	rdb *redis.Client
	db  *badger.DB
}

var _ Store = (*HybridStore)(nil)

// NewHybridStore connects to Redis and opens Badger at badgerPath.
// An empty badgerPath gives a Redis-only client that cannot write content.
func NewHybridStore(redisAddr string, badgerPath string) (*HybridStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	var db *badger.DB
	if badgerPath != "" {
		opts := badger.DefaultOptions(badgerPath)
		opts.Logger = nil
		var err error
		db, err = badger.Open(opts)
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to open badger: %w", err)
		}
	}

	return &HybridStore{rdb: rdb, db: db}, nil
}

// Redis exposes the client so the task queue can share the connection.
func (s *HybridStore) Redis() *redis.Client {
	return s.rdb
}

func (s *HybridStore) Close() error {
	var errs []error
	if s.rdb != nil {
		errs = append(errs, s.rdb.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

// Create claims the source URL with SETNX before writing anything else.
func (s *HybridStore) Create(ctx context.Context, article *model.Article) error {
	if err := prepare(article); err != nil {
		return err
	}
	if article.ID == uuid.Nil {
		article.ID = uuid.New()
	}

	claimed, err := s.rdb.SetNX(ctx, urlKey(article.SourceURL), article.ID.String(), 0).Result()
	if err != nil {
		return fmt.Errorf("claim url: %w", err)
	}
	if !claimed {
		return ErrConflict
	}

	if err := s.write(ctx, article, ""); err != nil {
		// release the claim so a retry can create the record
		s.rollback(ctx, article)
		return err
	}
	return nil
}

// rollback removes every Redis trace of a record whose Create failed.
func (s *HybridStore) rollback(ctx context.Context, article *model.Article) {
	id := article.ID.String()
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, urlKey(article.SourceURL), metaKey(article.ID))
	pipe.SRem(ctx, statusKey(article.Status), id)
	pipe.ZRem(ctx, keyCreated, id)
	_, _ = pipe.Exec(ctx)
}

func (s *HybridStore) Update(ctx context.Context, article *model.Article) error {
	if err := prepare(article); err != nil {
		return err
	}
	current, err := s.getByID(ctx, article.ID, false)
	if err != nil {
		return err
	}
	if current.SourceURL != article.SourceURL {
		return fmt.Errorf("source url of %s cannot change", article.ID)
	}
	return s.write(ctx, article, current.Status)
}

// write stores metadata and indexes in one pipeline, then the body in Badger.
func (s *HybridStore) write(ctx context.Context, article *model.Article, previous model.ArticleStatus) error {
	if s.db == nil && article.Content != "" {
		return fmt.Errorf("cannot save content: badgerdb is not initialized")
	}

	meta := *article
	meta.Content = ""

	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, metaKey(article.ID), data, 0)
	if previous != "" && previous != article.Status {
		pipe.SRem(ctx, statusKey(previous), article.ID.String())
	}
	pipe.SAdd(ctx, statusKey(article.Status), article.ID.String())
	pipe.ZAdd(ctx, keyCreated, redis.Z{
		Score:  float64(article.CreatedAt.UnixMilli()),
		Member: article.ID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	if s.db == nil {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(article.ID.String())
		if article.Content == "" {
			return txn.Delete(key)
		}
		return txn.Set(key, []byte(article.Content))
	})
}

func (s *HybridStore) Get(ctx context.Context, sourceURL string) (*model.Article, error) {
	idStr, err := s.rdb.Get(ctx, urlKey(sourceURL)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt url index for %s: %w", sourceURL, err)
	}
	return s.getByID(ctx, id, true)
}

// getByID combines metadata from Redis with content from Badger.
func (s *HybridStore) getByID(ctx context.Context, id uuid.UUID, withContent bool) (*model.Article, error) {
	val, err := s.rdb.Get(ctx, metaKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	var article model.Article
	if err := json.Unmarshal(val, &article); err != nil {
		return nil, err
	}

	if withContent && s.db != nil {
		err = s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get([]byte(id.String()))
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				article.Content = string(val)
				return nil
			})
		})
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return nil, err
		}
	}

	return &article, nil
}

// ids returns matching record ids in creation order.
func (s *HybridStore) ids(ctx context.Context, f Filter) ([]uuid.UUID, error) {
	rng := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if !f.CreatedBefore.IsZero() {
		rng.Max = "(" + strconv.FormatInt(f.CreatedBefore.UnixMilli(), 10)
	}

	var (
		members []string
		err     error
	)
	if f.Newest {
		members, err = s.rdb.ZRevRangeByScore(ctx, keyCreated, rng).Result()
	} else {
		members, err = s.rdb.ZRangeByScore(ctx, keyCreated, rng).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("range created index: %w", err)
	}

	var allowed map[string]struct{}
	if f.Status != "" {
		inStatus, err := s.rdb.SMembers(ctx, statusKey(f.Status)).Result()
		if err != nil {
			return nil, fmt.Errorf("read status index: %w", err)
		}
		allowed = make(map[string]struct{}, len(inStatus))
		for _, m := range inStatus {
			allowed[m] = struct{}{}
		}
	}

	var out []uuid.UUID
	for _, m := range members {
		if allowed != nil {
			if _, ok := allowed[m]; !ok {
				continue
			}
		}
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		out = append(out, id)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (s *HybridStore) Filter(ctx context.Context, f Filter) ([]model.Article, error) {
	ids, err := s.ids(ctx, f)
	if err != nil {
		return nil, err
	}

	articles := make([]model.Article, 0, len(ids))
	for _, id := range ids {
		a, err := s.getByID(ctx, id, !f.SkipContent)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, nil
}

func (s *HybridStore) Delete(ctx context.Context, f Filter) (int, error) {
	articles, err := s.Filter(ctx, Filter{
		Status:        f.Status,
		CreatedBefore: f.CreatedBefore,
		Limit:         f.Limit,
		Newest:        f.Newest,
		SkipContent:   true,
	})
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, a := range articles {
		idStr := a.ID.String()
		pipe := s.rdb.TxPipeline()
		pipe.Del(ctx, metaKey(a.ID), urlKey(a.SourceURL))
		pipe.SRem(ctx, statusKey(a.Status), idStr)
		pipe.ZRem(ctx, keyCreated, idStr)
		if _, err := pipe.Exec(ctx); err != nil {
			return deleted, fmt.Errorf("delete %s: %w", idStr, err)
		}

		if s.db != nil {
			err := s.db.Update(func(txn *badger.Txn) error {
				return txn.Delete([]byte(idStr))
			})
			if err != nil {
				return deleted, fmt.Errorf("delete content %s: %w", idStr, err)
			}
		}
		deleted++
	}
	return deleted, nil
}
