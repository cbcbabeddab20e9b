package store

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsbrief/internal/model"
)

// newTestHybridStore wires miniredis and an in-memory Badger directly so no
// temp files are created.
func newTestHybridStore(t *testing.T) (*HybridStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	badgerDB, err := badger.Open(opts)
	require.NoError(t, err)

	st := &HybridStore{
		rdb: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		db:  badgerDB,
	}
	t.Cleanup(func() { _ = st.Close() })
	return st, mr
}

func TestHybridStore_Contract(t *testing.T) {
	runContract(t, func(t *testing.T) Store {
		st, _ := newTestHybridStore(t)
		return st
	})
}

func TestHybridStore_SplitsMetadataAndContent(t *testing.T) {
	st, mr := newTestHybridStore(t)
	ctx := context.Background()

	article := model.NewArticle("https://example.com/news/corn", time.Now())
	article.Status = model.StatusProcessing
	article.Title = "Test Article"
	article.SetContent("Corn prices rose on Tuesday.")
	require.NoError(t, st.Create(ctx, &article))

	// metadata in Redis without the body
	val, err := mr.Get("article:" + article.ID.String())
	require.NoError(t, err)
	var meta model.Article
	require.NoError(t, json.Unmarshal([]byte(val), &meta))
	assert.Equal(t, "Test Article", meta.Title)
	assert.Empty(t, meta.Content, "Redis should not store the content")
	assert.Equal(t, 5, meta.WordCount)

	// url index and status set
	id, err := mr.Get("article:url:https://example.com/news/corn")
	require.NoError(t, err)
	assert.Equal(t, article.ID.String(), id)
	ok, err := mr.SIsMember("articles:status:processing", article.ID.String())
	require.NoError(t, err)
	assert.True(t, ok)

	// body in Badger
	err = st.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(article.ID.String()))
		if err != nil {
			return err
		}
		val, _ := item.ValueCopy(nil)
		assert.Equal(t, article.Content, string(val))
		return nil
	})
	assert.NoError(t, err)
}

func TestHybridStore_UpdateMovesStatusIndex(t *testing.T) {
	st, mr := newTestHybridStore(t)
	ctx := context.Background()

	article := model.NewArticle("https://example.com/news/wheat", time.Now())
	article.Status = model.StatusProcessing
	require.NoError(t, st.Create(ctx, &article))

	article.Status = model.StatusFailed
	require.NoError(t, st.Update(ctx, &article))

	inProcessing, _ := mr.SIsMember("articles:status:processing", article.ID.String())
	inFailed, _ := mr.SIsMember("articles:status:failed", article.ID.String())
	assert.False(t, inProcessing)
	assert.True(t, inFailed)
}

func TestHybridStore_ClientMode_NoBadger(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	// Redis-only, the way trigger commands open the store
	st, err := NewHybridStore(mr.Addr(), "")
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()

	article := model.NewArticle("http://example.com/news/a", time.Now())
	article.Status = model.StatusProcessing
	assert.NoError(t, st.Create(ctx, &article), "metadata-only writes work without Badger")
	assert.True(t, mr.Exists("article:"+article.ID.String()))

	article.SetContent("<h1>Heavy HTML</h1>")
	err = st.Update(ctx, &article)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "badgerdb is not initialized")
}

func TestHybridStore_FailedContentWriteLeavesNoIndexes(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	// values above the value log file size are rejected by badger
	opts := badger.DefaultOptions("").WithInMemory(true).WithValueLogFileSize(1 << 20)
	opts.Logger = nil
	badgerDB, err := badger.Open(opts)
	require.NoError(t, err)

	st := &HybridStore{
		rdb: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		db:  badgerDB,
	}
	t.Cleanup(func() { _ = st.Close() })
	ctx := context.Background()

	article := model.NewArticle("https://example.com/news/huge", time.Now())
	article.Status = model.StatusProcessing
	article.SetContent(strings.Repeat("grain ", 400_000))
	require.Error(t, st.Create(ctx, &article))

	assert.False(t, mr.Exists("article:"+article.ID.String()))
	assert.False(t, mr.Exists("article:url:https://example.com/news/huge"))
	members, _ := mr.ZMembers(keyCreated)
	assert.Empty(t, members)
	inStatus, _ := mr.SMembers(statusKey(model.StatusProcessing))
	assert.Empty(t, inStatus)

	article.SetContent("a normal sized body")
	require.NoError(t, st.Create(ctx, &article))
}

func TestHybridStore_DeleteClearsIndexes(t *testing.T) {
	st, mr := newTestHybridStore(t)
	ctx := context.Background()

	article := model.NewArticle("https://example.com/news/dairy", time.Now().Add(-48*time.Hour))
	article.Status = model.StatusProcessing
	article.SetContent("some body text")
	require.NoError(t, st.Create(ctx, &article))

	n, err := st.Delete(ctx, Filter{CreatedBefore: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.False(t, mr.Exists("article:"+article.ID.String()))
	assert.False(t, mr.Exists("article:url:https://example.com/news/dairy"))
	members, _ := mr.ZMembers(keyCreated)
	assert.Empty(t, members)
}
