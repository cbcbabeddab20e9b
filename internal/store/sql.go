package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"newsbrief/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

var articleColumns = []string{
	"id", "source_url", "title", "content", "summary", "language", "status",
	"word_count", "published_at", "created_at", "updated_at",
	"authors", "top_image", "meta_description", "source_domain",
}

// SQLStore keeps records in a single SQLite table. Times are stored as unix
// nanoseconds.
type SQLStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore opens the database at path and applies pending migrations.
func NewSQLStore(path string) (*SQLStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps sqlite from returning SQLITE_BUSY under the worker pool
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLStore{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

// RunMigrations applies embedded migrations and returns the schema version.
func RunMigrations(db *sql.DB) (uint, error) {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("failed to create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Create(ctx context.Context, article *model.Article) error {
	if err := prepare(article); err != nil {
		return err
	}
	if article.ID == uuid.Nil {
		article.ID = uuid.New()
	}

	query, args, err := s.sb.Insert("articles").
		Columns(articleColumns...).
		Values(rowValues(article)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

func (s *SQLStore) Update(ctx context.Context, article *model.Article) error {
	if err := prepare(article); err != nil {
		return err
	}

	query, args, err := s.sb.Update("articles").
		SetMap(map[string]interface{}{
			"title":            article.Title,
			"content":          article.Content,
			"summary":          article.Summary,
			"language":         article.Language,
			"status":           string(article.Status),
			"word_count":       article.WordCount,
			"published_at":     nullableTime(article.PublishedAt),
			"updated_at":       article.UpdatedAt.UnixNano(),
			"authors":          article.Authors,
			"top_image":        article.TopImage,
			"meta_description": article.MetaDescription,
			"source_domain":    article.SourceDomain,
		}).
		Where(sq.Eq{"id": article.ID.String(), "source_url": article.SourceURL}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, sourceURL string) (*model.Article, error) {
	query, args, err := s.sb.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"source_url": sourceURL}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	a, err := scanArticle(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select article: %w", err)
	}
	return a, nil
}

func (s *SQLStore) Filter(ctx context.Context, f Filter) ([]model.Article, error) {
	cols := articleColumns
	if f.SkipContent {
		cols = make([]string, len(articleColumns))
		copy(cols, articleColumns)
		cols[3] = "'' AS content"
	}

	q := applyFilter(s.sb.Select(cols...).From("articles"), f)
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var out []model.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Delete(ctx context.Context, f Filter) (int, error) {
	del := s.sb.Delete("articles")
	if f.Limit > 0 {
		// DELETE ... LIMIT needs a compile-time sqlite option; go through ids
		sub := applyFilter(s.sb.Select("id").From("articles"), f)
		subQuery, subArgs, err := sub.ToSql()
		if err != nil {
			return 0, fmt.Errorf("build delete: %w", err)
		}
		del = del.Where("id IN ("+subQuery+")", subArgs...)
	} else {
		if f.Status != "" {
			del = del.Where(sq.Eq{"status": string(f.Status)})
		}
		if !f.CreatedBefore.IsZero() {
			del = del.Where(sq.Lt{"created_at": f.CreatedBefore.UnixNano()})
		}
	}

	query, args, err := del.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete articles: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete articles: %w", err)
	}
	return int(n), nil
}

func applyFilter(q sq.SelectBuilder, f Filter) sq.SelectBuilder {
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": string(f.Status)})
	}
	if !f.CreatedBefore.IsZero() {
		q = q.Where(sq.Lt{"created_at": f.CreatedBefore.UnixNano()})
	}
	if f.Newest {
		q = q.OrderBy("created_at DESC")
	} else {
		q = q.OrderBy("created_at ASC")
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	return q
}

func rowValues(a *model.Article) []interface{} {
	return []interface{}{
		a.ID.String(), a.SourceURL, a.Title, a.Content, a.Summary, a.Language,
		string(a.Status), a.WordCount, nullableTime(a.PublishedAt),
		a.CreatedAt.UnixNano(), a.UpdatedAt.UnixNano(),
		a.Authors, a.TopImage, a.MetaDescription, a.SourceDomain,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (*model.Article, error) {
	var (
		a         model.Article
		id        string
		status    string
		published sql.NullInt64
		created   int64
		updated   int64
	)
	err := row.Scan(
		&id, &a.SourceURL, &a.Title, &a.Content, &a.Summary, &a.Language, &status,
		&a.WordCount, &published, &created, &updated,
		&a.Authors, &a.TopImage, &a.MetaDescription, &a.SourceDomain,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse id %q: %w", id, err)
	}
	a.ID = parsed
	a.Status = model.ArticleStatus(status)
	a.CreatedAt = time.Unix(0, created).UTC()
	a.UpdatedAt = time.Unix(0, updated).UTC()
	if published.Valid {
		t := time.Unix(0, published.Int64).UTC()
		a.PublishedAt = &t
	}
	return &a, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
