package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// articleRow maps articles.
type articleRow struct {
	ID                 int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Title              string     `gorm:"column:title;type:text;not null;default:''"`
	URL                string     `gorm:"column:url;type:text;not null;default:''"`
	Author             string     `gorm:"column:author;type:text;not null;default:''"`
	SiteName           string     `gorm:"column:site_name;type:text;not null;default:''"`
	Excerpt            string     `gorm:"column:excerpt;type:text;not null;default:''"`
	Language           string     `gorm:"column:language;type:text;not null;default:''"`
	ClippedAt          time.Time  `gorm:"column:clipped_at;type:timestamptz;not null;index"`
	Markdown           string     `gorm:"column:markdown;type:text;not null"`
	TranslatedMarkdown string     `gorm:"column:translated_markdown;type:text;not null;default:''"`
	HasTranslation     bool       `gorm:"column:has_translation;not null;default:false"`
	TranslatedAt       *time.Time `gorm:"column:translated_at;type:timestamptz"`
	ImageCount         int        `gorm:"column:image_count;type:integer;not null;default:0"`
	CreatedAt          time.Time  `gorm:"column:created_at;type:timestamptz;not null"`
}

func (articleRow) TableName() string { return "articles" }

// imageRow maps article_images.
type imageRow struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ArticleID   int64  `gorm:"column:article_id;type:bigint;not null;index"`
	OriginalURL string `gorm:"column:original_url;type:text;not null"`
	LocalPath   string `gorm:"column:local_path;type:text;not null"`
	MimeType    string `gorm:"column:mime_type;type:text;not null;default:''"`
	Data        []byte `gorm:"column:data;type:bytea"`
}

func (imageRow) TableName() string { return "article_images" }

func autoMigrateModels() []any {
	return []any{&articleRow{}, &imageRow{}}
}

func toArticleRow(article Article) articleRow {
	return articleRow{
		ID:                 article.ID,
		Title:              article.Metadata.Title,
		URL:                article.Metadata.URL,
		Author:             article.Metadata.Author,
		SiteName:           article.Metadata.SiteName,
		Excerpt:            article.Metadata.Excerpt,
		Language:           article.Metadata.Language,
		ClippedAt:          article.Metadata.Timestamp,
		Markdown:           article.Markdown,
		TranslatedMarkdown: article.TranslatedMarkdown,
		HasTranslation:     article.HasTranslation,
		TranslatedAt:       article.TranslatedAt,
		ImageCount:         article.ImageCount,
		CreatedAt:          article.CreatedAt,
	}
}

func (r articleRow) article() Article {
	return Article{
		ID: r.ID,
		Metadata: Metadata{
			Title:     r.Title,
			URL:       r.URL,
			Author:    r.Author,
			SiteName:  r.SiteName,
			Excerpt:   r.Excerpt,
			Language:  r.Language,
			Timestamp: r.ClippedAt,
		},
		Markdown:           r.Markdown,
		TranslatedMarkdown: r.TranslatedMarkdown,
		HasTranslation:     r.HasTranslation,
		TranslatedAt:       r.TranslatedAt,
		ImageCount:         r.ImageCount,
		CreatedAt:          r.CreatedAt,
	}
}

// GormStore keeps articles and image bytes in PostgreSQL.
type GormStore struct {
	gdb   *gorm.DB
	sqlDB *sql.DB
}

func OpenGormStore(ctx context.Context, databaseURL, logLevel, environment string) (*GormStore, error) {
	gdb, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(resolveGormLogLevel(logLevel, environment)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get gorm sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := gdb.WithContext(ctx).AutoMigrate(autoMigrateModels()...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("gorm auto-migrate models: %w", err)
	}

	return &GormStore{gdb: gdb, sqlDB: sqlDB}, nil
}

func (s *GormStore) SaveArticle(ctx context.Context, article Article) (int64, error) {
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now().UTC()
	}
	if article.Metadata.Timestamp.IsZero() {
		article.Metadata.Timestamp = article.CreatedAt
	}
	article.HasTranslation = article.TranslatedMarkdown != ""

	row := toArticleRow(article)
	row.ID = 0
	if err := s.gdb.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("insert article: %w", err)
	}
	return row.ID, nil
}

func (s *GormStore) GetArticle(ctx context.Context, id int64) (*Article, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	var row articleRow
	err := s.gdb.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load article %d: %w", id, err)
	}
	article := row.article()
	return &article, nil
}

func (s *GormStore) ListArticles(ctx context.Context) ([]Article, error) {
	var rows []articleRow
	if err := s.gdb.WithContext(ctx).Order("clipped_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return rowsToArticles(rows), nil
}

func (s *GormStore) SearchArticles(ctx context.Context, query string) ([]Article, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.ListArticles(ctx)
	}

	pattern := "%" + escapeLike(query) + "%"
	var rows []articleRow
	err := s.gdb.WithContext(ctx).
		Where("title ILIKE ? OR url ILIKE ? OR excerpt ILIKE ?", pattern, pattern, pattern).
		Order("clipped_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	return rowsToArticles(rows), nil
}

func (s *GormStore) DeleteArticle(ctx context.Context, id int64) error {
	if err := validateID(id); err != nil {
		return err
	}

	return s.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("article_id = ?", id).Delete(&imageRow{}).Error; err != nil {
			return fmt.Errorf("delete images for article %d: %w", id, err)
		}
		res := tx.Where("id = ?", id).Delete(&articleRow{})
		if res.Error != nil {
			return fmt.Errorf("delete article %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrArticleNotFound
		}
		return nil
	})
}

func (s *GormStore) SaveImage(ctx context.Context, image Image) (int64, error) {
	if err := validateID(image.ArticleID); err != nil {
		return 0, err
	}

	row := imageRow{
		ArticleID:   image.ArticleID,
		OriginalURL: image.OriginalURL,
		LocalPath:   image.LocalPath,
		MimeType:    image.MimeType,
		Data:        image.Data,
	}
	if err := s.gdb.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("insert image: %w", err)
	}
	return row.ID, nil
}

func (s *GormStore) GetArticleImages(ctx context.Context, articleID int64) ([]Image, error) {
	if err := validateID(articleID); err != nil {
		return nil, err
	}

	var rows []imageRow
	if err := s.gdb.WithContext(ctx).Where("article_id = ?", articleID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load images for article %d: %w", articleID, err)
	}

	images := make([]Image, 0, len(rows))
	for _, row := range rows {
		images = append(images, Image{
			ID:          row.ID,
			ArticleID:   row.ArticleID,
			OriginalURL: row.OriginalURL,
			LocalPath:   row.LocalPath,
			MimeType:    row.MimeType,
			Data:        row.Data,
		})
	}
	return images, nil
}

func (s *GormStore) SaveTranslation(ctx context.Context, id int64, translatedMarkdown string, at time.Time) error {
	if err := validateID(id); err != nil {
		return err
	}

	translatedAt := at.UTC()
	res := s.gdb.WithContext(ctx).Model(&articleRow{}).Where("id = ?", id).Updates(map[string]any{
		"translated_markdown": translatedMarkdown,
		"has_translation":     true,
		"translated_at":       translatedAt,
	})
	if res.Error != nil {
		return fmt.Errorf("save translation for article %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrArticleNotFound
	}
	return nil
}

func (s *GormStore) Stats(ctx context.Context) (Stats, error) {
	var rows []articleRow
	err := s.gdb.WithContext(ctx).
		Select("id", "clipped_at", "has_translation", "image_count").
		Find(&rows).Error
	if err != nil {
		return Stats{}, fmt.Errorf("load article stats: %w", err)
	}
	return computeStats(rowsToArticles(rows)), nil
}

func (s *GormStore) ClearAll(ctx context.Context) error {
	return s.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&imageRow{}).Error; err != nil {
			return fmt.Errorf("clear images: %w", err)
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&articleRow{}).Error; err != nil {
			return fmt.Errorf("clear articles: %w", err)
		}
		return nil
	})
}

func (s *GormStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func rowsToArticles(rows []articleRow) []Article {
	articles := make([]Article, 0, len(rows))
	for _, row := range rows {
		articles = append(articles, row.article())
	}
	return articles
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func resolveGormLogLevel(appLogLevel, environment string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(appLogLevel)) {
	case "trace", "debug":
		return logger.Info
	case "warn", "warning", "info", "":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent", "disabled":
		return logger.Silent
	default:
		if strings.EqualFold(strings.TrimSpace(environment), "local") {
			return logger.Warn
		}
		return logger.Error
	}
}
