// Package app wires the article store, clipper, providers and translation
// orchestrator into the operations shared by the CLI and the panel server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mdclip/internal/clip"
	"mdclip/internal/config"
	"mdclip/internal/events"
	"mdclip/internal/export"
	"mdclip/internal/fetch"
	"mdclip/internal/glossary"
	"mdclip/internal/images"
	"mdclip/internal/provider"
	"mdclip/internal/ratelimit"
	"mdclip/internal/store"
	"mdclip/internal/translate"
)

const imageWorkers = 4

type App struct {
	cfg        *config.Config
	store      store.Store
	bus        *events.Bus
	translator *translate.Orchestrator
	clipper    *clip.Clipper
	log        zerolog.Logger
	now        func() time.Time

	settingsMu sync.Mutex
}

type Option func(*openOptions)

type openOptions struct {
	httpClient *http.Client
	store      store.Store
	now        func() time.Time
}

// WithHTTPClient replaces the client used for pages, images and providers.
func WithHTTPClient(client *http.Client) Option {
	return func(o *openOptions) { o.httpClient = client }
}

// WithStore uses an already opened store instead of store.Open.
func WithStore(s store.Store) Option {
	return func(o *openOptions) { o.store = s }
}

func WithClock(now func() time.Time) Option {
	return func(o *openOptions) { o.now = now }
}

// Open loads settings and builds every component. The rate limits and the
// section delay are read once here; changing them takes effect on the next
// process start.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	options := openOptions{now: time.Now}
	for _, opt := range opts {
		opt(&options)
	}
	if options.httpClient == nil {
		options.httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	settings, err := config.LoadSettings(cfg.SettingsPath())
	if err != nil {
		return nil, err
	}

	articles := options.store
	if articles == nil {
		articles, err = store.Open(ctx, store.Options{
			DataDir:     cfg.DataDir,
			DatabaseURL: cfg.DatabaseURL,
			LogLevel:    cfg.LogLevel,
			Environment: cfg.Environment,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("open article store: %w", err)
		}
	}

	customBaseURL := strings.TrimSpace(settings.CustomBaseURL)
	if customBaseURL == "" {
		customBaseURL = cfg.CustomBaseURL
	}
	providers := provider.NewDefaultRegistry(provider.Endpoints{
		AnthropicBaseURL: cfg.AnthropicBaseURL,
		GeminiBaseURL:    cfg.GeminiBaseURL,
		CustomBaseURL:    customBaseURL,
	}, options.httpClient)

	bus := events.NewBus()
	translator := translate.New(
		articles,
		providers,
		ratelimit.New(settings.MinuteLimit, settings.HourLimit),
		log,
		translate.WithPublisher(bus),
		translate.WithSectionDelay(settings.SectionDelay),
		translate.WithClock(options.now),
		translate.WithInFlight(translate.NewSharedInFlight(cfg.LockDir())),
	)

	clipper := clip.New(
		fetch.New(options.httpClient, cfg.UserAgent),
		images.NewDownloader(options.httpClient, cfg.UserAgent, imageWorkers),
		articles,
		log.With().Str("component", "clip").Logger(),
	)

	return &App{
		cfg:        cfg,
		store:      articles,
		bus:        bus,
		translator: translator,
		clipper:    clipper,
		log:        log,
		now:        options.now,
	}, nil
}

func (a *App) Store() store.Store { return a.store }

func (a *App) Events() *events.Bus { return a.bus }

func (a *App) Config() *config.Config { return a.cfg }

func (a *App) Close() error {
	return a.store.Close()
}

// Settings reads the settings file.
func (a *App) Settings() (config.Settings, error) {
	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()
	return config.LoadSettings(a.cfg.SettingsPath())
}

// UpdateSettings loads, modifies and saves the settings file under one lock.
func (a *App) UpdateSettings(update func(*config.Settings) error) (config.Settings, error) {
	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()

	settings, err := config.LoadSettings(a.cfg.SettingsPath())
	if err != nil {
		return config.Settings{}, err
	}
	if err := update(&settings); err != nil {
		return config.Settings{}, err
	}
	if err := config.SaveSettings(a.cfg.SettingsPath(), settings); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}

// SaveArticle clips url. autoTranslate reports whether the caller should
// start a translation run for the new article.
func (a *App) SaveArticle(ctx context.Context, url string) (id int64, autoTranslate bool, err error) {
	id, err = a.clipper.Save(ctx, url)
	if err != nil {
		return 0, false, err
	}

	settings, err := a.Settings()
	if err != nil {
		a.log.Warn().Err(err).Msg("settings unavailable; auto translation skipped")
		return id, false, nil
	}
	return id, settings.AutoTranslate && settings.EnableTranslation, nil
}

// Translate runs one translation of article id with the current settings.
// Failures before the run starts are published like any failed run, so
// event listeners always see one terminal event.
func (a *App) Translate(ctx context.Context, id int64) (*translate.Result, error) {
	settings, err := a.Settings()
	if err != nil {
		return nil, a.failBeforeRun(id, &translate.Error{
			Kind:    translate.KindConfiguration,
			Message: "Settings could not be loaded. Check " + a.cfg.SettingsPath() + ".",
			Err:     err,
		})
	}
	runSettings, err := a.TranslationSettings(settings)
	if err != nil {
		return nil, a.failBeforeRun(id, &translate.Error{
			Kind:    translate.KindConfiguration,
			Message: "Glossary could not be loaded. Fix or clear it with `mdclip settings set glossary_file <path>`.",
			Err:     err,
		})
	}
	return a.translator.Run(ctx, id, runSettings)
}

func (a *App) failBeforeRun(id int64, err *translate.Error) error {
	a.log.Warn().Err(err.Err).Int64("article_id", id).Str("error_kind", string(err.Kind)).Msg(err.Message)
	publishErr := a.bus.Publish(events.Event{
		Action:    events.ActionTranslationFailed,
		ArticleID: id,
		Error:     err.Message,
		ErrorKind: string(err.Kind),
	})
	if publishErr != nil && !errors.Is(publishErr, events.ErrNoListener) {
		a.log.Warn().Err(publishErr).Msg("publish event")
	}
	return err
}

// TranslationSettings maps user settings to a run configuration, applying
// environment API key overrides and loading the glossary.
func (a *App) TranslationSettings(settings config.Settings) (translate.Settings, error) {
	terms, err := glossary.Load(settings.GlossaryFile)
	if err != nil {
		return translate.Settings{}, err
	}
	return translate.Settings{
		Enabled:          settings.EnableTranslation,
		Provider:         settings.Provider,
		APIKey:           settings.ResolvedAPIKey(a.cfg),
		Model:            settings.Model,
		PromptTemplate:   settings.PromptTemplate,
		PreserveOriginal: settings.PreserveOriginal,
		Glossary:         terms,
	}, nil
}

// ExportArticle writes the ZIP for article id and returns its download name.
func (a *App) ExportArticle(ctx context.Context, w io.Writer, id int64) (string, error) {
	bundle, err := a.bundle(ctx, id)
	if err != nil {
		return "", err
	}
	opts, err := a.exportOptions()
	if err != nil {
		return "", err
	}
	if err := export.Article(w, bundle, opts); err != nil {
		return "", err
	}
	return export.ArchiveName(bundle.Article), nil
}

// ExportAll writes every stored article, newest first, into one ZIP.
func (a *App) ExportAll(ctx context.Context, w io.Writer) (string, int, error) {
	articles, err := a.store.ListArticles(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("list articles: %w", err)
	}

	bundles := make([]export.Bundle, 0, len(articles))
	for _, article := range articles {
		bundle, err := a.bundle(ctx, article.ID)
		if err != nil {
			return "", 0, err
		}
		bundles = append(bundles, bundle)
	}

	opts, err := a.exportOptions()
	if err != nil {
		return "", 0, err
	}
	if err := export.Articles(w, bundles, opts); err != nil {
		return "", 0, err
	}
	return export.BulkArchiveName(a.now()), len(bundles), nil
}

func (a *App) bundle(ctx context.Context, id int64) (export.Bundle, error) {
	article, err := a.store.GetArticle(ctx, id)
	if err != nil {
		return export.Bundle{}, err
	}
	imgs, err := a.store.GetArticleImages(ctx, id)
	if err != nil {
		return export.Bundle{}, fmt.Errorf("load images for article %d: %w", id, err)
	}
	return export.Bundle{Article: *article, Images: imgs}, nil
}

func (a *App) exportOptions() (export.Options, error) {
	settings, err := a.Settings()
	if err != nil {
		return export.Options{}, err
	}
	return export.Options{IncludeMetadata: settings.IncludeMetadata}, nil
}
