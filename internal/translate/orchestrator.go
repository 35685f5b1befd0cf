// Package translate runs the section-by-section translation of one stored
// article: validate, split, translate each section under the shared rate
// limiter, join and persist.
package translate

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mdclip/internal/events"
	"mdclip/internal/glossary"
	"mdclip/internal/provider"
	"mdclip/internal/ratelimit"
	"mdclip/internal/section"
	"mdclip/internal/store"
)

const DefaultSectionDelay = 100 * time.Millisecond

// State is the orchestrator's position in a run. It is only logged.
type State string

const (
	StateIdle        State = "idle"
	StateValidating  State = "validating"
	StateSplitting   State = "splitting"
	StateTranslating State = "translating"
	StateFinalizing  State = "finalizing"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// ArticleStore is the part of the article store a run needs.
type ArticleStore interface {
	GetArticle(ctx context.Context, id int64) (*store.Article, error)
	SaveTranslation(ctx context.Context, id int64, translatedMarkdown string, at time.Time) error
}

type ProviderResolver interface {
	Provider(name string) (provider.Provider, error)
}

type Publisher interface {
	Publish(event events.Event) error
}

// Settings is the user configuration a run is started with.
type Settings struct {
	Enabled          bool
	Provider         string
	APIKey           string
	Model            string
	PromptTemplate   string
	PreserveOriginal bool
	// Glossary terms are added to the prompt and enforced on translated
	// sections. Fallback sections are left as they were.
	Glossary glossary.Terms
}

type SectionResult struct {
	Index          int
	Heading        string
	HasHeading     bool
	TranslatedText string
	UsedFallback   bool
}

type Result struct {
	ArticleID          int64
	TranslatedMarkdown string
	OriginalPreserved  bool
	Sections           []SectionResult
	FallbackCount      int
}

type Orchestrator struct {
	store        ArticleStore
	providers    ProviderResolver
	limiter      *ratelimit.Limiter
	publisher    Publisher
	inflight     *InFlight
	log          zerolog.Logger
	now          func() time.Time
	sectionDelay time.Duration
}

type Option func(*Orchestrator)

func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithSectionDelay sets the pause between sections. Zero disables it.
func WithSectionDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.sectionDelay = d
		}
	}
}

// WithInFlight replaces the per-orchestrator guard, e.g. with one shared
// through lock files.
func WithInFlight(f *InFlight) Option {
	return func(o *Orchestrator) {
		if f != nil {
			o.inflight = f
		}
	}
}

func New(articles ArticleStore, providers ProviderResolver, limiter *ratelimit.Limiter, log zerolog.Logger, opts ...Option) *Orchestrator {
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.DefaultMinuteLimit, ratelimit.DefaultHourLimit)
	}
	o := &Orchestrator{
		store:        articles,
		providers:    providers,
		limiter:      limiter,
		inflight:     NewInFlight(),
		log:          log.With().Str("component", "translate").Logger(),
		now:          time.Now,
		sectionDelay: DefaultSectionDelay,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run translates article articleID. A failed run returns *Error and emits one
// translationFailed event; a successful run emits one progress event per
// section followed by translationComplete.
func (o *Orchestrator) Run(ctx context.Context, articleID int64, settings Settings) (*Result, error) {
	log := o.log.With().Int64("article_id", articleID).Logger()
	o.transition(log, StateValidating)

	if articleID <= 0 {
		return nil, o.fail(log, articleID, newError(KindConfiguration, "invalid article ID", store.ErrInvalidID))
	}
	acquired, err := o.inflight.Acquire(articleID)
	if err != nil {
		return nil, o.fail(log, articleID, newError(KindPersistence, "could not lock the article for translation", err))
	}
	if !acquired {
		log.Warn().Msg("translation already in progress")
		return nil, newError(KindAlreadyRunning, ErrAlreadyRunning.Error(), ErrAlreadyRunning)
	}
	defer o.inflight.Release(articleID)

	p, err := o.validate(settings)
	if err != nil {
		return nil, o.fail(log, articleID, err.(*Error))
	}

	o.transition(log, StateSplitting)
	article, err := o.store.GetArticle(ctx, articleID)
	if errors.Is(err, store.ErrArticleNotFound) {
		return nil, o.fail(log, articleID, newError(KindNotFound, "article not found", err))
	}
	if err != nil {
		return nil, o.fail(log, articleID, newError(KindPersistence, "load article", err))
	}

	sections := section.Split(article.Markdown)
	log.Info().
		Str("provider", p.Name()).
		Int("sections", len(sections)).
		Msg("translation started")

	results := make([]SectionResult, 0, len(sections))
	fallbacks := 0
	for i, sec := range sections {
		o.transition(log, StateTranslating)
		result, err := o.translateSection(ctx, log, p, settings, articleID, i, len(sections), sec)
		if err != nil {
			return nil, o.fail(log, articleID, err.(*Error))
		}
		if result.UsedFallback {
			fallbacks++
		}
		results = append(results, result)

		if i < len(sections)-1 {
			if err := sleepContext(ctx, o.sectionDelay); err != nil {
				return nil, o.fail(log, articleID, newError(KindCanceled, "translation canceled", err))
			}
		}
	}

	o.transition(log, StateFinalizing)
	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.TranslatedText)
	}
	translated := section.Join(texts)

	if err := o.store.SaveTranslation(ctx, articleID, translated, o.now()); err != nil {
		return nil, o.fail(log, articleID, newError(KindPersistence, "failed to save translation", err))
	}

	o.transition(log, StateCompleted)
	log.Info().
		Int("sections", len(results)).
		Int("fallbacks", fallbacks).
		Msg("translation completed")
	o.publish(log, events.Event{
		Action:             events.ActionTranslationComplete,
		ArticleID:          articleID,
		TranslatedMarkdown: translated,
	})

	return &Result{
		ArticleID:          articleID,
		TranslatedMarkdown: translated,
		OriginalPreserved:  settings.PreserveOriginal,
		Sections:           results,
		FallbackCount:      fallbacks,
	}, nil
}

func (o *Orchestrator) validate(settings Settings) (provider.Provider, error) {
	if !settings.Enabled {
		return nil, newError(KindConfiguration,
			"translation is disabled; enable it with `mdclip settings set enable_translation true`", nil)
	}
	p, err := o.providers.Provider(settings.Provider)
	if err != nil {
		return nil, newError(KindConfiguration, "translation provider is not configured", err)
	}
	if strings.TrimSpace(settings.APIKey) == "" {
		return nil, newError(KindConfiguration,
			"API key is not set; add it with `mdclip settings set api_key <key>`", provider.ErrMissingAPIKey)
	}
	if err := provider.ValidateAPIKey(p.KeyRule(), settings.APIKey); err != nil {
		return nil, newError(KindConfiguration, err.Error()+"; check the key with `mdclip settings show`", err)
	}
	return p, nil
}

func (o *Orchestrator) translateSection(
	ctx context.Context,
	log zerolog.Logger,
	p provider.Provider,
	settings Settings,
	articleID int64,
	index int,
	total int,
	sec section.Section,
) (SectionResult, error) {
	if err := ctx.Err(); err != nil {
		return SectionResult{}, newError(KindCanceled, "translation canceled", err)
	}

	decision := o.limiter.CheckAndRecord(o.now())
	if !decision.Allowed {
		log.Warn().
			Int("section", index).
			Int("minute_count", decision.MinuteCount).
			Int("hour_count", decision.HourCount).
			Msg("rate limit denied translation")
		return SectionResult{}, newError(KindRateLimit, decision.Reason, nil)
	}

	result := SectionResult{
		Index:      index,
		Heading:    sec.Heading,
		HasHeading: sec.HasHeading,
	}

	translated, err := p.Translate(ctx, provider.Request{
		APIKey:         settings.APIKey,
		Model:          settings.Model,
		Text:           sec.Content,
		PromptTemplate: settings.Glossary.Template(settings.PromptTemplate),
	})
	switch {
	case err == nil:
		result.TranslatedText = settings.Glossary.Apply(translated)
	case ctx.Err() != nil:
		return SectionResult{}, newError(KindCanceled, "translation canceled", ctx.Err())
	case provider.IsAuth(err):
		log.Error().
			Int("section", index).
			Str("kind", string(provider.KindOf(err))).
			Int("status", statusOf(err)).
			Msg("provider rejected credentials")
		return SectionResult{}, newError(KindAuthentication,
			"authentication with the translation provider failed; check your API key", err)
	default:
		log.Warn().
			Int("section", index).
			Str("kind", string(provider.KindOf(err))).
			Int("status", statusOf(err)).
			Msg("section translation failed, keeping original text")
		result.TranslatedText = sec.Content
		result.UsedFallback = true
	}

	o.publish(log, events.Event{
		Action:    events.ActionSectionComplete,
		ArticleID: articleID,
		Progress: &events.SectionProgress{
			SectionIndex:      index,
			TotalSections:     total,
			TranslatedContent: result.TranslatedText,
			Heading:           sec.Heading,
			HasHeading:        sec.HasHeading,
			Percentage:        Percentage(index, total),
			UsedFallback:      result.UsedFallback,
		},
	})
	return result, nil
}

// Percentage is round((index+1)/total*100).
func Percentage(index, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(index+1) / float64(total) * 100))
}

func (o *Orchestrator) fail(log zerolog.Logger, articleID int64, err *Error) error {
	o.transition(log, StateFailed)
	log.Warn().Str("error_kind", string(err.Kind)).Msg(err.Message)
	o.publish(log, events.Event{
		Action:    events.ActionTranslationFailed,
		ArticleID: articleID,
		Error:     err.Message,
		ErrorKind: string(err.Kind),
	})
	return err
}

func (o *Orchestrator) publish(log zerolog.Logger, event events.Event) {
	if o.publisher == nil {
		return
	}
	err := o.publisher.Publish(event)
	switch {
	case err == nil:
	case errors.Is(err, events.ErrNoListener):
		log.Debug().Str("action", event.Action).Msg("no listener for event")
	default:
		log.Warn().Err(err).Str("action", event.Action).Msg("publish event")
	}
}

func (o *Orchestrator) transition(log zerolog.Logger, state State) {
	log.Debug().Str("state", string(state)).Msg("state transition")
}

func statusOf(err error) int {
	var providerErr *provider.Error
	if errors.As(err, &providerErr) {
		return providerErr.StatusCode
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
