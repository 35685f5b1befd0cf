package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"mdclip/internal/store"
	"mdclip/internal/translate"
)

// handleMessage answers one panel action. Invalid messages get 400; a valid
// action that fails is answered with 200 and success=false, which is how the
// panel expects action errors to arrive.
func (s *Server) handleMessage(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return fail(c, http.StatusBadRequest, "could not read request body", nil)
	}

	msg, err := decodeMessage(raw)
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error(), nil)
	}

	ctx := c.Request().Context()
	log := s.logger.With().Str("action", msg.Action).Logger()
	log.Debug().Msg("message received")

	switch msg.Action {
	case "saveArticle":
		id, autoTranslate, err := s.svc.SaveArticle(ctx, msg.URL)
		if err != nil {
			log.Error().Err(err).Str("url", msg.URL).Msg("save article failed")
			return actionFailed(c, err)
		}
		if autoTranslate {
			s.translateInBackground(id)
		}
		return success(c, map[string]any{"articleId": id, "autoTranslate": autoTranslate})

	case "translateArticle":
		result, err := s.svc.Translate(ctx, msg.ArticleID)
		if err != nil {
			return actionFailed(c, err)
		}
		return success(c, map[string]any{
			"translation": map[string]any{
				"articleId":          result.ArticleID,
				"translatedMarkdown": result.TranslatedMarkdown,
				"originalPreserved":  result.OriginalPreserved,
			},
		})

	case "getArticles":
		articles, err := s.svc.Store().ListArticles(ctx)
		if err != nil {
			log.Error().Err(err).Msg("list articles failed")
			return actionFailed(c, err)
		}
		return success(c, map[string]any{"articles": articles})

	case "getArticle":
		article, err := s.svc.Store().GetArticle(ctx, msg.ArticleID)
		if err != nil {
			return actionFailed(c, err)
		}
		return success(c, map[string]any{"article": article})

	case "deleteArticle":
		if err := s.svc.Store().DeleteArticle(ctx, msg.ArticleID); err != nil {
			return actionFailed(c, err)
		}
		return success(c, map[string]any{"result": true})

	case "searchArticles":
		articles, err := s.svc.Store().SearchArticles(ctx, msg.Query)
		if err != nil {
			log.Error().Err(err).Msg("search articles failed")
			return actionFailed(c, err)
		}
		return success(c, map[string]any{"articles": articles})

	case "getStats":
		stats, err := s.svc.Store().Stats(ctx)
		if err != nil {
			log.Error().Err(err).Msg("stats failed")
			return actionFailed(c, err)
		}
		return success(c, map[string]any{"stats": stats})
	}

	return fail(c, http.StatusBadRequest, "unsupported action", nil)
}

func (s *Server) translateInBackground(id int64) {
	go func() {
		if _, err := s.svc.Translate(s.background, id); err != nil {
			s.logger.Warn().Err(err).Int64("article_id", id).Msg("auto translation failed")
		}
	}()
}

func actionFailed(c echo.Context, err error) error {
	if errors.Is(err, store.ErrArticleNotFound) {
		return fail(c, http.StatusOK, "Article not found", nil)
	}
	if kind := translate.KindOf(err); kind != "" {
		return fail(c, http.StatusOK, translate.UserMessage(err), map[string]any{"errorKind": string(kind)})
	}
	return fail(c, http.StatusOK, err.Error(), nil)
}
