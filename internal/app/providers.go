package app

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/salita/internal/content"
	"github.com/eslsoft/salita/internal/infrastructure/config"
	"github.com/eslsoft/salita/internal/usecase"
)

// ProvideCatalog loads lesson content from content.dir, or the bundled content
// when no directory is configured.
func ProvideCatalog(cfg *config.Config, logger logrus.FieldLogger) (*content.Catalog, error) {
	opts := []content.Option{
		content.WithStrict(cfg.Content.Strict),
		content.WithLogger(logger.WithField("component", "content")),
	}
	var (
		catalog *content.Catalog
		err     error
	)
	if cfg.Content.Dir != "" {
		catalog, err = content.Load(os.DirFS(cfg.Content.Dir), opts...)
	} else {
		catalog, err = content.Default(opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}

	dialects, lessons, questions, achievements := catalog.Stats()
	logger.WithFields(logrus.Fields{
		"dialects":     dialects,
		"lessons":      lessons,
		"questions":    questions,
		"achievements": achievements,
	}).Info("content loaded")
	return catalog, nil
}

// ProvideQuizEngine builds the quiz engine from learning.* settings.
func ProvideQuizEngine(cfg *config.Config) *usecase.QuizEngine {
	quizCfg := usecase.DefaultQuizConfig()
	quizCfg.ShuffleOptions = cfg.Learning.ShuffleOptions
	if cfg.Learning.MaxAttempts > 0 {
		quizCfg.MaxAttempts = cfg.Learning.MaxAttempts
	}
	if cfg.Learning.SessionSize > 0 {
		quizCfg.SessionSize = cfg.Learning.SessionSize
	}
	return usecase.NewQuizEngine(quizCfg, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// ProvideAchievementEvaluator compiles the catalog's achievement definitions.
func ProvideAchievementEvaluator(cfg *config.Config, catalog *content.Catalog) (*usecase.AchievementEvaluator, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return usecase.NewAchievementEvaluator(catalog.Achievements(), loc)
}

// ProvideSessionRegistry keeps lesson flows for learning.session_ttl.
func ProvideSessionRegistry(cfg *config.Config) *usecase.SessionRegistry {
	return usecase.NewSessionRegistry(cfg.Learning.SessionTTL, time.Now)
}
