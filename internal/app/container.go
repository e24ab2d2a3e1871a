package app

import (
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/salita/internal/content"
	"github.com/eslsoft/salita/internal/infrastructure/config"
	"github.com/eslsoft/salita/internal/infrastructure/server"
	"github.com/eslsoft/salita/internal/repository"
	"github.com/eslsoft/salita/internal/usecase"
)

// Container aggregates the application dependencies produced by Wire.
type Container struct {
	Config   *config.Config
	Logger   *logrus.Logger
	Catalog  *content.Catalog
	Content  repository.ContentRepository
	Store    repository.ProgressStore
	Learning usecase.LearningUsecase
	Server   *server.Server
}
