//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/salita/internal/adapter/connectrpc"
	"github.com/eslsoft/salita/internal/adapter/repository"
	"github.com/eslsoft/salita/internal/infrastructure/config"
	"github.com/eslsoft/salita/internal/infrastructure/database"
	"github.com/eslsoft/salita/internal/infrastructure/server"
	"github.com/eslsoft/salita/internal/usecase"
)

var configSet = wire.NewSet(
	config.Load,
)

var databaseSet = wire.NewSet(
	database.NewProgressStore,
	database.NewProgressFeed,
)

var repositorySet = wire.NewSet(
	ProvideCatalog,
	repository.NewContentRepository,
)

var usecaseSet = wire.NewSet(
	ProvideQuizEngine,
	ProvideAchievementEvaluator,
	ProvideSessionRegistry,
	usecase.NewLearningUsecase,
)

var serviceSet = wire.NewSet(
	connectrpc.NewLearningServiceServer,
)

var serverSet = wire.NewSet(
	server.NewLogger,
	wire.Bind(new(logrus.FieldLogger), new(*logrus.Logger)),
	server.NewServer,
)

// Initialize builds the application container using Wire.
func Initialize() (*Container, func(), error) {
	wire.Build(
		configSet,
		databaseSet,
		repositorySet,
		usecaseSet,
		serviceSet,
		serverSet,
		wire.Struct(new(Container), "*"),
	)
	return nil, nil, nil
}
