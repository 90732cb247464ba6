package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cirruslabs/imagecache/internal/command"
	"github.com/cirruslabs/imagecache/internal/logginglevel"
	"go.uber.org/zap"
)

func main() {
	if !mainImpl() {
		os.Exit(1)
	}
}

func mainImpl() bool {
	// Set up signal interruptible context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize logger
	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = logginglevel.Level

	logger, err := loggerConfig.Build()
	if err != nil {
		log.Println(err)

		return false
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Replace zap.L() and zap.S() to avoid
	// propagating the *zap.Logger by hand
	zap.ReplaceGlobals(logger)

	if err := command.NewRootCommand().ExecuteContext(ctx); err != nil {
		logger.Sugar().Error(err)

		return false
	}

	return true
}
