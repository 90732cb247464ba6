package logginglevel

import "go.uber.org/zap"

var Level = zap.NewAtomicLevelAt(zap.InfoLevel)
