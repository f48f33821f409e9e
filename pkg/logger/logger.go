package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	myLogger *zap.Logger
	mutex    sync.Mutex
)

func Init(level string) error {
	mutex.Lock()
	defer mutex.Unlock()

	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}

	myLogger = l
	return nil
}

func Sugar() *zap.SugaredLogger {
	mutex.Lock()
	defer mutex.Unlock()
	if myLogger == nil {
		myLogger, _ = zap.NewProduction(zap.AddCallerSkip(1))
	}
	return myLogger.Sugar()
}

func Sync() {
	mutex.Lock()
	defer mutex.Unlock()
	if myLogger != nil {
		_ = myLogger.Sync() //nolint
	}
}
