package logger

import (
	"go.uber.org/zap"
)

// New 创建 zap 日志，level 取 debug/info/warn/error
func New(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.OutputPaths = []string{"stdout"}

	return cfg.Build()
}
