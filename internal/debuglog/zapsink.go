package debuglog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapUiOps adapts a *zap.Logger into the UiOps surface, for embedders that
// already run a structured-logging pipeline (go.uber.org/zap) and want the
// core's diagnostics folded into it instead of a bare stderr writer.
func ZapUiOps(logger *zap.Logger) UiOps {
	return UiOps{
		Print: func(level Level, category, message string) {
			l := logger.With(zap.String("category", category))
			switch level {
			case LevelMisc, LevelAll:
				l.Debug(message)
			case LevelInfo:
				l.Info(message)
			case LevelWarning:
				l.Warn(message)
			case LevelError:
				l.Error(message)
			case LevelFatal:
				l.Error(message, zap.Bool("fatal", true))
			default:
				l.Info(message)
			}
		},
		IsEnabled: func(level Level, _ string) bool {
			return logger.Core().Enabled(zapLevel(level))
		},
	}
}

func zapLevel(level Level) zapcore.Level {
	switch level {
	case LevelMisc, LevelAll:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarning:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
