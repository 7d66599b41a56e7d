package logger

import (
	"testing"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseZapLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseZapLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseZapLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, parseZapLevel("Error"))
	// fatal 之类的级别 hertz 没有对应，回落到 INFO
	assert.Equal(t, zapcore.InfoLevel, parseZapLevel("fatal"))
	assert.Equal(t, zapcore.InfoLevel, parseZapLevel("verbose"))
	assert.Equal(t, hlog.LevelWarn, toHlogLevel(zapcore.WarnLevel))
	assert.Equal(t, hlog.LevelInfo, toHlogLevel(zapcore.PanicLevel))
}
