package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxLogSize = 10 * 1024 * 1024

var logFile *os.File

// Init 初始化全局日志：控制台输出，可选同时写入文件
// 文件超过 10MB 时先轮转为 <file>.<unix>。
func Init(level, file string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	if file != "" {
		f, err := openRotated(file)
		if err != nil {
			return err
		}
		Close()
		logFile = f
		out = zerolog.MultiLevelWriter(out, f)
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	log.Info().Str("level", lvl.String()).Str("file", file).Msg("📝 日志已初始化")
	return nil
}

func openRotated(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}
	if info, err := os.Stat(path); err == nil && info.Size() > maxLogSize {
		backup := fmt.Sprintf("%s.%d", path, time.Now().Unix())
		if err := os.Rename(path, backup); err != nil {
			return nil, fmt.Errorf("轮转日志文件失败: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	return f, nil
}

// Close 关闭日志文件
func Close() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// LogPanic 记录 panic 及堆栈
func LogPanic(r any) {
	log.Error().Str("stack", string(debug.Stack())).Msgf("💥 panic: %v", r)
}
