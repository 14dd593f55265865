package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu          sync.Mutex
	initialized bool
	logFile     *os.File
	dual        *zap.SugaredLogger
	fileOnly    *zap.SugaredLogger
)

// InitLogger opens a timestamped log file under logs/ and wires a tee core:
// everything goes to the file, Info and above also echo to the console.
func InitLogger() error {
	mu.Lock()
	defer mu.Unlock()

	logDir := "logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(logDir, fmt.Sprintf("forge_%s.log", timestamp))

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logFile = f

	fileEncoderCfg := zap.NewProductionEncoderConfig()
	fileEncoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	fileCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(fileEncoderCfg),
		zapcore.AddSync(f),
		zapcore.DebugLevel,
	)

	consoleEncoderCfg := zap.NewDevelopmentEncoderConfig()
	consoleEncoderCfg.EncodeTime = nil
	consoleEncoderCfg.EncodeCaller = nil
	consoleEncoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoderCfg),
		zapcore.Lock(os.Stdout),
		zapcore.InfoLevel,
	)

	dual = zap.New(zapcore.NewTee(fileCore, consoleCore), zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
	fileOnly = zap.New(fileCore, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
	initialized = true

	fmt.Printf("Log file created: %s\n", logPath)
	return nil
}

func Close() {
	mu.Lock()
	defer mu.Unlock()

	if dual != nil {
		_ = dual.Sync()
	}
	if logFile != nil {
		logFile.Close()
	}
	initialized = false
}

// InfoFileOnly records progress detail that would flood the console.
func InfoFileOnly(format string, v ...interface{}) {
	if !initialized {
		return
	}
	fileOnly.Infof(format, v...)
}

func Info(format string, v ...interface{}) {
	if !initialized {
		fmt.Printf("[INFO] "+format+"\n", v...)
		return
	}
	dual.Infof(format, v...)
}

func Debug(format string, v ...interface{}) {
	if !initialized {
		return
	}
	fileOnly.Debugf(format, v...)
}

func Warn(format string, v ...interface{}) {
	if !initialized {
		fmt.Printf("[WARN] "+format+"\n", v...)
		return
	}
	dual.Warnf(format, v...)
}

func Error(format string, v ...interface{}) {
	if !initialized {
		fmt.Printf("[ERROR] "+format+"\n", v...)
		return
	}
	dual.Errorf(format, v...)
}
