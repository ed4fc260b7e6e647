package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newBufferLogger - логгер, пишущий JSON в буфер
func newBufferLogger(buf *bytes.Buffer, level zapcore.Level) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zapcore.EncoderConfig{
			MessageKey: "message",
			LevelKey:   "level",
		}),
		zapcore.AddSync(buf),
		level,
	)
	return NewLogger(zap.New(core))
}

func TestInitLogger_Defaults(t *testing.T) {
	// Пустая конфигурация - значения по умолчанию
	logger := InitLogger(LogConfig{})

	if logger == nil || logger.Logger == nil || logger.sugar == nil {
		t.Fatal("InitLogger returned incomplete logger")
	}
}

func TestInitLogger_Formats(t *testing.T) {
	tests := []LogConfig{
		{Level: "info", Format: "json"},
		{Level: "debug", Format: "text"},
		{Level: "debug", Format: "console", Development: true},
	}

	for _, cfg := range tests {
		t.Run(cfg.Format, func(t *testing.T) {
			if InitLogger(cfg) == nil {
				t.Fatal("InitLogger returned nil")
			}
		})
	}
}

func TestInitLogger_FileOutput(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "logger_test_*.log")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	logger := InitLogger(LogConfig{Level: "info", Format: "json", Output: tmpFile.Name()})
	logger.Info("Test message", zap.String("key", "value"))
	_ = logger.Sync()

	content, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	// Одна запись - валидный JSON
	var entry map[string]interface{}
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Errorf("Log entry is not valid JSON: %v", err)
	}
}

func TestInitLogger_InvalidFileOutput(t *testing.T) {
	// Должен fallback на stderr, не паниковать
	logger := InitLogger(LogConfig{Level: "info", Output: "/nonexistent/directory/log.txt"})
	if logger == nil {
		t.Fatal("InitLogger returned nil for invalid output")
	}
}

func TestGlobalLogger(t *testing.T) {
	globalMu.Lock()
	globalLogger = nil
	globalMu.Unlock()

	logger := GetGlobalLogger()
	if logger == nil {
		t.Fatal("GetGlobalLogger returned nil")
	}
	if GetGlobalLogger() != logger || L() != logger {
		t.Error("global logger is not stable")
	}

	custom := InitLogger(LogConfig{Level: "warn"})
	SetGlobalLogger(custom)
	if GetGlobalLogger() != custom {
		t.Error("SetGlobalLogger did not set the logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"invalid", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLogger_WithHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, zapcore.InfoLevel)

	logger.WithComponent("engine").WithProduct("GMO-BTC").WithRunID("run-1").Info("cycle")
	_ = logger.Sync()

	out := buf.String()
	for _, want := range []string{`"component":"engine"`, `"product":"GMO-BTC"`, `"run_id":"run-1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("field %s not found in %s", want, out)
		}
	}
}

func TestGlobalLoggingFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetGlobalLogger(newBufferLogger(&buf, zapcore.DebugLevel))

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")
	Infof("info %s %d", "test", 2)
	Errorf("error %s %d", "test", 4)

	output := buf.String()
	for _, want := range []string{"debug message", "info message", "warn message", "error message", "info test 2", "error test 4"} {
		if !strings.Contains(output, want) {
			t.Errorf("%q not found in output", want)
		}
	}
}

func TestFieldConstructors(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, zapcore.InfoLevel)

	logger.Info("test",
		Product("GMO-BTC"),
		Phase("Sell"),
		OrderID("GMO-456"),
		Price(25000.5),
		Size(0.0005),
		Side("BUY"),
		State("ACTIVE"),
		Latency(15.5),
		RequestID("req-789"),
		ExchangeName("GMO"),
	)

	output := buf.String()
	expected := []string{
		`"product":"GMO-BTC"`,
		`"phase":"Sell"`,
		`"order_id":"GMO-456"`,
		`"price":25000.5`,
		`"size":0.0005`,
		`"side":"BUY"`,
		`"state":"ACTIVE"`,
		`"latency_ms":15.5`,
		`"request_id":"req-789"`,
		`"exchange":"GMO"`,
	}
	for _, field := range expected {
		if !strings.Contains(output, field) {
			t.Errorf("Field %s not found in output: %s", field, output)
		}
	}
}
