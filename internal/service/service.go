// Package service chứa logic nghiệp vụ cốt lõi: xác minh mã QR, vòng đời pickup và thông báo.
// Mỗi thay đổi được lưu trước, sau đó mới phát sự kiện qua Publisher.
package service

import (
	"context"
	"log/slog"
	"time"

	"safe-pickup-api-server/internal/logging"
	"safe-pickup-api-server/internal/models"
)

// Publisher fans events out to subscribed sessions. Implemented by socket.Hub.
type Publisher interface {
	Publish(ev models.Event)
}

// Clock trả về thời gian hiện tại; test thay bằng đồng hồ cố định.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func opLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	pairs := []any{"service", serviceName, "operation", operation}
	pairs = append(pairs, attrs...)
	return logging.FromContext(ctx, base).With(pairs...)
}

// logOutcome ghi kết quả của một thao tác. Lỗi nghiệp vụ ghi ở mức warn, lỗi khác ở mức error.
func logOutcome(logger *slog.Logger, err error, msg string, attrs ...any) {
	if err == nil {
		logger.Info(msg, attrs...)
		return
	}
	kind := ErrorKind(err)
	attrs = append(attrs, "kind", kind, "error", err)
	if kind == KindUnexpected {
		logger.Error(msg+" failed", attrs...)
		return
	}
	logger.Warn(msg+" rejected", attrs...)
}
