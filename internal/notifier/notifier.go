// Package notifier is the boundary to the chat platform. The core hands over
// structured reminder data; rendering platform markup happens on the other
// side of this interface.
package notifier

import (
	"context"
	"time"

	"go.uber.org/zap"

	"taskbot/internal/logger"
	"taskbot/internal/models"
)

type Message struct {
	Kind         models.ReminderType
	TaskPublicID string
	Content      string
	Deadline     *time.Time
}

type Notifier interface {
	Send(ctx context.Context, chatID int64, msg Message) error
}

// LogNotifier writes deliveries to the log instead of a chat platform.
// Used by the dev repository type and as a stand-in until a platform
// adapter is wired.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, chatID int64, msg Message) error {
	fields := []zap.Field{
		zap.Int64("chat_id", chatID),
		zap.String("kind", string(msg.Kind)),
		zap.String("task", msg.TaskPublicID),
		zap.String("content", msg.Content),
	}
	if msg.Deadline != nil {
		fields = append(fields, zap.Time("deadline", *msg.Deadline))
	}
	logger.Info("Notifier: delivery", fields...)
	return nil
}
