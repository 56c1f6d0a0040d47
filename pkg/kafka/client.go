// Package kafka 提供了基于 Kafka 的摄取任务队列。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/panjf2000/ants/v2"
	"github.com/segmentio/kafka-go"

	"docflow-go/internal/config"
	"docflow-go/pkg/log"
	"docflow-go/pkg/tasks"
)

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IngestTask) error
	// Abandon 在任务耗尽投递次数后被调用，用于落库最终失败状态。
	Abandon(ctx context.Context, task tasks.IngestTask, cause error)
}

// Queue 是摄取任务的生产者端。
type Queue struct {
	writer *kafka.Writer
}

// NewQueue 创建一个新的任务队列生产者。
func NewQueue(cfg config.KafkaConfig) *Queue {
	return &Queue{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers),
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Enqueue 将一个摄取任务投递到队列。
func (q *Queue) Enqueue(ctx context.Context, task tasks.IngestTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.FileHash),
		Value: taskBytes,
	})
}

// Close 关闭生产者连接。
func (q *Queue) Close() error {
	return q.writer.Close()
}

// Consumer 是摄取任务的消费者端。
// 通过 ants 协程池限制并发处理数，通过 Redis 计数器限制单任务的投递次数。
type Consumer struct {
	cfg         config.KafkaConfig
	maxAttempts int
	rdb         *redis.Client
	pool        *ants.Pool
	processor   TaskProcessor
}

// NewConsumer 创建一个新的消费者。maxParallelism 是同时处理的任务上限。
func NewConsumer(cfg config.KafkaConfig, maxParallelism, maxAttempts int, rdb *redis.Client, processor TaskProcessor) (*Consumer, error) {
	if maxParallelism <= 0 {
		maxParallelism = 1
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	pool, err := ants.NewPool(maxParallelism)
	if err != nil {
		return nil, fmt.Errorf("创建协程池失败: %w", err)
	}
	return &Consumer{
		cfg:         cfg,
		maxAttempts: maxAttempts,
		rdb:         rdb,
		pool:        pool,
		processor:   processor,
	}, nil
}

// Start 启动消费循环，阻塞直到 ctx 取消。
func (c *Consumer) Start(ctx context.Context) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{c.cfg.Brokers},
		Topic:    c.cfg.Topic,
		GroupID:  c.cfg.GroupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
		c.pool.Release()
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s', 并发上限: %d", c.cfg.Topic, c.pool.Cap())

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者收到退出信号")
				return
			}
			log.Errorf("从 Kafka 读取消息失败: %v", err)
			return
		}

		msg := m
		// Submit 在池满时阻塞，天然形成有界队列
		if err := c.pool.Submit(func() {
			c.handle(ctx, r, msg)
		}); err != nil {
			log.Errorf("提交任务到协程池失败: %v", err)
			return
		}
	}
}

func (c *Consumer) handle(ctx context.Context, r *kafka.Reader, m kafka.Message) {
	log.Infof("收到 Kafka 消息: offset %d", m.Offset)

	var task tasks.IngestTask
	if err := json.Unmarshal(m.Value, &task); err != nil {
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
		// 消息格式错误，直接提交，避免阻塞队列
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交错误消息失败: %v", err)
		}
		return
	}

	log.Infof("开始处理摄取任务: DocumentID=%d, FileHash=%s", task.DocumentID, task.FileHash)
	if err := c.processor.Process(ctx, task); err != nil {
		log.Errorf("处理摄取任务失败: DocumentID=%d, Error: %v", task.DocumentID, err)
		// 使用 Redis 计数失败次数，达到阈值后提交 offset 终止重试
		attemptsKey := fmt.Sprintf("ingest:attempts:%s", task.FileHash)
		attempts, incErr := c.rdb.Incr(ctx, attemptsKey).Result()
		if incErr != nil {
			// Redis 异常时保守处理：不提交 offset，让 Kafka 重试
			log.Errorf("更新任务失败计数出错: %v", incErr)
			return
		}
		_ = c.rdb.Expire(ctx, attemptsKey, 24*time.Hour).Err()
		if attempts >= int64(c.maxAttempts) {
			log.Errorf("摄取任务多次失败(>=%d)，提交 offset 终止重试: DocumentID=%d", c.maxAttempts, task.DocumentID)
			c.processor.Abandon(ctx, task, err)
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
			}
		}
		// attempts 未达阈值时不提交 offset，Kafka 会再次投递
		return
	}

	log.Infof("摄取任务处理成功: DocumentID=%d", task.DocumentID)
	_ = c.rdb.Del(ctx, fmt.Sprintf("ingest:attempts:%s", task.FileHash)).Err()
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}
