package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"questionnaire_backend/internal/model"
	"questionnaire_backend/pkg/logger"
	"questionnaire_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	markingQueueKey = "marking:jobs"
	popTimeout      = 5 * time.Second
	maxJobAttempts  = 3
)

// Marker executes one marking job.
type Marker interface {
	Mark(sessionID string, schemeID uint) (*model.ResponseSession, error)
}

type markingJob struct {
	SessionID string `json:"session_id"`
	SchemeID  uint   `json:"scheme_id"`
	Attempt   int    `json:"attempt"`
}

// MarkingQueue is a redis-list backed job queue for asynchronous session
// marking. Jobs are pushed with LPUSH and consumed with BRPOP by a single
// worker goroutine; failed jobs are re-enqueued up to maxJobAttempts.
type MarkingQueue struct {
	Redis  *redis.Client
	marker Marker
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewMarkingQueue(rdb *redis.Client, marker Marker) *MarkingQueue {
	l := logger.Log
	if l == nil {
		l = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MarkingQueue{
		Redis:  rdb,
		marker: marker,
		log:    l,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (q *MarkingQueue) Enqueue(ctx context.Context, sessionID string, schemeID uint) error {
	return q.push(ctx, markingJob{SessionID: sessionID, SchemeID: schemeID})
}

func (q *MarkingQueue) push(ctx context.Context, job markingJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.Redis.LPush(ctx, markingQueueKey, payload).Err()
}

// Run consumes jobs until Stop is called. Meant to run as a goroutine.
func (q *MarkingQueue) Run() {
	defer close(q.done)
	q.log.Info("marking queue worker started")
	for {
		select {
		case <-q.ctx.Done():
			q.log.Info("marking queue worker stopped")
			return
		default:
		}

		result, err := q.Redis.BRPop(q.ctx, popTimeout, markingQueueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			q.log.Error("marking queue pop failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		// BRPop returns [key, value]
		if len(result) < 2 {
			continue
		}

		var job markingJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			q.log.Error("dropping malformed marking job", zap.String("payload", result[1]), zap.Error(err))
			monitoring.MarkingJobCounter.WithLabelValues("malformed").Inc()
			continue
		}
		q.process(job)
	}
}

func (q *MarkingQueue) process(job markingJob) {
	start := time.Now()
	_, err := q.marker.Mark(job.SessionID, job.SchemeID)
	monitoring.MarkingJobDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		monitoring.MarkingJobCounter.WithLabelValues("success").Inc()
		q.log.Info("marking job finished",
			zap.String("sessionId", job.SessionID),
			zap.Uint("schemeId", job.SchemeID),
			zap.Duration("took", time.Since(start)))
		return
	}

	job.Attempt++
	if job.Attempt >= maxJobAttempts {
		monitoring.MarkingJobCounter.WithLabelValues("failed").Inc()
		q.log.Error("marking job failed permanently",
			zap.String("sessionId", job.SessionID),
			zap.Uint("schemeId", job.SchemeID),
			zap.Int("attempts", job.Attempt),
			zap.Error(err))
		return
	}

	monitoring.MarkingQueueRetries.Inc()
	q.log.Warn("marking job failed, re-enqueueing",
		zap.String("sessionId", job.SessionID),
		zap.Int("attempt", job.Attempt),
		zap.Error(err))
	if pushErr := q.push(context.Background(), job); pushErr != nil {
		monitoring.MarkingJobCounter.WithLabelValues("failed").Inc()
		q.log.Error("re-enqueue failed, job lost", zap.String("sessionId", job.SessionID), zap.Error(pushErr))
	}
}

// Stop signals the worker and waits for the in-flight job to finish.
func (q *MarkingQueue) Stop() {
	q.cancel()
	<-q.done
}
