package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Renal37/go-shop-payments/internal/logger"
	"go.uber.org/zap"
)

var (
	ErrJobQueueIsFull = errors.New("очередь заданий заполнена")
	ErrJobQueueClosed = errors.New("очередь заданий закрыта")
)

// Job представляет собой функцию, выполняющуюся в очереди заданий.
type Job func(ctx context.Context)

// JobQueueService фоновая очередь заданий с фиксированным числом воркеров.
// Используется для доставки уведомлений о смене статусов заказов.
type JobQueueService struct {
	jobs    chan Job       // Канал для очереди заданий.
	resume  chan struct{}  // Канал для возобновления выполнения заданий после паузы.
	paused  int32          // Флаг состояния паузы (1 - приостановлено, 0 - активно).
	wg      sync.WaitGroup // Группа ожидания для отслеживания горутин.
	mu      sync.Mutex     // Мьютекс для защиты операций с каналом resume.
	closeMu sync.RWMutex   // Не дает Enqueue писать в уже закрытый канал.
	closing bool
}

// NewJobQueueService создает новый экземпляр JobQueueService.
// Параметры:
// - ctx: контекст для управления временем жизни сервиса.
// - capacity: емкость очереди заданий.
// - workers: количество воркеров, обрабатывающих задания.
func NewJobQueueService(ctx context.Context, capacity, workers int) *JobQueueService {
	service := &JobQueueService{
		jobs:   make(chan Job, capacity),
		resume: make(chan struct{}),
	}
	service.start(ctx, workers)

	return service
}

// start запускает заданное количество воркеров для обработки заданий.
func (jqs *JobQueueService) start(ctx context.Context, workers int) {
	for i := 0; i < workers; i++ {
		jqs.wg.Add(1)

		go func() {
			defer jqs.wg.Done()

			for {
				select {
				case job, ok := <-jqs.jobs:
					if !ok {
						return
					}

					if !jqs.waitResume(ctx) {
						return
					}

					job(ctx)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}

// waitResume блокирует воркер, пока очередь на паузе.
// Возвращает false, если контекст отменен во время ожидания.
func (jqs *JobQueueService) waitResume(ctx context.Context) bool {
	for atomic.LoadInt32(&jqs.paused) == 1 {
		jqs.mu.Lock()
		resume := jqs.resume
		jqs.mu.Unlock()

		// Resume мог сработать между проверкой флага и чтением канала
		if atomic.LoadInt32(&jqs.paused) == 0 {
			return true
		}

		select {
		case <-resume:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// Enqueue добавляет новое задание в очередь без блокировки.
func (jqs *JobQueueService) Enqueue(job Job) error {
	jqs.closeMu.RLock()
	defer jqs.closeMu.RUnlock()

	if jqs.closing {
		return ErrJobQueueClosed
	}

	select {
	case jqs.jobs <- job:
		return nil
	default:
		return ErrJobQueueIsFull
	}
}

// ScheduleJob ставит задание в очередь через delay.
func (jqs *JobQueueService) ScheduleJob(job Job, delay time.Duration) {
	time.AfterFunc(delay, func() {
		if err := jqs.Enqueue(job); err != nil {
			logger.Log.Warn("failed to schedule job", zap.Duration("delay", delay), zap.Error(err))
		}
	})
}

// Pause приостанавливает выполнение заданий.
func (jqs *JobQueueService) Pause() {
	atomic.StoreInt32(&jqs.paused, 1)
}

// Resume возобновляет выполнение заданий после паузы.
func (jqs *JobQueueService) Resume() {
	jqs.mu.Lock()
	defer jqs.mu.Unlock()

	if atomic.CompareAndSwapInt32(&jqs.paused, 1, 0) {
		// Закрытие текущего канала resume освобождает ожидающих воркеров
		close(jqs.resume)
		jqs.resume = make(chan struct{})
	}
}

// PauseAndResume приостанавливает выполнение заданий на заданный промежуток времени, а затем возобновляет.
func (jqs *JobQueueService) PauseAndResume(delay time.Duration) {
	jqs.Pause()
	time.AfterFunc(delay, jqs.Resume)
}

// Shutdown закрывает очередь и ждет, пока воркеры выполнят уже принятые задания.
func (jqs *JobQueueService) Shutdown() {
	jqs.closeMu.Lock()
	if jqs.closing {
		jqs.closeMu.Unlock()
		return
	}
	jqs.closing = true
	close(jqs.jobs)
	jqs.closeMu.Unlock()

	jqs.Resume()
	jqs.wg.Wait()
}
