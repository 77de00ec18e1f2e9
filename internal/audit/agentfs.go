package audit

/*
Журнал консоли, неблокирующий сбор событий мутаций, запусков и сессий.

- Log никогда не блокирует вызывающего: событие уходит в буферизованный канал,
  при переполнении оно сбрасывается в лог (load shedding).
- Воркер пишет пачками в Storage по таймеру или по заполнению пачки.
- Stop закрывает вход и дожидается финального сброса (drain).
- Последние события держатся в памяти для экрана аудита.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Storage определяет, куда физически сохраняются события
type Storage interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []Event) error
}

type Auditor interface {
	Log(event Event)
}

type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	RecentSize    int // Сколько последних событий держать в памяти
}

func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = 10000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 500 * time.Millisecond
	}
	if o.RecentSize <= 0 {
		o.RecentSize = 500
	}
	return o
}

type Journal struct {
	ch     chan Event
	repo   Storage
	opts   Options
	logger *zap.Logger
	wg     sync.WaitGroup

	isClosed int32 // 0 - открыт, 1 - закрыт

	recentMu sync.RWMutex
	recent   []Event // Кольцевой буфер
	next     int
	full     bool

	onFill func(n int) // Метрика заполненности буфера
}

func NewJournal(repo Storage, opts Options, logger *zap.Logger) *Journal {
	opts = opts.withDefaults()
	return &Journal{
		ch:     make(chan Event, opts.BufferSize),
		repo:   repo,
		opts:   opts,
		logger: logger.With(zap.String("mod", "journal")),
		recent: make([]Event, opts.RecentSize),
	}
}

// OnBufferFill подключает наблюдателя за backpressure (gauge в Prometheus).
func (j *Journal) OnBufferFill(fn func(n int)) {
	j.onFill = fn
}

func (j *Journal) Start() {
	j.wg.Add(1)
	go j.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (j *Journal) Stop() {
	if !atomic.CompareAndSwapInt32(&j.isClosed, 0, 1) {
		return
	}

	// Даем текущим Log проскочить
	time.Sleep(10 * time.Millisecond)

	j.logger.Info("stopping journal: closing channel and flushing buffer...")
	close(j.ch)
	j.wg.Wait()
	j.logger.Info("journal stopped gracefully")
}

func (j *Journal) Log(event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// В память кладем всегда, даже если персистентный канал уже закрыт
	j.remember(event)

	if atomic.LoadInt32(&j.isClosed) == 1 {
		j.logger.Warn("audit event dropped: journal is stopping", zap.String("id", event.ID))
		return
	}

	select {
	case j.ch <- event:
		if j.onFill != nil {
			j.onFill(len(j.ch))
		}
	default:
		// Backpressure: не блокируем hot path, оставляем след в логе
		j.logger.Error("audit_buffer_overflow",
			zap.String("action", event.Action),
			zap.String("entity_id", event.EntityID),
			zap.String("trace_id", event.TraceID),
		)
	}
}

func (j *Journal) remember(e Event) {
	j.recentMu.Lock()
	defer j.recentMu.Unlock()

	j.recent[j.next] = e
	j.next = (j.next + 1) % len(j.recent)
	if j.next == 0 {
		j.full = true
	}
}

// FetchEvents отдает последние события из памяти, новые первыми.
func (j *Journal) FetchEvents(_ context.Context, f Filter) ([]Event, error) {
	j.recentMu.RLock()
	defer j.recentMu.RUnlock()

	n := j.next
	if j.full {
		n = len(j.recent)
	}
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		idx := (j.next - 1 - i + len(j.recent)) % len(j.recent)
		e := j.recent[idx]
		if !f.Match(e) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (j *Journal) worker() {
	defer j.wg.Done()

	batch := make([]Event, 0, j.opts.BatchSize)
	ticker := time.NewTicker(j.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: основной контекст может быть уже закрыт
		if err := j.repo.WriteBatch(context.Background(), batch); err != nil {
			j.logger.Error("audit flush failed", zap.Int("events", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
		if j.onFill != nil {
			j.onFill(len(j.ch))
		}
	}

	for {
		select {
		case event, ok := <-j.ch:
			if !ok {
				// Канал закрыт в Stop(): остатки уже вычитаны, делаем финальный сброс
				flush()
				j.logger.Info("journal worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= j.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
