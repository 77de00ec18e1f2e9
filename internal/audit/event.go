package audit

import "time"

// Виды событий журнала
const (
	KindMutation = "mutation" // Изменение агентов через бэкенд
	KindRun      = "run"      // Переходы жизненного цикла запуска
	KindSession  = "session"  // Вход/выход/истечение сессии
	KindCatalog  = "catalog"  // Установка способностей
)

// Статусы событий
const (
	StatusSuccess    = "SUCCESS"
	StatusFailed     = "FAILED"
	StatusRolledBack = "ROLLED_BACK" // Оптимистичное изменение откачено
	StatusDiscarded  = "DISCARDED"   // Ответ устарел и отброшен
	StatusRejected   = "REJECTED"    // Отклонено локальной валидацией
)

type Event struct {
	ID       string         `json:"id"`        // UUID события
	TraceID  string         `json:"trace_id"`  // Сквозной ID запроса
	Kind     string         `json:"kind"`      // mutation, run, session, catalog
	Action   string         `json:"action"`    // deploy_agent, run.completed, ...
	EntityID string         `json:"entity_id"` // Агент, запуск или пользователь
	ActorID  string         `json:"actor_id"`  // Кто инициировал
	Payload  map[string]any `json:"payload"`   // Детали операции

	// Результат
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Filter: выборка событий для консоли. Пустые поля не фильтруют.
type Filter struct {
	Kind     string
	EntityID string
	Limit    int
}

func (f Filter) Match(e Event) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	return true
}
