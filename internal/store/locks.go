package store

import (
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Locks отмечает сущности, по которым уже выполняется изменяющий вызов.
// Один реестр делят координатор заказов и корзина, поэтому заказ нельзя
// завершить, пока корзина его удаляет или восстанавливает.
type Locks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocks создаёт пустой реестр.
func NewLocks() *Locks {
	return &Locks{held: make(map[string]struct{})}
}

// EntityLockKey строит ключ блокировки сущности.
func EntityLockKey(kind domain.EntityKind, id string) string {
	return string(kind) + "/" + id
}

// Acquire занимает ключ. Если он занят, возвращается domain.ErrMutationInFlight.
func (l *Locks) Acquire(key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[key]; busy {
		return nil, domain.ErrMutationInFlight
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

// Held сообщает, занят ли ключ.
func (l *Locks) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}
