package event

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wms/shopsync/internal/domain/shared"
)

// TaskRegistry maps task types to the handler that runs them.
// Each task type has exactly one handler.
type TaskRegistry struct {
	mu       sync.RWMutex
	handlers map[string]shared.TaskHandler
}

// NewTaskRegistry creates an empty task registry
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{
		handlers: make(map[string]shared.TaskHandler),
	}
}

// Register binds handler to every task type it reports.
// Registering a second handler for a task type is an error.
func (r *TaskRegistry) Register(handler shared.TaskHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	types := handler.TaskTypes()
	if len(types) == 0 {
		return fmt.Errorf("handler %T declares no task types", handler)
	}
	for _, taskType := range types {
		if _, exists := r.handlers[taskType]; exists {
			return fmt.Errorf("task type %q already has a handler", taskType)
		}
	}
	for _, taskType := range types {
		r.handlers[taskType] = handler
	}
	return nil
}

// MustRegister is Register that panics on error, for startup wiring
func (r *TaskRegistry) MustRegister(handlers ...shared.TaskHandler) {
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			panic(err)
		}
	}
}

// Handler returns the handler for taskType
func (r *TaskRegistry) Handler(taskType string) (shared.TaskHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[taskType]
	return h, ok
}

// TaskTypes returns every registered task type, sorted
func (r *TaskRegistry) TaskTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
