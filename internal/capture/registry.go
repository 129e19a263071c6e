package capture

import "github.com/ParesquiMCSA/AutoWpp/internal/models"

// Registry maps a conversation identity (the transport routing id of the
// sender) to its capture state. It is owned by the single goroutine draining
// the inbound router, which is why it needs no lock; states live for the
// process lifetime and are never shared across workers.
type Registry struct {
	states map[string]*models.ConversationState
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{states: make(map[string]*models.ConversationState)}
}

// Get returns the state for an identity, creating it on first contact.
func (r *Registry) Get(id string) *models.ConversationState {
	state, ok := r.states[id]
	if !ok {
		state = &models.ConversationState{Step: models.StepAwaitingDocument}
		r.states[id] = state
	}
	return state
}

// Len returns how many conversations the registry tracks.
func (r *Registry) Len() int {
	return len(r.states)
}
