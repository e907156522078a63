package playback

import (
	"github.com/jscyril/playsync/api"
	"github.com/jscyril/playsync/pkg/observable"
	"github.com/samber/mo"
)

// EngineRef is a shared cell holding an optional engine. The owner sets
// and clears it; synchronizers only read it.
type EngineRef struct {
	cell *observable.Value[mo.Option[api.Engine]]
}

// NewEngineRef creates an empty reference
func NewEngineRef() *EngineRef {
	return &EngineRef{cell: observable.NewValue(mo.None[api.Engine]())}
}

// RefTo creates a reference already holding e
func RefTo(e api.Engine) *EngineRef {
	r := NewEngineRef()
	r.Set(e)
	return r
}

// Set stores e. Setting nil clears the reference.
func (r *EngineRef) Set(e api.Engine) {
	if e == nil {
		r.Clear()
		return
	}
	r.cell.Set(mo.Some(e))
}

// Clear empties the reference
func (r *EngineRef) Clear() {
	r.cell.Set(mo.None[api.Engine]())
}

// Get returns the engine if one is present
func (r *EngineRef) Get() mo.Option[api.Engine] {
	return r.cell.Get()
}

// Changes returns a channel receiving each new reference value
func (r *EngineRef) Changes() <-chan mo.Option[api.Engine] {
	return r.cell.Subscribe()
}

// StopChanges releases a channel returned by Changes
func (r *EngineRef) StopChanges(ch <-chan mo.Option[api.Engine]) {
	r.cell.Unsubscribe(ch)
}
