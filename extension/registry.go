package extension

import (
	"fmt"
	"sort"
	"sync"
)

// Registry tracks registered extensions and builds the ordered
// composite pipeline from them.
type Registry struct {
	mu sync.RWMutex

	extensions []Extension
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends an extension. Names must be unique.
func (r *Registry) Register(ext Extension) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.extensions {
		if existing.Name() == ext.Name() {
			return fmt.Errorf("vfs: extension '%s' already registered", ext.Name())
		}
	}

	r.extensions = append(r.extensions, ext)
	return nil
}

// Unregister removes the extension with the given name.
// Returns false if no such extension was registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, ext := range r.extensions {
		if ext.Name() == name {
			r.extensions = append(r.extensions[:i], r.extensions[i+1:]...)
			return true
		}
	}

	return false
}

// Build produces a composite over all registered extensions, ordered by
// priority (higher first). A stable sort keeps registration order on ties.
func (r *Registry) Build() *Composite {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ordered := make([]Extension, len(r.extensions))
	copy(ordered, r.extensions)

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() > ordered[j].Priority()
	})

	return NewComposite(ordered)
}
