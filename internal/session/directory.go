package session

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rickgao/podsync/internal/api"
)

// ErrUnknownPod is returned for a pod with no active session.
var ErrUnknownPod = errors.New("unknown pod")

type podEntry struct {
	client *api.Client
	userID string
}

// Directory maps pod ids to the resources of their active session.
type Directory struct {
	mu   sync.RWMutex
	pods map[string]*podEntry
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{pods: make(map[string]*podEntry)}
}

// Client returns the authenticated REST client of pod.
func (d *Directory) Client(pod string) (*api.Client, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.pods[pod]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPod, pod)
	}
	return e.client, nil
}

// CurrentUser returns the id of the logged-in user on pod, "" before READY.
func (d *Directory) CurrentUser(pod string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if e, ok := d.pods[pod]; ok {
		return e.userID
	}
	return ""
}

// Pods returns the registered pod ids, sorted.
func (d *Directory) Pods() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, 0, len(d.pods))
	for id := range d.pods {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (d *Directory) register(pod string, client *api.Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pods[pod] = &podEntry{client: client}
}

func (d *Directory) setUser(pod, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.pods[pod]; ok {
		e.userID = userID
	}
}

func (d *Directory) remove(pod string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pods, pod)
}
