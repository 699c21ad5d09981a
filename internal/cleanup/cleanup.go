// Package cleanup maintains the process-global container registry: every
// container/workspace handle created during a run is tracked here so it
// can be torn down on any exit path, normal or not.
package cleanup

import (
	"context"
	"fmt"
	"sync"

	"github.com/wrkflw/wrkflw/internal/runtime"
)

// entry is one tracked container/workspace awaiting cleanup.
type entry struct {
	handle       *runtime.Handle
	rt           runtime.Runtime
	jobID        string
	preserveable bool // true once the combination's last step exited non-zero
}

// Registry is the process-global set of live containers. Safe for
// concurrent use by every job-combination's goroutine.
type Registry struct {
	mu             sync.Mutex
	entries        map[string]*entry
	preserveOnFail bool
}

// NewRegistry builds an empty Registry. preserveOnFail controls whether a
// failed combination's container is left running for inspection instead of
// removed.
func NewRegistry(preserveOnFail bool) *Registry {
	return &Registry{entries: map[string]*entry{}, preserveOnFail: preserveOnFail}
}

// Track registers h as created for jobID, using rt to remove it later.
func (r *Registry) Track(jobID string, rt runtime.Runtime, h *runtime.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[h.ID] = &entry{handle: h, rt: rt, jobID: jobID}
}

// MarkFailed records that a combination's last step exited non-zero, so a
// subsequent Release respects the preserve-on-failure policy instead of
// removing the container.
func (r *Registry) MarkFailed(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.preserveable = true
	}
}

// Release removes the tracked container unless it's marked failed under the
// preserve-on-failure policy, in which case it reports the inspection
// command and leaves it running. Either way the entry is dropped from the
// registry: a preserved container is the user's to clean up by hand.
func (r *Registry) Release(ctx context.Context, id string) (inspectCmd string, err error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	if !ok {
		return "", nil
	}

	if r.preserveOnFail && e.preserveable {
		return inspectCommand(e.rt.Kind(), e.handle.ID), nil
	}
	if err := e.rt.Remove(ctx, e.handle, true); err != nil {
		return "", fmt.Errorf("removing container %s for job %s: %w", e.handle.ID, e.jobID, err)
	}
	return "", nil
}

// ReleaseAll walks every remaining entry and removes it (respecting the
// preserve-on-failure policy), for use on normal process exit, a panic
// recovery, or a user interrupt. Errors from individual removals are
// collected but do not stop the sweep: one stuck container must not hide
// the others from being cleaned up.
func (r *Registry) ReleaseAll(ctx context.Context) []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var messages []string
	for _, id := range ids {
		cmd, err := r.Release(ctx, id)
		switch {
		case err != nil:
			messages = append(messages, err.Error())
		case cmd != "":
			messages = append(messages, cmd)
		}
	}
	return messages
}

// inspectCommand formats the command the user should run to inspect a
// preserved container, naming the wrkflw- prefix so `docker ps` output is
// easy to filter.
func inspectCommand(kind runtime.Kind, id string) string {
	bin := "docker"
	if kind == runtime.KindPodman {
		bin = "podman"
	}
	return fmt.Sprintf("preserved for inspection: %s exec -it %s sh   (list all with: %s ps --filter name=wrkflw-)", bin, id, bin)
}
