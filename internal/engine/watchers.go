package engine

import (
	"strings"
	"sync"
	"time"

	"github.com/lawnchairsociety/questbridge/internal/logger"
	"github.com/lawnchairsociety/questbridge/internal/quest"
)

// Watcher kinds in the engine-private side table
const (
	watcherTimer   = "TIMER"
	watcherCollect = "COLLECT"
)

// watcherHandle is a cancelable timer or poll loop. Cancel is safe to call
// more than once.
type watcherHandle struct {
	once   sync.Once
	cancel func()
}

func (h *watcherHandle) stop() {
	h.once.Do(h.cancel)
}

func newTimerWatcher(d time.Duration, fire func()) *watcherHandle {
	t := time.AfterFunc(d, fire)
	return &watcherHandle{cancel: func() { t.Stop() }}
}

func newPollWatcher(interval time.Duration, tick func()) *watcherHandle {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tick()
			case <-stop:
				return
			}
		}
	}()
	return &watcherHandle{cancel: func() { close(stop) }}
}

// attachWatchers wires the TIMER failure condition and the COLLECT poll for
// a quest entering the running state. Callers must hold the engine lock;
// the transition guard in activate ensures this runs at most once per
// instance lifetime.
func (e *Engine) attachWatchers(q *quest.Instance) {
	if t, ok := q.TimerFailure(); ok {
		d := time.Duration(t.Seconds()) * time.Second
		q.SetCounter("deadline", float64(time.Now().Add(d).UnixMilli()))
		e.addWatcher(q.ID, watcherTimer, newTimerWatcher(d, func() { e.failFromWatcher(q.ID, "timer") }))
	}

	if len(q.CollectObjectives()) > 0 {
		id := q.ID
		e.addWatcher(q.ID, watcherCollect, newPollWatcher(e.pollInterval, func() { e.pollCollect(id) }))
		logger.Debug("COLLECT watcher started", "quest", q.ID, "player", q.PlayerName)
	}
}

func (e *Engine) addWatcher(id, kind string, h *watcherHandle) {
	if e.closed {
		h.stop()
		return
	}
	if e.watchers[id] == nil {
		e.watchers[id] = make(map[string]*watcherHandle)
	}
	e.watchers[id][kind] = h
}

func (e *Engine) cancelWatcher(id, kind string) {
	if h, ok := e.watchers[id][kind]; ok {
		h.stop()
		delete(e.watchers[id], kind)
	}
}

func (e *Engine) cancelAllWatchers(id string) {
	for kind, h := range e.watchers[id] {
		h.stop()
		logger.Debug("Watcher cleared", "quest", id, "kind", kind)
	}
	delete(e.watchers, id)
}

// failFromWatcher is the TIMER callback. Errors never escape the scheduler.
func (e *Engine) failFromWatcher(id, reason string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Timer watcher panicked", "quest", id, "panic", r)
		}
	}()
	if err := e.Fail(id, reason); err != nil {
		logger.Error("Timer watcher failed", "quest", id, "error", err)
	}
}

// pollCollect is one COLLECT poll tick: snapshot the inventory outside the
// lock, then recompute progress and transition under it. After a terminal
// state is reached the running guard makes later ticks no-ops; the tick
// that completes every objective cancels the poller itself.
func (e *Engine) pollCollect(id string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("COLLECT watcher panicked", "quest", id, "panic", r)
		}
	}()

	inv := e.agent.GetInventory()

	e.mu.Lock()
	defer e.mu.Unlock()

	q, err := e.load(id)
	if err != nil {
		logger.Error("COLLECT watcher lost its quest", "quest", id, "error", err)
		e.cancelWatcher(id, watcherCollect)
		return
	}
	if q.State != quest.StateRunning {
		return
	}

	allDone := true
	for _, i := range q.CollectObjectives() {
		o := &q.Objectives[i]
		item, _ := o.Params["item"].(string)
		item = strings.TrimPrefix(item, "minecraft:")

		total := 0
		for _, stack := range inv {
			if stack.Name == item {
				total += stack.Count
			}
		}

		if o.Target == 0 {
			if count, ok := o.Params["count"].(int); ok {
				o.Target = count
			} else if count, ok := o.Params["count"].(float64); ok {
				o.Target = int(count)
			} else {
				o.Target = 1
			}
		}
		o.Progress = total
		o.Completed = total >= o.Target
		if !o.Completed {
			allDone = false
		}
		logger.Debug("COLLECT check", "quest", id, "item", item, "have", total, "need", o.Target)
	}

	if err := e.store.Save(q); err != nil {
		logger.Error("Failed to persist COLLECT progress", "quest", id, "error", err)
		return
	}

	if allDone {
		if err := e.terminate(id, quest.StateSuccess, ""); err != nil {
			logger.Error("COLLECT completion failed", "quest", id, "error", err)
		}
	}
}
