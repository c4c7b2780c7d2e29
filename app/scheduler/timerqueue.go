package scheduler

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Kind distinguishes the three timer classes the queue supports.
type Kind string

const (
	KindCron     Kind = "cron"
	KindInterval Kind = "interval"
	KindOneShot  Kind = "one-shot"
)

// Handler is one scheduled job body. Handlers run inside a failure boundary:
// a panic or error is logged and the timer stays registered.
type Handler func(ctx context.Context) error

// Entry is one scheduled timer in the queue.
type Entry struct {
	ID       string
	Kind     Kind
	NextFire time.Time

	interval time.Duration
	weekday  time.Weekday
	hour     int
	minute   int
	loc      *time.Location

	handler Handler
	index   int
}

// JobInfo is the read-only view of a scheduled entry.
type JobInfo struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"kind"`
	NextFire time.Time `json:"next_fire"`
}

type entryHeap []*Entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].NextFire.Before(h[j].NextFire) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *entryHeap) Push(x interface{}) { e := x.(*Entry); e.index = len(*h); *h = append(*h, e) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// TimerQueue is a priority queue of next-fire timestamps driven by a single
// event loop. Cron and interval entries reschedule themselves after firing;
// one-shot entries are removed. The optional one-shot hook runs on every add
// and remove of a one-shot entry, giving the owner a durable-state seam.
type TimerQueue struct {
	mu      sync.Mutex
	entries entryHeap
	byID    map[string]*Entry
	wake    chan struct{}

	// onOneShot is called with active=true when a one-shot entry is added
	// and active=false when it fires or is cancelled.
	onOneShot func(id string, active bool)

	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTimerQueue() *TimerQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &TimerQueue{
		byID:   map[string]*Entry{},
		wake:   make(chan struct{}, 1),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetOneShotHook registers the one-shot add/remove callback. Must be set
// before Start.
func (q *TimerQueue) SetOneShotHook(hook func(id string, active bool)) {
	q.onOneShot = hook
}

// AddCron schedules a weekly job at the given local weekday and time.
func (q *TimerQueue) AddCron(id string, weekday time.Weekday, hour, minute int, loc *time.Location, handler Handler) {
	if loc == nil {
		loc = time.UTC
	}
	entry := &Entry{
		ID:      id,
		Kind:    KindCron,
		weekday: weekday,
		hour:    hour,
		minute:  minute,
		loc:     loc,
		handler: handler,
	}
	entry.NextFire = nextCronFire(q.now(), weekday, hour, minute, loc)
	q.add(entry)
}

// AddInterval schedules a recurring job. The first firing is delayed by
// startOffset from now; subsequent firings repeat every interval.
func (q *TimerQueue) AddInterval(id string, interval, startOffset time.Duration, handler Handler) {
	entry := &Entry{
		ID:       id,
		Kind:     KindInterval,
		interval: interval,
		handler:  handler,
		NextFire: q.now().Add(startOffset),
	}
	q.add(entry)
}

// AddOneShot schedules a job to fire once at the given time, replacing any
// existing one-shot entry with the same id.
func (q *TimerQueue) AddOneShot(id string, at time.Time, handler Handler) {
	q.mu.Lock()
	if existing, ok := q.byID[id]; ok {
		heap.Remove(&q.entries, existing.index)
		delete(q.byID, id)
	}
	entry := &Entry{
		ID:       id,
		Kind:     KindOneShot,
		NextFire: at,
		handler:  handler,
	}
	heap.Push(&q.entries, entry)
	q.byID[id] = entry
	q.mu.Unlock()

	if q.onOneShot != nil {
		q.onOneShot(id, true)
	}
	q.poke()
}

// Cancel removes an entry before it fires. It reports whether the entry
// existed.
func (q *TimerQueue) Cancel(id string) bool {
	q.mu.Lock()
	entry, ok := q.byID[id]
	if ok {
		heap.Remove(&q.entries, entry.index)
		delete(q.byID, id)
	}
	q.mu.Unlock()

	if ok && entry.Kind == KindOneShot && q.onOneShot != nil {
		q.onOneShot(id, false)
	}
	if ok {
		q.poke()
	}
	return ok
}

// Jobs returns the queued entries ordered by next fire time.
func (q *TimerQueue) Jobs() []JobInfo {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := make([]JobInfo, 0, len(q.entries))
	for _, entry := range q.entries {
		jobs = append(jobs, JobInfo{ID: entry.ID, Kind: entry.Kind, NextFire: entry.NextFire})
	}
	for i := 0; i < len(jobs); i++ {
		for j := i + 1; j < len(jobs); j++ {
			if jobs[j].NextFire.Before(jobs[i].NextFire) {
				jobs[i], jobs[j] = jobs[j], jobs[i]
			}
		}
	}
	return jobs
}

// Has reports whether an entry with the given id is queued.
func (q *TimerQueue) Has(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byID[id]
	return ok
}

func (q *TimerQueue) Start() {
	q.wg.Add(1)
	go q.loop()
}

func (q *TimerQueue) Stop() {
	q.cancel()
	q.wg.Wait()
}

func (q *TimerQueue) add(entry *Entry) {
	q.mu.Lock()
	if existing, ok := q.byID[entry.ID]; ok {
		heap.Remove(&q.entries, existing.index)
	}
	heap.Push(&q.entries, entry)
	q.byID[entry.ID] = entry
	q.mu.Unlock()
	q.poke()
}

func (q *TimerQueue) poke() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *TimerQueue) loop() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		var wait time.Duration
		if len(q.entries) == 0 {
			wait = time.Hour
		} else {
			wait = q.entries[0].NextFire.Sub(q.now())
			if wait < 0 {
				wait = 0
			}
		}
		q.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-q.ctx.Done():
			timer.Stop()
			return
		case <-q.wake:
			timer.Stop()
			continue
		case <-timer.C:
			q.fireDue()
		}
	}
}

// fireDue pops and runs every entry whose fire time has passed. Jobs run on
// the event-loop goroutine; recurring entries are rescheduled before the
// handler runs so a slow job cannot lose its timer.
func (q *TimerQueue) fireDue() {
	for {
		q.mu.Lock()
		if len(q.entries) == 0 || q.entries[0].NextFire.After(q.now()) {
			q.mu.Unlock()
			return
		}

		entry := heap.Pop(&q.entries).(*Entry)
		switch entry.Kind {
		case KindCron:
			entry.NextFire = nextCronFire(q.now(), entry.weekday, entry.hour, entry.minute, entry.loc)
			heap.Push(&q.entries, entry)
		case KindInterval:
			entry.NextFire = q.now().Add(entry.interval)
			heap.Push(&q.entries, entry)
		case KindOneShot:
			delete(q.byID, entry.ID)
		}
		q.mu.Unlock()

		if entry.Kind == KindOneShot && q.onOneShot != nil {
			q.onOneShot(entry.ID, false)
		}

		q.runJob(entry)
	}
}

func (q *TimerQueue) runJob(entry *Entry) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Scheduled job panicked", "job", entry.ID, "panic", rec)
		}
	}()

	slog.Debug("Running scheduled job", "job", entry.ID, "kind", entry.Kind)
	if err := entry.handler(q.ctx); err != nil {
		slog.Error("Scheduled job failed", "job", entry.ID, "error", err)
	}
}

// nextCronFire finds the next weekly occurrence of weekday at hour:minute in
// loc, strictly after now.
func nextCronFire(now time.Time, weekday time.Weekday, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)

	days := (int(weekday) - int(local.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, days)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}
