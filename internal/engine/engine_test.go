package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lawnchairsociety/questbridge/internal/events"
	"github.com/lawnchairsociety/questbridge/internal/quest"
	"github.com/lawnchairsociety/questbridge/internal/store"
	"github.com/lawnchairsociety/questbridge/internal/world"
)

// fakeAgent is a controllable world agent for watcher tests
type fakeAgent struct {
	mu        sync.Mutex
	inventory []world.ItemStack
	said      []string
}

func (f *fakeAgent) setInventory(items ...world.ItemStack) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inventory = items
}

func (f *fakeAgent) GetInventory() []world.ItemStack {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]world.ItemStack, len(f.inventory))
	copy(out, f.inventory)
	return out
}

func (f *fakeAgent) Say(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.said = append(f.said, text)
	return nil
}

func (f *fakeAgent) RunCommand(cmd string, timeout time.Duration) (world.CommandResult, error) {
	return world.CommandResult{OK: true}, nil
}

func (f *fakeAgent) GiveItem(player, itemID string, count int, enchants []world.Enchant) (world.GiveResult, error) {
	return world.GiveResult{OK: true}, nil
}

func (f *fakeAgent) GetStatus() world.Status           { return world.Status{Health: 20, Food: 20} }
func (f *fakeAgent) GetPosition() (world.Position, bool) { return world.Position{}, true }
func (f *fakeAgent) NearbyPlayers() []string           { return []string{"Ann"} }

// recorder collects bus events for assertions
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) record(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Name == name {
			n++
		}
	}
	return n
}

func (r *recorder) last(name string) (events.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Name == name {
			return r.events[i], true
		}
	}
	return events.Event{}, false
}

func newTestEngine(t *testing.T, poll time.Duration) (*Engine, *fakeAgent, *recorder) {
	t.Helper()
	agent := &fakeAgent{}
	rec := &recorder{}
	bus := events.NewMemoryBus()
	bus.Subscribe(rec.record)
	e := NewEngine(store.NewMemoryStore(), agent, bus, poll)
	t.Cleanup(e.Close)
	return e, agent, rec
}

func collectBlueprint(item string, count, timerSeconds int) quest.Blueprint {
	bp := quest.Blueprint{
		Title:    "Collecte de ressources",
		Synopsis: "Rassemble des planches pour aider le village.",
		Seed:     "test",
		Objectives: []quest.Objective{
			{ID: "o1", Type: quest.ObjectiveCollect, Params: map[string]any{"item": item, "count": count}, Target: count},
		},
		Reward:           quest.Reward{Items: []quest.RewardItem{{ItemID: "minecraft:emerald", Count: 10}}},
		NoveltySignature: "sig",
	}
	if timerSeconds > 0 {
		bp.FailureConditions = []quest.Condition{
			{ID: "f1", Type: quest.ConditionTimer, Params: map[string]any{"seconds": timerSeconds}},
		}
	}
	return bp
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestInstantiate(t *testing.T) {
	e, _, _ := newTestEngine(t, 0)

	q1, err := e.Instantiate(collectBlueprint("minecraft:oak_planks", 8, 900), "Ann")
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	if q1.State != quest.StateOffering {
		t.Errorf("state = %s, want offering", q1.State)
	}
	if q1.ID == "" {
		t.Error("instance has no id")
	}
	if q1.PlayerName != "Ann" {
		t.Errorf("player = %q", q1.PlayerName)
	}

	q2, err := e.Instantiate(collectBlueprint("minecraft:oak_planks", 8, 900), "Ann")
	if err != nil {
		t.Fatal(err)
	}
	if q1.ID == q2.ID {
		t.Error("two instances share an id")
	}

	// Blueprint-supplied ids are preserved
	bp := collectBlueprint("minecraft:stone", 4, 0)
	bp.ID = "q_custom"
	q3, err := e.Instantiate(bp, "Bob")
	if err != nil {
		t.Fatal(err)
	}
	if q3.ID != "q_custom" {
		t.Errorf("id = %q, want q_custom", q3.ID)
	}
}

func TestUnknownIDBehavior(t *testing.T) {
	e, _, rec := newTestEngine(t, 0)

	if _, err := e.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get unknown id error = %v, want ErrNotFound", err)
	}

	calls := map[string]func() error{
		"Start":    func() error { return e.Start("nope") },
		"Accept":   func() error { return e.Accept("nope") },
		"Decline":  func() error { return e.Decline("nope") },
		"Branch":   func() error { return e.Branch("nope", "left") },
		"Succeed":  func() error { return e.Succeed("nope") },
		"Fail":     func() error { return e.Fail("nope", "timer") },
		"SetTimer": func() error { return e.SetTimer("nope", 10, "") },
	}
	for name, fn := range calls {
		if err := fn(); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s on unknown id error = %v, want ErrNotFound", name, err)
		}
	}

	if len(rec.events) != 0 {
		t.Errorf("unknown-id calls emitted %d events", len(rec.events))
	}
}

func TestStartIsIdempotent(t *testing.T) {
	e, _, rec := newTestEngine(t, 0)

	q, err := e.Instantiate(collectBlueprint("minecraft:oak_planks", 8, 0), "Ann")
	if err != nil {
		t.Fatal(err)
	}

	if err := e.Start(q.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	got, err := e.Get(q.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != quest.StateRunning {
		t.Errorf("state = %s, want running", got.State)
	}
	if got.StartedAt.IsZero() {
		t.Error("StartedAt not set")
	}

	// Second start is a no-op: no state change, no second emission
	if err := e.Start(q.ID); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if rec.count(events.QuestStarted) != 1 {
		t.Errorf("quest_started emitted %d times, want 1", rec.count(events.QuestStarted))
	}
}

func TestAcceptFromAwaitingChoice(t *testing.T) {
	e, _, rec := newTestEngine(t, 0)

	q, _ := e.Instantiate(collectBlueprint("minecraft:oak_planks", 8, 0), "Ann")

	// Simulate the orchestrator parking the instance on a choice prompt
	stored, _ := e.Get(q.ID)
	stored.State = quest.StateAwaitingChoice
	stored.Runtime.AwaitingChoice = &quest.AwaitingChoice{Prompt: "Accept?", Options: []string{"oui", "non"}}
	if err := e.store.Save(stored); err != nil {
		t.Fatal(err)
	}

	if err := e.Accept(q.ID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	got, _ := e.Get(q.ID)
	if got.State != quest.StateRunning {
		t.Errorf("state = %s, want running", got.State)
	}
	if got.Runtime.AwaitingChoice != nil {
		t.Error("awaiting choice prompt not cleared on accept")
	}
	if rec.count(events.QuestStarted) != 1 {
		t.Errorf("quest_started emitted %d times, want 1", rec.count(events.QuestStarted))
	}
}

func TestDeclineIsTerminal(t *testing.T) {
	e, _, rec := newTestEngine(t, 0)

	q, _ := e.Instantiate(collectBlueprint("minecraft:oak_planks", 8, 0), "Ann")
	if err := e.Decline(q.ID); err != nil {
		t.Fatalf("Decline failed: %v", err)
	}

	got, _ := e.Get(q.ID)
	if got.State != quest.StateFailure {
		t.Errorf("state = %s, want failure", got.State)
	}
	ev, ok := rec.last(events.QuestFailed)
	if !ok || ev.Reason != "declined" {
		t.Errorf("quest_failed event = %+v, %v", ev, ok)
	}

	// All further transitions are silent no-ops
	before := rec.count(events.QuestFailed) + rec.count(events.QuestStarted) +
		rec.count(events.QuestSucceeded) + rec.count(events.QuestUpdated)

	if err := e.Start(q.ID); err != nil {
		t.Errorf("Start on terminal errored: %v", err)
	}
	if err := e.Branch(q.ID, "left"); err != nil {
		t.Errorf("Branch on terminal errored: %v", err)
	}
	if err := e.Succeed(q.ID); err != nil {
		t.Errorf("Succeed on terminal errored: %v", err)
	}
	if err := e.Decline(q.ID); err != nil {
		t.Errorf("second Decline errored: %v", err)
	}

	got, _ = e.Get(q.ID)
	if got.State != quest.StateFailure {
		t.Errorf("terminal state was left: %s", got.State)
	}
	after := rec.count(events.QuestFailed) + rec.count(events.QuestStarted) +
		rec.count(events.QuestSucceeded) + rec.count(events.QuestUpdated)
	if after != before {
		t.Errorf("terminal no-ops emitted %d extra events", after-before)
	}
}

func TestBranchUpdatesCounter(t *testing.T) {
	e, _, rec := newTestEngine(t, 0)

	q, _ := e.Instantiate(collectBlueprint("minecraft:oak_planks", 8, 0), "Ann")

	// Branch before running is a no-op
	if err := e.Branch(q.ID, "north"); err != nil {
		t.Fatal(err)
	}
	if rec.count(events.QuestUpdated) != 0 {
		t.Error("branch on offering instance emitted quest_updated")
	}

	if err := e.Start(q.ID); err != nil {
		t.Fatal(err)
	}
	if err := e.Branch(q.ID, "north"); err != nil {
		t.Fatal(err)
	}

	got, _ := e.Get(q.ID)
	if got.Counter("branch") == 0 {
		t.Error("branch did not update the runtime counter")
	}
	ev, ok := rec.last(events.QuestUpdated)
	if !ok || ev.Branch != "north" {
		t.Errorf("quest_updated event = %+v, %v", ev, ok)
	}
}

func TestGetActiveFor(t *testing.T) {
	e, _, _ := newTestEngine(t, 0)

	if _, ok := e.GetActiveFor("Ann"); ok {
		t.Error("GetActiveFor on empty engine returned an instance")
	}

	q, _ := e.Instantiate(collectBlueprint("minecraft:oak_planks", 8, 0), "Ann")
	if _, ok := e.GetActiveFor("Ann"); ok {
		t.Error("offering instance reported as active")
	}

	if err := e.Start(q.ID); err != nil {
		t.Fatal(err)
	}
	active, ok := e.GetActiveFor("Ann")
	if !ok || active.ID != q.ID {
		t.Errorf("GetActiveFor = %+v, %v", active, ok)
	}
	if _, ok := e.GetActiveFor("Bob"); ok {
		t.Error("GetActiveFor matched the wrong player")
	}
}

func TestTimerConditionFailsQuest(t *testing.T) {
	e, _, rec := newTestEngine(t, time.Hour) // keep the poll out of the way

	q, _ := e.Instantiate(collectBlueprint("minecraft:oak_planks", 8, 1), "Ann")
	begin := time.Now()
	if err := e.Start(q.ID); err != nil {
		t.Fatal(err)
	}

	got, _ := e.Get(q.ID)
	if got.Counter("deadline") == 0 {
		t.Error("deadline counter not recorded on start")
	}

	// Not failed yet well before the deadline
	time.Sleep(500 * time.Millisecond)
	got, _ = e.Get(q.ID)
	if got.State != quest.StateRunning {
		t.Fatalf("state before deadline = %s, want running", got.State)
	}

	if !waitFor(t, time.Second, func() bool {
		cur, _ := e.Get(q.ID)
		return cur.State == quest.StateFailure
	}) {
		t.Fatal("timer did not fail the quest")
	}
	elapsed := time.Since(begin)
	if elapsed < time.Second {
		t.Errorf("quest failed after %v, before the 1s deadline", elapsed)
	}

	ev, ok := rec.last(events.QuestFailed)
	if !ok || ev.Reason != "timer" || ev.QuestID != q.ID {
		t.Errorf("quest_failed event = %+v, %v", ev, ok)
	}
	if rec.count(events.QuestFailed) != 1 {
		t.Errorf("quest_failed emitted %d times, want 1", rec.count(events.QuestFailed))
	}
}

func TestCollectWatcherSucceedsOnce(t *testing.T) {
	e, agent, rec := newTestEngine(t, 20*time.Millisecond)

	q, _ := e.Instantiate(collectBlueprint("minecraft:oak_planks", 8, 0), "Ann")
	if err := e.Accept(q.ID); err != nil {
		t.Fatal(err)
	}

	// Partial progress does not complete the quest
	agent.setInventory(world.ItemStack{Name: "oak_planks", Count: 3})
	if !waitFor(t, time.Second, func() bool {
		cur, _ := e.Get(q.ID)
		return cur.Objectives[0].Progress == 3
	}) {
		t.Fatal("poll never recorded partial progress")
	}
	cur, _ := e.Get(q.ID)
	if cur.State != quest.StateRunning || cur.Objectives[0].Completed {
		t.Fatalf("partial progress state = %s completed=%v", cur.State, cur.Objectives[0].Completed)
	}

	// Reaching the target succeeds exactly once
	agent.setInventory(world.ItemStack{Name: "oak_planks", Count: 8})
	if !waitFor(t, time.Second, func() bool {
		cur, _ := e.Get(q.ID)
		return cur.State == quest.StateSuccess
	}) {
		t.Fatal("collect completion never succeeded the quest")
	}

	// Polling continuing after success must not re-emit
	time.Sleep(100 * time.Millisecond)
	if n := rec.count(events.QuestSucceeded); n != 1 {
		t.Errorf("quest_succeeded emitted %d times, want 1", n)
	}

	ev, _ := rec.last(events.QuestSucceeded)
	if ev.QuestID != q.ID {
		t.Errorf("quest_succeeded carries id %q, want %q", ev.QuestID, q.ID)
	}
}

func TestCollectStripsNamespacePrefix(t *testing.T) {
	e, agent, _ := newTestEngine(t, 10*time.Millisecond)

	q, _ := e.Instantiate(collectBlueprint("minecraft:oak_planks", 2, 0), "Ann")
	if err := e.Start(q.ID); err != nil {
		t.Fatal(err)
	}

	// Inventory names carry no namespace prefix
	agent.setInventory(
		world.ItemStack{Name: "oak_planks", Count: 1},
		world.ItemStack{Name: "oak_planks", Count: 1},
		world.ItemStack{Name: "stone", Count: 64},
	)

	if !waitFor(t, time.Second, func() bool {
		cur, _ := e.Get(q.ID)
		return cur.State == quest.StateSuccess
	}) {
		t.Fatal("stacked inventory never completed the objective")
	}
}

func TestTimerAndCollectRaceResolvesOnce(t *testing.T) {
	e, agent, rec := newTestEngine(t, 10*time.Millisecond)

	// Timer and collect completion land in the same window; exactly one
	// terminal event must win.
	agent.setInventory(world.ItemStack{Name: "oak_planks", Count: 8})
	q, _ := e.Instantiate(collectBlueprint("minecraft:oak_planks", 8, 1), "Ann")
	if err := e.Start(q.ID); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 2*time.Second, func() bool {
		cur, _ := e.Get(q.ID)
		return cur.State.IsTerminal()
	}) {
		t.Fatal("quest never reached a terminal state")
	}
	time.Sleep(1200 * time.Millisecond)

	terminal := rec.count(events.QuestSucceeded) + rec.count(events.QuestFailed)
	if terminal != 1 {
		t.Errorf("terminal events = %d, want exactly 1", terminal)
	}
}

func TestSetTimerRearms(t *testing.T) {
	e, _, rec := newTestEngine(t, time.Hour)

	q, _ := e.Instantiate(collectBlueprint("minecraft:oak_planks", 8, 900), "Ann")
	if err := e.Start(q.ID); err != nil {
		t.Fatal(err)
	}
	before, _ := e.Get(q.ID)

	if err := e.SetTimer(q.ID, 1, "sudden death"); err != nil {
		t.Fatalf("SetTimer failed: %v", err)
	}
	after, _ := e.Get(q.ID)
	if after.Counter("deadline") >= before.Counter("deadline") {
		t.Error("SetTimer did not move the deadline earlier")
	}
	if rec.count(events.QuestUpdated) != 1 {
		t.Errorf("quest_updated emitted %d times, want 1", rec.count(events.QuestUpdated))
	}

	if !waitFor(t, 2*time.Second, func() bool {
		cur, _ := e.Get(q.ID)
		return cur.State == quest.StateFailure
	}) {
		t.Fatal("re-armed timer never fired")
	}
	ev, _ := rec.last(events.QuestFailed)
	if ev.Reason != "timer" {
		t.Errorf("failure reason = %q, want timer", ev.Reason)
	}
}

func TestEndToEndCollectScenario(t *testing.T) {
	e, agent, rec := newTestEngine(t, 20*time.Millisecond)

	bp := collectBlueprint("minecraft:oak_planks", 8, 900)
	q, err := e.Instantiate(bp, "Ann")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Accept(q.ID); err != nil {
		t.Fatal(err)
	}

	// Inventory grows over successive polls
	for _, n := range []int{2, 5, 8} {
		agent.setInventory(world.ItemStack{Name: "oak_planks", Count: n})
		time.Sleep(50 * time.Millisecond)
	}

	if !waitFor(t, 2*time.Second, func() bool {
		cur, _ := e.Get(q.ID)
		return cur.State == quest.StateSuccess
	}) {
		t.Fatal("scenario never reached success")
	}

	ev, ok := rec.last(events.QuestSucceeded)
	if !ok || ev.QuestID != q.ID {
		t.Errorf("quest_succeeded = %+v, %v", ev, ok)
	}

	// The 900s timer must not fire afterward
	time.Sleep(200 * time.Millisecond)
	if rec.count(events.QuestFailed) != 0 {
		t.Error("timer failure fired after success")
	}
}
