package favorites

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/makersgallery/internal/auth"
	"github.com/hitoshi/makersgallery/internal/docstore"
	"github.com/hitoshi/makersgallery/internal/model"
)

// --- テスト用の部品 ---

type staticSessions struct {
	session *model.Session
}

func (s *staticSessions) CurrentSession() *model.Session {
	return s.session
}

func loggedIn(uid string) *staticSessions {
	return &staticSessions{session: &model.Session{ID: "sess", AccountID: uid, ExpiresAt: time.Now().Add(time.Hour)}}
}

type recordingNavigator struct {
	navs []auth.Navigation
}

func (r *recordingNavigator) Navigate(nav auth.Navigation) {
	r.navs = append(r.navs, nav)
}

type swallowCounter struct {
	mu     sync.Mutex
	counts map[string]int
	toggle []bool
}

func newSwallowCounter() *swallowCounter {
	return &swallowCounter{counts: map[string]int{}}
}

func (s *swallowCounter) RecordSwallowedError(operation string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[operation]++
}

func (s *swallowCounter) RecordFavoriteToggle(saved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toggle = append(s.toggle, saved)
}

func (s *swallowCounter) RecordAuthOutcome(string, string) {}
func (s *swallowCounter) RecordContactSubmission(string) {}
func (s *swallowCounter) RecordContactLatency(time.Duration) {}
func (s *swallowCounter) RecordHTTPStatus(int) {}
func (s *swallowCounter) RecordReservationsRepaired(int) {}
func (s *swallowCounter) RecordReservationConflicts(int) {}
func (s *swallowCounter) RecordSessionsPurged(int64) {}

// brokenStore はすべての操作が失敗するストア。
type brokenStore struct{}

var errBackend = errors.New("backend unavailable")

func (brokenStore) Get(context.Context, string) (*docstore.Document, error) { return nil, errBackend }
func (brokenStore) Set(context.Context, string, docstore.Fields) error { return errBackend }
func (brokenStore) Delete(context.Context, string) error { return errBackend }
func (brokenStore) List(context.Context, string) ([]*docstore.Document, error) { return nil, errBackend }

// ctxCheckingStore はコンテキストがキャンセル済みなら書き込みと読み出しを拒否する。
type ctxCheckingStore struct {
	*docstore.MemoryStore
}

func (s ctxCheckingStore) Get(ctx context.Context, path string) (*docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.MemoryStore.Get(ctx, path)
}

func (s ctxCheckingStore) Set(ctx context.Context, path string, fields docstore.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.Set(ctx, path, fields)
}

func (s ctxCheckingStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.Delete(ctx, path)
}

var sampleMaker = model.Maker{
	ID:         "jane-doe",
	Name:       "Jane Doe",
	Major:      "Industrial Design",
	Discipline: "3D",
	Portfolio:  "https://example.com/jane",
}

// --- Save テスト ---

func TestSave_Anonymous_RedirectsAndFails(t *testing.T) {
	nav := &recordingNavigator{}
	m := NewManager(&staticSessions{}, docstore.NewMemoryStore(), nil, nav, nil)

	err := m.Save(context.Background(), sampleMaker)
	if !errors.Is(err, ErrLoginRequired) {
		t.Fatalf("err = %v, want ErrLoginRequired", err)
	}
	if err.Error() != "Please log in to save makers" {
		t.Errorf("message = %q", err.Error())
	}
	if len(nav.navs) != 1 || nav.navs[0].View != auth.ViewLogin {
		t.Errorf("navigations = %+v, want one redirect to login", nav.navs)
	}
}

func TestSave_WritesFieldsAndTimestamp(t *testing.T) {
	store := docstore.NewMemoryStore()
	m := NewManager(loggedIn("u1"), store, nil, nil, nil)
	ctx := context.Background()

	if err := m.Save(ctx, sampleMaker); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	doc, err := store.Get(ctx, "users/u1/savedMakers/jane-doe")
	if err != nil || doc == nil {
		t.Fatalf("saved doc = %v, %v", doc, err)
	}
	if doc.Fields["name"] != "Jane Doe" || doc.Fields["discipline"] != "3D" {
		t.Errorf("fields = %v", doc.Fields)
	}
	if _, ok := doc.Fields["savedAt"].(string); !ok {
		t.Errorf("savedAt should be a server timestamp, got %v", doc.Fields["savedAt"])
	}
}

func TestSave_Idempotent(t *testing.T) {
	store := docstore.NewMemoryStore()
	m := NewManager(loggedIn("u1"), store, nil, nil, nil)
	ctx := context.Background()

	_ = m.Save(ctx, sampleMaker)
	updated := sampleMaker
	updated.Major = "Architecture"
	if err := m.Save(ctx, updated); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	list := m.List(ctx)
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
	if list[0].Major != "Architecture" {
		t.Errorf("Major = %q, want overwritten value", list[0].Major)
	}
}

func TestSave_WriteFailureReturned(t *testing.T) {
	m := NewManager(loggedIn("u1"), brokenStore{}, nil, nil, nil)

	err := m.Save(context.Background(), sampleMaker)
	if !errors.Is(err, errBackend) {
		t.Errorf("err = %v, want wrapped backend error", err)
	}
}

// --- Unsave テスト ---

func TestUnsave_Anonymous_ReturnsFalseWithoutRedirect(t *testing.T) {
	nav := &recordingNavigator{}
	m := NewManager(&staticSessions{}, docstore.NewMemoryStore(), nil, nav, nil)

	if m.Unsave(context.Background(), "jane-doe") {
		t.Error("Unsave should return false when anonymous")
	}
	if len(nav.navs) != 0 {
		t.Error("Unsave must not redirect")
	}
}

func TestUnsave_AbsentSucceeds(t *testing.T) {
	m := NewManager(loggedIn("u1"), docstore.NewMemoryStore(), nil, nil, nil)
	if !m.Unsave(context.Background(), "never-saved") {
		t.Error("removing an absent favorite should succeed")
	}
}

func TestUnsave_FailureCounted(t *testing.T) {
	counter := newSwallowCounter()
	m := NewManager(loggedIn("u1"), brokenStore{}, nil, nil, counter)

	if m.Unsave(context.Background(), "jane-doe") {
		t.Error("Unsave should return false on failure")
	}
	if counter.counts["favorites.unsave"] != 1 {
		t.Error("failure should be counted")
	}
}

// --- List / IsSaved テスト ---

func TestList_EmptyWhenAnonymousOrFailing(t *testing.T) {
	counter := newSwallowCounter()
	tests := []struct {
		name string
		m    *Manager
	}{
		{"anonymous", NewManager(&staticSessions{}, docstore.NewMemoryStore(), nil, nil, counter)},
		{"failing store", NewManager(loggedIn("u1"), brokenStore{}, nil, nil, counter)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.m.List(context.Background())
			if got == nil || len(got) != 0 {
				t.Errorf("List = %v, want empty non-nil slice", got)
			}
		})
	}
	if counter.counts["favorites.list"] != 1 {
		t.Errorf("favorites.list = %d, want 1", counter.counts["favorites.list"])
	}
}

func TestList_ScopedPerUser(t *testing.T) {
	store := docstore.NewMemoryStore()
	ctx := context.Background()
	alice := NewManager(loggedIn("alice"), store, nil, nil, nil)
	bob := NewManager(loggedIn("bob"), store, nil, nil, nil)

	_ = alice.Save(ctx, sampleMaker)
	_ = alice.Save(ctx, model.Maker{ID: "adam-lee", Name: "Adam Lee"})

	if got := len(alice.List(ctx)); got != 2 {
		t.Errorf("alice favorites = %d, want 2", got)
	}
	if got := len(bob.List(ctx)); got != 0 {
		t.Errorf("bob favorites = %d, want 0", got)
	}

	list := alice.List(ctx)
	if list[0].ID != "adam-lee" || list[1].ID != "jane-doe" {
		t.Errorf("order = [%s %s], want ID order", list[0].ID, list[1].ID)
	}
	if list[0].SavedAt.IsZero() {
		t.Error("SavedAt should be decoded")
	}
}

func TestIsSaved(t *testing.T) {
	store := docstore.NewMemoryStore()
	ctx := context.Background()
	m := NewManager(loggedIn("u1"), store, nil, nil, nil)
	_ = m.Save(ctx, sampleMaker)

	if !m.IsSaved(ctx, "jane-doe") {
		t.Error("expected saved")
	}
	if m.IsSaved(ctx, "other") {
		t.Error("expected not saved")
	}
	if NewManager(&staticSessions{}, store, nil, nil, nil).IsSaved(ctx, "jane-doe") {
		t.Error("anonymous IsSaved should be false")
	}

	counter := newSwallowCounter()
	if NewManager(loggedIn("u1"), brokenStore{}, nil, nil, counter).IsSaved(ctx, "jane-doe") {
		t.Error("IsSaved should be false on failure")
	}
	if counter.counts["favorites.is_saved"] != 1 {
		t.Error("failure should be counted")
	}
}

// --- Toggle テスト ---

func TestToggle_RoundTrip(t *testing.T) {
	counter := newSwallowCounter()
	m := NewManager(loggedIn("u1"), docstore.NewMemoryStore(), nil, nil, counter)
	ctx := context.Background()

	saved, err := m.Toggle(ctx, sampleMaker)
	if err != nil || !saved {
		t.Fatalf("first Toggle = %v, %v; want true", saved, err)
	}
	if !m.IsSaved(ctx, sampleMaker.ID) {
		t.Error("maker should be saved after first toggle")
	}

	saved, err = m.Toggle(ctx, sampleMaker)
	if err != nil || saved {
		t.Fatalf("second Toggle = %v, %v; want false", saved, err)
	}
	if m.IsSaved(ctx, sampleMaker.ID) {
		t.Error("maker should be unsaved after second toggle")
	}
	if len(counter.toggle) != 2 || !counter.toggle[0] || counter.toggle[1] {
		t.Errorf("recorded toggles = %v, want [true false]", counter.toggle)
	}
}

func TestToggle_Anonymous_RedirectsLikeSave(t *testing.T) {
	nav := &recordingNavigator{}
	m := NewManager(&staticSessions{}, docstore.NewMemoryStore(), nil, nav, nil)

	saved, err := m.Toggle(context.Background(), sampleMaker)
	if saved || !errors.Is(err, ErrLoginRequired) {
		t.Errorf("Toggle = %v, %v; want false, ErrLoginRequired", saved, err)
	}
	if len(nav.navs) != 1 {
		t.Error("anonymous toggle should redirect to login")
	}
}

// slowStore はGetの途中でブロックし、同時実行を観測できるストア。
type slowStore struct {
	*docstore.MemoryStore
	gets    atomic.Int32
	release chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (s *slowStore) Get(ctx context.Context, path string) (*docstore.Document, error) {
	s.gets.Add(1)
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.MemoryStore.Get(ctx, path)
}

func TestToggle_ConcurrentCallsShareOneExecution(t *testing.T) {
	store := &slowStore{
		MemoryStore: docstore.NewMemoryStore(),
		release:     make(chan struct{}),
		entered:     make(chan struct{}),
	}
	guard := NewToggleGuard()
	ctx := context.Background()

	// 同じユーザーの2つのリクエストが同じガードを共有する
	first := NewManager(loggedIn("u1"), store, guard, nil, nil)
	second := NewManager(loggedIn("u1"), store, guard, nil, nil)

	results := make(chan bool, 2)
	go func() {
		saved, _ := first.Toggle(ctx, sampleMaker)
		results <- saved
	}()
	<-store.entered

	go func() {
		saved, _ := second.Toggle(ctx, sampleMaker)
		results <- saved
	}()
	// 2つ目の呼び出しがsingleflightに合流するのを待つ
	time.Sleep(50 * time.Millisecond)
	close(store.release)

	a, b := <-results, <-results
	if !a || !b {
		t.Errorf("results = %v, %v; want both true", a, b)
	}
	if got := store.gets.Load(); got != 1 {
		t.Errorf("isSaved reads = %d, want 1", got)
	}

	doc, _ := store.MemoryStore.Get(ctx, FavoritePath("u1", sampleMaker.ID))
	if doc == nil {
		t.Error("maker should end up saved, not toggled twice")
	}
}

func TestPaths(t *testing.T) {
	if got := FavoritePath("u1", "m1"); got != "users/u1/savedMakers/m1" {
		t.Errorf("FavoritePath = %q", got)
	}
	if got := FavoritesCollection("u1"); got != "users/u1/savedMakers" {
		t.Errorf("FavoritesCollection = %q", got)
	}
}

func TestToggle_CallerCancellationDoesNotAbortSharedExecution(t *testing.T) {
	store := ctxCheckingStore{MemoryStore: docstore.NewMemoryStore()}
	m := NewManager(loggedIn("u1"), store, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	saved, err := m.Toggle(ctx, sampleMaker)
	if err != nil {
		t.Fatalf("Toggle() error = %v, want nil", err)
	}
	if !saved {
		t.Fatal("Toggle() = false, want true")
	}
	doc, err := store.MemoryStore.Get(context.Background(), FavoritePath("u1", sampleMaker.ID))
	if err != nil || doc == nil {
		t.Fatalf("favorite not persisted: doc=%v err=%v", doc, err)
	}
}
