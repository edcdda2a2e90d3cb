package publicstore

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/blitz-go/blitz/pkg/session"
	"github.com/blitz-go/blitz/pkg/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*Store, *Jar, *storage.MemoryStore) {
	t.Helper()
	st := storage.NewMemoryStore()
	jar := NewJar()
	s, err := New(st, jar, WithClock(newFakeClock().Now))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		s.Close()
		st.Close()
	})
	return s, jar, st
}

func TestReadSessionTokenPrefersCookieAndWritesThrough(t *testing.T) {
	ctx := context.Background()
	s, jar, st := newTestStore(t)

	keys := session.NewKeys("")
	jar.SetCookie(keys.SessionTokenCookie(), "A")
	st.Set(ctx, keys.SessionTokenStorage(), "B")

	got, ok := s.ReadSessionToken(ctx)
	if !ok || got != "A" {
		t.Fatalf("ReadSessionToken = (%q, %v), want (A, true)", got, ok)
	}

	mirror, ok, _ := st.Get(ctx, keys.SessionTokenStorage())
	if !ok || mirror != "A" {
		t.Errorf("durable storage = (%q, %v), want write-through of A", mirror, ok)
	}
}

func TestReadSessionTokenFallsBackWithoutWriteBack(t *testing.T) {
	ctx := context.Background()
	s, _, st := newTestStore(t)

	keys := session.NewKeys("")
	st.Set(ctx, keys.SessionTokenStorage(), "B")

	got, ok := s.ReadSessionToken(ctx)
	if !ok || got != "B" {
		t.Fatalf("ReadSessionToken = (%q, %v), want (B, true)", got, ok)
	}

	v, ok, _ := st.Get(ctx, keys.SessionTokenStorage())
	if !ok || v != "B" {
		t.Errorf("durable storage = (%q, %v), want B untouched", v, ok)
	}
}

func TestBackupCSRFToken(t *testing.T) {
	ctx := context.Background()
	s, jar, st := newTestStore(t)
	keys := session.NewKeys("")

	// No cookie: no-op.
	s.BackupCSRFToken(ctx)
	if _, ok, _ := st.Get(ctx, keys.CSRFTokenStorage()); ok {
		t.Fatal("backup without cookie should not write")
	}

	jar.SetCookie(keys.CSRFTokenCookie(), "csrf-1")
	s.BackupCSRFToken(ctx)
	v, ok, _ := st.Get(ctx, keys.CSRFTokenStorage())
	if !ok || v != "csrf-1" {
		t.Errorf("backup = (%q, %v), want csrf-1", v, ok)
	}
}

func TestGetData(t *testing.T) {
	ctx := context.Background()
	s, jar, _ := newTestStore(t)
	keys := session.NewKeys("")

	// Absent token resolves to EmptyPublicData.
	pd, err := s.GetData(ctx)
	if err != nil || pd.Authenticated() {
		t.Fatalf("GetData with no token = (%+v, %v)", pd, err)
	}

	jar.SetCookie(keys.SessionTokenCookie(), session.Encode(session.PublicData{UserID: "u1", Role: "admin"}))
	pd, err = s.GetData(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if pd.UserID != "u1" || pd.Role != "admin" {
		t.Errorf("GetData = %+v", pd)
	}

	// A malformed token is a hard error, not a logout.
	jar.SetCookie(keys.SessionTokenCookie(), "%%% not a token %%%")
	_, err = s.GetData(ctx)
	var de *session.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("GetData with malformed token: err = %v, want *DecodeError", err)
	}
}

func TestUpdateStateSuppressEvent(t *testing.T) {
	ctx := context.Background()
	s, _, st := newTestStore(t)
	keys := session.NewKeys("")

	var got []session.PublicData
	s.Subscribe(func(pd session.PublicData) { got = append(got, pd) })

	pd := session.PublicData{UserID: "u1"}
	if err := s.UpdateState(ctx, &pd, SuppressEvent()); err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 || got[0].UserID != "u1" {
		t.Fatalf("local subscribers = %+v, want one notification", got)
	}
	if _, ok, _ := st.Get(ctx, keys.BroadcastKey()); ok {
		t.Error("suppressed update must not touch the broadcast key")
	}
}

func TestUpdateStateBroadcastIsMonotonic(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	defer st.Close()
	clk := newFakeClock()
	s, err := New(st, NewJar(), WithClock(clk.Now))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	keys := session.NewKeys("")

	readKey := func() int64 {
		raw, ok, _ := st.Get(ctx, keys.BroadcastKey())
		if !ok {
			t.Fatal("broadcast key absent")
		}
		n, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			t.Fatalf("broadcast key %q is not a decimal timestamp", raw)
		}
		return n
	}

	pd := session.PublicData{UserID: "u1"}
	if err := s.UpdateState(ctx, &pd); err != nil {
		t.Fatal(err)
	}
	first := readKey()

	// Same clock tick: the value must still strictly increase.
	if err := s.UpdateState(ctx, &pd); err != nil {
		t.Fatal(err)
	}
	second := readKey()
	if second <= first {
		t.Errorf("broadcast key did not increase: %d -> %d", first, second)
	}

	clk.Advance(5 * time.Second)
	if err := s.UpdateState(ctx, &pd); err != nil {
		t.Fatal(err)
	}
	if third := readKey(); third <= second {
		t.Errorf("broadcast key did not increase: %d -> %d", second, third)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s, jar, st := newTestStore(t)
	keys := session.NewKeys("")

	jar.SetCookie(keys.SessionTokenCookie(), session.Encode(session.PublicData{UserID: "u1"}))
	if err := s.UpdateState(ctx, nil); err != nil {
		t.Fatal(err)
	}

	var got []session.PublicData
	s.Subscribe(func(pd session.PublicData) { got = append(got, pd) })

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}

	if _, ok := jar.Cookie(keys.SessionTokenCookie()); ok {
		t.Error("session cookie should be deleted")
	}
	if _, ok, _ := st.Get(ctx, keys.SessionTokenStorage()); ok {
		t.Error("durable mirror should be deleted")
	}
	if len(got) != 1 || got[0].Authenticated() {
		t.Errorf("subscriber notifications = %+v, want exactly one EmptyPublicData", got)
	}
	if pd, err := s.GetData(ctx); err != nil || pd.Authenticated() {
		t.Errorf("GetData after Clear = (%+v, %v), want empty", pd, err)
	}
}

func TestUnsubscribe(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	var first, second []string
	unsubFirst := s.Subscribe(func(pd session.PublicData) { first = append(first, pd.UserID) })
	s.Subscribe(func(pd session.PublicData) { second = append(second, pd.UserID) })

	pd := session.PublicData{UserID: "u1"}
	s.UpdateState(ctx, &pd, SuppressEvent())

	unsubFirst()
	unsubFirst() // idempotent

	pd = session.PublicData{UserID: "u2"}
	s.UpdateState(ctx, &pd, SuppressEvent())

	if len(first) != 1 || first[0] != "u1" {
		t.Errorf("unsubscribed observer got %v, want only u1", first)
	}
	if len(second) != 2 || second[1] != "u2" {
		t.Errorf("remaining observer got %v, want u1,u2", second)
	}
}

func TestCrossContextConvergence(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	defer st.Close()
	jar := NewJar() // cookies are shared across tabs, like a browser
	keys := session.NewKeys("")

	tabA, err := New(st, jar, WithClock(newFakeClock().Now))
	if err != nil {
		t.Fatal(err)
	}
	defer tabA.Close()
	tabB, err := New(st, jar, WithClock(newFakeClock().Now))
	if err != nil {
		t.Fatal(err)
	}
	defer tabB.Close()

	var aSeen, bSeen []session.PublicData
	tabA.Subscribe(func(pd session.PublicData) { aSeen = append(aSeen, pd) })
	tabB.Subscribe(func(pd session.PublicData) { bSeen = append(bSeen, pd) })

	// Login lands in tab A: the cookie appears and A recomputes with a
	// broadcast. MemoryStore delivers synchronously, so B has converged
	// by the time UpdateState returns.
	jar.SetCookie(keys.SessionTokenCookie(), session.Encode(session.PublicData{UserID: "u1"}))
	if err := tabA.UpdateState(ctx, nil); err != nil {
		t.Fatal(err)
	}

	if len(aSeen) != 1 || aSeen[0].UserID != "u1" {
		t.Errorf("tab A notifications = %+v, want exactly one for u1", aSeen)
	}
	if len(bSeen) != 1 || bSeen[0].UserID != "u1" {
		t.Errorf("tab B notifications = %+v, want exactly one for u1 (no loop)", bSeen)
	}
	if tabB.Current().UserID != "u1" {
		t.Errorf("tab B current = %+v", tabB.Current())
	}

	// Logout from B reaches A the same way.
	if err := tabB.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if len(aSeen) != 2 || aSeen[1].Authenticated() {
		t.Errorf("tab A notifications after logout = %+v", aSeen)
	}
	if len(bSeen) != 2 || bSeen[1].Authenticated() {
		t.Errorf("tab B notifications after logout = %+v", bSeen)
	}
}

// recordingRelay is a notifier with no storage behind it: watches fire
// only when Announce is relayed in from the outside.
type recordingRelay struct {
	mu        sync.Mutex
	announced []string
	fns       map[string][]func()
	failWith  error
}

func newRecordingRelay() *recordingRelay {
	return &recordingRelay{fns: make(map[string][]func())}
}

func (r *recordingRelay) Watch(key string, fn func()) (func(), error) {
	r.mu.Lock()
	r.fns[key] = append(r.fns[key], fn)
	r.mu.Unlock()
	return func() {}, nil
}

func (r *recordingRelay) Announce(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.announced = append(r.announced, key)
	return nil
}

// deliver simulates the hub fanning a foreign announcement in.
func (r *recordingRelay) deliver(key string) {
	r.mu.Lock()
	fns := append([]func(){}, r.fns[key]...)
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func TestBroadcastAnnouncesOnNotifiers(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	defer st.Close()
	relay := newRecordingRelay()
	keys := session.NewKeys("")

	s, err := New(st, NewJar(), WithNotifier(relay))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	pd := session.PublicData{UserID: "u1"}
	if err := s.UpdateState(ctx, &pd); err != nil {
		t.Fatal(err)
	}
	if got := relay.announced; len(got) != 1 || got[0] != keys.BroadcastKey() {
		t.Errorf("announced = %v, want exactly one %q", got, keys.BroadcastKey())
	}

	// A suppressed update never reaches siblings through any channel.
	if err := s.UpdateState(ctx, &pd, SuppressEvent()); err != nil {
		t.Fatal(err)
	}
	if len(relay.announced) != 1 {
		t.Errorf("announced = %v after suppressed update, want unchanged", relay.announced)
	}

	// A relay failure degrades like a storage failure: logged, not
	// surfaced.
	relay.failWith = errors.New("relay down")
	if err := s.UpdateState(ctx, &pd); err != nil {
		t.Errorf("UpdateState() with failing relay = %v, want nil", err)
	}
}

func TestRelayOnlyConvergence(t *testing.T) {
	ctx := context.Background()
	jar := NewJar() // contexts share the cookie surface, not storage
	keys := session.NewKeys("")

	stA, stB := storage.NewMemoryStore(), storage.NewMemoryStore()
	defer stA.Close()
	defer stB.Close()
	relayA, relayB := newRecordingRelay(), newRecordingRelay()

	tabA, err := New(stA, jar, WithNotifier(relayA))
	if err != nil {
		t.Fatal(err)
	}
	defer tabA.Close()
	tabB, err := New(stB, jar, WithNotifier(relayB))
	if err != nil {
		t.Fatal(err)
	}
	defer tabB.Close()

	var aSeen, bSeen []session.PublicData
	tabA.Subscribe(func(pd session.PublicData) { aSeen = append(aSeen, pd) })
	tabB.Subscribe(func(pd session.PublicData) { bSeen = append(bSeen, pd) })

	// Login lands in tab A. Its broadcast goes out through the relay;
	// the hub delivers to every other connection, never the origin.
	jar.SetCookie(keys.SessionTokenCookie(), session.Encode(session.PublicData{UserID: "u1"}))
	if err := tabA.UpdateState(ctx, nil); err != nil {
		t.Fatal(err)
	}
	for _, key := range relayA.announced {
		relayB.deliver(key)
	}

	if len(bSeen) != 1 || bSeen[0].UserID != "u1" {
		t.Errorf("tab B notifications = %+v, want exactly one for u1", bSeen)
	}
	if tabB.Current().UserID != "u1" {
		t.Errorf("tab B current = %+v", tabB.Current())
	}
	// B's recompute was suppressed, so nothing came back for A to loop
	// on.
	if len(relayB.announced) != 0 {
		t.Errorf("tab B announced %v, want none", relayB.announced)
	}
	if len(aSeen) != 1 {
		t.Errorf("tab A notifications = %+v, want exactly one", aSeen)
	}
}

func TestStorageUnavailableDegradesToAbsent(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	jar := NewJar()
	keys := session.NewKeys("")

	s, err := New(st, jar)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	// Every storage operation fails from here on.
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	// No cookie, no reachable storage: absent, not an error.
	if tok, ok := s.ReadSessionToken(ctx); ok {
		t.Errorf("ReadSessionToken() = (%q, true), want absent", tok)
	}
	if pd, err := s.GetData(ctx); err != nil || pd.Authenticated() {
		t.Errorf("GetData() = (%+v, %v), want empty, nil", pd, err)
	}

	// The cookie stays authoritative; the failed write-through is
	// swallowed.
	jar.SetCookie(keys.SessionTokenCookie(), "tok-1")
	if tok, ok := s.ReadSessionToken(ctx); !ok || tok != "tok-1" {
		t.Errorf("ReadSessionToken() = (%q, %v), want tok-1 from cookie", tok, ok)
	}
	jar.SetCookie(keys.CSRFTokenCookie(), "csrf-1")
	s.BackupCSRFToken(ctx)
	if tok, ok := s.ReadCSRFToken(ctx); !ok || tok != "csrf-1" {
		t.Errorf("ReadCSRFToken() = (%q, %v), want csrf-1 from cookie", tok, ok)
	}

	// Updates still notify locally; only the broadcast is lost.
	var seen []session.PublicData
	s.Subscribe(func(pd session.PublicData) { seen = append(seen, pd) })
	pd := session.PublicData{UserID: "u1"}
	if err := s.UpdateState(ctx, &pd); err != nil {
		t.Errorf("UpdateState() with failed storage = %v, want nil", err)
	}
	if len(seen) != 1 || seen[0].UserID != "u1" {
		t.Errorf("notifications = %+v", seen)
	}
}
