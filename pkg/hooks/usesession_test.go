package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/blitz-go/blitz/pkg/publicstore"
	"github.com/blitz-go/blitz/pkg/session"
	"github.com/blitz-go/blitz/pkg/storage"
)

func newStoreWithToken(t *testing.T, pd *session.PublicData) (*publicstore.Store, *publicstore.Jar) {
	t.Helper()
	st := storage.NewMemoryStore()
	jar := publicstore.NewJar()
	if pd != nil {
		jar.SetCookie(session.NewKeys("").SessionTokenCookie(), session.Encode(*pd))
	}
	s, err := publicstore.New(st, jar)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		s.Close()
		st.Close()
	})
	return s, jar
}

func TestUseSessionPrerenderSnapshot(t *testing.T) {
	// Even with a live token, the pre-mount value stays deterministic.
	store, _ := newStoreWithToken(t, &session.PublicData{UserID: "u1"})
	rt := NewLifecycle()

	h, err := UseSession(rt, store)
	if err != nil {
		t.Fatal(err)
	}

	got := h.Value()
	if !got.IsLoading || got.Authenticated() {
		t.Fatalf("pre-mount value = %+v, want empty and loading", got)
	}

	rt.Mount()
	got = h.Value()
	if got.IsLoading || got.UserID != "u1" {
		t.Fatalf("post-mount value = %+v, want u1 resolved", got)
	}
}

func TestUseSessionInitialValue(t *testing.T) {
	store, _ := newStoreWithToken(t, nil)
	rt := NewLifecycle()

	h, err := UseSession(rt, store, WithInitialPublicData(session.PublicData{UserID: "seed"}))
	if err != nil {
		t.Fatal(err)
	}

	got := h.Value()
	if got.IsLoading || got.UserID != "seed" {
		t.Fatalf("initial value = %+v, want seed without loading", got)
	}
}

func TestUseSessionSuspenseOnServerSuspends(t *testing.T) {
	store, _ := newStoreWithToken(t, nil)
	rt := NewLifecycle(ServerRendering(), SuspenseEnabled())

	_, err := UseSession(rt, store)
	var suspended *session.RenderingSuspendedError
	if !errors.As(err, &suspended) {
		t.Fatalf("err = %v, want RenderingSuspendedError", err)
	}
}

func TestUseSessionSuspenseOnClientReadsSynchronously(t *testing.T) {
	store, _ := newStoreWithToken(t, &session.PublicData{UserID: "u1"})
	rt := NewLifecycle(SuspenseEnabled())

	h, err := UseSession(rt, store)
	if err != nil {
		t.Fatal(err)
	}
	got := h.Value()
	if got.IsLoading || got.UserID != "u1" {
		t.Fatalf("suspense client value = %+v, want synchronous u1", got)
	}
}

func TestUseSessionTracksStoreAfterMount(t *testing.T) {
	store, _ := newStoreWithToken(t, nil)
	rt := NewLifecycle()

	h, err := UseSession(rt, store)
	if err != nil {
		t.Fatal(err)
	}

	var changes []session.ClientSession
	h.OnChange(func(cs session.ClientSession) { changes = append(changes, cs) })

	rt.Mount()
	if len(changes) != 1 {
		t.Fatalf("mount resync changes = %d, want 1", len(changes))
	}

	pd := session.PublicData{UserID: "u2"}
	store.UpdateState(context.Background(), &pd)
	if h.Value().UserID != "u2" {
		t.Errorf("handle did not track store emit: %+v", h.Value())
	}

	rt.Unmount()
	pd = session.PublicData{UserID: "u3"}
	store.UpdateState(context.Background(), &pd)
	if h.Value().UserID != "u2" {
		t.Errorf("handle updated after unmount: %+v", h.Value())
	}
}

func TestUseSessionSurfacesDecodeErrorAtResync(t *testing.T) {
	store, jar := newStoreWithToken(t, nil)
	jar.SetCookie(session.NewKeys("").SessionTokenCookie(), "*** corrupt ***")
	rt := NewLifecycle()

	h, err := UseSession(rt, store)
	if err != nil {
		t.Fatal(err)
	}
	rt.Mount()

	var de *session.DecodeError
	if !errors.As(h.Err(), &de) {
		t.Fatalf("handle.Err() = %v, want *DecodeError", h.Err())
	}
}
