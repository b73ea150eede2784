package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

type completion struct {
	status   int
	body     string
	autoSync bool
}

// collect returns an OnComplete that appends every invocation to a slice.
func collect(got *[]completion) OnComplete {
	return func(status int, body string, autoSync bool) {
		*got = append(*got, completion{status, body, autoSync})
	}
}

func TestSend_StrictDeliversOKResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		w.Write([]byte(`{"sampleRate":10}`)) //nolint:errcheck
	}))
	defer srv.Close()

	var got []completion
	New().Send(context.Background(), srv.URL, collect(&got), true)

	if len(got) != 1 {
		t.Fatalf("completions = %d, want 1", len(got))
	}
	if got[0].status != 200 || got[0].body != `{"sampleRate":10}` || !got[0].autoSync {
		t.Errorf("completion = %+v", got[0])
	}
}

func TestSend_StrictSuppressesNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	var got []completion
	New().Send(context.Background(), srv.URL, collect(&got), false)
	if len(got) != 0 {
		t.Errorf("strict strategy delivered non-ok response: %+v", got)
	}
}

func TestSend_LenientDeliversAnyTerminalStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("not here")) //nolint:errcheck
	}))
	defer srv.Close()

	var got []completion
	New(WithLenient()).Send(context.Background(), srv.URL, collect(&got), false)

	if len(got) != 1 {
		t.Fatalf("completions = %d, want 1", len(got))
	}
	if got[0].status != 404 || got[0].body != "not here" {
		t.Errorf("completion = %+v", got[0])
	}
}

func TestSend_NetworkErrorInvokesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	var got []completion
	New().Send(context.Background(), srv.URL, collect(&got), true)
	New(WithLenient()).Send(context.Background(), srv.URL, collect(&got), true)
	if len(got) != 0 {
		t.Errorf("completions after network error: %+v", got)
	}
}

func TestSend_OverrideTakesPrecedence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("built-in strategy ran despite override")
	}))
	defer srv.Close()

	var got []completion
	a := New(WithOverride(func(ctx context.Context, url string, done OnComplete, autoSync bool) {
		done(200, "from override", autoSync)
	}))
	a.Send(context.Background(), srv.URL, collect(&got), true)

	if len(got) != 1 || got[0].body != "from override" {
		t.Errorf("completions = %+v", got)
	}
}

func TestSend_OverridePanicIsContained(t *testing.T) {
	a := New(WithOverride(func(ctx context.Context, url string, done OnComplete, autoSync bool) {
		panic("bad override")
	}))
	a.Send(context.Background(), "http://unused.invalid", func(int, string, bool) {}, false)
}

func TestSend_NoStrategyIsNoop(t *testing.T) {
	a := &Adapter{} // no override, no client
	a.Send(context.Background(), "http://unused.invalid", func(int, string, bool) {
		t.Error("done invoked with no strategy configured")
	}, false)
}
