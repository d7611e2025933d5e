package overlaystore

import (
	"reflect"
	"testing"

	"github.com/dgnsrekt/kline_agent/internal/localstore"
	"github.com/dgnsrekt/kline_agent/internal/overlay"
)

func f64(v float64) *float64 { return &v }

func newStore(t *testing.T) localstore.Store {
	t.Helper()
	fs, err := localstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return fs
}

func TestKeyFormat(t *testing.T) {
	if got := Key("AAPL"); got != "klinecharts-pro-overlays-AAPL" {
		t.Fatalf("Key(AAPL) = %q", got)
	}
}

func TestSaveThenLoadScenario(t *testing.T) {
	store := newStore(t)
	rec := overlay.Serialized{
		ID:      "o1",
		GroupID: "drawing_tools",
		Name:    "horizontalStraightLine",
		Points:  []overlay.Point{{Value: f64(100)}},
		Lock:    false,
		Visible: true,
		Mode:    "normal",
	}

	SaveLocal(store, "AAPL", []overlay.Serialized{rec})
	got := LoadLocal(store, "AAPL")

	if len(got) != 1 {
		t.Fatalf("loaded %d records, want 1", len(got))
	}
	if !reflect.DeepEqual(got[0], rec) {
		t.Fatalf("loaded record = %+v\nwant %+v", got[0], rec)
	}
}

func TestSymbolIsolation(t *testing.T) {
	store := newStore(t)
	x := []overlay.Serialized{{ID: "a1", Name: "segment", Points: []overlay.Point{}, Mode: "normal"}}
	y := []overlay.Serialized{
		{ID: "b1", Name: "rect", Points: []overlay.Point{}, Mode: "normal"},
		{ID: "b2", Name: "circle", Points: []overlay.Point{}, Mode: "weak_magnet"},
	}

	SaveLocal(store, "AAPL", x)
	SaveLocal(store, "BTCUSD", y)

	if got := LoadLocal(store, "AAPL"); !reflect.DeepEqual(got, x) {
		t.Fatalf("AAPL records = %+v, want %+v", got, x)
	}
	if got := LoadLocal(store, "BTCUSD"); !reflect.DeepEqual(got, y) {
		t.Fatalf("BTCUSD records = %+v, want %+v", got, y)
	}
}

func TestLoadAfterClear(t *testing.T) {
	store := newStore(t)
	SaveLocal(store, "AAPL", []overlay.Serialized{{ID: "o1", Name: "segment"}})

	ClearLocal(store, "AAPL")

	got := LoadLocal(store, "AAPL")
	if len(got) != 0 {
		t.Fatalf("records after clear = %+v, want empty", got)
	}
}

func TestLoadMissingKey(t *testing.T) {
	store := newStore(t)
	got := LoadLocal(store, "NEVER_SAVED_SYMBOL")
	if got == nil || len(got) != 0 {
		t.Fatalf("LoadLocal(missing) = %#v, want empty non-nil slice", got)
	}
}

func TestLoadCorruptDataReturnsEmpty(t *testing.T) {
	store := newStore(t)
	if err := store.Set(Key("AAPL"), []byte(`{"not":"an array"`)); err != nil {
		t.Fatalf("seed corrupt data: %v", err)
	}

	got := LoadLocal(store, "AAPL")
	if len(got) != 0 {
		t.Fatalf("LoadLocal(corrupt) = %+v, want empty", got)
	}
}

func TestSaveNilStoresEmptyArray(t *testing.T) {
	store := newStore(t)
	SaveLocal(store, "AAPL", nil)

	raw, err := store.Get(Key("AAPL"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(raw) != "[]" {
		t.Fatalf("stored bytes = %s, want []", raw)
	}
}

func TestSaveIsDeterministic(t *testing.T) {
	store := newStore(t)
	records := []overlay.Serialized{
		{ID: "o1", GroupID: "drawing_tools", Name: "segment", Points: []overlay.Point{{Value: f64(9.5)}}, Visible: true, Mode: "normal"},
		{ID: "o2", GroupID: "drawing_tools", Name: "rect", Points: []overlay.Point{}, Mode: "normal"},
	}

	SaveLocal(store, "AAPL", records)
	first, err := store.Get(Key("AAPL"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	SaveLocal(store, "AAPL", records)
	second, err := store.Get(Key("AAPL"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if string(first) != string(second) {
		t.Fatalf("repeated saves differ:\n%s\n%s", first, second)
	}
}
