package hostcfg

import (
	"reflect"
	"testing"

	"github.com/telemetrykit/cfgsync/pkg/types"
)

func TestOnChange_FiresImmediately(t *testing.T) {
	st := New(types.ConfigSnapshot{"sampleRate": 50})

	var got []types.ConfigSnapshot
	cancel := st.OnChange(func(cfg types.ConfigSnapshot) { got = append(got, cfg) })
	defer cancel()

	if len(got) != 1 {
		t.Fatalf("notifications = %d, want 1 immediate", len(got))
	}
	if got[0]["sampleRate"] != 50 {
		t.Errorf("immediate snapshot = %v", got[0])
	}
}

func TestUpdateConfig_MergesAndNotifiesInOrder(t *testing.T) {
	st := New(types.ConfigSnapshot{"a": 1})

	var order []string
	st.OnChange(func(types.ConfigSnapshot) { order = append(order, "first") })
	st.OnChange(func(types.ConfigSnapshot) { order = append(order, "second") })
	order = order[:0] // drop the immediate notifications

	st.UpdateConfig(types.ConfigSnapshot{"b": 2})

	if want := []string{"first", "second"}; !reflect.DeepEqual(order, want) {
		t.Errorf("notification order = %v, want %v", order, want)
	}
	snap := st.Snapshot()
	if snap["a"] != 1 || snap["b"] != 2 {
		t.Errorf("snapshot = %v", snap)
	}
}

func TestUpdateConfig_NoEffectiveChangeNotifiesNobody(t *testing.T) {
	st := New(types.ConfigSnapshot{"sampleRate": 50})
	var fired int
	st.OnChange(func(types.ConfigSnapshot) { fired++ })
	fired = 0

	st.UpdateConfig(types.ConfigSnapshot{"sampleRate": 50})
	if fired != 0 {
		t.Errorf("no-op update fired %d notifications", fired)
	}
}

func TestUpdateConfig_DeepMergesNestedMaps(t *testing.T) {
	st := New(types.ConfigSnapshot{
		"channel": types.ConfigSnapshot{"batchSize": 100, "interval": 15},
	})
	st.UpdateConfig(types.ConfigSnapshot{
		"channel": types.ConfigSnapshot{"batchSize": 250},
	})

	ch := st.Snapshot()["channel"].(types.ConfigSnapshot)
	if ch["batchSize"] != 250 || ch["interval"] != 15 {
		t.Errorf("channel = %v", ch)
	}
}

func TestOnChange_CancelDetachesOnlyOwnListener(t *testing.T) {
	st := New(nil)
	var a, b int
	cancelA := st.OnChange(func(types.ConfigSnapshot) { a++ })
	st.OnChange(func(types.ConfigSnapshot) { b++ })
	a, b = 0, 0

	cancelA()
	cancelA() // second cancel is a no-op
	st.UpdateConfig(types.ConfigSnapshot{"k": "v"})

	if a != 0 {
		t.Errorf("cancelled listener fired %d times", a)
	}
	if b != 1 {
		t.Errorf("remaining listener fired %d times, want 1", b)
	}
}

func TestExtension_FillsDefaults(t *testing.T) {
	st := New(types.ConfigSnapshot{
		"cfgsync": types.ConfigSnapshot{"receiveChanges": true},
	})
	got := st.Extension("cfgsync", types.ConfigSnapshot{
		"receiveChanges":  false,
		"disableAutoSync": false,
	})

	if got["receiveChanges"] != true {
		t.Error("configured value should win over default")
	}
	if got["disableAutoSync"] != false {
		t.Error("missing key should fall back to default")
	}
}

func TestExtension_AbsentBlockReturnsDefaults(t *testing.T) {
	st := New(types.ConfigSnapshot{"unrelated": 1})
	got := st.Extension("cfgsync", types.ConfigSnapshot{"disableAutoSync": false})
	if got["disableAutoSync"] != false || len(got) != 1 {
		t.Errorf("Extension = %v", got)
	}
}

func TestSnapshot_IsDetached(t *testing.T) {
	st := New(types.ConfigSnapshot{"nested": types.ConfigSnapshot{"k": 1}})
	snap := st.Snapshot()
	snap["nested"].(types.ConfigSnapshot)["k"] = 99
	if st.Snapshot()["nested"].(types.ConfigSnapshot)["k"] != 1 {
		t.Error("Snapshot aliases live tree")
	}
}
