package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	l := NewLive(nil, nil)
	if l.Confidence() != 0.9 || l.Gain() != 4.0 {
		t.Errorf("defaults = %+v", l.Get())
	}
}

func TestSetters(t *testing.T) {
	tests := []struct {
		name    string
		set     func(*Live) error
		wantErr bool
	}{
		{"confidence ok", func(l *Live) error { return l.SetConfidence(0.5) }, false},
		{"confidence zero", func(l *Live) error { return l.SetConfidence(0) }, false},
		{"confidence too high", func(l *Live) error { return l.SetConfidence(1.2) }, true},
		{"gain ok", func(l *Live) error { return l.SetGain(10) }, false},
		{"gain too low", func(l *Live) error { return l.SetGain(0.05) }, true},
		{"apply invalid", func(l *Live) error { return l.Apply(Settings{Confidence: 0.5, Gain: 20}) }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLive(nil, nil)
			err := tc.set(l)
			if (err != nil) != tc.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				if !errors.Is(err, ErrOutOfRange) {
					t.Errorf("error should wrap ErrOutOfRange: %v", err)
				}
				if l.Get() != Default() {
					t.Errorf("rejected update changed state: %+v", l.Get())
				}
			}
		})
	}
}

func TestOnChange(t *testing.T) {
	l := NewLive(nil, nil)
	var got []Settings
	l.OnChange(func(s Settings) { got = append(got, s) })

	l.SetConfidence(0.4)
	l.SetGain(11) // rejected

	if len(got) != 1 || got[0].Confidence != 0.4 {
		t.Errorf("callbacks = %+v", got)
	}
}

func TestSaveLoadJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")

	l := NewLive(NewJSONStore(path), nil)
	if err := l.Load(); err != nil {
		t.Fatalf("Load with no file: %v", err)
	}
	if l.Get() != Default() {
		t.Errorf("missing file should keep defaults, got %+v", l.Get())
	}

	l.SetConfidence(0.35)
	l.SetGain(2.5)
	if err := l.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	restored := NewLive(NewJSONStore(path), nil)
	if err := restored.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := restored.Get(); got.Confidence != 0.35 || got.Gain != 2.5 {
		t.Errorf("restored = %+v", got)
	}
}

func TestLoad_InvalidValuesKeepDefaults(t *testing.T) {
	store := &MemoryStore{}
	store.Save([]byte(`{"confidence": 3, "gain": 1}`))

	l := NewLive(store, nil)
	if err := l.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if l.Get() != Default() {
		t.Errorf("invalid saved values should be ignored, got %+v", l.Get())
	}
}

func TestLoad_PartialKeepsOtherDefault(t *testing.T) {
	store := &MemoryStore{}
	store.Save([]byte(`{"gain": 1.5}`))

	l := NewLive(store, nil)
	if err := l.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if l.Confidence() != DefaultConfidence || l.Gain() != 1.5 {
		t.Errorf("got %+v", l.Get())
	}
}

func TestLoad_Corrupt(t *testing.T) {
	store := &MemoryStore{}
	store.Save([]byte(`{not json`))

	if err := NewLive(store, nil).Load(); err == nil {
		t.Error("corrupt settings should return an error")
	}
}
