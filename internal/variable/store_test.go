package variable

import (
	"errors"
	"strings"
	"testing"
)

func TestStore_SetGet(t *testing.T) {
	s := NewStore()

	tests := []struct {
		name  string
		set   func() error
		check func(t *testing.T, v Value)
	}{
		{
			name: "bool",
			set:  func() error { return s.SetBool("flag", true) },
			check: func(t *testing.T, v Value) {
				if v.Kind != KindBool || !v.Bool {
					t.Errorf("got %+v, want bool true", v)
				}
			},
		},
		{
			name: "int",
			set:  func() error { return s.SetInt("count", 42) },
			check: func(t *testing.T, v Value) {
				if v.Kind != KindInt || v.Int != 42 {
					t.Errorf("got %+v, want int 42", v)
				}
			},
		},
		{
			name: "float",
			set:  func() error { return s.SetFloat("temp", 21.5) },
			check: func(t *testing.T, v Value) {
				if v.Kind != KindFloat || v.Float != 21.5 {
					t.Errorf("got %+v, want float 21.5", v)
				}
			},
		},
		{
			name: "string",
			set:  func() error { return s.SetString("status", "ready") },
			check: func(t *testing.T, v Value) {
				if v.Kind != KindString || v.Str != "ready" {
					t.Errorf("got %+v, want string ready", v)
				}
			},
		},
	}

	names := []string{"flag", "count", "temp", "status"}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.set(); err != nil {
				t.Fatalf("set: %v", err)
			}
			v, err := s.Get(names[i])
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			tt.check(t, v)
		})
	}
}

func TestStore_GetNotFound(t *testing.T) {
	s := NewStore()
	_, err := s.Get("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStore_SetInvalidName(t *testing.T) {
	s := NewStore()

	if err := s.SetInt("", 1); !errors.Is(err, ErrInvalidName) {
		t.Errorf("empty name error = %v, want ErrInvalidName", err)
	}

	long := strings.Repeat("x", MaxNameLen+1)
	if err := s.SetInt(long, 1); !errors.Is(err, ErrInvalidName) {
		t.Errorf("long name error = %v, want ErrInvalidName", err)
	}
}

func TestStore_StringTruncation(t *testing.T) {
	s := NewStore()

	long := strings.Repeat("a", MaxStringLen+20)
	if err := s.SetString("out", long); err != nil {
		t.Fatalf("SetString: %v", err)
	}

	v, err := s.Get("out")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(v.Str) != MaxStringLen {
		t.Errorf("stored length = %d, want %d", len(v.Str), MaxStringLen)
	}
}

func TestStore_Overwrite(t *testing.T) {
	s := NewStore()

	if err := s.SetInt("v", 1); err != nil {
		t.Fatal(err)
	}
	// Re-set with a different type replaces the value entirely
	if err := s.SetString("v", "hello"); err != nil {
		t.Fatal(err)
	}

	v, err := s.Get("v")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.Kind != KindString || v.Str != "hello" {
		t.Errorf("got %+v, want string hello", v)
	}
}

func TestStore_ExistsUnregister(t *testing.T) {
	s := NewStore()

	if s.Exists("v") {
		t.Error("Exists before set = true, want false")
	}
	if err := s.SetBool("v", false); err != nil {
		t.Fatal(err)
	}
	if !s.Exists("v") {
		t.Error("Exists after set = false, want true")
	}

	if err := s.Unregister("v"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if s.Exists("v") {
		t.Error("Exists after unregister = true, want false")
	}

	if err := s.Unregister("v"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Unregister error = %v, want ErrNotFound", err)
	}
}

func TestStore_OnChange(t *testing.T) {
	s := NewStore()

	type event struct {
		name string
		ok   bool
	}
	var events []event
	s.OnChange(func(name string, _ Value, ok bool) {
		events = append(events, event{name, ok})
	})

	if err := s.SetInt("a", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Unregister("a"); err != nil {
		t.Fatal(err)
	}
	// Failed unregister does not notify
	_ = s.Unregister("a")

	want := []event{{"a", true}, {"a", false}}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event[%d] = %+v, want %+v", i, events[i], want[i])
		}
	}
}

func TestStore_List(t *testing.T) {
	s := NewStore()
	if err := s.SetInt("b", 2); err != nil {
		t.Fatal(err)
	}
	if err := s.SetInt("a", 1); err != nil {
		t.Fatal(err)
	}

	list := s.List()
	if len(list) != 2 {
		t.Fatalf("List len = %d, want 2", len(list))
	}
	if list[0].Name != "a" || list[1].Name != "b" {
		t.Errorf("List not sorted: %v", list)
	}
}

func TestValue_Format(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"int", Int(-17), "-17"},
		{"float", Float(3.14159), "3.14"},
		{"float whole", Float(2), "2.00"},
		{"string", String("hello"), "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Format(); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}
