package tokencache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestKey_OrderIndependent(t *testing.T) {
	email := "robot@example.iam.gserviceaccount.com"

	if Key(email, []string{"b", "a"}) != Key(email, []string{"a", "b"}) {
		t.Error("key should not depend on scope order")
	}
	if Key(email, []string{"a", "a", "b"}) != Key(email, []string{"b", "a"}) {
		t.Error("key should treat scopes as a set")
	}
	if Key(email, nil) != Key(email, []string{}) {
		t.Error("nil and empty scopes should share a key")
	}
}

func TestKey_Distinct(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{
			name: "different emails",
			a:    Key("one@example.com", []string{"a"}),
			b:    Key("two@example.com", []string{"a"}),
		},
		{
			name: "different scopes",
			a:    Key("one@example.com", []string{"a"}),
			b:    Key("one@example.com", []string{"b"}),
		},
		{
			name: "separator inside email",
			a:    Key("a_b", []string{"c"}),
			b:    Key("a", []string{"b_c"}),
		},
		{
			name: "comma inside scope",
			a:    Key("e", []string{"a,b"}),
			b:    Key("e", []string{"a", "b"}),
		},
		{
			name: "quote and colon inside email",
			a:    Key(`x":"y`, nil),
			b:    Key("x", []string{"y"}),
		},
		{
			name: "scoped vs unscoped",
			a:    Key("e", nil),
			b:    Key("e", []string{""}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.a == tt.b {
				t.Errorf("keys collide: %q", tt.a)
			}
		})
	}
}

func TestKey_DoesNotMutateInput(t *testing.T) {
	scopes := []string{"z", "a", "m"}
	_ = Key("e", scopes)

	if scopes[0] != "z" || scopes[1] != "a" || scopes[2] != "m" {
		t.Errorf("input slice was reordered: %v", scopes)
	}
}

func TestMemory_GetSet(t *testing.T) {
	cache := NewMemory()
	email := "robot@example.com"

	if _, ok := cache.Get(email, []string{"a"}); ok {
		t.Fatal("expected miss on empty cache")
	}

	first := Entry{Token: "first", Expires: time.Now().Add(time.Hour), ExpiresIn: 3600}
	cache.Set(email, []string{"b", "a"}, first)

	got, ok := cache.Get(email, []string{"a", "b"})
	if !ok {
		t.Fatal("expected hit for reordered scopes")
	}
	if got != first {
		t.Errorf("unexpected entry %+v", got)
	}

	second := Entry{Token: "second", Expires: time.Now().Add(2 * time.Hour), ExpiresIn: 7200}
	cache.Set(email, []string{"a", "b"}, second)

	got, _ = cache.Get(email, []string{"b", "a"})
	if got.Token != "second" {
		t.Errorf("expected newer entry to supersede, got %q", got.Token)
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", cache.Len())
	}

	if _, ok := cache.Get("other@example.com", []string{"a", "b"}); ok {
		t.Error("entries must not leak across emails")
	}
}

func TestMemory_ZeroValue(t *testing.T) {
	var cache Memory
	cache.Set("e", nil, Entry{Token: "t"})

	if got, ok := cache.Get("e", nil); !ok || got.Token != "t" {
		t.Errorf("zero-value cache should be usable, got %+v %v", got, ok)
	}
}

func TestMemory_Concurrent(t *testing.T) {
	cache := NewMemory()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scope := fmt.Sprintf("scope-%d", i%5)
			cache.Set("e", []string{scope}, Entry{Token: scope})
			if got, ok := cache.Get("e", []string{scope}); !ok || got.Token != scope {
				t.Errorf("unexpected entry for %s: %+v", scope, got)
			}
		}(i)
	}
	wg.Wait()

	if cache.Len() != 5 {
		t.Errorf("expected 5 entries, got %d", cache.Len())
	}
}
