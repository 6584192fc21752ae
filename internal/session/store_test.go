package session

import (
	"fmt"
	"sync"
	"testing"
)

func TestMemoryStore_GetCreatesDefault(t *testing.T) {
	st := NewMemoryStore("ar")
	s := st.Get("telegram", "u1")
	if s == nil {
		t.Fatal("Get returned nil")
	}
	if s.Lang != "ar" {
		t.Errorf("lang = %q, want ar", s.Lang)
	}
	if s.Intent != "" {
		t.Errorf("intent = %q, want empty", s.Intent)
	}
	if s.DatePref != -1 {
		t.Errorf("datePref = %d, want -1", s.DatePref)
	}
	if st.Count() != 1 {
		t.Errorf("count = %d, want 1", st.Count())
	}
}

func TestMemoryStore_GetReturnsSnapshot(t *testing.T) {
	st := NewMemoryStore("en")
	snap := st.Get("web", "u1")
	snap.Slots["name"] = "mutated"

	fresh := st.Get("web", "u1")
	if _, ok := fresh.Slots["name"]; ok {
		t.Error("mutating a snapshot must not touch the stored session")
	}
}

func TestMemoryStore_UpdateSerializesPerKey(t *testing.T) {
	st := NewMemoryStore("en")
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.Update("web", "u1", func(s *Session) {
				s.FallbackCount++
			})
		}()
	}
	wg.Wait()

	if got := st.Get("web", "u1").FallbackCount; got != n {
		t.Errorf("fallbackCount = %d, want %d (lost updates)", got, n)
	}
}

func TestMemoryStore_KeysAreIndependent(t *testing.T) {
	st := NewMemoryStore("en")
	for i := 0; i < 5; i++ {
		st.Update("web", fmt.Sprintf("u%d", i), func(s *Session) {
			s.Slots["name"] = fmt.Sprintf("user%d", i)
		})
	}
	if st.Count() != 5 {
		t.Errorf("count = %d, want 5", st.Count())
	}
	if got := st.Get("web", "u3").Slots["name"]; got != "user3" {
		t.Errorf("u3 name = %q", got)
	}
}

func TestSession_ResetFlowKeepsProfileAndLang(t *testing.T) {
	s := New("telegram", "u1", "ar")
	s.Intent = "create_ticket"
	s.Slots["subject"] = "loss on gold trade"
	s.AskCounts["ask_subject"] = 1
	s.LastAskedKey = "ask_subject"
	s.DatePref = 1
	s.Profile = Profile{Name: "Ahmed", Phone: "0551234567"}
	s.Lang = "en"

	s.ResetFlow()

	if s.Intent != "" || len(s.Slots) != 0 || len(s.AskCounts) != 0 || s.LastAskedKey != "" {
		t.Error("flow state should be cleared")
	}
	if s.DatePref != -1 {
		t.Errorf("datePref = %d, want -1", s.DatePref)
	}
	if s.Profile.Name != "Ahmed" || s.Profile.Phone != "0551234567" {
		t.Error("profile must survive reset")
	}
	if s.Lang != "en" {
		t.Error("lang must survive reset")
	}
}

func TestSession_PruneSlots(t *testing.T) {
	s := New("web", "u1", "en")
	s.Slots["name"] = "Ahmed"
	s.Slots["symbol"] = "BTC"

	s.PruneSlots(map[string]bool{"name": true, "phone": true})

	if _, ok := s.Slots["symbol"]; ok {
		t.Error("foreign slot key should be pruned")
	}
	if s.Slots["name"] != "Ahmed" {
		t.Error("valid slot key should survive")
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	st := NewMemoryStore("en")
	st.Update("web", "u1", func(s *Session) { s.Slots["name"] = "x" })
	st.Delete("web", "u1")
	if st.Count() != 0 {
		t.Errorf("count = %d, want 0", st.Count())
	}
	if got := st.Get("web", "u1"); len(got.Slots) != 0 {
		t.Error("deleted session should be recreated empty")
	}
}
