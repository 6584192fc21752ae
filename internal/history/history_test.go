package history

import (
	"path/filepath"
	"testing"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore error: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore_AppendAndRecent(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			msgs := []Message{
				{Role: RoleUser, Content: "BTC price"},
				{Role: RoleTool, Content: `{"ok":true,"symbol":"BTC"}`, ToolName: "get_price"},
				{Role: RoleAssistant, Content: "According to Binance, BTC is 64000."},
			}
			for _, m := range msgs {
				if err := st.Append("telegram", "u1", m); err != nil {
					t.Fatalf("Append error: %v", err)
				}
			}

			got, err := st.Recent("telegram", "u1", 10)
			if err != nil {
				t.Fatalf("Recent error: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("len = %d, want 3", len(got))
			}
			// chronological order
			if got[0].Role != RoleUser || got[2].Role != RoleAssistant {
				t.Errorf("order wrong: %v then %v", got[0].Role, got[2].Role)
			}
			if got[1].ToolName != "get_price" {
				t.Errorf("tool name = %q", got[1].ToolName)
			}
			if got[0].CreatedAt.IsZero() {
				t.Error("createdAt should be stamped")
			}
		})
	}
}

func TestStore_RecentRespectsLimit(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 10; i++ {
				st.Append("web", "u1", Message{Role: RoleUser, Content: "msg"})
			}
			st.Append("web", "u1", Message{Role: RoleUser, Content: "latest"})

			got, err := st.Recent("web", "u1", 3)
			if err != nil {
				t.Fatalf("Recent error: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("len = %d, want 3", len(got))
			}
			if got[2].Content != "latest" {
				t.Errorf("last = %q, want latest", got[2].Content)
			}
		})
	}
}

func TestStore_SessionsAreIsolated(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			st.Append("telegram", "u1", Message{Role: RoleUser, Content: "from u1"})
			st.Append("telegram", "u2", Message{Role: RoleUser, Content: "from u2"})
			st.Append("web", "u1", Message{Role: RoleUser, Content: "web u1"})

			got, err := st.Recent("telegram", "u1", 10)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 || got[0].Content != "from u1" {
				t.Errorf("got %v", got)
			}

			n, err := st.Count()
			if err != nil {
				t.Fatal(err)
			}
			if n != 3 {
				t.Errorf("count = %d, want 3", n)
			}
		})
	}
}
