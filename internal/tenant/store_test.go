package tenant

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/whitemask/maskd/internal/mask"
)

func writeTenantDir(t *testing.T, root, id string) string {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		whitelistFile:    `{"Contact": {}, "now": {}}`,
		namesFile:        `{"John": {}, "smith": {}}`,
		geolocationFile:  `{"paris": {}}`,
		profanityFile:    `{"damn": {}}`,
		domainPrefixFile: "internal.\n_this line is a comment\n",
		domainSuffixFile: "Badsite.com\n\n",
		queryStringFile:  "session\ntoken\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// TestStore tests tenant resolution and resource loading
func TestStore(t *testing.T) {
	root := t.TempDir()
	writeTenantDir(t, root, "acme")

	store, err := NewStore(root, zap.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	t.Run("LoadsTables", func(t *testing.T) {
		tables, err := store.Tables("acme")
		if err != nil {
			t.Fatalf("Tables: %v", err)
		}
		if !tables.Whitelist.Contains("contact") {
			t.Error("whitelist words should be lowercased")
		}
		if !tables.Names.Contains("john") || !tables.Names.Contains("smith") {
			t.Error("names not loaded")
		}
		if len(tables.DomainPrefixes) != 1 || tables.DomainPrefixes[0] != "internal." {
			t.Errorf("domain prefixes = %v; comment lines should be skipped", tables.DomainPrefixes)
		}
		if len(tables.DomainSuffixes) != 1 || tables.DomainSuffixes[0] != "badsite.com" {
			t.Errorf("domain suffixes = %v; entries should be lowercased", tables.DomainSuffixes)
		}
		if !tables.MaskNumbers {
			t.Error("maskNumbers should default to true without maskTemplates.json")
		}
	})

	t.Run("SnapshotIsCached", func(t *testing.T) {
		first, _ := store.Tables("acme")
		second, _ := store.Tables("acme")
		if first != second {
			t.Error("repeated lookups should return the same snapshot")
		}
	})

	t.Run("UnknownTenant", func(t *testing.T) {
		_, err := store.Tables("nobody")
		if !errors.Is(err, ErrUnknownTenant) {
			t.Errorf("err = %v, want ErrUnknownTenant", err)
		}
	})

	t.Run("UnknownTenantPathEscape", func(t *testing.T) {
		for _, id := range []string{"../acme", "a/b", ""} {
			if _, err := store.Tables(id); !errors.Is(err, ErrUnknownTenant) {
				t.Errorf("Tables(%q) err = %v, want ErrUnknownTenant", id, err)
			}
		}
	})

	t.Run("MissingResource", func(t *testing.T) {
		dir := writeTenantDir(t, root, "broken")
		if err := os.Remove(filepath.Join(dir, namesFile)); err != nil {
			t.Fatal(err)
		}
		_, err := store.Tables("broken")
		if !errors.Is(err, ErrMissingResource) {
			t.Errorf("err = %v, want ErrMissingResource", err)
		}
	})

	t.Run("IDs", func(t *testing.T) {
		ids, err := store.IDs()
		if err != nil {
			t.Fatal(err)
		}
		found := false
		for _, id := range ids {
			if id == "acme" {
				found = true
			}
		}
		if !found {
			t.Errorf("IDs() = %v, want to include acme", ids)
		}
	})
}

// TestStoreTemplates tests loading and updating the tenant template list
func TestStoreTemplates(t *testing.T) {
	root := t.TempDir()
	dir := writeTenantDir(t, root, "acme")
	templateJSON := `{
  "maskNumbers": false,
  "templates": [
    {"template": "\\d{3}-\\d{4}", "mask": "phone"},
    {"template": "[broken", "mask": "x"}
  ]
}`
	if err := os.WriteFile(filepath.Join(dir, templateFile), []byte(templateJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := NewStore(root, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	t.Run("LoadsValidSkipsBroken", func(t *testing.T) {
		tables, err := store.Tables("acme")
		if err != nil {
			t.Fatalf("Tables: %v", err)
		}
		if len(tables.Templates) != 1 || tables.Templates[0].Mask != "phone" {
			t.Errorf("templates = %+v", tables.Templates)
		}
		if tables.MaskNumbers {
			t.Error("maskNumbers should honor the config file")
		}
	})

	t.Run("UpdateAddsAndRemoves", func(t *testing.T) {
		before, _ := store.Tables("acme")

		result, err := store.UpdateTemplates("acme",
			[]mask.TemplateSpec{
				{Template: `ref#\d+`, Mask: "~Ticket~"},
				{Template: "[also broken", Mask: "y"},
			},
			[]string{`\d{3}-\d{4}`, "never-existed"},
		)
		if err != nil {
			t.Fatalf("UpdateTemplates: %v", err)
		}
		if len(result.Updated) != 1 || result.Updated[0].Mask != "ticket" {
			t.Errorf("updated = %+v", result.Updated)
		}
		if len(result.Removed) != 1 {
			t.Errorf("removed = %v", result.Removed)
		}
		if len(result.Errors) != 2 {
			t.Errorf("errors = %+v, want bad-regex and no-such-template", result.Errors)
		}

		after, err := store.Tables("acme")
		if err != nil {
			t.Fatal(err)
		}
		if after == before {
			t.Error("update should swap in a new snapshot")
		}
		if len(after.Templates) != 1 || after.Templates[0].Mask != "ticket" {
			t.Errorf("templates after update = %+v", after.Templates)
		}
	})

	t.Run("UpdatePersists", func(t *testing.T) {
		fresh, err := NewStore(root, zap.NewNop())
		if err != nil {
			t.Fatal(err)
		}
		tables, err := fresh.Tables("acme")
		if err != nil {
			t.Fatal(err)
		}
		if len(tables.Templates) != 1 || tables.Templates[0].Mask != "ticket" {
			t.Errorf("persisted templates = %+v", tables.Templates)
		}
		if tables.MaskNumbers {
			t.Error("maskNumbers setting should survive a template update")
		}
	})

	t.Run("UpdateUnknownTenant", func(t *testing.T) {
		_, err := store.UpdateTemplates("nobody", nil, nil)
		if !errors.Is(err, ErrUnknownTenant) {
			t.Errorf("err = %v, want ErrUnknownTenant", err)
		}
	})
}

// TestStoreConcurrentUpdates tests that parallel template updates all land
func TestStoreConcurrentUpdates(t *testing.T) {
	root := t.TempDir()
	writeTenantDir(t, root, "acme")

	store, err := NewStore(root, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	const updaters = 8
	var wg sync.WaitGroup
	wg.Add(updaters)
	for i := 0; i < updaters; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := store.UpdateTemplates("acme", []mask.TemplateSpec{
				{Template: fmt.Sprintf(`ref%d#\d+`, i), Mask: fmt.Sprintf("tag%d", i)},
			}, nil)
			if err != nil {
				t.Errorf("UpdateTemplates %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	tables, err := store.Tables("acme")
	if err != nil {
		t.Fatal(err)
	}
	if len(tables.Templates) != updaters {
		t.Fatalf("templates = %d, want %d; concurrent updates must not drop changes", len(tables.Templates), updaters)
	}

	// The persisted file must contain every update as well.
	fresh, err := NewStore(root, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	persisted, err := fresh.Tables("acme")
	if err != nil {
		t.Fatal(err)
	}
	if len(persisted.Templates) != updaters {
		t.Errorf("persisted templates = %d, want %d", len(persisted.Templates), updaters)
	}
}

// TestStoreOnChange tests snapshot-change notification for cache invalidation
func TestStoreOnChange(t *testing.T) {
	root := t.TempDir()
	writeTenantDir(t, root, "acme")

	store, err := NewStore(root, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var changed []string
	store.OnChange(func(tenantID string) {
		mu.Lock()
		changed = append(changed, tenantID)
		mu.Unlock()
	})

	t.Run("FirstLoadDoesNotFire", func(t *testing.T) {
		if _, err := store.Tables("acme"); err != nil {
			t.Fatal(err)
		}
		mu.Lock()
		defer mu.Unlock()
		if len(changed) != 0 {
			t.Errorf("changed = %v; a first load has no stale derived state", changed)
		}
	})

	t.Run("ReloadFires", func(t *testing.T) {
		if _, err := store.reload("acme"); err != nil {
			t.Fatal(err)
		}
		mu.Lock()
		defer mu.Unlock()
		if len(changed) != 1 || changed[0] != "acme" {
			t.Errorf("changed = %v, want [acme]", changed)
		}
	})

	t.Run("UpdateFires", func(t *testing.T) {
		_, err := store.UpdateTemplates("acme", []mask.TemplateSpec{
			{Template: `ref#\d+`, Mask: "ticket"},
		}, nil)
		if err != nil {
			t.Fatal(err)
		}
		mu.Lock()
		defer mu.Unlock()
		if len(changed) != 2 || changed[1] != "acme" {
			t.Errorf("changed = %v, want a second acme notification", changed)
		}
	})
}
