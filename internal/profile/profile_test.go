package profile

import (
	"strings"
	"testing"
)

func TestLoadKnownProfiles(t *testing.T) {
	for _, name := range []string{"default", "azure-portal", "strict-locators"} {
		p, err := Load(name)
		if err != nil {
			t.Errorf("Load(%q): %v", name, err)
			continue
		}
		if p.Name != name {
			t.Errorf("Load(%q).Name = %q", name, p.Name)
		}
		if p.PromptAddendum == "" {
			t.Errorf("Load(%q): empty PromptAddendum", name)
		}
	}
}

func TestLoadUnknownProfile(t *testing.T) {
	_, err := Load("nonexistent")
	if err == nil {
		t.Fatal("expected error for unknown profile")
	}
	if !strings.Contains(err.Error(), "nonexistent") {
		t.Errorf("error should name the unknown profile: %v", err)
	}
}
