package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

// localizedContext runs a no-op request through the middleware to get a
// context carrying the localizer for lang.
func localizedContext(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}

	var ctx context.Context
	h := Middleware(lang)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctx = r.Context()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	return ctx
}

func TestTranslateEnglish(t *testing.T) {
	ctx := localizedContext(t, "en")

	got := T(ctx, "DuplicateGroup")
	if got != "A group with this name already exists." {
		t.Errorf("T(DuplicateGroup) = %q", got)
	}

	got = T(ctx, "LoginError")
	if got != "Invalid username or password." {
		t.Errorf("T(LoginError) = %q", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := localizedContext(t, "ru")

	got := T(ctx, "DuplicateGroup")
	if got != "Группа с таким названием уже существует." {
		t.Errorf("T(DuplicateGroup) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := localizedContext(t, "en")

	got := Td(ctx, "RosterFull", map[string]any{"Max": 40})
	if got != "This version is optimized for up to 40 students." {
		t.Errorf("Td(RosterFull, Max=40) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := localizedContext(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want the key itself", got)
	}
}
