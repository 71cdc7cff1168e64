package i18n

import (
	"testing"

	"golang.org/x/text/language"
)

func TestGetCatalogFallback(t *testing.T) {
	base := GetCatalog("en-US")
	if base == nil {
		t.Fatal("expected base catalog")
	}
	fallback := GetCatalog("missing-locale")
	if fallback != base {
		t.Fatal("expected fallback to en-US catalog")
	}
}

func TestGetCatalogMatchesRegionalVariant(t *testing.T) {
	cat := GetCatalog("pt")
	if cat.Locale() != "pt-BR" {
		t.Fatalf("locale = %q, want pt-BR", cat.Locale())
	}
	got := cat.Format(CodeMissingScorer, nil)
	if got != "Um gol precisa de autor, exceto gol contra" {
		t.Fatalf("message = %q", got)
	}
}

func TestBuiltinMessagesRenderMetadata(t *testing.T) {
	got := GetCatalog("en-US").Format(CodeInsufficientPlayers, map[string]string{"Required": "6", "Present": "4"})
	if got != "At least 6 players are needed, only 4 present" {
		t.Fatalf("message = %q", got)
	}
	if got := GetCatalog("en-US").Format(CodeNotFound, nil); got != "Not found" {
		t.Fatalf("not found without resource = %q", got)
	}
}

func TestMatchAcceptLanguage(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{header: "", want: "en-US"},
		{header: "pt-BR,pt;q=0.9,en;q=0.8", want: "pt-BR"},
		{header: "fr-FR", want: "en-US"},
		{header: ";;;", want: "en-US"},
	}
	for _, tt := range tests {
		if got := MatchAcceptLanguage(tt.header); got != tt.want {
			t.Fatalf("MatchAcceptLanguage(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestSupportedTagsStartWithBase(t *testing.T) {
	tags := SupportedTags()
	if len(tags) == 0 || tags[0] != language.AmericanEnglish {
		t.Fatalf("supported tags = %v", tags)
	}
}

func TestFormatFallbacks(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"code": "hello {{.Name}}",
	})

	if cat.Format("unknown", nil) != "unknown" {
		t.Fatal("expected code fallback when template missing")
	}
	if cat.Format("code", nil) != "hello <no value>" {
		t.Fatal("expected template to render missing metadata")
	}
}

func TestFormatTemplateErrorFallback(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"code": "{{ if .Name }}",
	})
	if cat.Format("code", map[string]string{"Name": "X"}) != "{{ if .Name }}" {
		t.Fatal("expected template fallback on parse error")
	}
}

func TestRegisterCatalog(t *testing.T) {
	custom := NewCatalog("custom", map[Code]string{"code": "ok"})
	RegisterCatalog("custom", custom)
	if got := GetCatalog("custom"); got != custom {
		t.Fatal("expected registered catalog")
	}
}
