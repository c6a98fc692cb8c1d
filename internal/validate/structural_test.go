package validate

import (
	"reflect"
	"strings"
	"testing"
)

const goodDoc = `<!DOCTYPE html>
<html lang="en">
<head><title>Bakery Home</title></head>
<body><main><h1>Welcome</h1></main></body>
</html>`

func TestStructuralPasses(t *testing.T) {
	rep := Structural(goodDoc, DefaultRules())
	if !rep.Valid {
		t.Fatalf("expected valid, issues: %v", rep.Issues)
	}
	if len(rep.Issues) != 0 {
		t.Errorf("expected no issues, got %v", rep.Issues)
	}
}

func TestStructuralRuleOrder(t *testing.T) {
	// A fragment with everything wrong: issue order must follow the
	// fixed rule order (html, head, body, title, external-script).
	src := `<div>hi</div><script src="https://cdn.example.com/x.js"></script>`
	rep := Structural(src, DefaultRules())
	if rep.Valid {
		t.Fatal("expected invalid")
	}
	want := []string{
		"missing <html> tag",
		"missing <head> section",
		"missing <body> section",
		"missing or empty <title>",
		"external script not allowed: https://cdn.example.com/x.js",
	}
	if !reflect.DeepEqual(rep.Issues, want) {
		t.Errorf("issues = %v, want %v", rep.Issues, want)
	}
}

func TestStructuralTitleRules(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		issue string
	}{
		{
			name:  "empty title",
			src:   `<html><head><title>  </title></head><body></body></html>`,
			issue: "missing or empty <title>",
		},
		{
			name:  "overlong title",
			src:   `<html><head><title>` + strings.Repeat("x", 81) + `</title></head><body></body></html>`,
			issue: "<title> longer than 80 characters",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := Structural(tt.src, DefaultRules())
			if rep.Valid {
				t.Fatal("expected invalid")
			}
			if len(rep.Issues) != 1 || rep.Issues[0] != tt.issue {
				t.Errorf("issues = %v, want [%s]", rep.Issues, tt.issue)
			}
		})
	}
}

func TestStructuralDisabledRules(t *testing.T) {
	rep := Structural("<div>bare fragment</div>", Rules{})
	if !rep.Valid {
		t.Errorf("no rules enabled but got issues: %v", rep.Issues)
	}
}

func TestStructuralAllowsLocalScripts(t *testing.T) {
	src := `<html><head><title>T</title><script src="app.js"></script></head><body></body></html>`
	rep := Structural(src, DefaultRules())
	if !rep.Valid {
		t.Errorf("local script flagged: %v", rep.Issues)
	}
}

func TestStructuralDeterministic(t *testing.T) {
	src := `<div><script src="http://x.test/a.js"></script></div>`
	first := Structural(src, DefaultRules())
	second := Structural(src, DefaultRules())
	if !reflect.DeepEqual(first, second) {
		t.Errorf("validation not deterministic: %v vs %v", first, second)
	}
}
