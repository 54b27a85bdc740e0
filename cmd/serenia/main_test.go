package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestSeedContentCategories(t *testing.T) {
	// Every recommendation band needs at least one document to surface.
	required := []string{"crisis", "anxiety", "mindfulness", "gratitude"}
	have := make(map[string]bool)
	for _, doc := range seedContent {
		if doc.Title == "" || doc.Body == "" {
			t.Errorf("seed document %q is incomplete", doc.Title)
		}
		have[doc.Category] = true
	}
	for _, category := range required {
		if !have[category] {
			t.Errorf("no seed content for category %q", category)
		}
	}
}

func TestSeedResourcesIncludeHotline(t *testing.T) {
	found := false
	for _, res := range seedResources {
		if res.ID == "" {
			t.Errorf("seed resource %q needs a fixed ID", res.Name)
		}
		if res.Contact == "1-800-273-8255" && res.IsActive {
			found = true
		}
	}
	if !found {
		t.Error("seed resources must include the active crisis hotline")
	}
}

func TestPrintResponse(t *testing.T) {
	var buf bytes.Buffer
	printResponse(&buf, "aquí estoy", "low", []string{"registra tu ánimo"})
	out := buf.String()
	if !strings.Contains(out, "aquí estoy") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "[low]") {
		t.Error("low tier should not print the tier banner")
	}

	buf.Reset()
	printResponse(&buf, "busca ayuda", "crisis", []string{"llama a la línea de crisis"})
	out = buf.String()
	if !strings.Contains(out, "[crisis]") || !strings.Contains(out, "llama a la línea de crisis") {
		t.Errorf("output = %q", out)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"serve": false, "onboard": false, "seed": false, "chat": false, "mood": false, "status": false}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}
