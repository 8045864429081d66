package main

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/iammorganparry/timeline/internal/models"
)

func TestFindChronicle(t *testing.T) {
	stored := map[string]*models.ChronicleWithEntries{
		"abc12345-0000": {Chronicle: models.Chronicle{ID: "abc12345-0000", Title: "Rome"}},
		"abd99999-0000": {Chronicle: models.Chronicle{ID: "abd99999-0000", Title: "Moon"}},
	}
	get := func(id string) (*models.ChronicleWithEntries, error) { return stored[id], nil }
	list := func(int) ([]*models.Chronicle, error) {
		return []*models.Chronicle{&stored["abc12345-0000"].Chronicle, &stored["abd99999-0000"].Chronicle}, nil
	}

	tests := []struct {
		name      string
		id        string
		wantTitle string
		wantErr   bool
	}{
		{"full id", "abd99999-0000", "Moon", false},
		{"unique prefix", "abc1", "Rome", false},
		{"ambiguous prefix", "ab", "", true},
		{"unknown", "zzz", "", true},
		{"empty", "", "", true},
		{"blank", "  ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := findChronicle(io.Discard, get, list, tt.id)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", c)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", c.Title, tt.wantTitle)
			}
		})
	}
}

func TestFindChronicleLookupError(t *testing.T) {
	boom := errors.New("db locked")
	get := func(string) (*models.ChronicleWithEntries, error) { return nil, boom }
	list := func(int) ([]*models.Chronicle, error) { return nil, nil }

	if _, err := findChronicle(io.Discard, get, list, "x"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestFindChronicleHintGoesToWriter(t *testing.T) {
	get := func(string) (*models.ChronicleWithEntries, error) { return nil, nil }
	list := func(int) ([]*models.Chronicle, error) { return nil, nil }

	var stderr bytes.Buffer
	if _, err := findChronicle(&stderr, get, list, "missing"); err == nil {
		t.Fatal("expected not found error")
	}
	if !strings.Contains(stderr.String(), "timeline chronicles") {
		t.Errorf("stderr = %q, want a hint to list chronicles", stderr.String())
	}
}
