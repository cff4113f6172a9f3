package service

import (
	"reflect"
	"testing"
)

func TestNormalizeTag(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "lowercase passthrough", raw: "sunset", want: "sunset"},
		{name: "uppercase folded", raw: "SunSet", want: "sunset"},
		{name: "whitespace stripped", raw: "  beach  ", want: "beach"},
		{name: "punctuation dropped", raw: "city-scape!", want: "cityscape"},
		{name: "digits kept", raw: "4k", want: "4k"},
		{name: "only punctuation", raw: "---", want: ""},
		{name: "empty", raw: "", want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeTag(tc.raw); got != tc.want {
				t.Errorf("normalizeTag(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	testCases := []struct {
		name string
		raw  []string
		want []string
	}{
		{
			name: "dedupes preserving first occurrence order",
			raw:  []string{"Sunset", "beach", "SUNSET", "beach"},
			want: []string{"sunset", "beach"},
		},
		{
			name: "drops tags that normalize to empty",
			raw:  []string{"!!!", "ocean", "  "},
			want: []string{"ocean"},
		},
		{
			name: "all invalid yields empty",
			raw:  []string{"", "?!"},
			want: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeTags(tc.raw)
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("NormalizeTags(%v) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestMissingTags(t *testing.T) {
	got := missingTags([]string{"sunset", "beach"}, []string{"beach", "ocean", "sunset", "palm"})
	want := []string{"ocean", "palm"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("missingTags = %v, want %v", got, want)
	}
}
