package service

import "strings"

// normalizeTag lowercases a raw tag and strips everything that is not a
// letter or digit. Returns "" when nothing survives.
func normalizeTag(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeTags maps raw tags to the canonical lowercase alphanumeric
// form, dropping empties and duplicates while preserving first-seen order.
func NormalizeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))
	for _, r := range raw {
		tag := normalizeTag(r)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// missingTags returns the normalized tags not already present in existing.
func missingTags(existing, candidate []string) []string {
	have := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		have[t] = struct{}{}
	}
	var missing []string
	for _, t := range candidate {
		if _, ok := have[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}
