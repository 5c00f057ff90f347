package knowledge

import (
	"fmt"
	"regexp"
	"strings"
)

// Field limits mirror the column definitions in the schema so invalid
// input is rejected before a round trip.
const (
	maxNameLength        = 255
	maxDescriptionLength = 10000
	maxContentLength     = 10000
	maxTypeLength        = 100
	maxTagCount          = 50
)

var tagPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

// NormalizeTag lowercases and trims a tag, reporting whether the
// result is storable. Exposed so generated tag lists can be filtered
// per tag instead of rejected wholesale.
func NormalizeTag(tag string) (string, bool) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return tag, tagPattern.MatchString(tag)
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len(name) > maxNameLength {
		return "", &ValidationError{Field: "name", Reason: fmt.Sprintf("exceeds %d characters", maxNameLength)}
	}
	return name, nil
}

func validateDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if len(description) > maxDescriptionLength {
		return "", &ValidationError{Field: "description", Reason: fmt.Sprintf("exceeds %d characters", maxDescriptionLength)}
	}
	return description, nil
}

// validateTags normalizes and checks a tag list. Tags are stored
// lowercase so lookups are case-insensitive.
func validateTags(tags []string) ([]string, error) {
	if len(tags) > maxTagCount {
		return nil, &ValidationError{Field: "tags", Reason: fmt.Sprintf("more than %d tags", maxTagCount)}
	}
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag, ok := NormalizeTag(tag)
		if !ok {
			return nil, &ValidationError{
				Field:  "tags",
				Reason: fmt.Sprintf("tag %q must be 1-50 characters of letters, digits, underscore or hyphen", tag),
			}
		}
		normalized = append(normalized, tag)
	}
	return normalized, nil
}

func validateFactType(factType string) (string, error) {
	factType = strings.TrimSpace(factType)
	if factType == "" {
		return "", &ValidationError{Field: "fact_type", Reason: "must not be empty"}
	}
	if len(factType) > maxTypeLength {
		return "", &ValidationError{Field: "fact_type", Reason: fmt.Sprintf("exceeds %d characters", maxTypeLength)}
	}
	return factType, nil
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if len(content) > maxContentLength {
		return "", &ValidationError{Field: "content", Reason: fmt.Sprintf("exceeds %d characters", maxContentLength)}
	}
	return content, nil
}

func validateRelationType(relationType string) (string, error) {
	relationType = strings.TrimSpace(relationType)
	if relationType == "" {
		return "", &ValidationError{Field: "relation_type", Reason: "must not be empty"}
	}
	if len(relationType) > maxTypeLength {
		return "", &ValidationError{Field: "relation_type", Reason: fmt.Sprintf("exceeds %d characters", maxTypeLength)}
	}
	return relationType, nil
}

func validateStrength(strength float64) error {
	if strength < 0 || strength > 1 {
		return &ValidationError{Field: "strength", Reason: "must be between 0.0 and 1.0"}
	}
	return nil
}

func validateID(field string, id int64) error {
	if id <= 0 {
		return &ValidationError{Field: field, Reason: "must be a positive identifier"}
	}
	return nil
}
