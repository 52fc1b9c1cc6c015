package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// SkillFilename is the expected filename for skill definitions.
	SkillFilename = "SKILL.md"

	// FrontmatterDelimiter marks the beginning and end of YAML frontmatter.
	FrontmatterDelimiter = "---"

	// MaxNameLength bounds the skill name.
	MaxNameLength = 64

	// MaxDescriptionLength bounds the skill description.
	MaxDescriptionLength = 1024
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// LoaderError reports a skill file that could not be loaded. The offending
// skill is skipped; other skills load normally.
type LoaderError struct {
	Path   string
	Reason string
}

func (e *LoaderError) Error() string {
	return fmt.Sprintf("load skill %s: %s", e.Path, e.Reason)
}

// ParseFile parses a SKILL.md file and returns a Skill.
func ParseFile(path string) (*Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoaderError{Path: path, Reason: err.Error()}
	}
	skill, err := Parse(data, filepath.Dir(path))
	if err != nil {
		if le, ok := err.(*LoaderError); ok {
			le.Path = path
			return nil, le
		}
		return nil, &LoaderError{Path: path, Reason: err.Error()}
	}
	return skill, nil
}

// Parse parses SKILL.md content and returns a Skill.
func Parse(data []byte, skillPath string) (*Skill, error) {
	frontmatter, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, &LoaderError{Path: skillPath, Reason: err.Error()}
	}

	var skill Skill
	if err := yaml.Unmarshal(frontmatter, &skill); err != nil {
		return nil, &LoaderError{Path: skillPath, Reason: fmt.Sprintf("parse frontmatter: %v", err)}
	}

	if err := Validate(&skill); err != nil {
		return nil, &LoaderError{Path: skillPath, Reason: err.Error()}
	}

	skill.Content = strings.TrimSpace(string(body))
	skill.Path = skillPath

	return &skill, nil
}

// ValidName reports whether name is a legal skill name: lowercase
// alphanumerics and hyphens, no leading hyphen, at most 64 characters.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Validate checks the required fields and bounds of a parsed skill.
func Validate(skill *Skill) error {
	if skill.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !ValidName(skill.Name) {
		return fmt.Errorf("invalid name %q: want lowercase alphanumerics and hyphens, max %d chars", skill.Name, MaxNameLength)
	}
	if skill.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(skill.Description) > MaxDescriptionLength {
		return fmt.Errorf("description exceeds %d characters", MaxDescriptionLength)
	}
	switch skill.Context {
	case "", ContextInline, ContextFork:
	default:
		return fmt.Errorf("invalid context %q: want inline or fork", skill.Context)
	}
	return nil
}

// splitFrontmatter separates YAML frontmatter from the markdown body.
func splitFrontmatter(data []byte) ([]byte, []byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	if !scanner.Scan() {
		return nil, nil, fmt.Errorf("empty file")
	}
	if strings.TrimSpace(scanner.Text()) != FrontmatterDelimiter {
		return nil, nil, fmt.Errorf("missing opening frontmatter delimiter")
	}

	var frontmatterLines []string
	foundClosing := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == FrontmatterDelimiter {
			foundClosing = true
			break
		}
		frontmatterLines = append(frontmatterLines, line)
	}
	if !foundClosing {
		return nil, nil, fmt.Errorf("missing closing frontmatter delimiter")
	}

	var bodyLines []string
	for scanner.Scan() {
		bodyLines = append(bodyLines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan: %w", err)
	}

	frontmatter := []byte(strings.Join(frontmatterLines, "\n"))
	body := []byte(strings.Join(bodyLines, "\n"))
	return frontmatter, body, nil
}
