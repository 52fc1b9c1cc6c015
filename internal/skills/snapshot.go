package skills

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// PromptFormat selects how a snapshot renders into the system prompt.
type PromptFormat string

const (
	// FormatStructured renders delimited <skill> blocks. Default.
	FormatStructured PromptFormat = "structured"

	// FormatHeadings renders Markdown "## <emoji> <name>" sections.
	FormatHeadings PromptFormat = "headings"

	// FormatJSON renders a machine-readable array.
	FormatJSON PromptFormat = "json"
)

// DefaultDescriptionBudget caps the metadata-only prompt projection.
const DefaultDescriptionBudget = 16000

// Snapshot is an immutable, versioned view of the eligible skill set with
// a pre-rendered prompt. Hot reload produces a fresh snapshot with
// version+1; an old snapshot remains valid for any in-flight turn holding
// a reference to it.
type Snapshot struct {
	skills    []*Skill
	byName    map[string]*Skill
	prompt    string
	version   uint64
	createdAt time.Time
	hash      string
}

// BuildSnapshot renders the eligible skills into a snapshot. Skills are
// ordered by name; the content hash is stable across runs for identical
// skill sets.
func BuildSnapshot(eligible []*Skill, format PromptFormat, version uint64) *Snapshot {
	skills := make([]*Skill, len(eligible))
	copy(skills, eligible)
	sortSkills(skills)

	byName := make(map[string]*Skill, len(skills))
	for _, skill := range skills {
		byName[skill.Name] = skill
	}

	return &Snapshot{
		skills:    skills,
		byName:    byName,
		prompt:    renderPrompt(skills, format),
		version:   version,
		createdAt: time.Now(),
		hash:      contentHash(skills),
	}
}

// Skills returns the member skills in stable order. The returned slice is
// a copy; the snapshot never mutates.
func (s *Snapshot) Skills() []*Skill {
	out := make([]*Skill, len(s.skills))
	copy(out, s.skills)
	return out
}

// Get returns a member skill by name.
func (s *Snapshot) Get(name string) (*Skill, bool) {
	skill, ok := s.byName[name]
	return skill, ok
}

// Prompt returns the pre-rendered prompt text.
func (s *Snapshot) Prompt() string { return s.prompt }

// Version returns the monotonic snapshot version.
func (s *Snapshot) Version() uint64 { return s.version }

// CreatedAt returns the snapshot creation time.
func (s *Snapshot) CreatedAt() time.Time { return s.createdAt }

// Hash returns the content hash over all member skills.
func (s *Snapshot) Hash() string { return s.hash }

// Len returns the number of member skills.
func (s *Snapshot) Len() int { return len(s.skills) }

// MetadataPrompt renders the name+description projection used when the
// system prompt is optimised for on-demand loading. The budget caps the
// output in characters; truncation happens at skill boundaries so the
// model never sees a half-described skill.
func (s *Snapshot) MetadataPrompt(budget int) string {
	if budget <= 0 {
		budget = DefaultDescriptionBudget
	}

	var b strings.Builder
	b.WriteString("Available skills (load full instructions with the skill tool):\n")
	for _, skill := range s.skills {
		line := fmt.Sprintf("- %s: %s\n", skill.Name, skill.Description)
		if b.Len()+len(line) > budget {
			break
		}
		b.WriteString(line)
	}
	return b.String()
}

func renderPrompt(skills []*Skill, format PromptFormat) string {
	switch format {
	case FormatHeadings:
		return renderHeadings(skills)
	case FormatJSON:
		return renderJSON(skills)
	default:
		return renderStructured(skills)
	}
}

func renderStructured(skills []*Skill) string {
	var b strings.Builder
	for _, skill := range skills {
		b.WriteString("<skill>\n")
		b.WriteString("name: " + skill.Name + "\n")
		if skill.Metadata != nil && skill.Metadata.Emoji != "" {
			b.WriteString("emoji: " + skill.Metadata.Emoji + "\n")
		}
		b.WriteString("description: " + skill.Description + "\n")
		if skill.Content != "" {
			b.WriteString(skill.Content)
			b.WriteString("\n")
		}
		b.WriteString("</skill>\n")
	}
	return b.String()
}

func renderHeadings(skills []*Skill) string {
	var b strings.Builder
	for _, skill := range skills {
		heading := "## "
		if skill.Metadata != nil && skill.Metadata.Emoji != "" {
			heading += skill.Metadata.Emoji + " "
		}
		heading += skill.Name + "\n\n"
		b.WriteString(heading)
		b.WriteString(skill.Description + "\n\n")
		if skill.Content != "" {
			b.WriteString(skill.Content)
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func renderJSON(skills []*Skill) string {
	type entry struct {
		Name        string `json:"name"`
		Emoji       string `json:"emoji,omitempty"`
		Description string `json:"description"`
		Content     string `json:"content,omitempty"`
	}
	entries := make([]entry, 0, len(skills))
	for _, skill := range skills {
		e := entry{Name: skill.Name, Description: skill.Description, Content: skill.Content}
		if skill.Metadata != nil {
			e.Emoji = skill.Metadata.Emoji
		}
		entries = append(entries, e)
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return "[]"
	}
	return string(payload)
}

// contentHash digests the sorted serialised skills. The algorithm is an
// implementation detail; it only needs to be stable across runs.
func contentHash(skills []*Skill) string {
	sorted := make([]*Skill, len(skills))
	copy(sorted, skills)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	h := sha256.New()
	for _, skill := range sorted {
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00", skill.Name, skill.Description, skill.Content, skill.Source)
	}
	return hex.EncodeToString(h.Sum(nil))
}
