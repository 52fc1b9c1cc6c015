package skills

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// Root is a directory scanned for skills. Each immediate subdirectory
// containing a SKILL.md is a candidate skill.
type Root struct {
	Path     string
	Source   Source
	priority int
}

// Root priorities: higher wins on name collision.
const (
	priorityBundled   = 10
	priorityManaged   = 20
	priorityWorkspace = 30
	priorityPlugin    = 40
	priorityExtra     = 50
)

func sourcePriority(src Source) int {
	switch src {
	case SourceBundled:
		return priorityBundled
	case SourceManaged:
		return priorityManaged
	case SourceWorkspace:
		return priorityWorkspace
	case SourcePlugin:
		return priorityPlugin
	default:
		return priorityExtra
	}
}

// NewRoot creates a discovery root for a source type.
func NewRoot(path string, source Source) Root {
	return Root{Path: path, Source: source, priority: sourcePriority(source)}
}

// DefaultRoots builds the fixed-priority root list: bundled < managed <
// workspace < extra. Empty paths are skipped.
func DefaultRoots(bundled, managed, workspace string, extra []string) []Root {
	var roots []Root
	if bundled != "" {
		roots = append(roots, NewRoot(bundled, SourceBundled))
	}
	if managed != "" {
		roots = append(roots, NewRoot(managed, SourceManaged))
	}
	if workspace != "" {
		roots = append(roots, NewRoot(workspace, SourceWorkspace))
	}
	for _, dir := range extra {
		if dir != "" {
			roots = append(roots, NewRoot(dir, SourceExtra))
		}
	}
	return roots
}

// Discover scans all roots in priority order and returns the merged skill
// set. Within a root, skills load in lexicographic path order. On a name
// collision the higher-priority source wins and the collision is logged as
// a warning. Load failures skip the skill and are logged, never fatal.
func Discover(ctx context.Context, roots []Root, logger *slog.Logger) []*Skill {
	if logger == nil {
		logger = slog.Default().With("component", "skills")
	}

	ordered := make([]Root, len(roots))
	copy(ordered, roots)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].priority < ordered[j].priority
	})

	byName := make(map[string]*Skill)
	var order []string

	for _, root := range ordered {
		for _, skill := range discoverRoot(ctx, root, logger) {
			existing, ok := byName[skill.Name]
			if !ok {
				byName[skill.Name] = skill
				order = append(order, skill.Name)
				continue
			}
			if skill.sourcePriority >= existing.sourcePriority {
				logger.Warn("skill name collision, later source wins",
					"name", skill.Name,
					"kept", skill.Path,
					"shadowed", existing.Path)
				byName[skill.Name] = skill
			} else {
				logger.Warn("skill name collision, existing source wins",
					"name", skill.Name,
					"kept", existing.Path,
					"shadowed", skill.Path)
			}
		}
	}

	result := make([]*Skill, 0, len(order))
	for _, name := range order {
		result = append(result, byName[name])
	}
	sortSkills(result)
	return result
}

func discoverRoot(ctx context.Context, root Root, logger *slog.Logger) []*Skill {
	info, err := os.Stat(root.Path)
	if err != nil || !info.IsDir() {
		logger.Debug("skill root unavailable", "path", root.Path)
		return nil
	}

	entries, err := os.ReadDir(root.Path)
	if err != nil {
		logger.Warn("read skill root", "path", root.Path, "error", err)
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var skills []*Skill
	for _, name := range names {
		select {
		case <-ctx.Done():
			return skills
		default:
		}

		skillFile := filepath.Join(root.Path, name, SkillFilename)
		if _, err := os.Stat(skillFile); err != nil {
			continue
		}

		skill, err := ParseFile(skillFile)
		if err != nil {
			logger.Warn("skipping skill", "path", skillFile, "error", err)
			continue
		}
		skill.Source = root.Source
		skill.sourcePriority = root.priority
		skills = append(skills, skill)
	}
	return skills
}

func sortSkills(skills []*Skill) {
	sort.Slice(skills, func(i, j int) bool {
		return skills[i].Name < skills[j].Name
	})
}
