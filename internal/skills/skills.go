// Package skills discovers named, directory-backed skill packs and
// resolves activation requests to their instructions and tool
// restriction. A skill pack is a directory containing a SKILL.md file:
// a YAML frontmatter block (name, description, allowed_tools) followed
// by a markdown body that becomes the pack's instructions once active.
package skills

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jgarzik/yo/internal/toolerr"
)

// Pack is one discovered skill bundle.
type Pack struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	AllowedTools []string `yaml:"allowed_tools"`
	Instructions string   `yaml:"-"`
	Path         string   `yaml:"-"`
}

// frontmatter delimits a leading "---\n...\n---\n" YAML block from the
// markdown body that follows it.
func splitFrontmatter(content string) (yamlBlock, body string, ok bool) {
	const delim = "---"
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delim {
		return "", content, false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delim {
			return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n"), true
		}
	}
	return "", content, false
}

// loadPack parses one skill directory's SKILL.md.
func loadPack(dir string) (Pack, error) {
	skillPath := filepath.Join(dir, "SKILL.md")
	f, err := os.Open(skillPath)
	if err != nil {
		return Pack{}, err
	}
	defer f.Close()

	sb := &strings.Builder{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return Pack{}, err
	}

	yamlBlock, body, hasFrontmatter := splitFrontmatter(sb.String())
	var p Pack
	if hasFrontmatter {
		if err := yaml.Unmarshal([]byte(yamlBlock), &p); err != nil {
			return Pack{}, fmt.Errorf("%s: parse frontmatter: %w", skillPath, err)
		}
	}
	if p.Name == "" {
		p.Name = filepath.Base(dir)
	}
	p.Instructions = strings.TrimSpace(body)
	p.Path = dir
	return p, nil
}

// Discover scans dir's immediate subdirectories for skill packs,
// skipping any that have no SKILL.md. Missing dir is not an error: it
// simply yields no packs.
func Discover(dir string) ([]Pack, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read skills directory %s: %w", dir, err)
	}

	var packs []Pack
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := filepath.Join(dir, e.Name())
		p, err := loadPack(sub)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		packs = append(packs, p)
	}
	sort.Slice(packs, func(i, j int) bool { return packs[i].Name < packs[j].Name })
	return packs, nil
}

// Registry is an in-memory lookup of discovered packs, keyed by name.
type Registry struct {
	packs map[string]Pack
}

// NewRegistry discovers packs from every directory in dirs, in order;
// a later directory's pack with the same name overrides an earlier one
// (workspace-local packs shadow bundled ones).
func NewRegistry(dirs []string) (*Registry, error) {
	r := &Registry{packs: make(map[string]Pack)}
	for _, dir := range dirs {
		packs, err := Discover(dir)
		if err != nil {
			return nil, err
		}
		for _, p := range packs {
			r.packs[p.Name] = p
		}
	}
	return r, nil
}

// Get looks up a pack by name.
func (r *Registry) Get(name string) (Pack, bool) {
	p, ok := r.packs[name]
	return p, ok
}

// Names returns every registered pack name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.packs))
	for name := range r.packs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Activate looks up name and returns its instructions and allowed-tools
// restriction, or an activation_failed error if no such pack exists.
// The return shape (instructions + tool list) mirrors agent.SkillActivation
// without importing package agent, avoiding an import cycle; the session
// layer adapts the result when wiring agent.Loop.ActivateSkill.
func (r *Registry) Activate(name string) (instructions string, allowedTools []string, err error) {
	p, ok := r.packs[name]
	if !ok {
		return "", nil, toolerr.New(toolerr.CodeActivationFailed, fmt.Sprintf("no such skill pack: %s", name))
	}
	return p.Instructions, p.AllowedTools, nil
}
