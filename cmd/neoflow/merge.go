package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"neoflow/internal/domain"
	"neoflow/internal/service"
)

// MergeManifest lists the files of one merge submission in slot order.
type MergeManifest struct {
	Template string              `yaml:"template"`
	Files    []MergeManifestFile `yaml:"files"`
}

// MergeManifestFile is one slot. DocType overrides the type derived from
// the template's merge rule.
type MergeManifestFile struct {
	Path    string `yaml:"path"`
	DocType string `yaml:"doc_type,omitempty"`
}

// LoadMergeManifest reads a manifest and resolves file paths relative to
// the manifest's directory.
func LoadMergeManifest(path string) (*MergeManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m MergeManifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if m.Template == "" {
		return nil, fmt.Errorf("manifest %s: template is required", path)
	}
	if len(m.Files) == 0 {
		return nil, fmt.Errorf("manifest %s: at least one file is required", path)
	}
	base := filepath.Dir(path)
	for i := range m.Files {
		if m.Files[i].Path == "" {
			return nil, fmt.Errorf("manifest %s: file %d has no path", path, i)
		}
		if !filepath.IsAbs(m.Files[i].Path) {
			m.Files[i].Path = filepath.Join(base, m.Files[i].Path)
		}
	}
	return &m, nil
}

// docTypes resolves the per-slot doc types from the template's merge rule,
// letting manifest entries override them.
func (m *MergeManifest) docTypes(tpl *domain.Template, rules []domain.MergeRule) []string {
	types := make([]string, len(m.Files))
	for _, r := range rules {
		if r.TemplateID == tpl.ID {
			types = service.SlotDocTypes(r, len(m.Files))
			break
		}
	}
	for i, f := range m.Files {
		if f.DocType != "" {
			types[i] = f.DocType
		}
	}
	return types
}

func mergeCommand() *Command {
	c := &Command{
		Name:        "merge",
		Description: "Upload the files of a merge template in slot order and submit them together",
		Usage:       "neoflow merge [--watch] <manifest.yaml>",
		Examples: []string{
			"neoflow merge inspection.yaml",
			"# inspection.yaml:",
			"#   template: inspection_merge",
			"#   files:",
			"#     - path: report.pdf",
			"#     - path: manual.png",
			"#       doc_type: 说明书",
		},
	}
	c.Run = func(ctx context.Context, e *env, args []string) error {
		fs := c.NewFlagSet(e.out)
		watch := fs.Bool("watch", false, "poll the merged document until terminal")
		if err := parse(fs, args, 1, "manifest path"); err != nil {
			return quiet(err)
		}
		manifest, err := LoadMergeManifest(fs.Arg(0))
		if err != nil {
			return err
		}

		tpl, err := e.docs.Template(ctx, manifest.Template)
		if err != nil {
			return err
		}
		rules, err := e.docs.MergeRules(ctx)
		if err != nil {
			return err
		}
		batch, err := e.merge.NewBatch(*tpl, manifest.docTypes(tpl, rules))
		if err != nil {
			return err
		}
		for i, f := range manifest.Files {
			file, err := readUploadFile(f.Path)
			if err != nil {
				return err
			}
			if err := batch.Fill(i, file); err != nil {
				return fmt.Errorf("slot %d (%s): %w", i, f.Path, err)
			}
		}

		last := -10
		resp, err := e.merge.Submit(ctx, batch, func(p int) {
			if p >= last+10 || (p == 100 && last != 100) {
				e.printf("upload %3d%%\n", p)
				last = p
			}
		})
		if err != nil {
			return err
		}
		e.printf("%s\t%s\t%s\n", resp.DocumentID, resp.Status, resp.Message)
		if *watch && !resp.Status.IsTerminal() {
			return watchAll(ctx, e, []string{resp.DocumentID})
		}
		return nil
	}
	return c
}
