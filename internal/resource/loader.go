package resource

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"PagedAPI/internal/logger"

	"gopkg.in/yaml.v3"
)

var allowedResourceKeys = map[string]bool{
	"table":         true,
	"columns":       true,
	"filterable":    true,
	"sortable":      true,
	"range_filters": true,
	"custom_order":  true,
	"claim_scope":   true,
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadDir reads every *.yml in dir; the file name is the resource name.
func LoadDir(dir string) (Registry, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	reg := Registry{}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		res, err := Parse(name, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		reg[name] = res
		logger.Info("resource_loaded", map[string]any{
			"resource":   name,
			"table":      res.Table,
			"filterable": len(res.Filterable),
			"sortable":   len(res.Sortable),
		})
	}
	if len(reg) == 0 {
		return nil, fmt.Errorf("no resources found in %s", dir)
	}
	return reg, nil
}

// Parse decodes and validates one resource document.
func Parse(name string, data []byte) (*Resource, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("empty YAML")
	}
	if err := validateKeys(root.Content[0]); err != nil {
		return nil, err
	}

	var res Resource
	if err := root.Decode(&res); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}
	res.Name = name
	if err := res.validate(); err != nil {
		return nil, err
	}
	return &res, nil
}

func validateKeys(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("resource must be a mapping (line %d)", node.Line)
	}
	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i]
		if !allowedResourceKeys[key.Value] {
			return fmt.Errorf("unknown key %q (line %d)", key.Value, key.Line)
		}
	}
	return nil
}

func (r *Resource) validate() error {
	if !identifier.MatchString(r.Table) {
		return fmt.Errorf("resource %s: invalid table %q", r.Name, r.Table)
	}
	columns := map[string]bool{}
	for _, c := range r.Columns {
		if !identifier.MatchString(c) {
			return fmt.Errorf("resource %s: invalid column %q", r.Name, c)
		}
		columns[c] = true
	}
	known := func(attr string) bool { return len(columns) == 0 || columns[attr] }

	filterable := map[string]bool{}
	for _, f := range r.Filterable {
		if !identifier.MatchString(f) || !known(f) {
			return fmt.Errorf("resource %s: filterable %q is not a column", r.Name, f)
		}
		filterable[f] = true
	}
	for _, s := range r.Sortable {
		if !identifier.MatchString(s) || !known(s) {
			return fmt.Errorf("resource %s: sortable %q is not a column", r.Name, s)
		}
		if s != strings.ToLower(s) {
			// sort tokens are lower-cased before matching, so this key is unreachable
			logger.Warn("sortable_not_lowercase", map[string]any{"resource": r.Name, "attribute": s})
		}
	}
	for _, f := range r.RangeFilters {
		if !filterable[f] {
			return fmt.Errorf("resource %s: range filter %q is not filterable", r.Name, f)
		}
	}
	if r.CustomOrder != "" && (!identifier.MatchString(r.CustomOrder) || !known(r.CustomOrder)) {
		return fmt.Errorf("resource %s: custom_order %q is not a column", r.Name, r.CustomOrder)
	}
	for col, claim := range r.ClaimScope {
		if !identifier.MatchString(col) || !known(col) {
			return fmt.Errorf("resource %s: claim_scope column %q is not a column", r.Name, col)
		}
		if strings.TrimSpace(claim) == "" {
			return fmt.Errorf("resource %s: claim_scope %q names no claim", r.Name, col)
		}
	}
	return nil
}
