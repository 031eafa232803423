package vmware

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/carverauto/vmready/pkg/logger"
	"github.com/carverauto/vmready/pkg/models"
)

const vmxExt = ".vmx"

// Discover maps every subdirectory of root to the .vmx file inside it. A file
// whose name matches the directory, ignoring case and spaces, wins; otherwise
// the first one in sorted order is used. A missing root yields no VMs.
func Discover(root string) (map[string]string, error) {
	found := make(map[string]string)

	if root == "" {
		return found, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return found, nil
		}

		return nil, err
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		dir := filepath.Join(root, e.Name())

		vmx, err := chooseVMX(dir)
		if err != nil {
			return nil, err
		}

		if vmx != "" {
			found[e.Name()] = vmx
		}
	}

	return found, nil
}

func chooseVMX(dir string) (string, error) {
	var candidates []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), vmxExt) {
			candidates = append(candidates, path)
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	if len(candidates) == 0 {
		return "", nil
	}

	sort.Strings(candidates)

	want := nameKey(filepath.Base(dir))

	for _, c := range candidates {
		if nameKey(strings.TrimSuffix(filepath.Base(c), filepath.Ext(c))) == want {
			return c, nil
		}
	}

	return candidates[0], nil
}

func nameKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", ""))
}

// Inventory merges discovery under VMRoot with the configured aliases and
// assigns each VM its named credential when one exists.
func (c *Config) Inventory(log logger.Logger) ([]models.VMIdentity, error) {
	found, err := Discover(c.VMRoot)
	if err != nil {
		return nil, err
	}

	for name, path := range c.Aliases {
		if prev, ok := found[name]; ok && !SamePath(prev, path) {
			log.Info().Str("vm", name).Str("discovered", prev).Str("alias", path).Msg("Alias overrides discovered VM")
		}

		found[name] = path
	}

	ids := make([]models.VMIdentity, 0, len(found))

	for name, path := range found {
		id := models.VMIdentity{Name: name, VMXPath: path}
		if _, ok := c.Guest.Named[name]; ok {
			id.CredentialRef = name
		}

		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i].Name < ids[j].Name })

	return ids, nil
}
