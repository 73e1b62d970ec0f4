// cmd/svm/commands/init.go
package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Manifest is the on-disk shape of a project's svm.json (SPEC_FULL §10
// "Configuration"), read with encoding/json the same way the teacher's
// InitCommand writes and a subsequent build reads sentra.json.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Entry       string   `json:"entry_label"`
	Objects     []string `json:"objects"`
	RegistryDSN string   `json:"registry_dsn"`
}

// InitCommand scaffolds a new project directory with an svm.json
// manifest, an empty obj/ directory for object files, and a .gitignore. Grounded
// on sentra/cmd/sentra/commands.InitCommand's directory+manifest
// scaffold, trimmed to this toolchain's object-file/link model instead
// of a source-file/dependency one.
func InitCommand(args []string) error {
	name := "svm-project"
	if len(args) > 0 {
		name = args[0]
	}

	fmt.Printf("svm init: scaffolding project %q\n", name)

	if err := os.MkdirAll(name, 0755); err != nil {
		return fmt.Errorf("svm init: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(name, "obj"), 0755); err != nil {
		return fmt.Errorf("svm init: %w", err)
	}

	manifest := Manifest{
		Name:        name,
		Version:     "0.1.0",
		Entry:       "main",
		Objects:     []string{"obj/main.svmobj"},
		RegistryDSN: "",
	}
	body, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("svm init: %w", err)
	}
	if err := os.WriteFile(filepath.Join(name, "svm.json"), append(body, '\n'), 0644); err != nil {
		return fmt.Errorf("svm init: %w", err)
	}

	gitignore := "*.out.svm\n*.svmobj\n"
	if err := os.WriteFile(filepath.Join(name, ".gitignore"), []byte(gitignore), 0644); err != nil {
		return fmt.Errorf("svm init: %w", err)
	}

	fmt.Printf(`
wrote %[1]s/svm.json
wrote %[1]s/.gitignore

Next steps:
  cd %[1]s
  svm link obj/*.svmobj -o a.out.svm
  svm run a.out.svm
`, name)
	return nil
}

// LoadManifest reads and parses a project's svm.json.
func LoadManifest(path string) (Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("svm: reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, fmt.Errorf("svm: parsing manifest %s: %w", path, err)
	}
	return m, nil
}
