package main

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/CovenantBits/Covforge/src/cmd"
	"github.com/CovenantBits/Covforge/src/internal/ui"
)

//go:embed config/settings.example.yaml
//go:embed strategy/prompts/*.tmpl
//go:embed knowledge/antipatterns/*.md
//go:embed knowledge/primitives.md
//go:embed benchmark/dataset.json
var embeddedFiles embed.FS

func main() {
	if err := initResources(); err != nil {
		cmd.PrintFatal(err)
	}

	cmd.Print()
	if err := cmd.Run(); err != nil {
		cmd.PrintFatal(err)
	}
}

// initResources materializes the embedded defaults into the working
// directory on first run. Existing files are never overwritten, so local
// edits to prompts, rules and config survive upgrades.
func initResources() error {
	if err := initConfigFile(); err != nil {
		return fmt.Errorf("failed to init config file: %w", err)
	}

	for _, root := range []string{"strategy", "knowledge", "benchmark"} {
		if err := restoreTree(root); err != nil {
			return fmt.Errorf("failed to init %s files: %w", root, err)
		}
	}

	return nil
}

func initConfigFile() error {
	targetDir := "config"
	targetFile := filepath.Join(targetDir, "settings.yaml")

	if _, err := os.Stat(targetFile); err == nil {
		return nil
	}

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return err
	}

	data, err := embeddedFiles.ReadFile("config/settings.example.yaml")
	if err != nil {
		return err
	}

	if err := os.WriteFile(targetFile, data, 0644); err != nil {
		return err
	}

	fmt.Printf(ui.Green+"✅ Created default config file: %s"+ui.Reset+"\n", targetFile)
	return nil
}

func restoreTree(root string) error {
	return fs.WalkDir(embeddedFiles, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		if _, err := os.Stat(path); err == nil {
			return nil
		}

		data, err := embeddedFiles.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return err
		}
		fmt.Printf(ui.Green+"✅ Restored resource file: %s"+ui.Reset+"\n", path)
		return nil
	})
}
