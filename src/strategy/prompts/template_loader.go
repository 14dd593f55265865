package prompts

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoadTemplate reads strategy/prompts/<name>.tmpl, trying the working
// directory first and the src/ layout second so both installed and
// in-repo runs resolve.
func LoadTemplate(name string) (string, error) {
	templatePath := filepath.Join("strategy", "prompts", name+".tmpl")

	content, err := os.ReadFile(templatePath)
	if err != nil {
		srcPath := filepath.Join("src", "strategy", "prompts", name+".tmpl")
		content, err = os.ReadFile(srcPath)
		if err != nil {
			return "", fmt.Errorf("failed to load template %s or %s: %w", templatePath, srcPath, err)
		}
	}

	return string(content), nil
}

// LoadContractFile reads a .cash source file for audit/repair/lint modes.
func LoadContractFile(inputFile string) (string, error) {
	if inputFile == "" {
		return "", nil
	}

	if _, err := os.Stat(inputFile); os.IsNotExist(err) {
		return "", fmt.Errorf("input file not found: %s", inputFile)
	}

	content, err := os.ReadFile(inputFile)
	if err != nil {
		return "", fmt.Errorf("failed to load input file %s: %w", inputFile, err)
	}

	return string(content), nil
}
