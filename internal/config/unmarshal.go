package config

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML accepts either a bare model name or a mapping with
// provider_id (or providerId) and model.
func (a *AIModelAssignment) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var model string
		if err := value.Decode(&model); err != nil {
			return err
		}
		a.Model = strings.TrimSpace(model)
		return nil
	}

	var raw struct {
		ProviderID      string `yaml:"provider_id"`
		ProviderIDCamel string `yaml:"providerId"`
		Model           string `yaml:"model"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	a.ProviderID = strings.TrimSpace(raw.ProviderID)
	if a.ProviderID == "" {
		a.ProviderID = strings.TrimSpace(raw.ProviderIDCamel)
	}
	a.Model = strings.TrimSpace(raw.Model)
	return nil
}
