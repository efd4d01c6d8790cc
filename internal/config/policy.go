package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/tenant_portal/internal/tenancy"
)

// LoadPolicyFromPath reads a YAML routing policy. Keys absent from the file
// keep their default lists.
func LoadPolicyFromPath(path string) (tenancy.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tenancy.Policy{}, fmt.Errorf("failed to read routing policy: %w", err)
	}

	policy := tenancy.DefaultPolicy()
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return tenancy.Policy{}, fmt.Errorf("failed to parse routing policy: %w", err)
	}

	for _, prefix := range policy.ReservedPrefixes {
		if prefix == "" || prefix == "/" {
			return tenancy.Policy{}, fmt.Errorf("routing policy: reserved prefix %q would exclude every path", prefix)
		}
	}
	return policy, nil
}
