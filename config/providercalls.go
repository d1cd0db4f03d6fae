package config

type ProviderCallKind string

const (
	ProviderCallRegistryPermit ProviderCallKind = "registry-permit"
	ProviderCallCustom         ProviderCallKind = "custom"
)

// ProviderCallTemplate describes a server-known on-chain execution routine used by cross-chain sessions.
type ProviderCallTemplate struct {
	ID              string           `yaml:"id" json:"id"`
	Label           string           `yaml:"label" json:"label"`
	Description     string           `yaml:"description" json:"description,omitempty"`
	TargetChainID   int64            `yaml:"target_chain_id" json:"targetChainId"`
	Kind            ProviderCallKind `yaml:"kind" json:"kind"`
	RegistryAddress string           `yaml:"registry_address" json:"registryAddress,omitempty"`
}

// IsRegistry reports a registry-permit template that knows its registry address.
func (t ProviderCallTemplate) IsRegistry() bool {
	return t.Kind == ProviderCallRegistryPermit && t.RegistryAddress != ""
}

func FindProviderCall(templates []ProviderCallTemplate, id string) (ProviderCallTemplate, bool) {
	for _, t := range templates {
		if t.ID == id {
			return t, true
		}
	}
	return ProviderCallTemplate{}, false
}
