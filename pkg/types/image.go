package types

// ImageArgument describes one argument accepted by image packing.
type ImageArgument struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Default     string   `json:"default,omitempty" yaml:"default,omitempty"`
	Required    bool     `json:"required" yaml:"required"`
	Choices     []string `json:"choices,omitempty" yaml:"choices,omitempty"`
}
