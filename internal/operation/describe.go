package operation

// Info describes one operation in the capability descriptor.
type Info struct {
	Name        Name     `json:"name"`
	Description string   `json:"description"`
	Parameters  []string `json:"parameters,omitempty"`
}

// Usage documents the request shape of the processing endpoint.
type Usage struct {
	Method string            `json:"method"`
	Path   string            `json:"path"`
	Body   map[string]string `json:"body"`
}

// Capabilities is the static descriptor returned by GET /image-edit.
type Capabilities struct {
	Service    string `json:"service"`
	Operations []Info `json:"operations"`
	Usage      Usage  `json:"usage"`
}

var descriptions = map[Name]Info{
	NameBackgroundRemoval: {Description: "Remove the background and keep the subject"},
	NameStyleTransfer:     {Description: "Re-render the image in a visual style", Parameters: []string{"style"}},
	NameEnhance:           {Description: "Improve quality, lighting and color", Parameters: []string{"prompt", "intensity"}},
	NameObjectRemoval:     {Description: "Erase described objects, optionally guided by a mask", Parameters: []string{"prompt", "mask"}},
	NameArtisticFilter:    {Description: "Apply a painterly filter", Parameters: []string{"style", "intensity"}},
}

// Describe returns the capability descriptor.
func Describe() Capabilities {
	ops := make([]Info, 0, len(descriptions))
	for _, n := range Names() {
		info := descriptions[n]
		info.Name = n
		ops = append(ops, info)
	}
	return Capabilities{
		Service:    "ai-image-editor",
		Operations: ops,
		Usage: Usage{
			Method: "POST",
			Path:   "/image-edit",
			Body: map[string]string{
				"image":      "base64 string or data URI (required)",
				"operation":  "operation name (required)",
				"parameters": "optional object: style, prompt, intensity (0-100), mask",
			},
		},
	}
}
