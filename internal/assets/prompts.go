// Package assets provides embedded static assets for the application.
//
// Edit instructions are stored as text templates under prompts/, one file
// per operation, and embedded at compile time.
package assets

import (
	"bytes"
	"embed"
	"strings"
	"text/template"
)

//go:embed prompts/*.txt
var promptFS embed.FS

// Pre-parsed templates. template.Must panics on malformed templates,
// catching errors at program startup rather than at call time.
var instructionTmpl = template.Must(template.ParseFS(promptFS, "prompts/*.txt"))

// InstructionData holds the operation parameters injected into a template.
type InstructionData struct {
	Style     string
	Prompt    string
	Intensity int
	HasMask   bool
}

// HasInstruction reports whether a template exists for the operation.
func HasInstruction(operation string) bool {
	return instructionTmpl.Lookup(operation+".txt") != nil
}

// RenderInstruction renders the instruction template for an operation name
// such as "style-transfer". Unknown names render as an empty string.
func RenderInstruction(operation string, data InstructionData) string {
	tmpl := instructionTmpl.Lookup(operation + ".txt")
	if tmpl == nil {
		return ""
	}
	var buf bytes.Buffer
	// Execution errors are not expected with these templates; whatever was
	// rendered is returned.
	_ = tmpl.Execute(&buf, data)
	return strings.TrimSpace(buf.String())
}
