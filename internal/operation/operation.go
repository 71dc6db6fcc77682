// Package operation defines the closed set of edits the remote model can be
// asked to perform. Each variant carries only the parameters it uses and
// renders its own natural-language instruction.
package operation

import "github.com/fpang/ai-image-editor/internal/assets"

// Name identifies an operation on the wire.
type Name string

const (
	NameBackgroundRemoval Name = "background-removal"
	NameStyleTransfer     Name = "style-transfer"
	NameEnhance           Name = "enhance"
	NameObjectRemoval     Name = "object-removal"
	NameArtisticFilter    Name = "artistic-filter"
)

// Parameter defaults.
const (
	DefaultStyle         = "artistic"
	DefaultFilterStyle   = "oil painting"
	DefaultRemovalTarget = "unwanted objects"
	DefaultEnhancePrompt = "overall quality, sharpness, lighting and color balance"
	DefaultIntensity     = 50
)

// Operation is one requested edit. The set of implementations is closed.
type Operation interface {
	Name() Name
	// Instruction is the prompt sent to the remote model.
	Instruction() string
	sealed()
}

// BackgroundRemoval isolates the subject. It takes no parameters.
type BackgroundRemoval struct{}

func (BackgroundRemoval) Name() Name { return NameBackgroundRemoval }
func (BackgroundRemoval) Instruction() string {
	return render(NameBackgroundRemoval, assets.InstructionData{})
}
func (BackgroundRemoval) sealed() {}

// StyleTransfer re-renders the image in a named visual style.
type StyleTransfer struct {
	Style string
}

func (StyleTransfer) Name() Name { return NameStyleTransfer }
func (o StyleTransfer) Instruction() string {
	return render(NameStyleTransfer, assets.InstructionData{Style: o.Style})
}
func (StyleTransfer) sealed() {}

// Enhance is the general improvement request. Unknown operation names fall
// back to it.
type Enhance struct {
	Prompt    string
	Intensity int
}

func (Enhance) Name() Name { return NameEnhance }
func (o Enhance) Instruction() string {
	return render(NameEnhance, assets.InstructionData{Prompt: o.Prompt, Intensity: o.Intensity})
}
func (Enhance) sealed() {}

// ObjectRemoval erases the described objects, optionally guided by a mask
// where white marks the region to remove.
type ObjectRemoval struct {
	Prompt   string
	Mask     []byte
	MaskMIME string
}

func (ObjectRemoval) Name() Name { return NameObjectRemoval }
func (o ObjectRemoval) Instruction() string {
	return render(NameObjectRemoval, assets.InstructionData{Prompt: o.Prompt, HasMask: len(o.Mask) > 0})
}
func (ObjectRemoval) sealed() {}

// ArtisticFilter applies a painterly filter at the given strength.
type ArtisticFilter struct {
	Style     string
	Intensity int
}

func (ArtisticFilter) Name() Name { return NameArtisticFilter }
func (o ArtisticFilter) Instruction() string {
	return render(NameArtisticFilter, assets.InstructionData{Style: o.Style, Intensity: o.Intensity})
}
func (ArtisticFilter) sealed() {}

// Names lists the supported operations in display order.
func Names() []Name {
	return []Name{
		NameBackgroundRemoval,
		NameStyleTransfer,
		NameEnhance,
		NameObjectRemoval,
		NameArtisticFilter,
	}
}

// Known reports whether n is one of the supported names.
func Known(n Name) bool {
	for _, k := range Names() {
		if k == n {
			return true
		}
	}
	return false
}

func render(n Name, data assets.InstructionData) string {
	return assets.RenderInstruction(string(n), data)
}
