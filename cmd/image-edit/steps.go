package main

import (
	"fmt"
	"strings"

	"github.com/fpang/ai-image-editor/internal/operation"
)

type step struct {
	op operation.Operation
}

// parseStep turns "name" or "name=value" into an operation. The value is
// the style for style-based operations and the prompt otherwise.
func parseStep(arg string, intensity int) (step, error) {
	name, value, _ := strings.Cut(arg, "=")
	var p operation.Params
	switch operation.Name(strings.ToLower(strings.TrimSpace(name))) {
	case operation.NameStyleTransfer, operation.NameArtisticFilter:
		p.Style = value
	default:
		p.Prompt = value
	}
	if intensity != 0 {
		p.Intensity = &intensity
	}
	op, err := operation.Parse(name, p)
	if err != nil {
		return step{}, fmt.Errorf("%q: %w", arg, err)
	}
	return step{op: op}, nil
}

func parseSteps(args []string, intensity int) ([]step, error) {
	steps := make([]step, 0, len(args))
	for _, a := range args {
		s, err := parseStep(a, intensity)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, nil
}
