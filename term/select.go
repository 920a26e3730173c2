package term

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/plandex-ai/survey/v2"
)

func SelectFromList(msg string, options []string) (string, error) {
	var selected string
	p := &survey.Select{
		Message:       color.New(ColorHiMagenta, color.Bold).Sprint(msg),
		Options:       options,
		FilterMessage: "",
		PageSize:      15,
	}
	err := survey.AskOne(p, &selected)
	if err != nil {
		if err.Error() == "interrupt" {
			return "", ErrInterrupted
		}
		return "", fmt.Errorf("failed to get selection: %w", err)
	}

	return selected, nil
}
