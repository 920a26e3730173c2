package term

import (
	"errors"
	"fmt"

	"github.com/cqroot/prompt"
	"github.com/cqroot/prompt/input"
	"github.com/eiannone/keyboard"
	"github.com/fatih/color"
)

// ErrInterrupted is returned when the user quits a prompt, so callers can
// unwind (and run their deferred cleanup) instead of exiting on the spot.
var ErrInterrupted = errors.New("interrupted")

func GetRequiredUserStringInput(msg string) (string, error) {
	res, err := GetUserStringInput(msg)
	if err != nil {
		return "", err
	}

	if res == "" {
		color.New(color.Bold, ColorHiRed).Println("🚨 This input is required")
		return GetRequiredUserStringInput(msg)
	}

	return res, nil
}

func GetUserStringInput(msg string) (string, error) {
	res, err := prompt.New().Ask(msg).Input("")
	return res, promptErr(err)
}

func GetUserPasswordInput(msg string) (string, error) {
	res, err := prompt.New().Ask(msg).Input("", input.WithEchoMode(input.EchoPassword))
	return res, promptErr(err)
}

func promptErr(err error) error {
	if err == nil {
		return nil
	}
	if err.Error() == "user quit prompt" {
		return ErrInterrupted
	}
	return fmt.Errorf("failed to get user input: %w", err)
}

func GetUserKeyInput() (rune, error) {
	if err := keyboard.Open(); err != nil {
		return 0, fmt.Errorf("failed to open keyboard: %w", err)
	}
	defer func() {
		_ = keyboard.Close()
	}()

	char, key, err := keyboard.GetKey()
	if err != nil {
		return 0, fmt.Errorf("failed to read keypress: %w", err)
	}
	if key == keyboard.KeyCtrlC || key == keyboard.KeyEsc {
		return 0, ErrInterrupted
	}

	return char, nil
}

func ConfirmYesNo(fmtStr string, fmtArgs ...interface{}) (bool, error) {
	color.New(ColorHiMagenta, color.Bold).Printf(fmtStr+" (y)es | (n)o", fmtArgs...)
	color.New(ColorHiMagenta, color.Bold).Print("> ")

	char, err := GetUserKeyInput()
	if err != nil {
		fmt.Println()
		return false, err
	}

	fmt.Println(string(char))
	switch char {
	case 'y', 'Y':
		return true, nil
	case 'n', 'N':
		return false, nil
	}

	color.New(ColorHiRed, color.Bold).Print("Invalid input.\nEnter 'y' for yes or 'n' for no.\n\n")
	return ConfirmYesNo(fmtStr, fmtArgs...)
}
