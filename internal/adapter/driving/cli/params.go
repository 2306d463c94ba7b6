package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/profitpilot/internal/adapter/driving/form"
)

// loadParamsFile reads trading parameters from a YAML file. Unknown keys are
// rejected so a misspelled field is not silently dropped.
func loadParamsFile(path string) (form.TradingForm, error) {
	f, err := os.Open(path)
	if err != nil {
		return form.TradingForm{}, fmt.Errorf("open params file: %w", err)
	}
	defer f.Close()

	var tf form.TradingForm
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&tf); err != nil {
		if errors.Is(err, io.EOF) {
			return form.TradingForm{}, fmt.Errorf("params file %s is empty", path)
		}
		return form.TradingForm{}, fmt.Errorf("parse params file %s: %w", path, err)
	}

	return tf, nil
}
