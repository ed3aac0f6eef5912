package main

import (
	"macsign/internal/config"
	"macsign/internal/report"
)

// writeSampleConfig writes a configuration file listing every key of schema
// with its placeholder value. An existing file is left alone.
func writeSampleConfig(out *report.Reporter, path string, schema config.Schema) error {
	out.Printf("writing default config file: %s\n", path)
	if err := config.WriteSample(path, schema); err != nil {
		out.Failure("could not create " + path + " due to error: " + err.Error())
		return &exitError{code: exitStageFailed}
	}
	return nil
}
