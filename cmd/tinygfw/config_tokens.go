package main

import "tinyg/config"

// configField gets or sets one float64-valued config tunable, backing the
// `$token[=value]` dialect. Using closures over a
// per-axis index keeps the per-axis tokens (one letter + one mnemonic) from
// needing six near-identical cases apiece.
type configField struct {
	get func(c *config.Config) float64
	set func(c *config.Config, v float64)
}

var axisLetters = [...]byte{'x', 'y', 'z', 'a', 'b', 'c'}

var configTokens = buildConfigTokens()

func buildConfigTokens() map[string]configField {
	tokens := map[string]configField{
		"asm": {
			get: func(c *config.Config) float64 { return c.ArcSegmentMM },
			set: func(c *config.Config, v float64) { c.ArcSegmentMM = v },
		},
		"ja": {
			get: func(c *config.Config) float64 { return c.JunctionAcceleration },
			set: func(c *config.Config, v float64) { c.JunctionAcceleration = v },
		},
		"jd": {
			get: func(c *config.Config) float64 { return c.JunctionDeviation },
			set: func(c *config.Config, v float64) { c.JunctionDeviation = v },
		},
		"sri": {
			get: func(c *config.Config) float64 { return c.StatusReportInterval },
			set: func(c *config.Config, v float64) { c.StatusReportInterval = v },
		},
	}

	for i, letter := range axisLetters {
		i := i
		prefix := string(letter)
		tokens[prefix+"vm"] = configField{
			get: func(c *config.Config) float64 { return c.Axis[i].VelocityMax },
			set: func(c *config.Config, v float64) { c.Axis[i].VelocityMax = v },
		}
		tokens[prefix+"fr"] = configField{
			get: func(c *config.Config) float64 { return c.Axis[i].FeedrateMax },
			set: func(c *config.Config, v float64) { c.Axis[i].FeedrateMax = v },
		}
		tokens[prefix+"tm"] = configField{
			get: func(c *config.Config) float64 { return c.Axis[i].TravelMax },
			set: func(c *config.Config, v float64) { c.Axis[i].TravelMax = v },
		}
		tokens[prefix+"jm"] = configField{
			get: func(c *config.Config) float64 { return c.Axis[i].JerkMax },
			set: func(c *config.Config, v float64) { c.Axis[i].JerkMax = v },
		}
	}
	return tokens
}
