package flash

import "strings"

// Rule maps tool output lines containing Pattern to a progress label. An
// empty Label recognises the line without reporting anything.
type Rule struct {
	Pattern string
	Label   string
}

// Classifier is an ordered rule table; the first matching rule wins.
type Classifier []Rule

// DefaultRules recognises the phases STM32CubeProgrammer prints while
// writing through an external loader.
var DefaultRules = Classifier{
	{Pattern: "Memory Programming ...", Label: "Memory Programming"},
	{Pattern: "Erasing memory corresponding to sector", Label: "Erasing Memory"},
	{Pattern: "Download in Progress:", Label: "Flashing"},
	{Pattern: "File download complete", Label: "Flashing Completed"},
	{Pattern: "Time elapsed during download operation", Label: ""},
	{Pattern: "Verifying ...", Label: "Verifying"},
	{Pattern: "Download verified successfully", Label: "Verified Successfully"},
}

// Classify returns the label of the first rule matching line. ok is false
// when no rule matches or the matching rule is silent.
func (c Classifier) Classify(line string) (label string, ok bool) {
	for _, r := range c {
		if strings.Contains(line, r.Pattern) {
			return r.Label, r.Label != ""
		}
	}
	return "", false
}
