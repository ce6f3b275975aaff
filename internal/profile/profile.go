// Package profile defines healing profiles that modulate repair prompt
// construction. Each profile provides a PromptAddendum appended to the prompt
// sent to the generative engine, so target-specific wording is configuration
// data rather than a separate code path.
package profile

import "fmt"

// Profile describes a healing strategy for one class of application under test.
type Profile struct {
	Name           string
	Description    string
	PromptAddendum string
}

// builtins is the registry of built-in profiles keyed by name.
var builtins = map[string]Profile{
	"default": {
		Name:        "default",
		Description: "General-purpose healing; no application-specific guidance.",
		PromptAddendum: "Prefer resilient locators in this order: getByTestId for elements with " +
			"data-testid attributes, getByRole with an accessible name for semantic elements, " +
			"getByText for visible text, getByLabel for form fields, and CSS or XPath only as a " +
			"last resort with a justification in the summary.",
	},
	"azure-portal": {
		Name:        "azure-portal",
		Description: "Tuned for the Azure AI Studio workspace portal's dynamic UI.",
		PromptAddendum: "The application is the Azure AI Studio workspace portal. Its navigation " +
			"elements load lazily: add waitForLoadState('networkidle') after navigation, expect " +
			"authentication and loading screens, and never assume a control is attached before " +
			"the surrounding blade has rendered. Increase timeouts on first-paint elements to " +
			"30000ms.",
	},
	"strict-locators": {
		Name:        "strict-locators",
		Description: "Rejects fragile selectors outright; test markers or nothing.",
		PromptAddendum: "Strict locator policy is active. Every replacement locator MUST be a " +
			"getByTestId, getByRole, or getByLabel call. Do not emit CSS or XPath selectors; if " +
			"no stable locator exists, say so in the summary and recommend adding a data-testid " +
			"attribute instead of guessing.",
	},
}

// Load returns the named built-in profile or an error if the name is unknown.
func Load(name string) (Profile, error) {
	p, ok := builtins[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile: unknown profile %q (available: default, azure-portal, strict-locators)", name)
	}
	return p, nil
}
