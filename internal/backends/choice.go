package backends

// ChoiceKind distinguishes catalog models from free-text entries
type ChoiceKind int

const (
	Enumerated ChoiceKind = iota
	FreeText
)

func (k ChoiceKind) String() string {
	if k == FreeText {
		return "free-text"
	}
	return "enumerated"
}

// ModelChoice is the model half of a settings configuration
type ModelChoice struct {
	Kind  ChoiceKind
	Model string
}

// Choice classifies a model for this backend. Free-text backends and explicit custom
// entries are FreeText; everything else is Enumerated.
func (o BackendOption) Choice(model string, useCustomModel bool) ModelChoice {
	if useCustomModel || o.RequiresFreeText() {
		return ModelChoice{Kind: FreeText, Model: model}
	}
	return ModelChoice{Kind: Enumerated, Model: model}
}

// Valid reports whether the choice is acceptable for the backend: free text must be
// non-empty, enumerated models must be listed.
func (c ModelChoice) Valid(o BackendOption) bool {
	if c.Kind == FreeText {
		return c.Model != ""
	}
	return o.HasModel(c.Model)
}
