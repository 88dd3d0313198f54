package conversation

// FallbackActionPrompt is submitted for an unknown action id
const FallbackActionPrompt = "Help me"

// Action is a quick-start suggestion offered on the landing view
type Action struct {
	ID     string
	Label  string
	Prompt string
}

var actions = []Action{
	{ID: "code", Label: "Code", Prompt: "Help me with coding"},
	{ID: "profile", Label: "Profile", Prompt: "Teach me something new"},
	{ID: "strategize", Label: "Strategize", Prompt: "Help me plan and strategize"},
	{ID: "write", Label: "Write", Prompt: "Help me write"},
	{ID: "life", Label: "Life stuff", Prompt: "Help me with life stuff"},
}

// Actions lists the known quick-start actions in display order
func Actions() []Action {
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// ResolveActionPrompt maps an action id to the prompt it submits
func ResolveActionPrompt(actionID string) string {
	for _, a := range actions {
		if a.ID == actionID {
			return a.Prompt
		}
	}
	return FallbackActionPrompt
}
