package domain

// Tool describes one activity source that can feed an event's index. The
// description is consumed by policy collaborators when selecting sources
// for a topic.
type Tool struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DefaultToolIDs is the channel set used when no policy collaborator
// selected tools for an event.
var DefaultToolIDs = []string{"hn_frontpage", "reddit"}

var tools = []Tool{
	{
		ID:          "hn_frontpage",
		Name:        "Hacker News",
		Description: "Fetches the Hacker News front page feed and counts items matching keywords.",
	},
	{
		ID:          "reddit",
		Name:        "Reddit",
		Description: "Counts matching posts on Reddit (degraded without API credentials).",
	},
	{
		ID:          "github",
		Name:        "GitHub",
		Description: "Counts matching repositories and discussions on GitHub.",
	},
	{
		ID:          "linkedin",
		Name:        "LinkedIn",
		Description: "Tracks professional events and announcements (degraded; no public API).",
	},
}

// AvailableTools returns the ordered tool registry.
func AvailableTools() []Tool {
	out := make([]Tool, len(tools))
	copy(out, tools)
	return out
}

// ToolName resolves a tool id to its channel display name. Unknown ids map
// to themselves so activity maps stay readable.
func ToolName(id string) string {
	for _, t := range tools {
		if t.ID == id {
			return t.Name
		}
	}
	return id
}
