// Package catalog defines the static tool catalog returned on tools/list.
// Tool existence is not enforced at call time; the catalog is advertisement,
// execution is resolved by the worker fleet.
package catalog

// Tool describes one invokable tool and its JSON-Schema input contract.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

var tools = []Tool{
	{
		Name:        "spin_up_new_backend_project",
		Description: "Creates a new Nitro.js backend project with optional features. This is a long-running operation that streams progress updates.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"userPrompt": {
					Type:        "string",
					Description: "The original user prompt/request that triggered this tool call",
				},
				"projectName": {
					Type:        "string",
					Description: "Name of the new backend project",
				},
				"includeAuth": {
					Type:        "boolean",
					Description: "Include Clerk authentication setup",
				},
				"includeDatabase": {
					Type:        "boolean",
					Description: "Include Postgres database setup",
				},
				"includeRedis": {
					Type:        "boolean",
					Description: "Include Redis setup",
				},
				"includeEmail": {
					Type:        "boolean",
					Description: "Include email service setup",
				},
			},
			Required: []string{"projectName"},
		},
	},
	{
		Name:        "modifyProject",
		Description: "Request modifications to an existing backend project. Accepts natural language modification requests that will be processed by an AI agent. This is a long-running operation that streams progress updates.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"modificationRequest": {
					Type:        "string",
					Description: "Natural language description of the modification to make (e.g., 'Add a new GET /users/:id endpoint', 'Create a middleware for rate limiting', 'Add a new database table for storing user preferences')",
				},
			},
			Required: []string{"modificationRequest"},
		},
	},
}

// Tools returns the catalog in declaration order. The returned slice is a
// copy; callers may not mutate catalog state.
func Tools() []Tool {
	out := make([]Tool, len(tools))
	copy(out, tools)
	return out
}

// Lookup returns the catalog entry for name, if advertised.
func Lookup(name string) (Tool, bool) {
	for _, tool := range tools {
		if tool.Name == name {
			return tool, true
		}
	}
	return Tool{}, false
}
