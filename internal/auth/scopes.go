package auth

// Known OAuth scopes checked by the API.
const (
	ScopeActivitiesWrite = "activities:write"
	ScopeActivitiesRead  = "activities:read"
	ScopeChatRead        = "chat:read"
	ScopeChatWrite       = "chat:write"
)
