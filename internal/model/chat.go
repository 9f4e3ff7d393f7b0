package model

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// ChatMessage is one turn of a conversation between a user and a bot.
type ChatMessage struct {
	ID         string    `json:"id"`
	BotID      string    `json:"bot_id"`
	UserID     string    `json:"user_id"`
	InstanceID string    `json:"instance_id,omitempty"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	ToolName   string    `json:"tool_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
