// Package events defines the mutation topics and the bus used to fan them
// out across processes.
package events

import (
	"context"
	"strings"
)

// TopicPrefix roots every subject this service publishes.
const TopicPrefix = "lowcode."

// Event topic constants, named lowcode.<resource>.<verb>.
const (
	TopicUserRegistered      = "lowcode.user.registered"
	TopicUserSettingsUpdated = "lowcode.user.settings_updated"

	TopicApplicationCreated = "lowcode.application.created"
	TopicApplicationUpdated = "lowcode.application.updated"
	TopicApplicationDeleted = "lowcode.application.deleted"

	TopicComponentCreated = "lowcode.component.created"
	TopicComponentDeleted = "lowcode.component.deleted"

	TopicFeatureCreated = "lowcode.feature.created"
	TopicFeatureUpdated = "lowcode.feature.updated"
	TopicFeatureDeleted = "lowcode.feature.deleted"

	TopicSchemaCreated = "lowcode.schema.created"
	TopicSchemaUpdated = "lowcode.schema.updated"
	TopicSchemaDeleted = "lowcode.schema.deleted"

	TopicEntityCreated = "lowcode.entity.created"
	TopicEntityUpdated = "lowcode.entity.updated"
	TopicEntityDeleted = "lowcode.entity.deleted"

	TopicRelationshipCreated = "lowcode.relationship.created"
	TopicRelationshipDeleted = "lowcode.relationship.deleted"

	TopicPromptCreated   = "lowcode.prompt.created"
	TopicPromptVersioned = "lowcode.prompt.versioned"
	TopicPromptDeleted   = "lowcode.prompt.deleted"

	TopicToolCreated  = "lowcode.tool.created"
	TopicToolUpdated  = "lowcode.tool.updated"
	TopicToolDeleted  = "lowcode.tool.deleted"
	TopicToolExecuted = "lowcode.tool.executed"

	TopicBotCreated = "lowcode.bot.created"
	TopicBotUpdated = "lowcode.bot.updated"
	TopicBotDeleted = "lowcode.bot.deleted"
	TopicBotStarted = "lowcode.bot.started"
	TopicBotStopped = "lowcode.bot.stopped"
	TopicBotFailed  = "lowcode.bot.failed"

	TopicMessageCreated = "lowcode.message.created"

	TopicWorkflowCreated       = "lowcode.workflow.created"
	TopicWorkflowUpdated       = "lowcode.workflow.updated"
	TopicWorkflowDeleted       = "lowcode.workflow.deleted"
	TopicWorkflowActionAdded   = "lowcode.workflow.action_added"
	TopicWorkflowActionRemoved = "lowcode.workflow.action_removed"

	TopicBuildQueued    = "lowcode.build.queued"
	TopicBuildStarted   = "lowcode.build.started"
	TopicBuildSucceeded = "lowcode.build.succeeded"
	TopicBuildFailed    = "lowcode.build.failed"
)

// ChatSubjectPrefix roots the per-bot chat relay subjects.
const ChatSubjectPrefix = "lowcode.chat."

// ChatSubject returns the relay subject for messages of one bot.
func ChatSubject(botID string) string {
	return ChatSubjectPrefix + botID
}

// BotFromChatSubject extracts the bot id from a chat relay subject.
func BotFromChatSubject(subject string) (string, bool) {
	id, ok := strings.CutPrefix(subject, ChatSubjectPrefix)
	return id, ok && id != ""
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
