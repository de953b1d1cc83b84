package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-grocerylist/internal/models"
)

// ShareEventType 成员与分享链接的变更类型
type ShareEventType string

const (
	EventMemberJoined       ShareEventType = "member_joined"
	EventMemberRemoved      ShareEventType = "member_removed"
	EventPermissionsUpdated ShareEventType = "permissions_updated"
	EventTokenRevoked       ShareEventType = "token_revoked"
)

// ShareEvent 发布到 exchange 的消息体
type ShareEvent struct {
	Type        ShareEventType           `json:"type"`
	ListID      string                   `json:"listId"`
	UserID      string                   `json:"userId,omitempty"`
	Token       string                   `json:"token,omitempty"`
	JoinedVia   models.JoinMethod        `json:"joinedVia,omitempty"`
	Permissions *models.SharePermissions `json:"permissions,omitempty"`
	OccurredAt  time.Time                `json:"occurredAt"`
}

// RoutingKey 例如 share.member_joined
func (e ShareEvent) RoutingKey() string {
	return "share." + string(e.Type)
}

// EventPublisher 将 ShareEvent 编码后通过 RabbitMQClient 发布
type EventPublisher struct {
	client *RabbitMQClient
}

func NewEventPublisher(client *RabbitMQClient) *EventPublisher {
	return &EventPublisher{client: client}
}

func (p *EventPublisher) PublishShareEvent(ctx context.Context, e ShareEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("编码分享事件失败: %w", err)
	}
	if err := p.client.Publish(e.RoutingKey(), body); err != nil {
		return fmt.Errorf("发布分享事件失败: %w", err)
	}
	return nil
}
