package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// WhatsAppClient talks to a wuzapi-style WhatsApp HTTP API.
type WhatsAppClient struct {
	hc         *resty.Client
	instanceID string
}

func NewWhatsAppClient(baseURL, token, instanceID string) (*WhatsAppClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("gateway baseURL cannot be empty")
	}
	if token == "" {
		return nil, fmt.Errorf("gateway token cannot be empty")
	}

	hc := resty.New().
		SetBaseURL(baseURL).
		SetHeader("token", token).
		SetTimeout(10 * time.Second)

	log.Info().Str("baseURL", baseURL).Str("instanceID", instanceID).Msg("WhatsApp gateway configured")

	return &WhatsAppClient{hc: hc, instanceID: instanceID}, nil
}

type sendTextRequest struct {
	Phone        string `json:"phone"`
	Body         string `json:"body"`
	Conversation string `json:"conversation_type,omitempty"`
	InstanceID   string `json:"instance_id,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

type sendTextResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (c *WhatsAppClient) Send(ctx context.Context, m Message) error {
	payload := sendTextRequest{
		Phone:        m.To,
		Body:         m.Body,
		Conversation: string(m.Conversation),
		InstanceID:   c.instanceID,
	}
	if m.ExpiresAt != nil {
		payload.ExpiresAt = m.ExpiresAt.Unix()
	}

	resp, err := c.hc.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&sendTextResponse{}).
		Post("/chat/send/text")
	if err != nil {
		return fmt.Errorf("gateway send: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("gateway send: status %s: %s", resp.Status(), resp.String())
	}
	if out, ok := resp.Result().(*sendTextResponse); ok && !out.Success && out.Message != "" {
		return fmt.Errorf("gateway send: %s", out.Message)
	}
	return nil
}
