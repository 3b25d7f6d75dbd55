// Package gmail is the mailbox provider adapter over the Gmail API.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	gm "google.golang.org/api/gmail/v1"

	"github.com/yashmulik1278/email-assistant-LLM/internal/types"
)

const user = "me"

// Client lists, reads and marks messages in one Gmail account.
type Client struct {
	svc *gm.Service
}

// New wraps an authenticated Gmail service.
func New(svc *gm.Service) *Client {
	return &Client{svc: svc}
}

// Query builds the Gmail search query for unread messages whose subject
// carries one of the filter keywords.
func Query(f types.SubjectFilter) string {
	var words []string
	for _, k := range f.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			words = append(words, k)
		}
	}
	if len(words) == 0 {
		return "is:unread"
	}
	return "is:unread subject:(" + strings.Join(words, " OR ") + ")"
}

// ListActionableUnread returns the IDs of up to limit unread messages
// matching f.
func (c *Client) ListActionableUnread(ctx context.Context, f types.SubjectFilter, limit int64) ([]string, error) {
	resp, err := c.svc.Users.Messages.List(user).
		Q(Query(f)).
		MaxResults(limit).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// GetMessage fetches one message with its first plain-text body.
func (c *Client) GetMessage(ctx context.Context, id string) (*types.Message, error) {
	msg, err := c.svc.Users.Messages.Get(user, id).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}

	out := &types.Message{ID: msg.Id}
	if msg.Payload != nil {
		headers := headerMap(msg.Payload.Headers)
		out.From = headers["from"]
		out.Subject = headers["subject"]
		out.Date = headers["date"]
		out.Body = plainBody(msg.Payload)
	}
	return out, nil
}

// MarkRead removes the UNREAD label from a message.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	_, err := c.svc.Users.Messages.Modify(user, id, &gm.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("mark read %s: %w", id, err)
	}
	return nil
}

// plainBody returns the first text/plain part found depth-first, or "" when
// the message has none.
func plainBody(part *gm.MessagePart) string {
	if part == nil {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(part.MimeType), "text/plain") && part.Body != nil && part.Body.Data != "" {
		if decoded, err := decodeBase64URL(part.Body.Data); err == nil {
			return decoded
		}
	}
	for _, p := range part.Parts {
		if body := plainBody(p); body != "" {
			return body
		}
	}
	return ""
}

// headerMap keys headers by lower-cased name; the first occurrence wins.
func headerMap(headers []*gm.MessagePartHeader) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		k := strings.ToLower(h.Name)
		if _, ok := m[k]; !ok {
			m[k] = h.Value
		}
	}
	return m
}

// decodeBase64URL decodes Gmail's base64url content, padded or not.
func decodeBase64URL(data string) (string, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
