package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dexC166/dex-real-time-messenger-sub000/pkg/model"
)

// apiClient talks to the API service. It satisfies sync.API so the
// conversation sync can load pages and post read receipts through it.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{base: base, http: http.DefaultClient}
}

func (c *apiClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: %s (%d)", method, path, bytes.TrimSpace(msg), resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) login(ctx context.Context, email, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/login", map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return err
	}
	c.token = resp.Token
	return nil
}

func (c *apiClient) register(ctx context.Context, email, name, password string) error {
	return c.do(ctx, http.MethodPost, "/register", map[string]string{
		"email": email, "name": name, "password": password,
	}, nil)
}

func (c *apiClient) conversations(ctx context.Context) ([]model.Conversation, error) {
	var out []model.Conversation
	err := c.do(ctx, http.MethodGet, "/conversations", nil, &out)
	return out, err
}

// Messages implements sync.API.
func (c *apiClient) Messages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var out []model.Message
	err := c.do(ctx, http.MethodGet, "/conversations/"+conversationID+"/messages", nil, &out)
	return out, err
}

// MarkSeen implements sync.API.
func (c *apiClient) MarkSeen(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodPost, "/conversations/"+conversationID+"/seen", nil, nil)
}

func (c *apiClient) sendMessage(ctx context.Context, conversationID, body string) (*model.Message, error) {
	var out model.Message
	err := c.do(ctx, http.MethodPost, "/messages", map[string]string{
		"body": body, "conversationId": conversationID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
