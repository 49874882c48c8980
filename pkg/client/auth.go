package client

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/docshelf/docshelf/internal/logging"
	"github.com/docshelf/docshelf/pkg/protocol"
)

// Login authenticates with email and password. On success the tokens are
// persisted through the configured TokenStore.
func (c *Client) Login(ctx context.Context, email, password string) Result[protocol.AuthResponse] {
	if email == "" || password == "" {
		return fail[protocol.AuthResponse](validationError("email and password are required"))
	}
	res := call[protocol.AuthResponse](ctx, c, http.MethodPost, "/auth/login", protocol.LoginRequest{Email: email, Password: password})
	return c.persist(res)
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, in protocol.RegisterRequest) Result[protocol.AuthResponse] {
	if in.Email == "" || in.Password == "" {
		return fail[protocol.AuthResponse](validationError("email and password are required"))
	}
	if in.FirstName == "" || in.LastName == "" {
		return fail[protocol.AuthResponse](validationError("first and last name are required"))
	}
	res := call[protocol.AuthResponse](ctx, c, http.MethodPost, "/auth/register", in)
	return c.persist(res)
}

func (c *Client) persist(res Result[protocol.AuthResponse]) Result[protocol.AuthResponse] {
	if !res.OK() || c.tokens == nil {
		return res
	}
	if res.Data.AccessToken == "" {
		return fail[protocol.AuthResponse](&Error{Kind: KindDecode, Message: "no access token in response"})
	}
	if err := c.tokens.SaveAuth(res.Data); err != nil {
		logging.Error("Failed to save token", zap.Error(err))
		return fail[protocol.AuthResponse](&Error{Kind: KindValidation, Message: "could not save session", Cause: err})
	}
	logging.Info("Signed in", zap.String("email", res.Data.User.Email))
	return res
}

// Verify checks the stored token against the backend.
func (c *Client) Verify(ctx context.Context) Result[protocol.VerifyResponse] {
	return call[protocol.VerifyResponse](ctx, c, http.MethodGet, "/auth/verify", nil)
}

// SendChatMessage asks a question about a document.
func (c *Client) SendChatMessage(ctx context.Context, documentID, message string) Result[protocol.ChatReply] {
	if message == "" {
		return fail[protocol.ChatReply](validationError("message is required"))
	}
	body := protocol.ChatRequest{Message: message, DocumentID: documentID}
	return call[protocol.ChatReply](ctx, c, http.MethodPost, "/chat/"+url.PathEscape(documentID), body)
}

// GetChatHistory fetches the conversation about a document.
func (c *Client) GetChatHistory(ctx context.Context, documentID string) Result[protocol.ChatHistory] {
	return call[protocol.ChatHistory](ctx, c, http.MethodGet, "/chat/"+url.PathEscape(documentID)+"/history", nil)
}
