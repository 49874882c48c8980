package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/docshelf/docshelf/pkg/protocol"
)

func collectionPath(id string, sub ...string) string {
	p := "/collections/" + url.PathEscape(id)
	for _, s := range sub {
		p += "/" + url.PathEscape(s)
	}
	return p
}

// GetCollections lists the collections visible to the user.
func (c *Client) GetCollections(ctx context.Context) Result[protocol.CollectionList] {
	return call[protocol.CollectionList](ctx, c, http.MethodGet, "/collections", nil)
}

// GetCollection fetches one collection with its recent documents.
func (c *Client) GetCollection(ctx context.Context, id string) Result[protocol.CollectionEnvelope] {
	return call[protocol.CollectionEnvelope](ctx, c, http.MethodGet, collectionPath(id), nil)
}

// CreateCollection creates a collection. A name is required.
func (c *Client) CreateCollection(ctx context.Context, in protocol.CollectionInput) Result[protocol.CollectionEnvelope] {
	if in.Name == "" {
		return fail[protocol.CollectionEnvelope](validationError("collection name is required"))
	}
	return call[protocol.CollectionEnvelope](ctx, c, http.MethodPost, "/collections", in)
}

// UpdateCollection changes a collection's attributes.
func (c *Client) UpdateCollection(ctx context.Context, id string, in protocol.CollectionInput) Result[protocol.CollectionEnvelope] {
	return call[protocol.CollectionEnvelope](ctx, c, http.MethodPut, collectionPath(id), in)
}

// DeleteCollection removes a collection. Its documents are kept.
func (c *Client) DeleteCollection(ctx context.Context, id string) Result[protocol.MessageResponse] {
	return call[protocol.MessageResponse](ctx, c, http.MethodDelete, collectionPath(id), nil)
}

// GetCollectionMembers lists members, the owner included.
func (c *Client) GetCollectionMembers(ctx context.Context, id string) Result[protocol.MemberList] {
	return call[protocol.MemberList](ctx, c, http.MethodGet, collectionPath(id, "members"), nil)
}

// AddCollectionMember invites a user by email.
func (c *Client) AddCollectionMember(ctx context.Context, id string, in protocol.MemberInput) Result[protocol.MemberEnvelope] {
	if in.Email == "" {
		return fail[protocol.MemberEnvelope](validationError("member email is required"))
	}
	if in.Role == "" {
		in.Role = protocol.RoleViewer
	}
	if !in.Role.Valid() {
		return fail[protocol.MemberEnvelope](validationError("invalid role %q", in.Role))
	}
	return call[protocol.MemberEnvelope](ctx, c, http.MethodPost, collectionPath(id, "members"), in)
}

// UpdateCollectionMember changes a member's role.
func (c *Client) UpdateCollectionMember(ctx context.Context, id, userID string, role protocol.MemberRole) Result[protocol.MemberEnvelope] {
	if !role.Valid() {
		return fail[protocol.MemberEnvelope](validationError("invalid role %q", role))
	}
	body := struct {
		Role protocol.MemberRole `json:"role"`
	}{role}
	return call[protocol.MemberEnvelope](ctx, c, http.MethodPut, collectionPath(id, "members", userID), body)
}

// RemoveCollectionMember removes a member.
func (c *Client) RemoveCollectionMember(ctx context.Context, id, userID string) Result[protocol.MessageResponse] {
	return call[protocol.MessageResponse](ctx, c, http.MethodDelete, collectionPath(id, "members", userID), nil)
}

// GetCollectionStats fetches the detailed statistics of a collection.
func (c *Client) GetCollectionStats(ctx context.Context, id string) Result[protocol.CollectionStats] {
	res := call[protocol.CollectionStatsEnvelope](ctx, c, http.MethodGet, collectionPath(id, "stats"), nil)
	if !res.OK() {
		return fail[protocol.CollectionStats](res.Err)
	}
	return ok(res.Data.Stats)
}

// GetCollectionSharing fetches the share settings of a collection.
func (c *Client) GetCollectionSharing(ctx context.Context, id string) Result[protocol.ShareInfo] {
	res := call[protocol.ShareInfoEnvelope](ctx, c, http.MethodGet, collectionPath(id, "share"), nil)
	if !res.OK() {
		return fail[protocol.ShareInfo](res.Err)
	}
	return ok(res.Data.ShareInfo)
}

// ShareCollection generates, regenerates, or revokes the share link.
func (c *Client) ShareCollection(ctx context.Context, id string, in protocol.ShareRequest) Result[protocol.ShareActionResponse] {
	if !in.Action.Valid() {
		return fail[protocol.ShareActionResponse](validationError("invalid share action %q", in.Action))
	}
	if in.Action == protocol.ShareRevoke {
		in.ExpiresIn = protocol.ExpiresNever
	}
	return call[protocol.ShareActionResponse](ctx, c, http.MethodPost, collectionPath(id, "share"), in)
}

// UpdateCollectionSharing changes visibility and sharing settings.
func (c *Client) UpdateCollectionSharing(ctx context.Context, id string, in protocol.SharingUpdate) Result[protocol.ShareInfo] {
	res := call[protocol.ShareInfoEnvelope](ctx, c, http.MethodPut, collectionPath(id, "share"), in)
	if !res.OK() {
		return fail[protocol.ShareInfo](res.Err)
	}
	return ok(res.Data.ShareInfo)
}
