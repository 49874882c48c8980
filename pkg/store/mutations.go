package store

import (
	"context"

	"github.com/docshelf/docshelf/pkg/client"
	"github.com/docshelf/docshelf/pkg/protocol"
	"github.com/docshelf/docshelf/pkg/query"
)

func mutate[T any](ctx context.Context, s *Store, name string, call func(ctx context.Context) client.Result[T], filters ...query.Filter) (T, error) {
	return query.Mutate(ctx, s.cache, name, fetcher(call), filters...)
}

// CreateCollection creates a collection.
func (s *Store) CreateCollection(ctx context.Context, in protocol.CollectionInput) (protocol.Collection, error) {
	env, err := mutate(ctx, s, "create_collection", func(ctx context.Context) client.Result[protocol.CollectionEnvelope] {
		return s.api.CreateCollection(ctx, in)
	}, query.ByKind(KindCollections), query.ByKind(KindStats))
	return env.Collection, err
}

// UpdateCollection changes a collection.
func (s *Store) UpdateCollection(ctx context.Context, id string, in protocol.CollectionInput) (protocol.Collection, error) {
	env, err := mutate(ctx, s, "update_collection", func(ctx context.Context) client.Result[protocol.CollectionEnvelope] {
		return s.api.UpdateCollection(ctx, id, in)
	}, query.ByKind(KindCollections), query.ByID(KindCollection, id))
	return env.Collection, err
}

// DeleteCollection removes a collection.
func (s *Store) DeleteCollection(ctx context.Context, id string) (protocol.MessageResponse, error) {
	return mutate(ctx, s, "delete_collection", func(ctx context.Context) client.Result[protocol.MessageResponse] {
		return s.api.DeleteCollection(ctx, id)
	}, query.ByKind(KindCollections), query.ByID(KindCollection, id), query.ByKind(KindStats))
}

// AddMember invites a member to a collection.
func (s *Store) AddMember(ctx context.Context, id string, in protocol.MemberInput) (protocol.Member, error) {
	env, err := mutate(ctx, s, "add_member", func(ctx context.Context) client.Result[protocol.MemberEnvelope] {
		return s.api.AddCollectionMember(ctx, id, in)
	}, query.ByID(KindMembers, id), query.ByID(KindCollection, id))
	return env.Member, err
}

// UpdateMember changes a member's role.
func (s *Store) UpdateMember(ctx context.Context, id, userID string, role protocol.MemberRole) (protocol.Member, error) {
	env, err := mutate(ctx, s, "update_member", func(ctx context.Context) client.Result[protocol.MemberEnvelope] {
		return s.api.UpdateCollectionMember(ctx, id, userID, role)
	}, query.ByID(KindMembers, id))
	return env.Member, err
}

// RemoveMember removes a member from a collection.
func (s *Store) RemoveMember(ctx context.Context, id, userID string) (protocol.MessageResponse, error) {
	return mutate(ctx, s, "remove_member", func(ctx context.Context) client.Result[protocol.MessageResponse] {
		return s.api.RemoveCollectionMember(ctx, id, userID)
	}, query.ByID(KindMembers, id), query.ByID(KindCollection, id))
}

// Share generates, regenerates, or revokes a collection's share link.
func (s *Store) Share(ctx context.Context, id string, in protocol.ShareRequest) (protocol.ShareActionResponse, error) {
	return mutate(ctx, s, "share_"+string(in.Action), func(ctx context.Context) client.Result[protocol.ShareActionResponse] {
		return s.api.ShareCollection(ctx, id, in)
	}, query.ByID(KindShare, id))
}

// UpdateSharing changes a collection's visibility and sharing settings.
func (s *Store) UpdateSharing(ctx context.Context, id string, in protocol.SharingUpdate) (protocol.ShareInfo, error) {
	return mutate(ctx, s, "update_sharing", func(ctx context.Context) client.Result[protocol.ShareInfo] {
		return s.api.UpdateCollectionSharing(ctx, id, in)
	}, query.ByID(KindShare, id), query.ByID(KindCollection, id))
}

// UploadDocument uploads a PDF, optionally into a collection.
func (s *Store) UploadDocument(ctx context.Context, u client.Upload, collectionID string) (protocol.UploadResponse, error) {
	filters := []query.Filter{
		query.ByKind(KindDocuments),
		query.ByKind(KindStats),
		query.ByKind(KindCollections),
	}
	if collectionID != "" {
		filters = append(filters, query.ByID(KindCollectionStats, collectionID))
	}
	return mutate(ctx, s, "upload_document", func(ctx context.Context) client.Result[protocol.UploadResponse] {
		return s.api.UploadDocument(ctx, u, collectionID)
	}, filters...)
}

// DeleteDocument removes a document.
func (s *Store) DeleteDocument(ctx context.Context, id string) (protocol.MessageResponse, error) {
	return mutate(ctx, s, "delete_document", func(ctx context.Context) client.Result[protocol.MessageResponse] {
		return s.api.DeleteDocument(ctx, id)
	}, query.ByKind(KindDocuments), query.ByID(KindDocument, id), query.ByKind(KindStats), query.ByKind(KindCollections))
}

// SendChatMessage asks a question about a document.
func (s *Store) SendChatMessage(ctx context.Context, documentID, message string) (protocol.ChatReply, error) {
	return mutate(ctx, s, "send_chat_message", func(ctx context.Context) client.Result[protocol.ChatReply] {
		return s.api.SendChatMessage(ctx, documentID, message)
	}, query.ByID(KindChat, documentID))
}

// Login signs in. Everything cached under the previous identity is
// invalidated.
func (s *Store) Login(ctx context.Context, email, password string) (protocol.AuthResponse, error) {
	resp, err := s.api.Login(ctx, email, password).Unwrap()
	if err != nil {
		return resp, err
	}
	s.cache.InvalidateAll()
	return resp, nil
}

// Register creates an account and signs it in.
func (s *Store) Register(ctx context.Context, in protocol.RegisterRequest) (protocol.AuthResponse, error) {
	resp, err := s.api.Register(ctx, in).Unwrap()
	if err != nil {
		return resp, err
	}
	s.cache.InvalidateAll()
	return resp, nil
}
