// Package store exposes cached backend reads and mutations that invalidate
// the reads they affect.
package store

import (
	"context"
	"strconv"
	"time"

	"github.com/docshelf/docshelf/pkg/client"
	"github.com/docshelf/docshelf/pkg/protocol"
	"github.com/docshelf/docshelf/pkg/query"
)

// Resource kinds used in cache keys.
const (
	KindDocuments       query.Kind = "documents"
	KindDocument        query.Kind = "document"
	KindStats           query.Kind = "stats"
	KindCollections     query.Kind = "collections"
	KindCollection      query.Kind = "collection"
	KindCollectionStats query.Kind = "collection-stats"
	KindMembers         query.Kind = "collection-members"
	KindShare           query.Kind = "collection-share"
	KindChat            query.Kind = "chat-history"
)

// StaleTimes returns the per-kind staleness windows: stable (collection and
// stats-like reads) and volatile (documents, members, sharing, chat).
func StaleTimes(stable, volatile time.Duration) map[query.Kind]time.Duration {
	return map[query.Kind]time.Duration{
		KindCollections:     stable,
		KindCollection:      stable,
		KindCollectionStats: stable,
		KindStats:           stable,
		KindDocuments:       volatile,
		KindDocument:        volatile,
		KindMembers:         volatile,
		KindShare:           volatile,
		KindChat:            volatile,
	}
}

// API is the subset of the backend client used by Store.
type API interface {
	GetDocuments(ctx context.Context, q protocol.DocumentQuery) client.Result[protocol.DocumentPage]
	GetDocument(ctx context.Context, id string) client.Result[protocol.DocumentDetail]
	DeleteDocument(ctx context.Context, id string) client.Result[protocol.MessageResponse]
	UploadDocument(ctx context.Context, u client.Upload, collectionID string) client.Result[protocol.UploadResponse]
	GetStats(ctx context.Context) client.Result[protocol.DashboardStats]

	GetCollections(ctx context.Context) client.Result[protocol.CollectionList]
	GetCollection(ctx context.Context, id string) client.Result[protocol.CollectionEnvelope]
	CreateCollection(ctx context.Context, in protocol.CollectionInput) client.Result[protocol.CollectionEnvelope]
	UpdateCollection(ctx context.Context, id string, in protocol.CollectionInput) client.Result[protocol.CollectionEnvelope]
	DeleteCollection(ctx context.Context, id string) client.Result[protocol.MessageResponse]
	GetCollectionMembers(ctx context.Context, id string) client.Result[protocol.MemberList]
	AddCollectionMember(ctx context.Context, id string, in protocol.MemberInput) client.Result[protocol.MemberEnvelope]
	UpdateCollectionMember(ctx context.Context, id, userID string, role protocol.MemberRole) client.Result[protocol.MemberEnvelope]
	RemoveCollectionMember(ctx context.Context, id, userID string) client.Result[protocol.MessageResponse]
	GetCollectionStats(ctx context.Context, id string) client.Result[protocol.CollectionStats]
	GetCollectionSharing(ctx context.Context, id string) client.Result[protocol.ShareInfo]
	ShareCollection(ctx context.Context, id string, in protocol.ShareRequest) client.Result[protocol.ShareActionResponse]
	UpdateCollectionSharing(ctx context.Context, id string, in protocol.SharingUpdate) client.Result[protocol.ShareInfo]

	Login(ctx context.Context, email, password string) client.Result[protocol.AuthResponse]
	Register(ctx context.Context, in protocol.RegisterRequest) client.Result[protocol.AuthResponse]
	SendChatMessage(ctx context.Context, documentID, message string) client.Result[protocol.ChatReply]
	GetChatHistory(ctx context.Context, documentID string) client.Result[protocol.ChatHistory]
}

// Store combines the backend client with the query cache.
type Store struct {
	api   API
	cache *query.Cache
}

// New creates a store.
func New(api API, cache *query.Cache) *Store {
	return &Store{api: api, cache: cache}
}

// Cache returns the underlying query cache.
func (s *Store) Cache() *query.Cache {
	return s.cache
}

// DocumentsKey is the cache key of a document listing. Every filter and
// pagination parameter is part of the key.
func DocumentsKey(q protocol.DocumentQuery) query.Key {
	params := map[string]string{
		"collection": q.Collection,
		"status":     q.Status,
		"search":     q.Search,
	}
	if q.Page > 0 {
		params["page"] = strconv.Itoa(q.Page)
	}
	if q.Limit > 0 {
		params["limit"] = strconv.Itoa(q.Limit)
	}
	return query.NewKey(KindDocuments, "", params)
}

// Key builders for the remaining reads.
func DocumentKey(id string) query.Key        { return query.NewKey(KindDocument, id, nil) }
func StatsKey() query.Key                    { return query.NewKey(KindStats, "", nil) }
func CollectionsKey() query.Key              { return query.NewKey(KindCollections, "", nil) }
func CollectionKey(id string) query.Key      { return query.NewKey(KindCollection, id, nil) }
func CollectionStatsKey(id string) query.Key { return query.NewKey(KindCollectionStats, id, nil) }
func MembersKey(id string) query.Key         { return query.NewKey(KindMembers, id, nil) }
func ShareKey(id string) query.Key           { return query.NewKey(KindShare, id, nil) }
func ChatKey(documentID string) query.Key    { return query.NewKey(KindChat, documentID, nil) }

func fetcher[T any](call func(ctx context.Context) client.Result[T]) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		return call(ctx).Unwrap()
	}
}

func (s *Store) documentsFetch(q protocol.DocumentQuery) func(ctx context.Context) (protocol.DocumentPage, error) {
	return fetcher(func(ctx context.Context) client.Result[protocol.DocumentPage] {
		return s.api.GetDocuments(ctx, q)
	})
}

// Documents reads a page of documents.
func (s *Store) Documents(ctx context.Context, q protocol.DocumentQuery) query.Snapshot[protocol.DocumentPage] {
	return query.Use(ctx, s.cache, DocumentsKey(q), s.documentsFetch(q))
}

// PrefetchDocuments is the non-blocking form of Documents.
func (s *Store) PrefetchDocuments(q protocol.DocumentQuery) query.Snapshot[protocol.DocumentPage] {
	return query.PrefetchAs(s.cache, DocumentsKey(q), s.documentsFetch(q))
}

// PeekDocuments returns the cached documents page without fetching.
func (s *Store) PeekDocuments(q protocol.DocumentQuery) query.Snapshot[protocol.DocumentPage] {
	snap, _ := query.PeekAs[protocol.DocumentPage](s.cache, DocumentsKey(q))
	return snap
}

// Document reads one document.
func (s *Store) Document(ctx context.Context, id string) query.Snapshot[protocol.DocumentDetail] {
	return query.Use(ctx, s.cache, DocumentKey(id), fetcher(func(ctx context.Context) client.Result[protocol.DocumentDetail] {
		return s.api.GetDocument(ctx, id)
	}))
}

func (s *Store) statsFetch(ctx context.Context) (protocol.DashboardStats, error) {
	return s.api.GetStats(ctx).Unwrap()
}

// Stats reads the dashboard statistics.
func (s *Store) Stats(ctx context.Context) query.Snapshot[protocol.DashboardStats] {
	return query.Use(ctx, s.cache, StatsKey(), s.statsFetch)
}

// PrefetchStats is the non-blocking form of Stats.
func (s *Store) PrefetchStats() query.Snapshot[protocol.DashboardStats] {
	return query.PrefetchAs(s.cache, StatsKey(), s.statsFetch)
}

// PeekStats returns the cached statistics without fetching.
func (s *Store) PeekStats() query.Snapshot[protocol.DashboardStats] {
	snap, _ := query.PeekAs[protocol.DashboardStats](s.cache, StatsKey())
	return snap
}

func (s *Store) collectionsFetch(ctx context.Context) ([]protocol.Collection, error) {
	list, err := s.api.GetCollections(ctx).Unwrap()
	if err != nil {
		return nil, err
	}
	if list.Collections == nil {
		return []protocol.Collection{}, nil
	}
	return list.Collections, nil
}

// Collections reads the collection list.
func (s *Store) Collections(ctx context.Context) query.Snapshot[[]protocol.Collection] {
	return query.Use(ctx, s.cache, CollectionsKey(), s.collectionsFetch)
}

// PrefetchCollections is the non-blocking form of Collections.
func (s *Store) PrefetchCollections() query.Snapshot[[]protocol.Collection] {
	return query.PrefetchAs(s.cache, CollectionsKey(), s.collectionsFetch)
}

// PeekCollections returns the cached collection list without fetching.
func (s *Store) PeekCollections() query.Snapshot[[]protocol.Collection] {
	snap, _ := query.PeekAs[[]protocol.Collection](s.cache, CollectionsKey())
	return snap
}

// Collection reads one collection.
func (s *Store) Collection(ctx context.Context, id string) query.Snapshot[protocol.Collection] {
	return query.Use(ctx, s.cache, CollectionKey(id), func(ctx context.Context) (protocol.Collection, error) {
		env, err := s.api.GetCollection(ctx, id).Unwrap()
		return env.Collection, err
	})
}

// Members reads the members of a collection.
func (s *Store) Members(ctx context.Context, id string) query.Snapshot[protocol.MemberList] {
	return query.Use(ctx, s.cache, MembersKey(id), fetcher(func(ctx context.Context) client.Result[protocol.MemberList] {
		return s.api.GetCollectionMembers(ctx, id)
	}))
}

// CollectionStats reads the statistics of a collection.
func (s *Store) CollectionStats(ctx context.Context, id string) query.Snapshot[protocol.CollectionStats] {
	return query.Use(ctx, s.cache, CollectionStatsKey(id), fetcher(func(ctx context.Context) client.Result[protocol.CollectionStats] {
		return s.api.GetCollectionStats(ctx, id)
	}))
}

// Sharing reads the share settings of a collection.
func (s *Store) Sharing(ctx context.Context, id string) query.Snapshot[protocol.ShareInfo] {
	return query.Use(ctx, s.cache, ShareKey(id), fetcher(func(ctx context.Context) client.Result[protocol.ShareInfo] {
		return s.api.GetCollectionSharing(ctx, id)
	}))
}

// ChatHistory reads the conversation about a document.
func (s *Store) ChatHistory(ctx context.Context, documentID string) query.Snapshot[protocol.ChatHistory] {
	return query.Use(ctx, s.cache, ChatKey(documentID), fetcher(func(ctx context.Context) client.Result[protocol.ChatHistory] {
		return s.api.GetChatHistory(ctx, documentID)
	}))
}
