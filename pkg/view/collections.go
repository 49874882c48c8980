package view

import (
	"context"

	"github.com/docshelf/docshelf/pkg/protocol"
	"github.com/docshelf/docshelf/pkg/query"
)

// CollectionsSource provides the reads and mutations behind the collections
// page.
type CollectionsSource interface {
	Collections(ctx context.Context) query.Snapshot[[]protocol.Collection]
	CreateCollection(ctx context.Context, in protocol.CollectionInput) (protocol.Collection, error)
	UpdateCollection(ctx context.Context, id string, in protocol.CollectionInput) (protocol.Collection, error)
	DeleteCollection(ctx context.Context, id string) (protocol.MessageResponse, error)
}

// CollectionsView is the collections page state.
type CollectionsView struct {
	Collections []protocol.Collection       `json:"-"`
	Formatted   []FormattedCollectionDetail `json:"collections"`
	IsLoading   bool                        `json:"isLoading"`
	Err         error                       `json:"-"`
}

// CollectionsPage lists collections and applies changes to them.
type CollectionsPage struct {
	src CollectionsSource
	fmt Formatter
}

// NewCollectionsPage creates the page over src.
func NewCollectionsPage(src CollectionsSource, f Formatter) *CollectionsPage {
	return &CollectionsPage{src: src, fmt: f}
}

// Load reads the collections and formats them.
func (p *CollectionsPage) Load(ctx context.Context) CollectionsView {
	snap := p.src.Collections(ctx)
	v := CollectionsView{
		Collections: []protocol.Collection{},
		Formatted:   []FormattedCollectionDetail{},
		IsLoading:   snap.IsLoading(),
		Err:         snap.Err,
	}
	if snap.HasData {
		v.Collections = snap.Data
		for _, c := range snap.Data {
			v.Formatted = append(v.Formatted, p.fmt.CollectionDetail(c))
		}
	}
	return v
}

func (p *CollectionsPage) Create(ctx context.Context, in protocol.CollectionInput) (protocol.Collection, error) {
	return p.src.CreateCollection(ctx, in)
}

func (p *CollectionsPage) Update(ctx context.Context, id string, in protocol.CollectionInput) (protocol.Collection, error) {
	return p.src.UpdateCollection(ctx, id, in)
}

func (p *CollectionsPage) Delete(ctx context.Context, id string) error {
	_, err := p.src.DeleteCollection(ctx, id)
	return err
}
