package databases

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoPaginate struct {
	limit int64
	page  int64
}

func newMongoPaginate(limit, page int) *mongoPaginate {
	if limit <= 0 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}
	return &mongoPaginate{
		limit: int64(limit),
		page:  int64(page),
	}
}

func (mp *mongoPaginate) getPaginatedOpts() *options.FindOptions {
	l := mp.limit
	skip := mp.page*mp.limit - mp.limit
	fOpt := options.FindOptions{Limit: &l, Skip: &skip}

	return &fOpt
}

// PageOptions returns find options limited to one page of results, sorted
// by the given field (descending when desc is set).
func PageOptions(limit, page int, sortField string, desc bool) *options.FindOptions {
	opts := newMongoPaginate(limit, page).getPaginatedOpts()
	order := 1
	if desc {
		order = -1
	}
	return opts.SetSort(bson.D{{Key: sortField, Value: order}})
}
