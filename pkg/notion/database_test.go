package notion

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func firmPages(ids ...string) []notionapi.Page {
	pages := make([]notionapi.Page, len(ids))
	for i, id := range ids {
		pages[i] = notionapi.Page{ID: notionapi.ObjectID(id)}
	}
	return pages
}

func cursorIs(c notionapi.Cursor) any {
	return mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == c
	})
}

func TestQueryAll_FollowsCursors(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "deals", cursorIs("")).Return(&notionapi.DatabaseQueryResponse{
		Results:    firmPages("ubs", "rbc"),
		HasMore:    true,
		NextCursor: "c1",
	}, nil).Once()
	mc.On("QueryDatabase", ctx, "deals", cursorIs("c1")).Return(&notionapi.DatabaseQueryResponse{
		Results:    firmPages("jpMorgan"),
		HasMore:    true,
		NextCursor: "c2",
	}, nil).Once()
	mc.On("QueryDatabase", ctx, "deals", cursorIs("c2")).Return(&notionapi.DatabaseQueryResponse{
		Results: firmPages("independent"),
	}, nil).Once()

	pages, err := QueryAll(ctx, mc, "deals", nil)
	require.NoError(t, err)
	require.Len(t, pages, 4)
	assert.Equal(t, notionapi.ObjectID("ubs"), pages[0].ID)
	assert.Equal(t, notionapi.ObjectID("independent"), pages[3].ID)
	mc.AssertExpectations(t)
}

func TestQueryAll_HasMoreWithoutCursorStops(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "deals", mock.Anything).Return(&notionapi.DatabaseQueryResponse{
		Results: firmPages("ubs"),
		HasMore: true,
	}, nil).Once()

	pages, err := QueryAll(ctx, mc, "deals", nil)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
	mc.AssertExpectations(t)
}

func TestQueryAll_FilterAppliedToEveryPage(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	hasFilter := func(c notionapi.Cursor) any {
		return mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
			pf, ok := req.Filter.(notionapi.PropertyFilter)
			return ok && pf.Property == "Status" && pf.Status != nil && pf.Status.Equals == "Published" && req.PageSize == 50 && req.StartCursor == c
		})
	}
	mc.On("QueryDatabase", ctx, "params", hasFilter("")).Return(&notionapi.DatabaseQueryResponse{
		Results:    firmPages("p1"),
		HasMore:    true,
		NextCursor: "next",
	}, nil).Once()
	mc.On("QueryDatabase", ctx, "params", hasFilter("next")).Return(&notionapi.DatabaseQueryResponse{
		Results: firmPages("p2"),
	}, nil).Once()

	filter := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Status",
			Status:   &notionapi.StatusFilterCondition{Equals: "Published"},
		},
		PageSize: 50,
	}
	pages, err := QueryAll(ctx, mc, "params", filter)
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	mc.AssertExpectations(t)
}

func TestQueryAll_Errors(t *testing.T) {
	t.Run("first page", func(t *testing.T) {
		mc := new(MockClient)
		mc.On("QueryDatabase", mock.Anything, "deals", mock.Anything).Return(nil, assert.AnError).Once()

		pages, err := QueryAll(context.Background(), mc, "deals", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, assert.AnError)
		assert.Nil(t, pages)
	})

	t.Run("later page discards partial results", func(t *testing.T) {
		mc := new(MockClient)
		mc.On("QueryDatabase", mock.Anything, "deals", cursorIs("")).Return(&notionapi.DatabaseQueryResponse{
			Results:    firmPages("ubs"),
			HasMore:    true,
			NextCursor: "c1",
		}, nil).Once()
		mc.On("QueryDatabase", mock.Anything, "deals", cursorIs("c1")).Return(nil, assert.AnError).Once()

		pages, err := QueryAll(context.Background(), mc, "deals", nil)
		require.Error(t, err)
		assert.Nil(t, pages)
		mc.AssertExpectations(t)
	})

	t.Run("cancelled context", func(t *testing.T) {
		mc := new(MockClient)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		pages, err := QueryAll(ctx, mc, "deals", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, pages)
		mc.AssertNotCalled(t, "QueryDatabase", mock.Anything, mock.Anything, mock.Anything)
	})
}
