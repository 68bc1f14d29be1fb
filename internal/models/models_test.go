package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginationNormalize(t *testing.T) {
	p := Pagination{Page: 0, Limit: 500}
	p.Normalize()

	assert.Equal(t, 1, p.Page)
	assert.Equal(t, MaxLimit, p.Limit)
	assert.Equal(t, 0, p.Offset())

	p = Pagination{Page: 3, Limit: 20}
	p.Normalize()
	assert.Equal(t, 40, p.Offset())
}

func TestPaginationMeta(t *testing.T) {
	meta := Pagination{Page: 2, Limit: 10}.Meta(25)
	require.NotNil(t, meta.NextPage)
	require.NotNil(t, meta.PrevPage)
	assert.Equal(t, 3, *meta.NextPage)
	assert.Equal(t, 1, *meta.PrevPage)

	meta = Pagination{Page: 1, Limit: 10}.Meta(10)
	assert.Nil(t, meta.NextPage)
	assert.Nil(t, meta.PrevPage)
}

func TestSortOrder(t *testing.T) {
	assert.True(t, SortOrder("").Valid())
	assert.True(t, SortOrder("DESC").Valid())
	assert.False(t, SortOrder("sideways").Valid())
	assert.Equal(t, "DESC", SortOrder("desc").SQL())
	assert.Equal(t, "ASC", SortOrder("asc").SQL())
}

func TestBookConditionValid(t *testing.T) {
	assert.True(t, ConditionLikeNew.Valid())
	assert.False(t, BookCondition("MINT").Valid())
}

func TestPriceEncodesAsNumber(t *testing.T) {
	out, err := json.Marshal(TransactionStatistics{AverageTransactionAmount: decimal.RequireFromString("12.50")})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"average_transaction_amount":12.5`)
}

func TestTransactionCreatedEventBookIDs(t *testing.T) {
	e := &TransactionCreatedEvent{Items: []LineItemData{
		{BookID: "a", Quantity: 1},
		{BookID: "b", Quantity: 2},
		{BookID: "a", Quantity: 3},
	}}
	assert.Equal(t, []string{"a", "b"}, e.BookIDs())
}
