package models

import "strings"

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Valid reports whether s is empty (unsorted) or a known direction.
func (s SortOrder) Valid() bool {
	switch SortOrder(strings.ToLower(string(s))) {
	case "", SortAsc, SortDesc:
		return true
	}
	return false
}

// SQL returns the ORDER BY keyword for s.
func (s SortOrder) SQL() string {
	if SortOrder(strings.ToLower(string(s))) == SortDesc {
		return "DESC"
	}
	return "ASC"
}

type Pagination struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// Normalize applies defaults and clamps the limit.
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Meta builds the response paging block for a result of total rows.
func (p Pagination) Meta(total int64) PageMeta {
	meta := PageMeta{Page: p.Page, Limit: p.Limit, Total: total}
	if total > int64(p.Page*p.Limit) {
		next := p.Page + 1
		meta.NextPage = &next
	}
	if p.Page > 1 {
		prev := p.Page - 1
		meta.PrevPage = &prev
	}
	return meta
}

type PageMeta struct {
	Page     int   `json:"page"`
	Limit    int   `json:"limit"`
	Total    int64 `json:"total"`
	NextPage *int  `json:"next_page"`
	PrevPage *int  `json:"prev_page"`
}

// TransactionQuery lists transactions. Search matches a substring of the id.
// With no ordering given, newest first.
type TransactionQuery struct {
	Pagination
	Search        string    `form:"search"`
	OrderByID     SortOrder `form:"orderById"`
	OrderByAmount SortOrder `form:"orderByAmount"`
	OrderByPrice  SortOrder `form:"orderByPrice"`
}

type BookQuery struct {
	Pagination
	Search             string        `form:"search"`
	Condition          BookCondition `form:"condition"`
	OrderByTitle       SortOrder     `form:"orderByTitle"`
	OrderByPublishDate SortOrder     `form:"orderByPublishDate"`
}

type GenreQuery struct {
	Pagination
	Search      string    `form:"search"`
	OrderByName SortOrder `form:"orderByName"`
}
