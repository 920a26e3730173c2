package types

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const (
	TablePosts    = "posts"
	TableComments = "comments"
)

type AuthListener func(event AuthChangeEvent, session *Session)

// Subscription is a registration handle. Close is safe to call more than once.
type Subscription interface {
	Close()
}

type AuthApi interface {
	SignUp(ctx context.Context, email, password string) (*Session, *ApiError)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, *ApiError)
	SignOut(ctx context.Context) *ApiError
	GetSession(ctx context.Context) (*Session, *ApiError)
	OnAuthStateChange(listener AuthListener) Subscription
}

type DataApi interface {
	Select(ctx context.Context, table string, q Query, dest any) *ApiError
	Insert(ctx context.Context, table string, session *Session, row any, dest any) *ApiError
}

type Order struct {
	Column string
	Desc   bool
}

type Filter struct {
	Column string
	Value  string
}

// Query is the subset of the data API's select grammar the board needs:
// equality filters plus ordering.
type Query struct {
	Filters []Filter
	Order   []Order
}

func (q Query) Eq(column, value string) Query {
	q.Filters = append(append([]Filter{}, q.Filters...), Filter{Column: column, Value: value})
	return q
}

func (q Query) OrderBy(column string, desc bool) Query {
	q.Order = append(append([]Order{}, q.Order...), Order{Column: column, Desc: desc})
	return q
}

// Values encodes the query in the data API's URL form, e.g.
// select=*&post_id=eq.42&order=created_at.asc
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("select", "*")
	for _, f := range q.Filters {
		v.Add(f.Column, "eq."+f.Value)
	}
	if len(q.Order) > 0 {
		parts := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts = append(parts, fmt.Sprintf("%s.%s", o.Column, dir))
		}
		v.Set("order", strings.Join(parts, ","))
	}
	return v
}
