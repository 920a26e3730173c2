package board

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"danyak/types"
)

// mockDataApi keeps rows in memory and counts calls. Responses are
// snapshotted when a call starts, so a held call answers with the state as
// it was when issued.
type mockDataApi struct {
	mu       sync.Mutex
	posts    []types.Post
	comments []types.Comment
	clock    time.Time
	seq      int

	calls    map[string]int
	failures map[string]*types.ApiError
	gates    map[string]chan struct{}
	started  chan string
}

func newMockDataApi() *mockDataApi {
	return &mockDataApi{
		clock:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		calls:    map[string]int{},
		failures: map[string]*types.ApiError{},
		gates:    map[string]chan struct{}{},
		started:  make(chan string, 64),
	}
}

func (m *mockDataApi) Calls(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[key]
}

func (m *mockDataApi) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *mockDataApi) FailNext(key string, status int, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[key] = &types.ApiError{Type: types.ApiErrorTypeRequest, Status: status, Msg: msg}
}

// Hold blocks the next call to key until release is called.
func (m *mockDataApi) Hold(key string) (release func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	m.gates[key] = ch
	m.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (m *mockDataApi) AddPost(title string) types.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addPostLocked(types.NewPost{Title: title, Content: "body", AuthorId: "seed", AuthorEmail: "seed@x.com"})
}

func (m *mockDataApi) addPostLocked(row types.NewPost) types.Post {
	m.seq++
	m.clock = m.clock.Add(time.Minute)
	p := types.Post{
		Id:          fmt.Sprintf("p%d", m.seq),
		Title:       row.Title,
		Content:     row.Content,
		AuthorId:    row.AuthorId,
		AuthorEmail: row.AuthorEmail,
		CreatedAt:   m.clock,
	}
	m.posts = append(m.posts, p)
	return p
}

func (m *mockDataApi) enter(key string) (*types.ApiError, chan struct{}) {
	m.calls[key]++
	failure := m.failures[key]
	delete(m.failures, key)
	gate := m.gates[key]
	delete(m.gates, key)
	return failure, gate
}

func (m *mockDataApi) wait(ctx context.Context, key string, gate chan struct{}) *types.ApiError {
	if gate == nil {
		return nil
	}
	m.started <- key
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return &types.ApiError{Type: types.ApiErrorTypeOther, Msg: ctx.Err().Error()}
	}
}

func (m *mockDataApi) Select(ctx context.Context, table string, q types.Query, dest any) *types.ApiError {
	key := "select/" + table

	m.mu.Lock()
	failure, gate := m.enter(key)
	var rows any
	switch table {
	case types.TablePosts:
		// oldest first on purpose, the store orders on its own
		rows = append([]types.Post{}, m.posts...)
	case types.TableComments:
		res := []types.Comment{}
		for _, c := range m.comments {
			if len(q.Filters) == 0 || c.PostId == q.Filters[0].Value {
				res = append(res, c)
			}
		}
		rows = res
	}
	m.mu.Unlock()

	if apiErr := m.wait(ctx, key, gate); apiErr != nil {
		return apiErr
	}
	if failure != nil {
		return failure
	}

	bytes, _ := json.Marshal(rows)
	if err := json.Unmarshal(bytes, dest); err != nil {
		return &types.ApiError{Type: types.ApiErrorTypeOther, Msg: err.Error()}
	}
	return nil
}

func (m *mockDataApi) Insert(ctx context.Context, table string, session *types.Session, row any, dest any) *types.ApiError {
	key := "insert/" + table

	m.mu.Lock()
	failure, gate := m.enter(key)
	m.mu.Unlock()

	if apiErr := m.wait(ctx, key, gate); apiErr != nil {
		return apiErr
	}
	if failure != nil {
		return failure
	}

	m.mu.Lock()
	var stored any
	switch r := row.(type) {
	case types.NewPost:
		stored = m.addPostLocked(r)
	case types.NewComment:
		found := false
		for _, p := range m.posts {
			if p.Id == r.PostId {
				found = true
			}
		}
		if !found {
			m.mu.Unlock()
			return &types.ApiError{Type: types.ApiErrorTypeRequest, Status: http.StatusConflict, Msg: "insert or update on table \"comments\" violates foreign key constraint \"comments_post_id_fkey\""}
		}
		m.seq++
		m.clock = m.clock.Add(time.Minute)
		c := types.Comment{
			Id:          fmt.Sprintf("c%d", m.seq),
			PostId:      r.PostId,
			Content:     r.Content,
			AuthorId:    r.AuthorId,
			AuthorEmail: r.AuthorEmail,
			CreatedAt:   m.clock,
		}
		m.comments = append(m.comments, c)
		stored = c
	}
	m.mu.Unlock()

	bytes, _ := json.Marshal(stored)
	if err := json.Unmarshal(bytes, dest); err != nil {
		return &types.ApiError{Type: types.ApiErrorTypeOther, Msg: err.Error()}
	}
	return nil
}
