package board

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"danyak/api"
	"danyak/api/apitest"
	"danyak/auth"
	"danyak/types"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

var testSession = &types.Session{UserId: "u1", Email: "a@x.com", AccessToken: "t1"}

func TestCreatePostPrepends(t *testing.T) {
	mock := newMockDataApi()
	mock.AddPost("older")
	store := NewStore(mock, nil)

	_, err := store.ListPosts(context.Background())
	require.NoError(t, err)

	post, err := store.CreatePost(context.Background(), testSession, "T", "C")
	require.NoError(t, err)
	assert.Equal(t, "T", post.Title)
	assert.Equal(t, "u1", post.AuthorId)
	assert.Equal(t, "a@x.com", post.AuthorEmail)

	posts := store.Posts()
	require.Len(t, posts, 2)
	assert.Equal(t, "T", posts[0].Title)
	assert.Equal(t, "older", posts[1].Title)

	// no refetch after the insert
	assert.Equal(t, 1, mock.Calls("select/posts"))

	comments, fetched := store.Comments(post.Id)
	assert.True(t, fetched)
	assert.Empty(t, comments)
	assert.NotNil(t, comments)
}

func TestCreatePostTrimsInput(t *testing.T) {
	mock := newMockDataApi()
	store := NewStore(mock, nil)

	post, err := store.CreatePost(context.Background(), testSession, "  Hello ", "\tWorld\n")
	require.NoError(t, err)
	assert.Equal(t, "Hello", post.Title)
	assert.Equal(t, "World", post.Content)
}

func TestCreatePostWithoutSession(t *testing.T) {
	mock := newMockDataApi()
	mock.AddPost("existing")
	store := NewStore(mock, nil)

	_, err := store.ListPosts(context.Background())
	require.NoError(t, err)
	before := store.Posts()

	for _, input := range [][2]string{{"T", "C"}, {"", ""}} {
		_, err = store.CreatePost(context.Background(), nil, input[0], input[1])
		require.Error(t, err)
		assert.True(t, types.IsKind(err, types.ErrorKindAuth))
		assert.Equal(t, "must be signed in", err.(*types.BoardError).Msg)
	}

	assert.Empty(t, cmp.Diff(before, store.Posts()))
	assert.Equal(t, 0, mock.Calls("insert/posts"))
}

func TestCreatePostValidation(t *testing.T) {
	mock := newMockDataApi()
	store := NewStore(mock, nil)

	cases := []struct{ title, content string }{
		{"", "C"},
		{"T", ""},
		{"   ", "C"},
		{"T", " \n "},
		{"", ""},
	}
	for _, c := range cases {
		_, err := store.CreatePost(context.Background(), testSession, c.title, c.content)
		require.Error(t, err)
		assert.True(t, types.IsKind(err, types.ErrorKindValidation), "%q/%q", c.title, c.content)
	}

	assert.Equal(t, 0, mock.TotalCalls())
	assert.Empty(t, store.Posts())
}

func TestCreatePostRemoteFailure(t *testing.T) {
	mock := newMockDataApi()
	store := NewStore(mock, nil)

	mock.FailNext("insert/posts", http.StatusForbidden, `new row violates row-level security policy for table "posts"`)

	_, err := store.CreatePost(context.Background(), testSession, "T", "C")
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrorKindMutation))
	assert.Equal(t, `new row violates row-level security policy for table "posts"`, err.(*types.BoardError).Msg)
	assert.Equal(t, http.StatusForbidden, err.(*types.BoardError).Status)
	assert.Empty(t, store.Posts())

	// single attempt
	assert.Equal(t, 1, mock.Calls("insert/posts"))
}

func TestListPostsIsStable(t *testing.T) {
	mock := newMockDataApi()
	for _, title := range []string{"a", "b", "c", "d"} {
		mock.AddPost(title)
	}
	store := NewStore(mock, nil)

	first, err := store.ListPosts(context.Background())
	require.NoError(t, err)
	second, err := store.ListPosts(context.Background())
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(first, second))
	require.Len(t, first, 4)
	for i := 1; i < len(first); i++ {
		assert.True(t, first[i-1].CreatedAt.After(first[i].CreatedAt))
	}
	assert.Equal(t, "d", first[0].Title)
}

func TestListPostsReplacesWholesale(t *testing.T) {
	mock := newMockDataApi()
	mock.AddPost("a")
	store := NewStore(mock, nil)

	_, err := store.CreatePost(context.Background(), testSession, "local", "C")
	require.NoError(t, err)

	mock.mu.Lock()
	mock.posts = mock.posts[:1]
	mock.mu.Unlock()

	posts, err := store.ListPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "a", store.Posts()[0].Title)
}

func TestListPostsFailureKeepsStaleState(t *testing.T) {
	mock := newMockDataApi()
	mock.AddPost("a")
	store := NewStore(mock, nil)

	_, err := store.ListPosts(context.Background())
	require.NoError(t, err)

	mock.FailNext("select/posts", http.StatusServiceUnavailable, "upstream connect error")
	_, err = store.ListPosts(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrorKindFetch))
	assert.Equal(t, "list posts: upstream connect error", err.Error())

	require.Len(t, store.Posts(), 1)
}

func TestSnapshotsAreNotShared(t *testing.T) {
	mock := newMockDataApi()
	mock.AddPost("a")
	store := NewStore(mock, nil)

	posts, err := store.ListPosts(context.Background())
	require.NoError(t, err)
	posts[0].Title = "changed by caller"

	snapshot := store.Posts()
	_, err = store.CreatePost(context.Background(), testSession, "T", "C")
	require.NoError(t, err)

	assert.Equal(t, "a", store.Posts()[1].Title)
	assert.Len(t, snapshot, 1)
}

func TestCreateCommentAppends(t *testing.T) {
	mock := newMockDataApi()
	store := NewStore(mock, nil)

	post, err := store.CreatePost(context.Background(), testSession, "T", "C")
	require.NoError(t, err)

	_, err = store.CreateComment(context.Background(), testSession, post.Id, "first")
	require.NoError(t, err)
	before, _ := store.Comments(post.Id)

	comment, err := store.CreateComment(context.Background(), testSession, post.Id, "hi")
	require.NoError(t, err)
	assert.Equal(t, post.Id, comment.PostId)

	after, fetched := store.Comments(post.Id)
	require.True(t, fetched)
	require.Len(t, after, len(before)+1)
	assert.Equal(t, "hi", after[len(after)-1].Content)
	assert.True(t, after[0].CreatedAt.Before(after[1].CreatedAt))
	assert.Equal(t, 0, mock.Calls("select/comments"))
}

func TestCreateCommentOnUnfetchedPost(t *testing.T) {
	mock := newMockDataApi()
	seeded := mock.AddPost("a")
	store := NewStore(mock, nil)

	_, err := store.ListPosts(context.Background())
	require.NoError(t, err)

	_, err = store.CreateComment(context.Background(), testSession, seeded.Id, "hi")
	require.NoError(t, err)

	_, fetched := store.Comments(seeded.Id)
	assert.False(t, fetched)

	comments, err := store.ListComments(context.Background(), seeded.Id)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "hi", comments[0].Content)
}

func TestCreateCommentPreconditions(t *testing.T) {
	mock := newMockDataApi()
	store := NewStore(mock, nil)

	_, err := store.CreateComment(context.Background(), nil, "p1", "hi")
	assert.True(t, types.IsKind(err, types.ErrorKindAuth))

	_, err = store.CreateComment(context.Background(), testSession, "p1", "  ")
	assert.True(t, types.IsKind(err, types.ErrorKindValidation))

	_, err = store.CreateComment(context.Background(), testSession, "", "hi")
	assert.True(t, types.IsKind(err, types.ErrorKindValidation))

	assert.Equal(t, 0, mock.TotalCalls())
}

func TestCreateCommentRemoteFailure(t *testing.T) {
	mock := newMockDataApi()
	store := NewStore(mock, nil)

	post, err := store.CreatePost(context.Background(), testSession, "T", "C")
	require.NoError(t, err)

	_, err = store.CreateComment(context.Background(), testSession, "missing", "hi")
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrorKindMutation))
	assert.Equal(t, `insert or update on table "comments" violates foreign key constraint "comments_post_id_fkey"`, err.(*types.BoardError).Msg)

	mock.FailNext("insert/comments", http.StatusInternalServerError, "boom")
	_, err = store.CreateComment(context.Background(), testSession, post.Id, "hi")
	require.Error(t, err)

	comments, fetched := store.Comments(post.Id)
	assert.True(t, fetched)
	assert.Empty(t, comments)
}

func TestListCommentsReplacesEntry(t *testing.T) {
	mock := newMockDataApi()
	store := NewStore(mock, nil)

	post, err := store.CreatePost(context.Background(), testSession, "T", "C")
	require.NoError(t, err)
	_, err = store.CreateComment(context.Background(), testSession, post.Id, "one")
	require.NoError(t, err)

	// written by someone else
	mock.mu.Lock()
	mock.comments = append(mock.comments, types.Comment{Id: "x", PostId: post.Id, Content: "two", CreatedAt: mock.clock.Add(time.Hour)})
	mock.mu.Unlock()

	comments, err := store.ListComments(context.Background(), post.Id)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, []string{"one", "two"}, []string{comments[0].Content, comments[1].Content})

	cached, _ := store.Comments(post.Id)
	assert.Empty(t, cmp.Diff(comments, cached))

	mock.FailNext("select/comments", http.StatusBadGateway, "bad gateway")
	_, err = store.ListComments(context.Background(), post.Id)
	assert.True(t, types.IsKind(err, types.ErrorKindFetch))

	cached, _ = store.Comments(post.Id)
	assert.Len(t, cached, 2)
}

func TestFetchedEmptyIsNotUnfetched(t *testing.T) {
	mock := newMockDataApi()
	seeded := mock.AddPost("a")
	store := NewStore(mock, nil)

	_, fetched := store.Comments(seeded.Id)
	assert.False(t, fetched)

	comments, err := store.ListComments(context.Background(), seeded.Id)
	require.NoError(t, err)
	assert.NotNil(t, comments)
	assert.Empty(t, comments)

	cached, fetched := store.Comments(seeded.Id)
	assert.True(t, fetched)
	assert.Empty(t, cached)
}

func TestLaterCompletingListWins(t *testing.T) {
	mock := newMockDataApi()
	mock.AddPost("a")
	store := NewStore(mock, nil)

	release := mock.Hold("select/posts")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := store.ListPosts(context.Background())
		assert.NoError(t, err)
	}()
	<-mock.started

	mock.AddPost("b")
	posts, err := store.ListPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)

	release()
	wg.Wait()

	// the first call was issued before "b" existed but completed last
	require.Len(t, store.Posts(), 1)
	assert.Equal(t, "a", store.Posts()[0].Title)
}

func TestLateResponseAfterClose(t *testing.T) {
	mock := newMockDataApi()
	mock.AddPost("a")
	store := NewStore(mock, nil)

	release := mock.Hold("select/posts")

	done := make(chan []types.Post)
	go func() {
		posts, err := store.ListPosts(context.Background())
		assert.NoError(t, err)
		done <- posts
	}()
	<-mock.started

	store.Close()
	release()

	posts := <-done
	assert.Len(t, posts, 1)
	assert.Empty(t, store.Posts())

	post, err := store.CreatePost(context.Background(), testSession, "T", "C")
	require.NoError(t, err)
	assert.NotEmpty(t, post.Id)
	assert.Empty(t, store.Posts())
}

func TestLoadAllComments(t *testing.T) {
	mock := newMockDataApi()
	for _, title := range []string{"a", "b", "c"} {
		mock.AddPost(title)
	}
	store := NewStore(mock, nil)

	posts, err := store.ListPosts(context.Background())
	require.NoError(t, err)

	// listing never fetches comments on its own
	assert.Equal(t, 0, mock.Calls("select/comments"))

	require.NoError(t, store.LoadAllComments(context.Background(), 2))
	assert.Equal(t, 3, mock.Calls("select/comments"))
	for _, p := range posts {
		_, fetched := store.Comments(p.Id)
		assert.True(t, fetched, p.Title)
	}

	mock.FailNext("select/comments", http.StatusInternalServerError, "boom")
	err = store.LoadAllComments(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrorKindFetch))
}

func TestScenarioAgainstBackend(t *testing.T) {
	server := apitest.NewServer()
	defer server.Close()

	client := api.NewApi(api.ClientOptions{Url: server.URL, AnonKey: apitest.AnonKey})
	defer client.Close()

	manager, err := auth.NewManager(context.Background(), client, nil)
	require.NoError(t, err)
	defer manager.Close()

	store := NewStore(client, nil)
	defer store.Close()

	require.NoError(t, manager.SignUp(context.Background(), "a@x.com", "secret1"))
	_, err = manager.SignIn(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)
	session := manager.CurrentSession()
	require.NotNil(t, session)
	assert.Equal(t, "a@x.com", session.Email)

	post, err := store.CreatePost(context.Background(), session, "Hello", "World")
	require.NoError(t, err)

	_, err = store.CreateComment(context.Background(), session, post.Id, "Nice!")
	require.NoError(t, err)

	posts, err := store.ListPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Hello", posts[0].Title)
	assert.Equal(t, "a@x.com", posts[0].AuthorEmail)

	comments, err := store.ListComments(context.Background(), post.Id)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Nice!", comments[0].Content)

	manager.SignOut(context.Background())
	_, err = store.CreatePost(context.Background(), manager.CurrentSession(), "again", "C")
	assert.True(t, types.IsKind(err, types.ErrorKindAuth))
	require.Len(t, server.Posts(), 1)
}
