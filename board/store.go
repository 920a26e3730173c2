package board

import (
	"context"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"

	"danyak/types"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultLoadAllLimit = 4

const (
	opListPosts     = "list posts"
	opListComments  = "list comments"
	opCreatePost    = "create post"
	opCreateComment = "create comment"
)

// Store caches the board's posts and the comments of every post opened so
// far. State is only ever replaced, never edited in place, so slices handed
// out by earlier calls stay valid.
type Store struct {
	data types.DataApi
	log  *zap.Logger

	mu       sync.Mutex
	posts    []types.Post
	comments map[string][]types.Comment
	closed   bool
}

func NewStore(data types.DataApi, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		data:     data,
		log:      logger.Named("board"),
		posts:    []types.Post{},
		comments: map[string][]types.Comment{},
	}
}

// ListPosts fetches every post, newest first, and replaces the cached list.
// On failure the cached list is kept.
func (s *Store) ListPosts(ctx context.Context) ([]types.Post, error) {
	var posts []types.Post
	apiErr := s.data.Select(ctx, types.TablePosts, types.Query{}.OrderBy("created_at", true), &posts)
	if apiErr != nil {
		s.log.Warn("error fetching posts", zap.String("msg", apiErr.Msg))
		return nil, types.FromApiError(types.ErrorKindFetch, opListPosts, apiErr)
	}

	if posts == nil {
		posts = []types.Post{}
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.log.Debug("store closed, dropping fetched posts", zap.Int("count", len(posts)))
		return slices.Clone(posts), nil
	}

	s.posts = posts
	return slices.Clone(posts), nil
}

// ListComments fetches one post's comments, oldest first, and replaces that
// post's entry in the comment index.
func (s *Store) ListComments(ctx context.Context, postId string) ([]types.Comment, error) {
	if strings.TrimSpace(postId) == "" {
		return nil, types.NewValidationError(opListComments, "post id is required")
	}

	var comments []types.Comment
	q := types.Query{}.Eq("post_id", postId).OrderBy("created_at", false)
	apiErr := s.data.Select(ctx, types.TableComments, q, &comments)
	if apiErr != nil {
		s.log.Warn("error fetching comments", zap.String("postId", postId), zap.String("msg", apiErr.Msg))
		return nil, types.FromApiError(types.ErrorKindFetch, opListComments, apiErr)
	}

	if comments == nil {
		comments = []types.Comment{}
	}
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.log.Debug("store closed, dropping fetched comments", zap.String("postId", postId))
		return slices.Clone(comments), nil
	}

	s.comments = withEntry(s.comments, postId, comments)
	return slices.Clone(comments), nil
}

// CreatePost inserts a post and, once the remote acknowledges it, prepends
// the stored row to the cached list. Nothing changes locally on failure.
func (s *Store) CreatePost(ctx context.Context, session *types.Session, title, content string) (types.Post, error) {
	if session == nil {
		return types.Post{}, notSignedIn(opCreatePost)
	}

	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return types.Post{}, types.NewValidationError(opCreatePost, "title and content are both required")
	}

	var post types.Post
	apiErr := s.data.Insert(ctx, types.TablePosts, session, types.NewPost{
		Title:       title,
		Content:     content,
		AuthorId:    session.UserId,
		AuthorEmail: session.Email,
	}, &post)
	if apiErr != nil {
		s.log.Warn("error creating post", zap.String("msg", apiErr.Msg))
		return types.Post{}, types.FromApiError(types.ErrorKindMutation, opCreatePost, apiErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return post, nil
	}

	posts := make([]types.Post, 0, len(s.posts)+1)
	posts = append(posts, post)
	posts = append(posts, s.posts...)
	s.posts = posts

	// a brand new post has no comments: fetched and empty, not unfetched
	s.comments = withEntry(s.comments, post.Id, []types.Comment{})

	return post, nil
}

// CreateComment inserts a comment and appends it to the post's cached
// comments. A post whose comments were never fetched stays unfetched.
func (s *Store) CreateComment(ctx context.Context, session *types.Session, postId, content string) (types.Comment, error) {
	if session == nil {
		return types.Comment{}, notSignedIn(opCreateComment)
	}

	content = strings.TrimSpace(content)
	if strings.TrimSpace(postId) == "" || content == "" {
		return types.Comment{}, types.NewValidationError(opCreateComment, "post and content are both required")
	}

	var comment types.Comment
	apiErr := s.data.Insert(ctx, types.TableComments, session, types.NewComment{
		PostId:      postId,
		Content:     content,
		AuthorId:    session.UserId,
		AuthorEmail: session.Email,
	}, &comment)
	if apiErr != nil {
		s.log.Warn("error creating comment", zap.String("postId", postId), zap.String("msg", apiErr.Msg))
		return types.Comment{}, types.FromApiError(types.ErrorKindMutation, opCreateComment, apiErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return comment, nil
	}

	existing, fetched := s.comments[postId]
	if !fetched {
		return comment, nil
	}

	next := make([]types.Comment, 0, len(existing)+1)
	next = append(next, existing...)
	next = append(next, comment)
	s.comments = withEntry(s.comments, postId, next)

	return comment, nil
}

func (s *Store) Posts() []types.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.posts)
}

// Comments returns the cached comments of a post and whether they were
// fetched at all.
func (s *Store) Comments(postId string) ([]types.Comment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	comments, ok := s.comments[postId]
	if !ok {
		return nil, false
	}
	return slices.Clone(comments), true
}

// LoadAllComments fetches the comments of every cached post, at most limit
// at a time. It returns the first failure; entries that did load are kept.
func (s *Store) LoadAllComments(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = defaultLoadAllLimit
	}

	posts := s.Posts()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, post := range posts {
		postId := post.Id
		g.Go(func() error {
			_, err := s.ListComments(gctx, postId)
			return err
		})
	}

	return g.Wait()
}

// Close detaches the store from its owner. Requests that complete afterwards
// still return to their caller but are not applied.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func withEntry(index map[string][]types.Comment, postId string, comments []types.Comment) map[string][]types.Comment {
	next := make(map[string][]types.Comment, len(index)+1)
	for k, v := range index {
		next[k] = v
	}
	next[postId] = comments
	return next
}

func notSignedIn(op string) *types.BoardError {
	return &types.BoardError{Kind: types.ErrorKindAuth, Op: op, Msg: "must be signed in", Status: http.StatusUnauthorized}
}
