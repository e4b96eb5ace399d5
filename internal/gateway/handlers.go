package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/gurnameh-99/fact-den/internal/domain"
	"github.com/gurnameh-99/fact-den/internal/feed"
)

type postView struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Author      string         `json:"author"`
	AuthorAlias string         `json:"authorAlias"`
	Votes       int64          `json:"votes"`
	Comments    []commentView  `json:"comments"`
	CreatedAt   int64          `json:"createdAt"`
	AIVerdict   *domain.Verdict `json:"aiVerdict,omitempty"`
}

type commentView struct {
	ID          int64  `json:"id"`
	Content     string `json:"content"`
	Author      string `json:"author"`
	AuthorAlias string `json:"authorAlias"`
}

type createPostRequest struct {
	Title   string `json:"title" validate:"required,min=3,max=200"`
	Content string `json:"content" validate:"required,min=3,max=5000"`
}

type addCommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=2000"`
}

type voteRequest struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

type updateAccountRequest struct {
	Alias    string `json:"alias" validate:"required,min=2,max=40"`
	AvatarID string `json:"avatarId" validate:"max=1000"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	principal, err := s.identity.Login(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Login failed. Please try again.", true)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"principal": string(principal)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.identity.Logout(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, "Logout failed.", true)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.identity.Current()
	if !ok {
		writeError(w, http.StatusUnauthorized, "Please log in first.", false)
		return
	}
	info, err := s.directory.UserInfo(r.Context(), principal)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Could not load account info.", true)
		return
	}
	resp := map[string]string{"principal": string(principal), "alias": "", "avatarId": ""}
	if info != nil {
		resp["alias"] = info.Alias
		resp["avatarId"] = info.AvatarID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.identity.Current(); !ok {
		writeError(w, http.StatusUnauthorized, "Please log in first.", false)
		return
	}
	var req updateAccountRequest
	if !s.decode(w, r, &req) {
		return
	}
	ok, err := s.directory.UpdateUserInfo(r.Context(), req.Alias, req.AvatarID)
	if err != nil || !ok {
		writeError(w, http.StatusBadGateway, "Could not save account info.", true)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts := s.feed.Posts(r.URL.Query().Get("query"))
	views := make([]postView, 0, len(posts))
	for _, p := range posts {
		views = append(views, s.toView(r, p))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := s.postID(w, r)
	if !ok {
		return
	}
	post, err := s.feed.Post(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Post not found.", false)
		return
	}
	writeJSON(w, http.StatusOK, s.toView(r, post))
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.identity.Current()
	if !ok {
		writeError(w, http.StatusUnauthorized, "Please log in first.", false)
		return
	}

	// Posting requires a display alias, as on the account screen.
	info, err := s.directory.UserInfo(r.Context(), principal)
	if err == nil && (info == nil || info.Alias == "") {
		writeError(w, http.StatusForbidden, "Set an alias on your account before posting.", false)
		return
	}

	var req createPostRequest
	if !s.decode(w, r, &req) {
		return
	}

	post, err := s.feed.Create(r.Context(), req.Title, req.Content)
	if err != nil {
		s.writeFeedError(w, err, "Failed to create post. Please try again.")
		return
	}
	writeJSON(w, http.StatusCreated, s.toView(r, post))
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.postID(w, r)
	if !ok {
		return
	}
	var req addCommentRequest
	if !s.decode(w, r, &req) {
		return
	}

	comment, err := s.feed.Comment(r.Context(), id, req.Content)
	if err != nil {
		s.writeFeedError(w, err, "Failed to add comment.")
		return
	}
	writeJSON(w, http.StatusCreated, commentView{
		ID:          comment.ID,
		Content:     comment.Content,
		Author:      string(comment.Author),
		AuthorAlias: s.feed.Author(r.Context(), comment.Author).Alias,
	})
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	id, ok := s.postID(w, r)
	if !ok {
		return
	}
	var req voteRequest
	if !s.decode(w, r, &req) {
		return
	}

	clicked := domain.VoteUp
	if req.Direction == "down" {
		clicked = domain.VoteDown
	}

	state, err := s.feed.Vote(r.Context(), id, clicked)
	if err != nil {
		switch {
		case errors.Is(err, feed.ErrVoteInFlight):
			writeError(w, http.StatusConflict, "A vote is already being submitted.", true)
		case errors.Is(err, feed.ErrVoteRejected):
			writeError(w, http.StatusUnprocessableEntity, "The server rejected the vote.", false)
		default:
			s.writeFeedError(w, err, "Failed to submit vote.")
		}
		return
	}

	post, _ := s.feed.Post(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"vote":  state.String(),
		"votes": post.Votes,
	})
}

func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	id, ok := s.postID(w, r)
	if !ok {
		return
	}
	verdict, state, err := s.feed.Expand(r.Context(), id)
	if err != nil {
		s.writeFeedError(w, err, "Failed to load the verdict.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":   state.String(),
		"verdict": verdict,
	})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	id, ok := s.postID(w, r)
	if !ok {
		return
	}
	labels, err := s.feed.SourceLabels(r.Context(), id)
	if err != nil {
		s.writeFeedError(w, err, "Failed to resolve sources.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"labels": labels})
}

func (s *Server) handleRefreshVerdict(w http.ResponseWriter, r *http.Request) {
	id, ok := s.postID(w, r)
	if !ok {
		return
	}
	verdict, err := s.feed.RefreshVerdict(r.Context(), id)
	if err != nil {
		if errors.Is(err, feed.ErrVerdictInFlight) {
			writeError(w, http.StatusConflict, "A verdict request is already running.", true)
			return
		}
		s.writeFeedError(w, err, "Fact-check failed. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

func (s *Server) postID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid post id.", false)
		return 0, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.", false)
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed: "+err.Error(), false)
		return false
	}
	return true
}

func (s *Server) writeFeedError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, feed.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "Please log in first.", false)
	case errors.Is(err, feed.ErrUnknownPost):
		writeError(w, http.StatusNotFound, "Post not found.", false)
	default:
		writeError(w, http.StatusBadGateway, fallback, true)
	}
}

func (s *Server) toView(r *http.Request, p domain.Post) postView {
	comments := make([]commentView, 0, len(p.Comments))
	for _, cm := range p.Comments {
		comments = append(comments, commentView{
			ID:          cm.ID,
			Content:     cm.Content,
			Author:      string(cm.Author),
			AuthorAlias: s.feed.Author(r.Context(), cm.Author).Alias,
		})
	}
	return postView{
		ID:          p.ID,
		Title:       p.Title,
		Content:     p.Content,
		Author:      string(p.Author),
		AuthorAlias: s.feed.Author(r.Context(), p.Author).Alias,
		Votes:       p.Votes,
		Comments:    comments,
		CreatedAt:   p.CreatedAt.UnixMilli(),
		AIVerdict:   p.AIVerdict,
	}
}
