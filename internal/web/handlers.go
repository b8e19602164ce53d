package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/desertthunder/yt2spotify/internal/shared"
	"github.com/desertthunder/yt2spotify/internal/tasks"
	"github.com/gin-gonic/gin"
)

type startRequest struct {
	YouTubeURL string `json:"youtube_url" binding:"required"`
}

func (s *Server) health(c *gin.Context) {
	authenticated := false
	if s.deps.Accounts != nil {
		if acct, err := s.deps.Accounts.Account(c.Request.Context()); err == nil && acct != nil && acct.AccessToken != "" {
			authenticated = true
		}
	}
	provider := ""
	if s.deps.Recognizer != nil {
		provider = s.deps.Recognizer.Name()
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "authenticated": authenticated, "recognizer": provider})
}

// start enters recognizing before replying, then runs recognition and search in the background.
func (s *Server) start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, fmt.Errorf("%w: youtube_url is required", shared.ErrValidation))
		return
	}

	updates := make(chan tasks.ProgressUpdate, 64)
	opts := s.deps.Options
	opts.Progress = updates
	if opts.Logger == nil {
		opts.Logger = s.deps.Logger
	}

	id := shared.GenerateID()
	conv := newConversion(id, tasks.NewConverter(s.deps.Recognizer, s.deps.Catalog, s.deps.Playlists, s.deps.Accounts, opts))
	if err := conv.conv.Begin(c.Request.Context(), req.YouTubeURL); err != nil {
		abort(c, err)
		return
	}
	view := conv.view()

	s.add(conv)
	go s.watch(conv, updates)
	go func() {
		if err := conv.conv.Run(s.ctx); err != nil {
			s.logger.Info("conversion ended before preview", "id", id, "error", shared.Redact(err.Error()))
		}
	}()

	c.JSON(http.StatusAccepted, view)
}

func (s *Server) show(c *gin.Context) {
	conv, ok := s.lookup(c.Param("id"))
	if !ok {
		abort(c, fmt.Errorf("%w: %s", shared.ErrConversionNotFound, c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, conv.view())
}

// events streams progress as server-sent events.
//
// The first event is a "session" snapshot; each update follows as a "progress" event until the
// conversion returns to idle or the client disconnects.
func (s *Server) events(c *gin.Context) {
	conv, ok := s.lookup(c.Param("id"))
	if !ok {
		abort(c, fmt.Errorf("%w: %s", shared.ErrConversionNotFound, c.Param("id")))
		return
	}

	updates, unsubscribe := conv.subscribe()
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.SSEvent("session", conv.view())
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case u, ok := <-updates:
			if !ok {
				c.SSEvent("session", conv.view())
				return false
			}
			c.SSEvent("progress", u)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// confirm creates the playlist. The call outlives a disconnecting client.
func (s *Server) confirm(c *gin.Context) {
	conv, ok := s.lookup(c.Param("id"))
	if !ok {
		abort(c, fmt.Errorf("%w: %s", shared.ErrConversionNotFound, c.Param("id")))
		return
	}

	res, err := conv.conv.Confirm(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		status := statusFor(err)
		body := gin.H{"error": shared.UserMessage(err), "details": shared.Redact(err.Error()), "session": conv.view()}
		if res != nil {
			body["result"] = res
		}
		c.AbortWithStatusJSON(status, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": res, "session": conv.view()})
}

func (s *Server) cancelConversion(c *gin.Context) {
	conv, ok := s.lookup(c.Param("id"))
	if !ok {
		abort(c, fmt.Errorf("%w: %s", shared.ErrConversionNotFound, c.Param("id")))
		return
	}
	if err := conv.conv.Cancel(); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, conv.view())
}

func (s *Server) history(c *gin.Context) {
	if s.deps.History == nil {
		c.JSON(http.StatusOK, gin.H{"conversions": []any{}})
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			abort(c, fmt.Errorf("%w: limit must be a positive integer", shared.ErrValidation))
			return
		}
		limit = n
	}

	recs, err := s.deps.History.List(map[string]any{"limit": limit, "outcome": c.Query("outcome")})
	if err != nil {
		s.logger.Error("failed to list history", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": shared.MessageGenericError})
		return
	}

	out := make([]gin.H, 0, len(recs))
	for _, r := range recs {
		out = append(out, gin.H{
			"id":           r.ID,
			"sequence":     r.Sequence,
			"youtube_url":  r.YouTubeURL,
			"outcome":      r.Outcome,
			"message":      r.Message,
			"found":        r.FoundCount(),
			"tracks_added": r.TracksAdded,
			"playlist":     r.Playlist,
			"created_at":   r.Created,
		})
	}
	c.JSON(http.StatusOK, gin.H{"conversions": out})
}
