package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shapedtime/streamcore/internal/streaming"
)

func (s *Server) openMagnet(c *gin.Context) {
	var req struct {
		Magnet string `json:"magnet" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	provider, err := s.registry.OpenMagnet(c, req.Magnet)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"infohash": provider.Infohash()})
}

func (s *Server) lookup(c *gin.Context) (ProviderHandle, bool) {
	infohash := c.Param("infohash")
	p, ok := s.registry.Provider(infohash)
	if !ok {
		errorResponse(c, http.StatusNotFound, "unknown infohash")
		return nil, false
	}
	return p, true
}

func (s *Server) start(c *gin.Context) {
	p, ok := s.lookup(c)
	if !ok {
		return
	}
	if err := p.Start(c); err != nil {
		writeStreamingError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) pause(c *gin.Context) {
	p, ok := s.lookup(c)
	if !ok {
		return
	}
	if err := p.Pause(c); err != nil {
		writeStreamingError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) resume(c *gin.Context) {
	p, ok := s.lookup(c)
	if !ok {
		return
	}
	if err := p.Resume(c); err != nil {
		writeStreamingError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) stop(c *gin.Context) {
	p, ok := s.lookup(c)
	if !ok {
		return
	}
	if err := p.Stop(c); err != nil {
		writeStreamingError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) status(c *gin.Context) {
	p, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"infohash": p.Infohash(),
		"active":   p.Active(),
		"paused":   p.Paused(),
	})
}

func (s *Server) createStream(c *gin.Context) {
	p, ok := s.lookup(c)
	if !ok {
		return
	}

	var req struct {
		Path string `json:"path" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	file, ok := p.FileByPath(req.Path)
	if !ok {
		errorResponse(c, http.StatusNotFound, "file not found in torrent")
		return
	}

	stream, err := p.CreateStream(file)
	if err != nil {
		writeStreamingError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"path":   req.Path,
		"length": stream.Length(),
	})
}

// createHTTPStream mounts a create_stream result as a Range-aware HTTP
// byte source via streaming.NewHTTPStreamHandler (spec §4.4 "a second,
// HTTP-framing wrapper ... re-expose the stream as a URI-addressable byte
// source"). The handler (and the stream it owns) lives for the duration
// of this single HTTP response; a media player issuing further Range
// requests against the same URL gets a fresh stream each time, which is
// correct for the thin-adapter framing this layer promises but means a
// production deployment would want to cache the handler per (infohash,
// path) — left to the caller, since that policy is outside the core.
func (s *Server) createHTTPStream(c *gin.Context) {
	p, ok := s.lookup(c)
	if !ok {
		return
	}

	path := c.Query("path")
	if path == "" {
		errorResponse(c, http.StatusBadRequest, "missing path query parameter")
		return
	}

	file, ok := p.FileByPath(path)
	if !ok {
		errorResponse(c, http.StatusNotFound, "file not found in torrent")
		return
	}

	stream, err := p.CreateStream(file)
	if err != nil {
		writeStreamingError(c, err)
		return
	}
	defer stream.Dispose()

	handler := streaming.NewHTTPStreamHandler(stream, path)
	handler.ServeHTTP(c.Writer, c.Request)
}

func writeStreamingError(c *gin.Context, err error) {
	var serr *streaming.Error
	if errors.As(err, &serr) {
		switch serr.Kind {
		case streaming.KindInvalidState:
			errorResponse(c, http.StatusConflict, serr.Error())
		case streaming.KindInvalidArgument:
			errorResponse(c, http.StatusBadRequest, serr.Error())
		case streaming.KindConflict:
			errorResponse(c, http.StatusConflict, serr.Error())
		case streaming.KindCancelled:
			errorResponse(c, http.StatusRequestTimeout, serr.Error())
		case streaming.KindStorageError:
			errorResponse(c, http.StatusBadGateway, serr.Error())
		default:
			errorResponse(c, http.StatusInternalServerError, serr.Error())
		}
		return
	}
	errorResponse(c, http.StatusInternalServerError, err.Error())
}
