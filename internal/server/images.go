package server

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chew-z/workers-ai-proxy/internal/ai"
	"github.com/chew-z/workers-ai-proxy/internal/api"
	"github.com/chew-z/workers-ai-proxy/internal/blob"
)

// handleImageGeneration generates one image and returns it either inline as
// base64 or as a retrieval URL for a freshly stored blob.
func (s *Server) handleImageGeneration(c *gin.Context) {
	created := time.Now().Unix()

	if !requireJSON(c) {
		return
	}

	var req api.ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, api.ErrBadRequest(err.Error()))
		return
	}
	if req.Prompt == "" {
		handleError(c, api.ErrBadRequest("no prompt provided"))
		return
	}

	format := "url"
	if req.Format != "" {
		if req.Format != "b64_json" && req.Format != "url" {
			handleError(c, api.ErrBadRequest("invalid format. must be b64_json or url"))
			return
		}
		format = req.Format
	}

	result, err := s.ai.Run(c.Request.Context(), imageModel, map[string]any{
		"prompt": req.Prompt,
	})
	if err != nil {
		handleError(c, api.ErrBadRequest(err.Error()))
		return
	}

	buffer, err := imageBuffer(result)
	if err != nil {
		handleError(c, api.ErrBadRequest(err.Error()))
		return
	}

	if format == "b64_json" {
		c.JSON(http.StatusOK, api.ImageResponse{
			Created: created,
			Data: []api.ImageDatum{
				{B64JSON: base64.StdEncoding.EncodeToString(buffer)},
			},
		})
		return
	}

	name := uuid.NewString() + ".png"
	if err := s.store.Put(c.Request.Context(), name, buffer, "image/png"); err != nil {
		handleError(c, api.ErrBadRequest(err.Error()))
		return
	}

	c.JSON(http.StatusOK, api.ImageResponse{
		Created: created,
		Data: []api.ImageDatum{
			{URL: requestOrigin(c) + "/v1/images/get/" + name},
		},
	})
}

// imageBuffer reduces the backend's image result union to one contiguous
// buffer. An array result contributes its first element only.
func imageBuffer(result ai.Result) ([]byte, error) {
	switch result.Kind {
	case ai.KindBytes:
		return result.Bytes, nil
	case ai.KindStream:
		return drainStream(result.Stream)
	case ai.KindList:
		if len(result.List) == 0 {
			return nil, errors.New("unsupported image output format")
		}
		first := result.List[0]
		switch first.Kind {
		case ai.KindBytes:
			return first.Bytes, nil
		case ai.KindStream:
			return drainStream(first.Stream)
		default:
			return nil, errors.New("unsupported image output format")
		}
	default:
		return nil, errors.New("unknown image response format")
	}
}

// drainStream reads a byte stream to exhaustion, collecting delivered chunks
// and concatenating them into one exactly-sized buffer. The stream is closed
// on every path.
func drainStream(rc io.ReadCloser) ([]byte, error) {
	defer rc.Close()

	var chunks [][]byte
	total := 0
	buf := make([]byte, 32*1024)
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			chunks = append(chunks, chunk)
			total += n
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	out := make([]byte, 0, total)
	for _, chunk := range chunks {
		out = append(out, chunk...)
	}
	return out, nil
}

// requestOrigin reconstructs the scheme://host origin of the incoming
// request for building retrieval URLs.
func requestOrigin(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host
}

// handleGetImage streams a previously generated image back. Misses are a
// bodiless 404.
func (s *Server) handleGetImage(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")
	if name == "" {
		c.Status(http.StatusNotFound)
		return
	}

	reader, contentType, err := s.store.Get(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		handleError(c, api.ErrInternalServer(err.Error()))
		return
	}
	defer reader.Close()

	if contentType == "" {
		contentType = "image/png"
	}

	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.DataFromReader(http.StatusOK, -1, contentType, reader, nil)
}
