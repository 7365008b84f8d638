package assets

import (
	"drawsync-server/assets"
	"drawsync-server/core"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	UploadResponse struct {
		Ok bool `json:"ok"`
	}

	ErrorResponse struct {
		Error string `json:"error"`
	}
)

// HandleUpload stores a write-once asset from a raw binary request body.
func HandleUpload(store *assets.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uploadID := chi.URLParam(r, "uploadId")
		contentType := r.Header.Get("Content-Type")

		body, err := io.ReadAll(r.Body)
		if err != nil {
			logrus.WithField("upload_id", uploadID).WithError(err).Error("Failed to read upload body")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, ErrorResponse{Error: "Internal server error"})
			return
		}

		err = store.Upload(r.Context(), uploadID, contentType, body, r.Header)
		switch {
		case errors.Is(err, core.ErrInvalidAsset):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse{Error: "Invalid content type or empty body"})
		case errors.Is(err, core.ErrConflict):
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, ErrorResponse{Error: "Upload already exists"})
		case err != nil:
			logrus.WithField("upload_id", uploadID).WithError(err).Error("Failed to store asset")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, ErrorResponse{Error: "Internal server error"})
		default:
			render.JSON(w, r, UploadResponse{Ok: true})
		}
	}
}

// HandleDownload serves an asset, full or as a byte range. Full responses
// are answered from the cache when possible and populate it otherwise; range
// responses always read through, since a cached partial slice would poison
// future full reads.
func HandleDownload(store *assets.Store, cache *assets.ResponseCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uploadID := chi.URLParam(r, "uploadId")

		if r.Header.Get("Range") == "" {
			if entry, ok := cache.Get(uploadID); ok {
				copyHeaders(w, entry.Headers)
				w.Write(entry.Data)
				return
			}
		}

		content, err := store.Get(r.Context(), uploadID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, ErrorResponse{Error: "Asset not found"})
				return
			}
			logrus.WithField("upload_id", uploadID).WithError(err).Error("Failed to read asset")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, ErrorResponse{Error: "Internal server error"})
			return
		}

		headers := http.Header{}
		headers.Set("Content-Type", content.Meta.ContentType)
		headers.Set("Content-Length", strconv.Itoa(len(content.Data)))
		headers.Set("Cache-Control", "public, max-age=31536000, immutable")
		headers.Set("ETag", `"`+uploadID+`"`)

		if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
			if start, end, ok := parseRange(rangeHeader, len(content.Data)); ok {
				chunk := content.Data[start : end+1]
				headers.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(content.Data)))
				headers.Set("Accept-Ranges", "bytes")
				headers.Set("Content-Length", strconv.Itoa(len(chunk)))
				copyHeaders(w, headers)
				w.WriteHeader(http.StatusPartialContent)
				w.Write(chunk)
				return
			}
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", len(content.Data)))
			http.Error(w, "Requested range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
			return
		}

		cache.Put(uploadID, content.Data, headers)
		copyHeaders(w, headers)
		w.Write(content.Data)
	}
}

// parseRange parses a "bytes=start-end" header against an asset of the given
// size. An omitted end means the final byte; an end past the final byte is
// clamped to it.
func parseRange(header string, size int) (start, end int, ok bool) {
	spec, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return 0, 0, false
	}
	startStr, endStr, found := strings.Cut(spec, "-")
	if !found {
		return 0, 0, false
	}

	start, err := strconv.Atoi(startStr)
	if err != nil || start < 0 {
		return 0, 0, false
	}

	end = size - 1
	if endStr != "" {
		end, err = strconv.Atoi(endStr)
		if err != nil {
			return 0, 0, false
		}
		if end > size-1 {
			end = size - 1
		}
	}

	if start >= size || start > end {
		return 0, 0, false
	}
	return start, end, true
}

func copyHeaders(w http.ResponseWriter, headers http.Header) {
	for key, values := range headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
}
