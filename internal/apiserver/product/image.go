package product

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"automarket/internal/apiserver/auth"
	"automarket/internal/shared/objstore"
)

// UploadImage 上传商品图片（multipart 字段 image）
// PUT /api/v1/products/{id}/image
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		writeError(w, http.StatusServiceUnavailable, "object storage is not configured")
		return
	}
	actor := auth.ActorFrom(r.Context())
	p, ok := h.loadManaged(w, r, actor)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if _, ok := objstore.ImageExtension(contentType); !ok {
		writeError(w, http.StatusUnsupportedMediaType, "image must be jpeg, png or webp")
		return
	}

	key, err := h.images.PutProductImage(r.Context(), p.ID, file, header.Size, contentType)
	if err != nil {
		h.logger.Errorw("upload image failed", "product_id", p.ID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to store image")
		return
	}
	if err := h.store.SetProductImage(r.Context(), p.ID, &key); err != nil {
		h.logger.Errorw("save image key failed", "product_id", p.ID, "error", err)
		if derr := h.images.Delete(r.Context(), key); derr != nil {
			h.logger.Warnw("remove orphaned image failed", "key", key, "error", derr)
		}
		writeError(w, http.StatusInternalServerError, "failed to update product")
		return
	}
	if p.ImageKey != nil {
		if err := h.images.Delete(r.Context(), *p.ImageKey); err != nil {
			h.logger.Warnw("remove previous image failed", "key", *p.ImageKey, "error", err)
		}
	}

	p.ImageKey = &key
	h.logger.Infow("product image uploaded", "product_id", p.ID, "key", key, "size", header.Size)
	writeJSON(w, http.StatusOK, p)
}

// GetImage 下载商品图片（与商品详情相同的可见性）
// GET /api/v1/products/{id}/image
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		writeError(w, http.StatusServiceUnavailable, "object storage is not configured")
		return
	}
	p, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	if p.ImageKey == nil {
		writeError(w, http.StatusNotFound, "product has no image")
		return
	}

	obj, err := h.images.Open(r.Context(), *p.ImageKey)
	if err != nil {
		if errors.Is(err, objstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "image not found")
			return
		}
		h.logger.Errorw("open image failed", "product_id", p.ID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to load image")
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj); err != nil {
		h.logger.Warnw("stream image interrupted", "product_id", p.ID, "error", err)
	}
}
