// Package product 商品目录 - HTTP 处理
//
// 状态变更只能通过审核接口完成，本包只负责创建、查询、编辑、删除、
// 推荐标记与图片。
package product

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"automarket/internal/apiserver/auth"
	"automarket/internal/moderation"
	"automarket/internal/shared/model"
	"automarket/internal/shared/objstore"
	"automarket/internal/shared/storage"
	"automarket/pkg/logging"
)

// DefaultMaxUploadBytes 图片上传默认上限
const DefaultMaxUploadBytes = 5 << 20

// ImageStore 商品图片存储
type ImageStore interface {
	PutProductImage(ctx context.Context, productID int64, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, key string) (*objstore.Object, error)
	Delete(ctx context.Context, key string) error
}

// Handler 商品 HTTP 处理器
type Handler struct {
	store          storage.ProductStore
	images         ImageStore
	maxUploadBytes int64
	logger         *logging.Logger
}

// NewHandler 创建商品处理器；images 为 nil 时图片接口返回 503
func NewHandler(store storage.ProductStore, images ImageStore, maxUploadBytes int64, logger *logging.Logger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{store: store, images: images, maxUploadBytes: maxUploadBytes, logger: logger}
}

// RegisterRoutes 注册商品相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/products", h.List)
	mux.HandleFunc("POST /api/v1/products", auth.RequireRole(h.Create, model.UserRoleVendor, model.UserRoleAdmin))
	mux.HandleFunc("GET /api/v1/products/{id}", h.Get)
	mux.HandleFunc("PUT /api/v1/products/{id}", auth.RequireRole(h.Update, model.UserRoleVendor, model.UserRoleAdmin))
	mux.HandleFunc("DELETE /api/v1/products/{id}", auth.RequireRole(h.Delete, model.UserRoleVendor, model.UserRoleAdmin))
	mux.HandleFunc("PUT /api/v1/products/{id}/featured", auth.AdminOnly(h.SetFeatured))
	mux.HandleFunc("PUT /api/v1/products/{id}/image", auth.RequireRole(h.UploadImage, model.UserRoleVendor, model.UserRoleAdmin))
	mux.HandleFunc("GET /api/v1/products/{id}/image", h.GetImage)
}

// ============================================================================
// CRUD
// ============================================================================

// Create 创建商品
// POST /api/v1/products
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFrom(r.Context())

	var req CreateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if !req.priceValid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be positive with at most 2 decimals", "field": "price"})
		return
	}

	status, vendorID, msg := initialState(actor, req)
	if msg != "" {
		code := http.StatusBadRequest
		if status == "" {
			code = http.StatusForbidden
		}
		writeError(w, code, msg)
		return
	}

	p := &model.Product{VendorID: vendorID, Status: status}
	req.applyTo(p)
	if err := h.store.CreateProduct(r.Context(), p); err != nil {
		h.logger.Errorw("create product failed", "vendor_id", vendorID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	h.logger.Infow("product created", "product_id", p.ID, "vendor_id", vendorID, "status", status, "actor_id", actor.ID)
	writeJSON(w, http.StatusCreated, p)
}

// initialState 计算新商品的初始状态与所属供应商
//
// 返回非空 msg 表示请求被拒绝：status 为空时为 403，否则为 400。
func initialState(actor moderation.Actor, req CreateRequest) (model.ProductStatus, int64, string) {
	status := model.ProductStatusDraft
	if req.Submit {
		status = model.ProductStatusPendingReview
	}
	if req.Status != "" {
		status = model.ProductStatus(req.Status)
	}

	if actor.IsAdmin() {
		if req.VendorID == 0 {
			return status, 0, "vendor_id is required"
		}
		return status, req.VendorID, ""
	}

	if status == model.ProductStatusApproved {
		return "", 0, "only admins can create approved products"
	}
	if req.VendorID != 0 && req.VendorID != actor.ID {
		return "", 0, "vendors can only create their own products"
	}
	return status, actor.ID, ""
}

// List 列出商品
// GET /api/v1/products?status=&vendor_id=&category=&featured=&mine=&limit=&offset=
//
// 游客与买家只能看到 approved；供应商加 mine=true 查看自己的全部商品；
// 管理员可按任意状态过滤。
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFrom(r.Context())
	q := r.URL.Query()

	filter := model.ProductFilter{
		Category: q.Get("category"),
		Limit:    queryInt(r, "limit", model.DefaultProductLimit),
		Offset:   queryInt(r, "offset", 0),
	}
	if v := q.Get("vendor_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid vendor_id")
			return
		}
		filter.VendorID = &id
	}
	if v := q.Get("featured"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid featured")
			return
		}
		filter.Featured = &b
	}
	var requested []model.ProductStatus
	if v := q.Get("status"); v != "" {
		s := model.ProductStatus(v)
		if !s.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		requested = []model.ProductStatus{s}
	}

	switch {
	case actor.IsAdmin():
		filter.Statuses = requested
	case actor.Role == model.UserRoleVendor && q.Get("mine") == "true":
		self := actor.ID
		filter.VendorID = &self
		filter.Statuses = requested
	default:
		filter.Statuses = []model.ProductStatus{model.ProductStatusApproved}
		if len(requested) > 0 && requested[0] != model.ProductStatusApproved {
			writeJSON(w, http.StatusOK, ListResponse{Products: []*model.Product{}, Limit: filter.Limit, Offset: filter.Offset})
			return
		}
	}
	filter.Normalize()

	products, err := h.store.ListProducts(r.Context(), filter)
	if err != nil {
		h.logger.Errorw("list products failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if products == nil {
		products = []*model.Product{}
	}
	writeJSON(w, http.StatusOK, ListResponse{
		Products: products,
		Count:    len(products),
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
}

// Get 商品详情
// GET /api/v1/products/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Update 编辑商品描述信息
// PUT /api/v1/products/{id}
//
// 供应商只能在 draft/rejected/unpublished 状态下编辑自己的商品。
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFrom(r.Context())
	p, ok := h.loadManaged(w, r, actor)
	if !ok {
		return
	}

	var req UpdateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if !req.priceValid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be positive with at most 2 decimals", "field": "price"})
		return
	}
	if !actor.IsAdmin() && !p.Editable() {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":          "product cannot be edited in its current status",
			"current_status": string(p.Status),
		})
		return
	}

	req.applyTo(p)
	if err := h.store.UpdateProduct(r.Context(), p); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Errorw("update product failed", "product_id", p.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update product")
		return
	}

	updated, err := h.store.GetProduct(r.Context(), p.ID)
	if err != nil || updated == nil {
		writeJSON(w, http.StatusOK, p)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete 删除商品
// DELETE /api/v1/products/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFrom(r.Context())
	p, ok := h.loadManaged(w, r, actor)
	if !ok {
		return
	}

	if err := h.store.DeleteProduct(r.Context(), p.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Errorw("delete product failed", "product_id", p.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}
	if p.ImageKey != nil && h.images != nil {
		if err := h.images.Delete(r.Context(), *p.ImageKey); err != nil {
			h.logger.Warnw("delete product image failed", "product_id", p.ID, "key", *p.ImageKey, "error", err)
		}
	}

	h.logger.Infow("product deleted", "product_id", p.ID, "actor_id", actor.ID)
	w.WriteHeader(http.StatusNoContent)
}

// SetFeatured 设置/取消推荐（仅管理员；设置时要求 approved）
// PUT /api/v1/products/{id}/featured
func (h *Handler) SetFeatured(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req FeaturedRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	err := h.store.SetProductFeatured(r.Context(), id, req.Featured)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
		return
	case errors.Is(err, storage.ErrConflict):
		resp := map[string]string{"error": "only approved products can be featured"}
		if p, gerr := h.store.GetProduct(r.Context(), id); gerr == nil && p != nil {
			resp["current_status"] = string(p.Status)
		}
		writeJSON(w, http.StatusConflict, resp)
		return
	case err != nil:
		h.logger.Errorw("set featured failed", "product_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update product")
		return
	}

	p, err := h.store.GetProduct(r.Context(), id)
	if err != nil || p == nil {
		writeError(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ============================================================================
// 加载与可见性
// ============================================================================

// loadVisible 加载商品并校验可见性；未审核通过的商品对无权者表现为不存在
func (h *Handler) loadVisible(w http.ResponseWriter, r *http.Request) (*model.Product, bool) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return nil, false
	}
	p, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		h.logger.Errorw("get product failed", "product_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load product")
		return nil, false
	}
	if p == nil || !visibleTo(auth.ActorFrom(r.Context()), p) {
		writeError(w, http.StatusNotFound, "product not found")
		return nil, false
	}
	return p, true
}

// loadManaged 加载商品并要求操作者为管理员或所属供应商
func (h *Handler) loadManaged(w http.ResponseWriter, r *http.Request, actor moderation.Actor) (*model.Product, bool) {
	p, ok := h.loadVisible(w, r)
	if !ok {
		return nil, false
	}
	if !actor.CanManage(p) {
		writeError(w, http.StatusForbidden, "product belongs to another vendor")
		return nil, false
	}
	return p, true
}

func visibleTo(actor moderation.Actor, p *model.Product) bool {
	return p.Status.PubliclyVisible() || actor.CanManage(p)
}
