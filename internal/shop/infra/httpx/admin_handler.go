package httpx

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/campify/internal/pkg/apiclient"
	"github.com/jcmexdev/campify/internal/shop/app/catalog"
	"github.com/jcmexdev/campify/internal/shop/app/order"
	"github.com/jcmexdev/campify/internal/shop/app/session"
	"github.com/jcmexdev/campify/internal/shop/app/stats"
	"github.com/jcmexdev/campify/internal/shop/app/users"
	"github.com/jcmexdev/campify/internal/shop/core/domain/entity"
)

const maxUploadBytes = 10 << 20

// RequireAdmin rejects requests unless an administrator is signed in.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur, ok := h.Session.Current()
		if !ok {
			writeError(w, http.StatusUnauthorized, "not_logged_in", session.MsgLoginRequired)
			return
		}
		if !cur.Identity.IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden", session.MsgAdminOnly)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	in, ok := readProductInput(w, r)
	if !ok {
		return
	}
	p, err := h.Catalog.Create(r.Context(), in)
	if err != nil {
		writeProductError(w, err, catalog.MsgCreateFailed)
		return
	}
	writeJSON(w, http.StatusCreated, h.productResponse(p))
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	in, ok := readProductInput(w, r)
	if !ok {
		return
	}
	p, err := h.Catalog.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeProductError(w, err, catalog.MsgUpdateFailed)
		return
	}
	writeJSON(w, http.StatusOK, h.productResponse(p))
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeBackendError(w, err, "product_delete_failed", catalog.MsgDeleteFailed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeProductError(w http.ResponseWriter, err error, fallback string) {
	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) {
		writeError(w, http.StatusBadRequest, "invalid_product", err.Error())
		return
	}
	writeBackendError(w, err, "product_save_failed", fallback)
}

// readProductInput accepts the product form as JSON or as multipart with
// an optional "image" file.
func readProductInput(w http.ResponseWriter, r *http.Request) (catalog.ProductInput, bool) {
	var in catalog.ProductInput
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return in, decodeJSON(w, r, &in)
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_form", err.Error())
		return in, false
	}
	in.Name = r.FormValue("name")
	in.Category = r.FormValue("category")
	in.Description = r.FormValue("description")
	in.ImageURL = r.FormValue("image_url")
	in.Features = r.MultipartForm.Value["features"]

	var err error
	if v := strings.TrimSpace(r.FormValue("price")); v != "" {
		if in.Price, err = strconv.ParseFloat(v, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_form", "price must be a number")
			return in, false
		}
	}
	if v := strings.TrimSpace(r.FormValue("stock")); v != "" {
		if in.Stock, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_form", "stock must be an integer")
			return in, false
		}
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		writeError(w, http.StatusBadRequest, "invalid_form", err.Error())
		return in, false
	default:
		in.Image = &catalog.ImageUpload{Filename: header.Filename, Content: file}
	}
	return in, true
}

func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	if err := h.Orders.FetchAll(r.Context(), r.URL.Query().Get("notify") == "true"); err != nil {
		writeBackendError(w, err, "orders_unavailable", order.MsgAllFetchFailed)
		return
	}
	writeJSON(w, http.StatusOK, orderList(h.Orders.AllOrders()))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeBackendError(w, err, "order_not_found", order.MsgLoadFailed)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.Orders.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeBackendError(w, err, "order_delete_failed", order.MsgDeleteFailed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if err := h.Users.Fetch(r.Context()); err != nil {
		writeBackendError(w, err, "users_unavailable", users.MsgFetchFailed)
		return
	}
	items := h.Users.Users()
	if items == nil {
		items = []entity.Identity{}
	}
	writeJSON(w, http.StatusOK, UserListResponse{Items: items})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.Users.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeBackendError(w, err, "user_delete_failed", users.MsgDeleteFailed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) BanUser(w http.ResponseWriter, r *http.Request) {
	h.writeUserStatus(w, h.Users.Ban(r.Context(), chi.URLParam(r, "id")))
}

func (h *Handler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	h.writeUserStatus(w, h.Users.Unban(r.Context(), chi.URLParam(r, "id")))
}

func (h *Handler) writeUserStatus(w http.ResponseWriter, err error) {
	if err != nil {
		writeBackendError(w, err, "user_status_failed", users.MsgStatusFailed)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) InviteUser(w http.ResponseWriter, r *http.Request) {
	var req InviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", users.MsgEmailRequired)
		return
	}
	if err := h.Users.Invite(r.Context(), req.Email, req.Role); err != nil {
		writeBackendError(w, err, "invite_failed", users.MsgInviteFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": users.MsgInvited})
}

func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	if err := h.Stats.Fetch(r.Context(), r.URL.Query().Get("notify") == "true"); err != nil {
		writeBackendError(w, err, "stats_unavailable", stats.MsgFetchFailed)
		return
	}
	st, _ := h.Stats.Stats()
	writeJSON(w, http.StatusOK, st)
}
