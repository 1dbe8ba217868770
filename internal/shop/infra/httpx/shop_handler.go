package httpx

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/campify/internal/pkg/apiclient"
	"github.com/jcmexdev/campify/internal/shop/app/cart"
	"github.com/jcmexdev/campify/internal/shop/app/catalog"
	"github.com/jcmexdev/campify/internal/shop/app/order"
	"github.com/jcmexdev/campify/internal/shop/core/domain/entity"
)

func (h *Handler) productResponse(p entity.Product) ProductResponse {
	return ProductResponse{Product: p, ImageURL: h.Catalog.ResolveImage(p.ImageRef)}
}

func (h *Handler) productList(products []entity.Product) ProductListResponse {
	items := make([]ProductResponse, len(products))
	for i, p := range products {
		items[i] = h.productResponse(p)
	}
	return ProductListResponse{Items: items, Loading: h.Catalog.Loading()}
}

// ListProducts refreshes the catalog and returns it.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.FetchAll(r.Context()); err != nil {
		writeBackendError(w, err, "catalog_unavailable", catalog.MsgFetchFailed)
		return
	}
	writeJSON(w, http.StatusOK, h.productList(h.Catalog.Products()))
}

// FeaturedProducts serves the home page selection, loading the catalog
// first when nothing has been fetched yet.
func (h *Handler) FeaturedProducts(w http.ResponseWriter, r *http.Request) {
	if len(h.Catalog.Products()) == 0 {
		if err := h.Catalog.FetchAll(r.Context()); err != nil {
			writeBackendError(w, err, "catalog_unavailable", catalog.MsgFetchFailed)
			return
		}
	}
	writeJSON(w, http.StatusOK, h.productList(h.Catalog.Featured()))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if p, ok := h.Catalog.Lookup(id); ok {
		writeJSON(w, http.StatusOK, h.productResponse(p))
		return
	}
	p, err := h.Catalog.Get(r.Context(), id)
	if err != nil {
		writeBackendError(w, err, "product_not_found", catalog.MsgLoadFailed)
		return
	}
	writeJSON(w, http.StatusOK, h.productResponse(p))
}

func (h *Handler) cartResponse() CartResponse {
	items := h.Cart.Lines()
	if items == nil {
		items = []entity.CartLine{}
	}
	return CartResponse{
		Items:   items,
		Total:   entity.RoundCents(entity.CartTotal(items)),
		Count:   entity.CartCount(items),
		State:   h.Cart.State(),
		Loading: h.Cart.Loading(),
	}
}

func (h *Handler) GetCart(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.cartResponse())
}

// AddCartItem adds one unit of a product. Display fields come from the
// loaded catalog, or from a point lookup when the product is not listed.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "product_id is required")
		return
	}

	p, ok := h.Catalog.Lookup(req.ProductID)
	if !ok {
		var err error
		if p, err = h.Catalog.Get(r.Context(), req.ProductID); err != nil {
			writeBackendError(w, err, "product_not_found", catalog.MsgLoadFailed)
			return
		}
	}

	h.writeCartResult(w, h.Cart.Add(r.Context(), p.Snapshot()))
}

func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "quantity is required")
		return
	}
	h.writeCartResult(w, h.Cart.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), *req.Quantity))
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	h.writeCartResult(w, h.Cart.Remove(r.Context(), chi.URLParam(r, "id")))
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.writeCartResult(w, h.Cart.Clear(r.Context()))
}

func (h *Handler) writeCartResult(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.cartResponse())
	case errors.Is(err, cart.ErrNotLoggedIn):
		writeError(w, http.StatusUnauthorized, "not_logged_in", cart.MsgLoginRequired)
	case errors.Is(err, cart.ErrStale):
		writeError(w, http.StatusConflict, "session_changed", err.Error())
	default:
		writeBackendError(w, err, "cart_update_failed", cart.MsgUpdateFailed)
	}
}

// ListOrders loads the signed-in user's orders. ?notify=true adds the
// informational notifications of the orders page.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	err := h.Orders.FetchByUser(r.Context(), r.URL.Query().Get("notify") == "true")
	switch {
	case errors.Is(err, order.ErrNotLoggedIn):
		writeError(w, http.StatusUnauthorized, "not_logged_in", "")
	case err != nil:
		writeBackendError(w, err, "orders_unavailable", order.MsgFetchFailed)
	default:
		writeJSON(w, http.StatusOK, orderList(h.Orders.Orders()))
	}
}

// Quote prices the current cart.
func (h *Handler) Quote(w http.ResponseWriter, _ *http.Request) {
	lines := h.Cart.Lines()
	if lines == nil {
		lines = []entity.CartLine{}
	}
	writeJSON(w, http.StatusOK, QuoteResponse{Items: lines, Quote: entity.NewQuote(entity.CartTotal(lines))})
}

// Checkout places an order for the current cart and clears the cart once
// the order exists.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	lines := h.Cart.Lines()
	res, err := h.Orders.SubmitCheckout(r.Context(), lines, req.Address, entity.CartTotal(lines))
	switch {
	case errors.Is(err, order.ErrNotLoggedIn):
		writeError(w, http.StatusUnauthorized, "not_logged_in", "")
		return
	case errors.Is(err, entity.ErrEmptyOrder), errors.Is(err, entity.ErrIncompleteAddress):
		writeError(w, http.StatusBadRequest, "invalid_checkout", err.Error())
		return
	case err != nil:
		var apiErr *apiclient.Error
		if !errors.As(err, &apiErr) {
			writeError(w, http.StatusPaymentRequired, "checkout_failed", err.Error())
			return
		}
		writeBackendError(w, err, "checkout_failed", order.MsgCheckoutFailed)
		return
	}

	if err := h.Cart.Clear(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "cart not cleared after checkout", "order_id", res.OrderID, "error", err)
	}
	writeJSON(w, http.StatusCreated, res)
}

func orderList(orders []entity.Order) OrderListResponse {
	if orders == nil {
		orders = []entity.Order{}
	}
	return OrderListResponse{Items: orders}
}
