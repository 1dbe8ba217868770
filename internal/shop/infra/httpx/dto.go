package httpx

import (
	"github.com/jcmexdev/campify/internal/pkg/notify"
	"github.com/jcmexdev/campify/internal/shop/app/cart"
	"github.com/jcmexdev/campify/internal/shop/core/domain/entity"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password"`
}

type SessionResponse struct {
	LoggedIn bool             `json:"logged_in"`
	User     *entity.Identity `json:"user,omitempty"`
}

type AddItemRequest struct {
	ProductID string `json:"product_id"`
}

type UpdateItemRequest struct {
	Quantity *int `json:"quantity"`
}

type CartResponse struct {
	Items   []entity.CartLine `json:"items"`
	Total   float64           `json:"total"`
	Count   int               `json:"count"`
	State   cart.State        `json:"state"`
	Loading bool              `json:"loading"`
}

type QuoteResponse struct {
	Items []entity.CartLine `json:"items"`
	entity.Quote
}

type CheckoutRequest struct {
	Address entity.Address `json:"address"`
}

type ProductResponse struct {
	entity.Product
	ImageURL string `json:"image"`
}

type ProductListResponse struct {
	Items   []ProductResponse `json:"items"`
	Loading bool              `json:"loading"`
}

type OrderListResponse struct {
	Items []entity.Order `json:"items"`
}

type NotificationListResponse struct {
	Items []notify.Item `json:"items"`
}

type InviteRequest struct {
	Email string      `json:"email"`
	Role  entity.Role `json:"role"`
}

type UserListResponse struct {
	Items []entity.Identity `json:"items"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
