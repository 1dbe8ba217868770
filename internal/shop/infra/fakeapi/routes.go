package fakeapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jcmexdev/campify/internal/shop/core/domain/entity"
)

type ctxKey struct{}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/login", s.login)
		r.Post("/register", s.register)
		r.Post("/forgot-password/", s.forgotPassword)
		r.Post("/reset-password/", s.resetPassword)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticated)
			r.Put("/{id}/update/", s.updateProfile)
			r.Put("/{id}/update-password/", s.updatePassword)

			r.Get("/cart/{id}/", s.getCart)
			r.Post("/cart/{id}/add/", s.addToCart)
			r.Put("/cart/{id}/update/", s.updateCart)
			r.Delete("/cart/{id}/remove/", s.removeFromCart)
			r.Delete("/cart/{id}/clear/", s.clearCart)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authenticated, s.adminOnly)
			r.Get("/admin", s.listUsers)
			r.Delete("/admin/{id}/delete/", s.deleteUser)
			r.Put("/admin/{id}/ban/", s.setUserStatus(entity.StatusInactive))
			r.Put("/admin/{id}/unban/", s.setUserStatus(entity.StatusActive))
			r.Post("/invite-user/", s.inviteUser)
		})
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", s.listProducts)
		r.Get("/{id}", s.getProduct)
		r.Group(func(r chi.Router) {
			r.Use(s.authenticated, s.adminOnly)
			r.Post("/create/", s.createProduct)
			r.Put("/{id}/update/", s.updateProduct)
			r.Delete("/{id}/delete/", s.deleteProduct)
		})
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Use(s.authenticated)
		r.Get("/{id}/", s.userOrders)
		r.Post("/checkout/{id}/", s.checkout)
		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Get("/", s.allOrders)
			r.Get("/order/{id}/", s.getOrder)
			r.Delete("/{id}/delete/", s.deleteOrder)
		})
	})

	r.With(s.authenticated, s.adminOnly).Get("/api/stats/dashboard/", s.dashboard)

	return r
}

func (s *Server) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
			return
		}
		s.mu.Lock()
		id, known := s.tokens[token]
		s.mu.Unlock()
		if !known {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := r.Context().Value(ctxKey{}).(string)
		s.mu.Lock()
		a, ok := s.accounts[id]
		s.mu.Unlock()
		if !ok || !a.IsAdmin() {
			writeMessage(w, http.StatusForbidden, "You do not have permission to perform this action.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// owner rejects requests where the path user differs from the token user.
func (s *Server) owner(w http.ResponseWriter, r *http.Request, param string) (string, bool) {
	id := chi.URLParam(r, param)
	if caller, _ := r.Context().Value(ctxKey{}).(string); caller != id {
		writeMessage(w, http.StatusForbidden, "You can only access your own data.")
		return "", false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email != body.Email || a.Password != body.Password {
			continue
		}
		if a.Status == entity.StatusInactive {
			writeMessage(w, http.StatusForbidden, "Your account has been banned.")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Login successful",
			"token":   s.issueTokenLocked(a.ID),
			"refresh": uuid.NewString(),
			"user":    a.Identity,
		})
		return
	}
	writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FullName string `json:"full_name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}

	fieldErrors := map[string][]string{}
	if strings.TrimSpace(body.FullName) == "" {
		fieldErrors["full_name"] = []string{"This field may not be blank."}
	}
	if len(body.Password) < 6 {
		fieldErrors["password"] = []string{"Ensure this field has at least 6 characters."}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == body.Email {
			fieldErrors["email"] = []string{"This email is already registered."}
		}
	}
	if len(fieldErrors) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "errors": fieldErrors})
		return
	}

	role := entity.RoleUser
	if invited, ok := s.invites[body.Email]; ok {
		role = invited
	}
	s.addAccountLocked(body.FullName, body.Email, body.Password, role)
	writeMessage(w, http.StatusCreated, "User registered successfully")
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Email == body.Email {
			s.resetTokens[uuid.NewString()] = a.ID
			writeMessage(w, http.StatusOK, "Password reset link sent to your email.")
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "No account found with this email.")
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.resetTokens[body.Token]
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid or expired reset link.")
		return
	}
	delete(s.resetTokens, body.Token)
	s.accounts[id].Password = body.Password
	writeMessage(w, http.StatusOK, "Password has been reset successfully.")
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		FullName *string `json:"full_name"`
		Email    *string `json:"email"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[id]
	if body.Email != nil {
		for _, other := range s.accounts {
			if other.ID != id && other.Email == *body.Email {
				writeMessage(w, http.StatusBadRequest, "This email is already in use.")
				return
			}
		}
		a.Email = *body.Email
	}
	if body.FullName != nil {
		a.Name = *body.FullName
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": a.Identity})
}

func (s *Server) updatePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Old     string `json:"old_password"`
		New     string `json:"new_password"`
		Confirm string `json:"confirm_password"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[id]
	switch {
	case a.Password != body.Old:
		writeMessage(w, http.StatusBadRequest, "Old password is incorrect.")
	case body.New != body.Confirm:
		writeMessage(w, http.StatusBadRequest, "New passwords do not match.")
	default:
		a.Password = body.New
		writeMessage(w, http.StatusOK, "Password updated successfully.")
	}
}

func (s *Server) productLocked(id string) (int, bool) {
	i := slices.IndexFunc(s.products, func(p entity.Product) bool { return p.ID == id })
	return i, i >= 0
}

func (s *Server) cartPayloadLocked(userID string) map[string]any {
	items := make([]map[string]any, 0, len(s.carts[userID]))
	for _, e := range s.carts[userID] {
		item := map[string]any{"_id": e.ProductID, "quantity": e.Quantity}
		if i, ok := s.productLocked(e.ProductID); ok {
			p := s.products[i]
			item["name"] = p.Name
			item["price"] = p.Price
			item["image"] = p.ImageRef
			item["category"] = p.Category
			item["stock"] = p.Stock
		}
		items = append(items, item)
	}
	return map[string]any{"items": items}
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.cartPayloadLocked(id))
}

type cartBody struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r, "id")
	if !ok {
		return
	}
	var body cartBody
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.productLocked(body.ProductID); !ok {
		writeMessage(w, http.StatusNotFound, "Product not found")
		return
	}
	entries := s.carts[id]
	if i := slices.IndexFunc(entries, func(e cartEntry) bool { return e.ProductID == body.ProductID }); i >= 0 {
		entries[i].Quantity++
	} else {
		entries = append(entries, cartEntry{ProductID: body.ProductID, Quantity: 1})
	}
	s.carts[id] = entries
	writeJSON(w, http.StatusOK, s.cartPayloadLocked(id))
}

func (s *Server) updateCart(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r, "id")
	if !ok {
		return
	}
	var body cartBody
	if !decode(w, r, &body) {
		return
	}
	if body.Quantity == nil {
		writeMessage(w, http.StatusBadRequest, "quantity is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.carts[id]
	i := slices.IndexFunc(entries, func(e cartEntry) bool { return e.ProductID == body.ProductID })
	if i < 0 {
		writeMessage(w, http.StatusNotFound, "Item not in cart")
		return
	}
	if *body.Quantity < 1 {
		entries = slices.Delete(entries, i, i+1)
	} else {
		entries[i].Quantity = *body.Quantity
	}
	s.carts[id] = entries
	writeJSON(w, http.StatusOK, s.cartPayloadLocked(id))
}

func (s *Server) removeFromCart(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r, "id")
	if !ok {
		return
	}
	var body cartBody
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[id] = slices.DeleteFunc(s.carts[id], func(e cartEntry) bool { return e.ProductID == body.ProductID })
	writeJSON(w, http.StatusOK, s.cartPayloadLocked(id))
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, id)
	writeJSON(w, http.StatusOK, s.cartPayloadLocked(id))
}

func (s *Server) listProducts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Products())
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.productLocked(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Product not found"})
		return
	}
	writeJSON(w, http.StatusOK, s.products[i])
}

// productForm reads a JSON or multipart product payload. Only the fields
// present are applied to p.
func productForm(r *http.Request, p *entity.Product) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return json.NewDecoder(r.Body).Decode(p)
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return err
	}
	form := r.MultipartForm
	if v, ok := form.Value["name"]; ok {
		p.Name = v[0]
	}
	if v, ok := form.Value["category"]; ok {
		p.Category = v[0]
	}
	if v, ok := form.Value["description"]; ok {
		p.Description = v[0]
	}
	if v, ok := form.Value["price"]; ok {
		f, err := strconv.ParseFloat(v[0], 64)
		if err != nil {
			return err
		}
		p.Price = f
	}
	if v, ok := form.Value["stock"]; ok {
		n, err := strconv.Atoi(v[0])
		if err != nil {
			return err
		}
		p.Stock = n
	}
	if v, ok := form.Value["features"]; ok {
		p.Features = v
	}
	if files, ok := form.File["image"]; ok && len(files) > 0 {
		p.ImageRef = "products/" + files[0].Filename
	} else if v, ok := form.Value["image_url"]; ok {
		p.ImageRef = v[0]
	}
	return nil
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var p entity.Product
	if err := productForm(r, &p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if p.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"name": []string{"This field is required."}})
		return
	}
	p.ID = ""
	writeJSON(w, http.StatusCreated, s.AddProduct(p))
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.productLocked(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Product not found"})
		return
	}
	p := s.products[i]
	if err := productForm(r, &p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	p.ID = s.products[i].ID
	s.products[i] = p
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.productLocked(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Product not found"})
		return
	}
	s.products = slices.Delete(s.products, i, i+1)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}

func (s *Server) userOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []entity.Order{}
	for _, o := range s.orders {
		if o.UserID == id {
			out = append(out, o.Order)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		Items   []entity.OrderItem `json:"items"`
		Amount  float64            `json:"amount"`
		Address entity.Address     `json:"address"`
		Status  entity.OrderStatus `json:"status"`
		Payment bool               `json:"payment"`
	}
	if !decode(w, r, &body) {
		return
	}
	if len(body.Items) == 0 {
		writeMessage(w, http.StatusBadRequest, "Cart is empty")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := r.Header.Get("X-Idempotency-Key")
	if key != "" {
		for _, o := range s.orders {
			if o.Order.ID == key {
				writeJSON(w, http.StatusCreated, map[string]string{"message": "Order created", "order_id": key})
				return
			}
		}
	}
	orderID := key
	if orderID == "" {
		orderID = uuid.NewString()
	}
	a := s.accounts[id]
	s.orders = append(s.orders, storedOrder{UserID: id, Order: entity.Order{
		ID:      orderID,
		User:    &entity.OrderUser{ID: a.ID, Name: a.Name, Email: a.Email},
		Items:   body.Items,
		Amount:  body.Amount,
		Address: body.Address,
		Status:  body.Status,
		Payment: body.Payment,
		Date:    time.Now().UTC().Format(time.RFC3339),
	}})
	delete(s.carts, id)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Order created", "order_id": orderID})
}

func (s *Server) allOrders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Orders())
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := chi.URLParam(r, "id")
	for _, o := range s.orders {
		if o.Order.ID == id {
			writeJSON(w, http.StatusOK, o.Order)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Order not found"})
}

func (s *Server) deleteOrder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := chi.URLParam(r, "id")
	i := slices.IndexFunc(s.orders, func(o storedOrder) bool { return o.Order.ID == id })
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Order not found"})
		return
	}
	s.orders = slices.Delete(s.orders, i, i+1)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Order deleted successfully"})
}

func (s *Server) listUsers(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Identity, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.Identity)
	}
	slices.SortFunc(out, func(a, b entity.Identity) int { return strings.Compare(a.Email, b.Email) })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := chi.URLParam(r, "id")
	if _, ok := s.accounts[id]; !ok {
		writeMessage(w, http.StatusNotFound, "User not found")
		return
	}
	delete(s.accounts, id)
	writeMessage(w, http.StatusOK, "User deleted successfully")
}

func (s *Server) setUserStatus(status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		a, ok := s.accounts[chi.URLParam(r, "id")]
		if !ok {
			writeMessage(w, http.StatusNotFound, "User not found")
			return
		}
		a.Status = status
		writeMessage(w, http.StatusOK, "User status updated")
	}
}

func (s *Server) inviteUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string      `json:"email"`
		Role  entity.Role `json:"role"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Email == "" {
		writeMessage(w, http.StatusBadRequest, "Email is required")
		return
	}
	if body.Role == "" {
		body.Role = entity.RoleUser
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites[body.Email] = body.Role
	writeMessage(w, http.StatusOK, "Invitation sent successfully")
}

func (s *Server) dashboard(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	if st.RecentOrders == nil {
		st.RecentOrders = []entity.DashboardOrder{}
	}
	if st.TopProducts == nil {
		st.TopProducts = []entity.ProductSales{}
	}
	writeJSON(w, http.StatusOK, st)
}
