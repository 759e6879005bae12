package api

import (
	"errors"

	"github.com/labstack/echo/v4"

	"shop-service/internal/entity"
	"shop-service/internal/repository"
	"shop-service/internal/service"
)

type Handler struct {
	products  *service.ProductService
	carts     *service.CartService
	orders    *service.OrderService
	courses   *service.CourseService
	favorites *service.FavoriteService
}

func NewHandler(products *service.ProductService, carts *service.CartService, orders *service.OrderService, courses *service.CourseService, favorites *service.FavoriteService) *Handler {
	return &Handler{products: products, carts: carts, orders: orders, courses: courses, favorites: favorites}
}

// Register wires all routes onto the Echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/products", h.ListProducts)
	e.GET("/products/:id", h.GetProduct)

	e.GET("/cart", h.GetCart)
	e.POST("/cart/items", h.AddCartLine)
	e.PUT("/cart/items/:productId", h.UpdateCartLine)
	e.DELETE("/cart/items/:productId", h.RemoveCartLine)
	e.DELETE("/cart", h.ClearCart)

	e.GET("/favorites", h.ListFavorites)
	e.POST("/favorites", h.AddFavorite)
	e.DELETE("/favorites/:productId", h.RemoveFavorite)

	e.POST("/orders", h.Checkout)
	e.GET("/orders", h.ListOrders)
	e.GET("/orders/:id", h.GetOrder)
	e.POST("/orders/:id/cancel", h.CancelOrder)

	e.POST("/course-applications", h.CreateApplication)
}

func (h *Handler) ListProducts(c echo.Context) error {
	products, err := h.products.List(c.Request().Context())
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(200, products)
}

// GetProduct accepts a product id or slug.
func (h *Handler) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	key := c.Param("id")

	product, err := h.products.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		product, err = h.products.GetBySlug(ctx, key)
	}
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(200, product)
}

func (h *Handler) GetCart(c echo.Context) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	cart, err := h.carts.GetCart(c.Request().Context(), principal)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(200, cart)
}

type cartLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) AddCartLine(c echo.Context) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}

	req := cartLineRequest{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	cart, err := h.carts.AddLine(c.Request().Context(), principal, req.ProductID, req.Quantity)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(200, cart)
}

func (h *Handler) UpdateCartLine(c echo.Context) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}

	req := cartLineRequest{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	cart, err := h.carts.SetLine(c.Request().Context(), principal, c.Param("productId"), req.Quantity)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(200, cart)
}

func (h *Handler) RemoveCartLine(c echo.Context) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	cart, err := h.carts.RemoveLine(c.Request().Context(), principal, c.Param("productId"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(200, cart)
}

func (h *Handler) ClearCart(c echo.Context) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	if err := h.carts.Clear(c.Request().Context(), principal); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(204)
}

func (h *Handler) ListFavorites(c echo.Context) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	favorites, err := h.favorites.List(c.Request().Context(), principal)
	if err != nil {
		return serviceError(c, err)
	}
	if favorites == nil {
		favorites = []entity.Favorite{}
	}
	return c.JSON(200, favorites)
}

type favoriteRequest struct {
	ProductID string `json:"product_id"`
}

func (h *Handler) AddFavorite(c echo.Context) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}

	req := favoriteRequest{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	favorites, err := h.favorites.Add(c.Request().Context(), principal, req.ProductID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(200, favorites)
}

func (h *Handler) RemoveFavorite(c echo.Context) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	favorites, err := h.favorites.Remove(c.Request().Context(), principal, c.Param("productId"))
	if err != nil {
		return serviceError(c, err)
	}
	if favorites == nil {
		favorites = []entity.Favorite{}
	}
	return c.JSON(200, favorites)
}

func (h *Handler) Checkout(c echo.Context) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}

	req := service.CheckoutRequest{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}
	req.IdempotentKey = c.Request().Header.Get("Idempotent-Key")

	order, err := h.orders.Checkout(c.Request().Context(), principal, &req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(201, order)
}

func (h *Handler) ListOrders(c echo.Context) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	orders, err := h.orders.ListOrders(c.Request().Context(), principal)
	if err != nil {
		return serviceError(c, err)
	}
	if orders == nil {
		orders = []entity.Order{}
	}
	return c.JSON(200, orders)
}

func (h *Handler) GetOrder(c echo.Context) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	order, err := h.orders.GetOrder(c.Request().Context(), principal, c.Param("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(200, order)
}

func (h *Handler) CancelOrder(c echo.Context) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	order, err := h.orders.Cancel(c.Request().Context(), principal, c.Param("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(200, order)
}

func (h *Handler) CreateApplication(c echo.Context) error {
	req := service.ApplyRequest{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	app, err := h.courses.Apply(c.Request().Context(), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(201, app)
}

func requirePrincipal(c echo.Context) (entity.Principal, error) {
	principal := principalFrom(c)
	if principal.Zero() {
		return principal, echo.NewHTTPError(401, "authentication or X-Session-Key required")
	}
	return principal, nil
}

// serviceError maps service errors onto HTTP responses. Checkout
// validation failures return the full per-product reason list.
func serviceError(c echo.Context, err error) error {
	var verrs service.ValidationErrors
	var reqErr service.RequestError
	switch {
	case errors.As(err, &verrs):
		return c.JSON(400, map[string]interface{}{"errors": verrs.ByProduct()})
	case errors.As(err, &reqErr):
		return c.JSON(400, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyCart):
		return c.JSON(400, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrNotCancellable):
		return c.JSON(400, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrProductNotSellable):
		return c.JSON(400, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrIdempotentReplay):
		return c.JSON(409, map[string]string{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(404, map[string]string{"error": "not found"})
	default:
		return c.JSON(500, map[string]string{"error": err.Error()})
	}
}
